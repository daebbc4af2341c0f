package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	// playbackLead is how far behind wall-clock time playback begins. Display
	// clients only poll data that looks recent, so two hours is the limit.
	playbackLead = 2 * time.Hour

	// initialClockOffset gives the viewer some history when playback starts.
	initialClockOffset = 10 * time.Minute

	// incrementStep is the spacing of jump targets offered to the user.
	incrementStep = 5 * time.Minute

	// ClockLayout is the canonical label format for playback instants.
	ClockLayout = "2006-01-02 15:04"
)

// MinEventDuration is the shortest event, in minutes, that still contains the
// initial clock.
const MinEventDuration = int(initialClockOffset / time.Minute)

// SimulationWindow maps a historical event onto a recent playback interval.
// It is a value type; changing any input means computing a new window.
type SimulationWindow struct {
	EventStart    time.Time
	EventDuration int // minutes

	PlaybackStart time.Time
	PlaybackEnd   time.Time
	InitialClock  time.Time

	// SecondsShift is PlaybackStart - EventStart, rounded to whole seconds.
	SecondsShift int64

	// Increments are the 5-minute jump targets spanning the playback interval.
	Increments []time.Time
}

// NewWindow computes a window against the package clock.
func NewWindow(eventStart time.Time, durationMinutes int) (SimulationWindow, error) {
	return ComputeWindow(eventStart, durationMinutes, clock.Now())
}

// ComputeWindow derives the playback interval for an event starting at
// eventStart and lasting durationMinutes, evaluated at now.
func ComputeWindow(eventStart time.Time, durationMinutes int, now time.Time) (SimulationWindow, error) {
	if eventStart.IsZero() {
		return SimulationWindow{}, &ConfigError{Field: "event start", Reason: "not set"}
	}
	if durationMinutes < MinEventDuration {
		return SimulationWindow{}, &ConfigError{
			Field:  "event duration",
			Reason: fmt.Sprintf("%d minutes is shorter than %d", durationMinutes, MinEventDuration),
		}
	}

	eventStart = eventStart.UTC()
	start := snapHalfHour(now.UTC().Add(-playbackLead))
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	shift := math.Round(start.Sub(eventStart).Seconds())

	n := durationMinutes / int(incrementStep/time.Minute)
	increments := make([]time.Time, 0, n+1)
	for i := 0; i <= n; i++ {
		increments = append(increments, start.Add(time.Duration(i)*incrementStep))
	}

	return SimulationWindow{
		EventStart:    eventStart,
		EventDuration: durationMinutes,
		PlaybackStart: start,
		PlaybackEnd:   end,
		InitialClock:  start.Add(initialClockOffset),
		SecondsShift:  int64(shift),
		Increments:    increments,
	}, nil
}

// snapHalfHour truncates t to the most recent :00 or :30 boundary.
func snapHalfHour(t time.Time) time.Time {
	minute := 0
	if t.Minute() >= 30 {
		minute = 30
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}

// Shift returns SecondsShift as a duration.
func (w SimulationWindow) Shift() time.Duration {
	return time.Duration(w.SecondsShift) * time.Second
}

// Contains reports whether t lies within [PlaybackStart, PlaybackEnd].
func (w SimulationWindow) Contains(t time.Time) bool {
	return !t.Before(w.PlaybackStart) && !t.After(w.PlaybackEnd)
}

// FormatClock renders t in the canonical label layout.
func FormatClock(t time.Time) string {
	return t.UTC().Format(ClockLayout)
}

// ParseClock parses a label produced by FormatClock as a UTC instant.
func ParseClock(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ClockLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Rule: "clock", Input: s, Err: err}
	}
	return t, nil
}
