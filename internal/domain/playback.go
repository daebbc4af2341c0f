package domain

import (
	"fmt"
	"math"
	"time"
)

// TickPeriod is the wall-clock interval between playback ticks.
const TickPeriod = 15 * time.Second

// Status is the playback state.
type Status int

const (
	NotStarted Status = iota
	Running
	Paused
	Complete
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "Not Started"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Complete:
		return "Simulation Complete"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText renders the status label for JSON readouts.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PlaybackSpec is the state of one replay session. Values are never mutated
// in place; Transition returns the next spec.
type PlaybackSpec struct {
	Window SimulationWindow
	Status Status
	Speed  float64
	Clock  time.Time
}

// NewPlaybackSpec returns a spec that has not started yet.
func NewPlaybackSpec(speed float64) PlaybackSpec {
	if ValidateSpeed(speed) != nil {
		speed = 1
	}
	return PlaybackSpec{Status: NotStarted, Speed: speed}
}

// Paused reports whether the clock is held by the user.
func (s PlaybackSpec) Paused() bool {
	return s.Status == Paused
}

// Event is a playback control input. The set of events is closed.
type Event interface {
	playbackEvent()
}

// Start begins (or restarts) playback over Window.
type Start struct{ Window SimulationWindow }

// Tick is one period of the tick source.
type Tick struct{}

// Pause holds the clock.
type Pause struct{}

// Resume continues from the held clock.
type Resume struct{}

// JumpTo moves the clock to Time.
type JumpTo struct{ Time time.Time }

// SpeedChange sets the playback multiplier.
type SpeedChange struct{ Speed float64 }

func (Start) playbackEvent()       {}
func (Tick) playbackEvent()        {}
func (Pause) playbackEvent()       {}
func (Resume) playbackEvent()      {}
func (JumpTo) playbackEvent()      {}
func (SpeedChange) playbackEvent() {}

// TickerCommand tells the runner what to do with the tick source.
type TickerCommand int

const (
	TickerKeep TickerCommand = iota
	TickerStart
	TickerStop
)

// Effects are the side effects a transition asks the runner to perform.
type Effects struct {
	// Notify means the clock changed and the current-view sinks must be told.
	Notify bool
	Ticker TickerCommand
}

// Transition applies ev to s. Events that do not apply to the current state
// return s unchanged with no effects.
func Transition(s PlaybackSpec, ev Event) (PlaybackSpec, Effects) {
	switch e := ev.(type) {
	case Start:
		if s.Status != NotStarted && s.Status != Complete {
			return s, Effects{}
		}
		s.Window = e.Window
		s.Clock = e.Window.InitialClock
		s.Status = Running
		return s, Effects{Notify: true, Ticker: TickerStart}

	case Tick:
		if s.Status != Running {
			return s, Effects{}
		}
		s.Clock = s.Clock.Add(tickAdvance(s.Speed))
		if s.Clock.Before(s.Window.PlaybackEnd) {
			return s, Effects{Notify: true}
		}
		s.Clock = s.Window.PlaybackEnd
		s.Status = Complete
		return s, Effects{Ticker: TickerStop}

	case Pause:
		if s.Status != Running {
			return s, Effects{}
		}
		s.Status = Paused
		return s, Effects{Ticker: TickerStop}

	case Resume:
		if s.Status != Paused {
			return s, Effects{}
		}
		s.Status = Running
		return s, Effects{Ticker: TickerStart}

	case JumpTo:
		if s.Status != Running && s.Status != Paused {
			return s, Effects{}
		}
		s.Clock = e.Time.UTC()
		return s, Effects{Notify: true}

	case SpeedChange:
		if ValidateSpeed(e.Speed) != nil {
			return s, Effects{}
		}
		s.Speed = e.Speed
		return s, Effects{}
	}
	return s, Effects{}
}

// tickAdvance is how far the simulated clock moves per tick at speed.
func tickAdvance(speed float64) time.Duration {
	return time.Duration(math.Round(TickPeriod.Seconds()*speed)) * time.Second
}

// ValidateSpeed rejects multipliers the state machine cannot use, including
// speeds so slow that a tick rounds to no advance at all.
func ValidateSpeed(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &ConfigError{Field: "playback speed", Reason: fmt.Sprintf("%v is not a positive number", v)}
	}
	if tickAdvance(v) <= 0 {
		return &ConfigError{Field: "playback speed", Reason: fmt.Sprintf("%v advances the clock less than one second per tick", v)}
	}
	return nil
}

// ValidateJump rejects jump targets outside the playback window.
func ValidateJump(w SimulationWindow, t time.Time) error {
	if !w.Contains(t) {
		return &ConfigError{
			Field:  "jump target",
			Reason: fmt.Sprintf("%s is outside %s to %s", FormatClock(t), FormatClock(w.PlaybackStart), FormatClock(w.PlaybackEnd)),
		}
	}
	return nil
}
