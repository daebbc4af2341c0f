package playback_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/observability"
	"github.com/scottthomaswx/cloud-radar-server/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- recording sinks ---

type dirCall struct {
	radar string
	at    time.Time
}

type recorder struct {
	mu        sync.Mutex
	hodograph []time.Time
	dirlist   []dirCall
	published []playback.Snapshot
	err       error
}

func (r *recorder) UpdateHodographPage(_ context.Context, simTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hodograph = append(r.hodograph, simTime)
	return r.err
}

func (r *recorder) UpdateDirList(_ context.Context, radar string, simTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirlist = append(r.dirlist, dirCall{radar: radar, at: simTime})
	return r.err
}

func (r *recorder) PublishClock(_ context.Context, snap playback.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, snap)
	return nil
}

func (r *recorder) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recorder) hodographCalls() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.hodograph...)
}

func (r *recorder) dirlistCalls() []dirCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dirCall(nil), r.dirlist...)
}

func (r *recorder) publishedSnapshots() []playback.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]playback.Snapshot(nil), r.published...)
}

// --- helpers ---

const interval = 15 * time.Second

var now = time.Date(2026, time.May, 20, 21, 47, 0, 0, time.UTC)

func testWindow(t *testing.T) domain.SimulationWindow {
	t.Helper()
	w, err := domain.ComputeWindow(time.Date(2024, time.July, 16, 0, 30, 0, 0, time.UTC), 30, now)
	require.NoError(t, err)
	return w
}

type harness struct {
	player  *playback.Player
	clock   *clockwork.FakeClock
	sinks   *recorder
	metrics *observability.Metrics
	stop    context.CancelFunc
	stopped chan struct{}
}

func newHarness(t *testing.T, speed float64, targets ...string) *harness {
	t.Helper()
	h := &harness{
		clock:   clockwork.NewFakeClockAt(now),
		sinks:   &recorder{},
		metrics: observability.NewMetricsForTesting(),
		stopped: make(chan struct{}),
	}
	h.player = playback.New(
		playback.Options{Targets: targets, TickInterval: interval, Speed: speed, Clock: h.clock},
		playback.Sinks{Hodograph: h.sinks, DirList: h.sinks, Publisher: h.sinks},
		slog.Default(),
		h.metrics,
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	go func() {
		defer close(h.stopped)
		_ = h.player.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.stopped
	})

	require.Eventually(t, func() bool {
		return h.player.CheckReadiness(context.Background()) == nil
	}, time.Second, time.Millisecond)
	return h
}

func (h *harness) send(t *testing.T, ev domain.Event) playback.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := h.player.Send(ctx, ev)
	require.NoError(t, err)
	return snap
}

// tick fires the ticker once and waits for the player to apply it.
func (h *harness) tick(t *testing.T, want func(playback.Snapshot) bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(interval)
	require.Eventually(t, func() bool { return want(h.player.Snapshot()) }, time.Second, time.Millisecond)
}

func clockIs(want time.Time) func(playback.Snapshot) bool {
	return func(s playback.Snapshot) bool { return s.Clock.Equal(want) }
}

// --- tests ---

func TestPlayer_InitialSnapshot(t *testing.T) {
	p := playback.New(playback.Options{Speed: 2}, playback.Sinks{}, slog.Default(), observability.NewMetricsForTesting())

	snap := p.Snapshot()
	assert.Equal(t, domain.NotStarted, snap.Status)
	assert.True(t, snap.Clock.IsZero())
	assert.Empty(t, snap.ClockLabel)
	assert.InDelta(t, 2.0, snap.Speed, 0)
	assert.False(t, snap.Paused)
}

func TestPlayer_CheckReadiness_BeforeRun(t *testing.T) {
	p := playback.New(playback.Options{}, playback.Sinks{}, slog.Default(), observability.NewMetricsForTesting())
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPlayer_StartNotifiesEverySink(t *testing.T) {
	h := newHarness(t, 1, "KTLX", "KINX")
	w := testWindow(t)

	snap := h.send(t, domain.Start{Window: w})

	assert.Equal(t, domain.Running, snap.Status)
	assert.True(t, snap.Clock.Equal(w.InitialClock))
	assert.Equal(t, domain.FormatClock(w.InitialClock), snap.ClockLabel)
	assert.Equal(t, w.SecondsShift, snap.SecondsShift)

	assert.Equal(t, []time.Time{w.InitialClock}, h.sinks.hodographCalls())
	assert.Equal(t, []dirCall{{"KTLX", w.InitialClock}, {"KINX", w.InitialClock}}, h.sinks.dirlistCalls())
	require.Len(t, h.sinks.publishedSnapshots(), 1)
	assert.Equal(t, domain.Running, h.sinks.publishedSnapshots()[0].Status)
}

func TestPlayer_TicksToCompletion(t *testing.T) {
	// At 20x each tick advances five minutes: 10 -> 15 -> 20 -> 25 -> 30 (end).
	h := newHarness(t, 20, "KTLX")
	w := testWindow(t)
	h.send(t, domain.Start{Window: w})

	for i := 1; i <= 3; i++ {
		h.tick(t, clockIs(w.InitialClock.Add(time.Duration(i)*5*time.Minute)))
	}
	h.tick(t, func(s playback.Snapshot) bool { return s.Status == domain.Complete })

	snap := h.player.Snapshot()
	assert.True(t, snap.Clock.Equal(w.PlaybackEnd), "clock must not overshoot the window")

	// Start plus three in-window ticks; completion does not notify.
	assert.Len(t, h.sinks.hodographCalls(), 4)
	assert.Len(t, h.sinks.dirlistCalls(), 4)
	assert.InDelta(t, 4, testutil.ToFloat64(h.metrics.Ticks), 0)
	assert.InDelta(t, float64(domain.Complete), testutil.ToFloat64(h.metrics.PlaybackStatus), 0)
	assert.InDelta(t, float64(w.PlaybackEnd.Unix()), testutil.ToFloat64(h.metrics.PlaybackClock), 0)
}

func TestPlayer_PauseHoldsClock(t *testing.T) {
	h := newHarness(t, 1, "KTLX")
	w := testWindow(t)
	h.send(t, domain.Start{Window: w})
	h.tick(t, clockIs(w.InitialClock.Add(15*time.Second)))

	snap := h.send(t, domain.Pause{})
	require.Equal(t, domain.Paused, snap.Status)
	assert.True(t, snap.Paused)

	h.clock.Advance(10 * interval)
	// Requests are applied in order, so a stray tick would show up here.
	snap = h.send(t, domain.Pause{})
	assert.True(t, snap.Clock.Equal(w.InitialClock.Add(15*time.Second)))

	snap = h.send(t, domain.Resume{})
	assert.Equal(t, domain.Running, snap.Status)
	h.tick(t, clockIs(w.InitialClock.Add(30*time.Second)))
}

func TestPlayer_JumpWhilePausedStaysPaused(t *testing.T) {
	h := newHarness(t, 1, "KTLX")
	w := testWindow(t)
	h.send(t, domain.Start{Window: w})
	h.send(t, domain.Pause{})

	target := w.PlaybackStart.Add(20 * time.Minute)
	snap := h.send(t, domain.JumpTo{Time: target})

	assert.Equal(t, domain.Paused, snap.Status)
	assert.True(t, snap.Clock.Equal(target))
	calls := h.sinks.hodographCalls()
	require.Len(t, calls, 2)
	assert.True(t, calls[1].Equal(target))
}

func TestPlayer_SpeedChangeKeepsPause(t *testing.T) {
	h := newHarness(t, 1, "KTLX")
	w := testWindow(t)
	h.send(t, domain.Start{Window: w})
	h.send(t, domain.Pause{})

	snap := h.send(t, domain.SpeedChange{Speed: 4})
	assert.Equal(t, domain.Paused, snap.Status)
	assert.InDelta(t, 4.0, snap.Speed, 0)
	assert.Len(t, h.sinks.hodographCalls(), 1, "speed change does not notify the view sinks")
	assert.Len(t, h.sinks.publishedSnapshots(), 3, "start, pause and speed change are broadcast")
	assert.InDelta(t, 4.0, testutil.ToFloat64(h.metrics.PlaybackSpeed), 0)
}

func TestPlayer_SinkErrorsDoNotStopPlayback(t *testing.T) {
	h := newHarness(t, 1, "KTLX", "KINX")
	h.sinks.failWith(errors.New("disk full"))
	w := testWindow(t)

	snap := h.send(t, domain.Start{Window: w})
	assert.Equal(t, domain.Running, snap.Status)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.SinkErrors.WithLabelValues("hodograph")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.SinkErrors.WithLabelValues("dirlist")), 0)

	h.tick(t, clockIs(w.InitialClock.Add(15*time.Second)))
}

func TestPlayer_IgnoredEvents(t *testing.T) {
	h := newHarness(t, 1, "KTLX")

	snap := h.send(t, domain.Pause{})
	assert.Equal(t, domain.NotStarted, snap.Status)
	snap = h.send(t, domain.JumpTo{Time: now})
	assert.True(t, snap.Clock.IsZero())
	assert.Empty(t, h.sinks.hodographCalls())
	assert.Empty(t, h.sinks.publishedSnapshots())
}

func TestPlayer_SendAfterStop(t *testing.T) {
	h := newHarness(t, 1)
	h.stop()
	<-h.stopped

	_, err := h.player.Send(context.Background(), domain.Pause{})
	require.ErrorIs(t, err, playback.ErrPlayerStopped)
	require.Error(t, h.player.CheckReadiness(context.Background()))
}

func TestPlayer_SendHonoursContext(t *testing.T) {
	p := playback.New(playback.Options{}, playback.Sinks{}, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Send(ctx, domain.Pause{})
	require.ErrorIs(t, err, context.Canceled)
}
