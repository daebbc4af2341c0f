// Package playback runs the playback state machine against a tick source and
// fans clock changes out to the current-view sinks.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/observability"
)

// ErrPlayerStopped is returned by Send once Run has exited.
var ErrPlayerStopped = errors.New("player stopped")

// HodographUpdater regenerates the hodograph page for the simulated clock.
type HodographUpdater interface {
	UpdateHodographPage(ctx context.Context, simTime time.Time) error
}

// DirListUpdater regenerates a radar's polling directory listing.
type DirListUpdater interface {
	UpdateDirList(ctx context.Context, radar string, simTime time.Time) error
}

// ClockPublisher broadcasts playback state to downstream consumers.
type ClockPublisher interface {
	PublishClock(ctx context.Context, snap Snapshot) error
}

// Sinks are the collaborators told about clock changes. Any of them may be nil.
type Sinks struct {
	Hodograph HodographUpdater
	DirList   DirListUpdater
	Publisher ClockPublisher
}

// Snapshot is a read-only view of the playback state.
type Snapshot struct {
	Status        domain.Status `json:"status"`
	Clock         time.Time     `json:"clock"`
	ClockLabel    string        `json:"clock_label"`
	Speed         float64       `json:"speed"`
	Paused        bool          `json:"paused"`
	PlaybackStart time.Time     `json:"playback_start"`
	PlaybackEnd   time.Time     `json:"playback_end"`
	SecondsShift  int64         `json:"seconds_shift"`
}

func snapshotOf(s domain.PlaybackSpec) Snapshot {
	snap := Snapshot{
		Status:        s.Status,
		Clock:         s.Clock,
		Speed:         s.Speed,
		Paused:        s.Paused(),
		PlaybackStart: s.Window.PlaybackStart,
		PlaybackEnd:   s.Window.PlaybackEnd,
		SecondsShift:  s.Window.SecondsShift,
	}
	if !s.Clock.IsZero() {
		snap.ClockLabel = domain.FormatClock(s.Clock)
	}
	return snap
}

// Options configures a Player.
type Options struct {
	// Targets are the radar IDs whose directory listings follow the clock.
	Targets      []string
	TickInterval time.Duration
	Speed        float64
	Clock        clockwork.Clock
}

type request struct {
	ev    domain.Event
	reply chan Snapshot
}

// Player owns one session's PlaybackSpec. Ticks and control events are
// applied one at a time by the goroutine running Run.
type Player struct {
	targets  []string
	interval time.Duration
	clock    clockwork.Clock
	sinks    Sinks
	logger   *slog.Logger
	metrics  *observability.Metrics

	requests chan request
	done     chan struct{}
	snapshot atomic.Pointer[Snapshot]
	ready    atomic.Bool

	// Owned by the Run goroutine.
	spec   domain.PlaybackSpec
	ticker clockwork.Ticker
}

// New creates a Player in the NotStarted state.
func New(opts Options, sinks Sinks, logger *slog.Logger, metrics *observability.Metrics) *Player {
	if opts.TickInterval <= 0 {
		opts.TickInterval = domain.TickPeriod
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	p := &Player{
		targets:  opts.Targets,
		interval: opts.TickInterval,
		clock:    opts.Clock,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
		requests: make(chan request),
		done:     make(chan struct{}),
		spec:     domain.NewPlaybackSpec(opts.Speed),
	}
	p.publish()
	return p
}

// Snapshot returns the most recently applied state.
func (p *Player) Snapshot() Snapshot {
	return *p.snapshot.Load()
}

// Send delivers ev to the running player and returns the state after it was
// applied, including any sink notifications it caused.
func (p *Player) Send(ctx context.Context, ev domain.Event) (Snapshot, error) {
	req := request{ev: ev, reply: make(chan Snapshot, 1)}
	select {
	case p.requests <- req:
	case <-p.done:
		return Snapshot{}, ErrPlayerStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// CheckReadiness returns nil while the player loop is accepting events.
func (p *Player) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("player is not running")
	}
	return nil
}

// Run applies events until the context is cancelled.
func (p *Player) Run(ctx context.Context) error {
	p.logger.Info("player started", "tick_interval", p.interval, "targets", p.targets)
	p.ready.Store(true)
	defer func() {
		p.ready.Store(false)
		p.stopTicker()
		close(p.done)
	}()

	for {
		var tickC <-chan time.Time
		if p.ticker != nil {
			tickC = p.ticker.Chan()
		}

		select {
		case <-ctx.Done():
			p.logger.Info("player stopping", "reason", ctx.Err())
			return nil
		case req := <-p.requests:
			p.apply(ctx, req.ev)
			req.reply <- p.Snapshot()
		case <-tickC:
			p.metrics.Ticks.Inc()
			p.apply(ctx, domain.Tick{})
		}
	}
}

func (p *Player) apply(ctx context.Context, ev domain.Event) {
	prev := p.spec
	next, fx := domain.Transition(prev, ev)
	p.spec = next

	switch fx.Ticker {
	case domain.TickerStart:
		p.startTicker()
	case domain.TickerStop:
		p.stopTicker()
	}

	if next.Status != prev.Status {
		p.logger.Info("playback status changed",
			"from", prev.Status.String(),
			"to", next.Status.String(),
			"clock", next.Clock,
		)
	}

	p.publish()

	if fx.Notify {
		p.notify(ctx, next.Clock)
	}
	if fx.Notify || next.Status != prev.Status || next.Speed != prev.Speed {
		p.broadcast(ctx)
	}
}

func (p *Player) startTicker() {
	if p.ticker != nil {
		return
	}
	p.ticker = p.clock.NewTicker(p.interval)
}

func (p *Player) stopTicker() {
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	p.ticker = nil
}

// publish stores the snapshot for readers and refreshes the gauges.
func (p *Player) publish() {
	snap := snapshotOf(p.spec)
	p.snapshot.Store(&snap)

	p.metrics.PlaybackStatus.Set(float64(p.spec.Status))
	p.metrics.PlaybackSpeed.Set(p.spec.Speed)
	if !p.spec.Clock.IsZero() {
		p.metrics.PlaybackClock.Set(float64(p.spec.Clock.Unix()))
	}
}

// notify tells the current-view sinks about a new clock. Sink failures are
// logged and counted; playback continues regardless.
func (p *Player) notify(ctx context.Context, simTime time.Time) {
	if p.sinks.Hodograph != nil {
		if err := p.sinks.Hodograph.UpdateHodographPage(ctx, simTime); err != nil {
			p.sinkFailed("hodograph", err)
		}
	}
	if p.sinks.DirList != nil {
		for _, radar := range p.targets {
			if err := p.sinks.DirList.UpdateDirList(ctx, radar, simTime); err != nil {
				p.sinkFailed("dirlist", err, "radar", radar)
			}
		}
	}
}

func (p *Player) broadcast(ctx context.Context) {
	if p.sinks.Publisher == nil {
		return
	}
	if err := p.sinks.Publisher.PublishClock(ctx, p.Snapshot()); err != nil {
		p.sinkFailed("publisher", err)
	}
}

func (p *Player) sinkFailed(sink string, err error, attrs ...any) {
	p.metrics.SinkErrors.WithLabelValues(sink).Inc()
	p.logger.Warn("sink update failed", append([]any{"sink", sink, "error", err}, attrs...)...)
}
