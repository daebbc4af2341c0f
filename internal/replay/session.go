// Package replay prepares a replay session and exposes it to the control surface.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/placefile"
	"github.com/scottthomaswx/cloud-radar-server/internal/playback"
)

// SiteLookup resolves a radar identifier to its location.
type SiteLookup interface {
	Lookup(id string) (domain.Site, error)
}

// Rewriter runs the placefile shift over a directory.
type Rewriter interface {
	Rewrite(ctx context.Context, dir string, job placefile.Job) (placefile.Report, error)
}

// Player is the running playback state machine.
type Player interface {
	Snapshot() playback.Snapshot
	Send(ctx context.Context, ev domain.Event) (playback.Snapshot, error)
	CheckReadiness(ctx context.Context) error
}

// Params are the user's event selections.
type Params struct {
	EventStart    time.Time
	EventDuration int // minutes
	Radars        []string
	NewRadar      string // empty for no transposition
	PlacefilesDir string
}

// Resolve looks up the selected radars. Radars that are not in the site table
// are kept by ID only unless a transposition needs their coordinates.
func Resolve(p Params, sites SiteLookup) (domain.RadarSelection, error) {
	var sel domain.RadarSelection
	for _, id := range p.Radars {
		site, err := sites.Lookup(id)
		if err != nil {
			if p.NewRadar != "" {
				return domain.RadarSelection{}, &domain.ConfigError{Field: "origin radar", Reason: err.Error()}
			}
			site = domain.Site{ID: id}
		}
		sel.Radars = append(sel.Radars, site)
	}
	if p.NewRadar != "" {
		site, err := sites.Lookup(p.NewRadar)
		if err != nil {
			return domain.RadarSelection{}, &domain.ConfigError{Field: "new radar", Reason: err.Error()}
		}
		sel.NewRadar = &site
	}
	return sel, nil
}

// Session ties one event selection to its placefiles, sinks and player.
type Session struct {
	params    Params
	selection domain.RadarSelection
	rewriter  Rewriter
	dirlist   playback.DirListUpdater
	hodograph playback.HodographUpdater
	player    Player
	logger    *slog.Logger

	mu       sync.RWMutex
	window   domain.SimulationWindow
	prepared bool
}

// Deps are the collaborators a Session drives.
type Deps struct {
	Rewriter  Rewriter
	DirList   playback.DirListUpdater
	Hodograph playback.HodographUpdater
	Player    Player
}

// NewSession creates a session for a resolved selection.
func NewSession(p Params, sel domain.RadarSelection, deps Deps, logger *slog.Logger) *Session {
	return &Session{
		params:    p,
		selection: sel,
		rewriter:  deps.Rewriter,
		dirlist:   deps.DirList,
		hodograph: deps.Hodograph,
		player:    deps.Player,
		logger:    logger,
	}
}

// Targets are the radars whose polling listings follow the playback clock.
func (s *Session) Targets() []string {
	return s.selection.TargetRadars()
}

// Prepare computes the simulation window, hides all polling data, resets the
// hodograph page and rewrites the placefiles. The window is usable as soon as
// it is computed; placefile failures are returned but leave the session
// playable.
func (s *Session) Prepare(ctx context.Context) (placefile.Report, error) {
	tr, err := s.selection.Transposition()
	if err != nil {
		return placefile.Report{}, err
	}
	window, err := domain.NewWindow(s.params.EventStart, s.params.EventDuration)
	if err != nil {
		return placefile.Report{}, err
	}

	s.mu.Lock()
	s.window = window
	s.mu.Unlock()

	s.logger.Info("simulation window computed",
		"event_start", window.EventStart,
		"playback_start", domain.FormatClock(window.PlaybackStart),
		"playback_end", domain.FormatClock(window.PlaybackEnd),
		"seconds_shift", window.SecondsShift,
		"transpose", tr.Active(),
	)

	for _, radar := range s.Targets() {
		if err := s.dirlist.UpdateDirList(ctx, radar, time.Time{}); err != nil {
			s.logger.Warn("initialize dir.list failed", "radar", radar, "error", err)
		}
	}
	if err := s.hodograph.UpdateHodographPage(ctx, time.Time{}); err != nil {
		s.logger.Warn("reset hodograph page failed", "error", err)
	}

	report, err := s.rewriter.Rewrite(ctx, s.params.PlacefilesDir, placefile.Job{Shift: window.Shift(), Transposition: tr})
	if errors.Is(err, placefile.ErrRewriteInProgress) || ctx.Err() != nil {
		return report, err
	}

	s.mu.Lock()
	s.prepared = true
	s.mu.Unlock()

	if err != nil {
		return report, fmt.Errorf("rewrite placefiles: %w", err)
	}
	return report, nil
}

// Start begins playback over the prepared window.
func (s *Session) Start(ctx context.Context) (playback.Snapshot, error) {
	window := s.Window()
	if window.PlaybackStart.IsZero() {
		return playback.Snapshot{}, errors.New("session is not prepared")
	}
	return s.player.Send(ctx, domain.Start{Window: window})
}

// Window returns the computed simulation window, or the zero window before Prepare.
func (s *Session) Window() domain.SimulationWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

func (s *Session) Snapshot() playback.Snapshot {
	return s.player.Snapshot()
}

func (s *Session) Send(ctx context.Context, ev domain.Event) (playback.Snapshot, error) {
	return s.player.Send(ctx, ev)
}

// CheckReadiness returns nil once placefiles are rewritten and the player is running.
func (s *Session) CheckReadiness(ctx context.Context) error {
	s.mu.RLock()
	prepared := s.prepared
	s.mu.RUnlock()
	if !prepared {
		return errors.New("session is still being prepared")
	}
	return s.player.CheckReadiness(ctx)
}
