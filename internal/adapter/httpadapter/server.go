package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/playback"
)

// Controller is the playback session driven by the control routes.
type Controller interface {
	Snapshot() playback.Snapshot
	Send(ctx context.Context, ev domain.Event) (playback.Snapshot, error)
	Window() domain.SimulationWindow
}

// Server exposes health, readiness, metrics and playback control endpoints.
type Server struct {
	httpServer *http.Server
	ctrl       Controller
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /playback routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, ctrl Controller, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ctrl:   ctrl,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /playback", s.handleSnapshot)
	mux.HandleFunc("GET /playback/increments", s.handleIncrements)
	mux.HandleFunc("POST /playback/start", s.handleStart)
	mux.HandleFunc("POST /playback/pause", s.handleEvent(domain.Pause{}))
	mux.HandleFunc("POST /playback/resume", s.handleEvent(domain.Resume{}))
	mux.HandleFunc("POST /playback/jump", s.handleJump)
	mux.HandleFunc("POST /playback/speed", s.handleSpeed)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

type increment struct {
	Time  time.Time `json:"time"`
	Label string    `json:"label"`
}

func (s *Server) handleIncrements(w http.ResponseWriter, _ *http.Request) {
	window := s.ctrl.Window()
	out := make([]increment, 0, len(window.Increments))
	for _, t := range window.Increments {
		out = append(out, increment{Time: t, Label: domain.FormatClock(t)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"increments": out})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	window := s.ctrl.Window()
	if window.PlaybackStart.IsZero() {
		writeError(w, http.StatusConflict, errors.New("session is not prepared yet"))
		return
	}
	s.send(w, r, domain.Start{Window: window})
}

func (s *Server) handleEvent(ev domain.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.send(w, r, ev)
	}
}

type jumpRequest struct {
	Time string `json:"time"`
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, err := domain.ParseClock(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := domain.ValidateJump(s.ctrl.Window(), t); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.send(w, r, domain.JumpTo{Time: t})
}

type speedRequest struct {
	Speed *float64 `json:"speed"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Speed == nil {
		writeError(w, http.StatusBadRequest, errors.New("speed is required"))
		return
	}
	if err := domain.ValidateSpeed(*req.Speed); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.send(w, r, domain.SpeedChange{Speed: *req.Speed})
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, ev domain.Event) {
	snap, err := s.ctrl.Send(r.Context(), ev)
	if err != nil {
		s.logger.Warn("playback control failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
