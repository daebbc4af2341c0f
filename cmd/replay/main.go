package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/scottthomaswx/cloud-radar-server/internal/adapter/dirlist"
	"github.com/scottthomaswx/cloud-radar-server/internal/adapter/hodograph"
	"github.com/scottthomaswx/cloud-radar-server/internal/adapter/httpadapter"
	kafkaadapter "github.com/scottthomaswx/cloud-radar-server/internal/adapter/kafka"
	"github.com/scottthomaswx/cloud-radar-server/internal/adapter/radarsites"
	"github.com/scottthomaswx/cloud-radar-server/internal/config"
	"github.com/scottthomaswx/cloud-radar-server/internal/observability"
	"github.com/scottthomaswx/cloud-radar-server/internal/placefile"
	"github.com/scottthomaswx/cloud-radar-server/internal/playback"
	"github.com/scottthomaswx/cloud-radar-server/internal/replay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	params := replay.Params{
		EventStart:    cfg.EventStart,
		EventDuration: cfg.EventDuration,
		Radars:        cfg.Radars,
		NewRadar:      cfg.NewRadar,
		PlacefilesDir: cfg.PlacefilesDir,
	}
	selection, err := replay.Resolve(params, radarsites.Default())
	if err != nil {
		logger.Error("failed to resolve radars", "error", err)
		os.Exit(1)
	}

	dirlists := dirlist.New(cfg.PollingDir, logger)
	hodographs := hodograph.New(cfg.HodographsDir, cfg.HodographsPage, logger)
	sinks := playback.Sinks{Hodograph: hodographs, DirList: dirlists}

	// Clock broadcast is feature-flagged via KAFKA_ENABLED.
	var publisher *kafkaadapter.ClockPublisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewClockPublisher(cfg, strings.Join(cfg.Radars, ","), logger)
		sinks.Publisher = publisher
		logger.Info("clock publishing enabled", "topic", cfg.KafkaClockTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("clock publishing disabled")
	}

	player := playback.New(playback.Options{
		Targets:      selection.TargetRadars(),
		TickInterval: cfg.TickInterval,
		Speed:        cfg.PlaybackSpeed,
	}, sinks, logger, metrics)

	rewriter := placefile.New(cfg.RewriteWorkers, cfg.TransposeCacheSize, logger, metrics)
	session := replay.NewSession(params, selection, replay.Deps{
		Rewriter:  rewriter,
		DirList:   dirlists,
		Hodograph: hodographs,
		Player:    player,
	}, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, session, session, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the playback loop.
	go func() {
		if err := player.Run(ctx); err != nil {
			logger.Error("player error", "error", err)
		}
	}()

	// Prepare the session, then begin playback.
	go func() {
		report, err := session.Prepare(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("session prepare finished with errors", "error", err, "rewritten", report.Rewritten())
		}
		if session.Window().PlaybackStart.IsZero() {
			// Without a window there is nothing to play.
			stop()
			return
		}
		if _, err := session.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("failed to start playback", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
