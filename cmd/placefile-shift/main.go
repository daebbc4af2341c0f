// Command placefile-shift runs a single placefile rewrite pass, shifting every
// placefile in a directory as a replay session would.
//
// Usage:
//
//	go run ./cmd/placefile-shift \
//	  -dir data/placefiles \
//	  -event-start 2024-07-16T00:30:00Z -duration 60 \
//	  -radar KTLX -new-radar KVNX
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scottthomaswx/cloud-radar-server/internal/adapter/radarsites"
	"github.com/scottthomaswx/cloud-radar-server/internal/config"
	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/observability"
	"github.com/scottthomaswx/cloud-radar-server/internal/placefile"
	"github.com/scottthomaswx/cloud-radar-server/internal/replay"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "", "directory containing placefiles")
	eventStart := flag.String("event-start", "", "event start time (RFC 3339), shifted to two hours before now")
	duration := flag.Int("duration", 60, "event duration in minutes")
	shift := flag.Duration("shift", 0, "explicit time shift; overrides -event-start")
	radar := flag.String("radar", "", "radar the event was recorded on")
	newRadar := flag.String("new-radar", "", "radar to relocate features to")
	workers := flag.Int("workers", 4, "files rewritten concurrently")
	cacheSize := flag.Int("cache-size", 4096, "transposed coordinates kept in memory")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	if *dir == "" || (*eventStart == "" && *shift == 0) {
		flag.Usage()
		return fmt.Errorf("missing required flags: -dir and one of -event-start, -shift")
	}
	if *newRadar != "" && *radar == "" {
		return fmt.Errorf("-new-radar requires -radar")
	}

	logger := observability.NewLogger(&config.Config{LogLevel: *logLevel, LogFormat: "text"})
	metrics := observability.NewMetrics()

	job := placefile.Job{Shift: *shift}
	if *shift == 0 {
		start, err := time.Parse(time.RFC3339, *eventStart)
		if err != nil {
			return fmt.Errorf("parse -event-start: %w", err)
		}
		window, err := domain.NewWindow(start, *duration)
		if err != nil {
			return err
		}
		job.Shift = window.Shift()
		logger.Info("simulation window",
			"playback_start", domain.FormatClock(window.PlaybackStart),
			"playback_end", domain.FormatClock(window.PlaybackEnd),
			"seconds_shift", window.SecondsShift,
		)
	}

	if *radar != "" {
		params := replay.Params{Radars: []string{*radar}, NewRadar: *newRadar}
		sel, err := replay.Resolve(params, radarsites.Default())
		if err != nil {
			return err
		}
		tr, err := sel.Transposition()
		if err != nil {
			return err
		}
		job.Transposition = tr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rw := placefile.New(*workers, *cacheSize, logger, metrics)
	report, err := rw.Rewrite(ctx, *dir, job)
	for _, f := range report.Files {
		switch {
		case f.Skipped:
			fmt.Fprintf(os.Stdout, "skipped  %s\n", f.Source)
		case f.Err != nil:
			fmt.Fprintf(os.Stdout, "failed   %s: %v\n", f.Source, f.Err)
		default:
			fmt.Fprintf(os.Stdout, "wrote    %s (%d lines, %d time, %d moved, %d unparsed)\n",
				f.Output, f.Lines, f.TimeShifted, f.Moved, f.ParseErrors)
		}
	}
	if err != nil {
		return fmt.Errorf("%d of %d placefiles not rewritten: %w", len(report.Files)-report.Rewritten(), len(report.Files), err)
	}
	return nil
}
