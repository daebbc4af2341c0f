// Package placefile runs the time and space shift over a directory of placefiles.
package placefile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
	"github.com/scottthomaswx/cloud-radar-server/internal/fsutil"
	"github.com/scottthomaswx/cloud-radar-server/internal/observability"
	"golang.org/x/sync/errgroup"
)

// OutputSuffix is appended to a source stem to name its rewritten sibling.
const OutputSuffix = "_shifted"

// ErrRewriteInProgress is returned when a pass over the same directory is already running.
var ErrRewriteInProgress = errors.New("placefile rewrite already in progress")

// Job holds the shift parameters for one pass.
type Job struct {
	Shift         time.Duration
	Transposition domain.Transposition
}

// FileReport summarizes one source file.
type FileReport struct {
	Source      string
	Output      string
	Lines       int
	TimeShifted int
	Moved       int
	ParseErrors int
	Skipped     bool // abandoned because the pass was cancelled
	Err         error
}

// Report summarizes a pass.
type Report struct {
	Files []FileReport
}

// Rewritten counts files whose output was written.
func (r Report) Rewritten() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil && !f.Skipped {
			n++
		}
	}
	return n
}

// Rewriter produces "<stem>_shifted.txt" siblings for every source placefile.
// Source files are never modified.
type Rewriter struct {
	workers   int
	cacheSize int
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a Rewriter processing up to workers files concurrently.
func New(workers, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Rewriter {
	if workers < 1 {
		workers = 1
	}
	if cacheSize < 1 {
		cacheSize = 1
	}
	return &Rewriter{
		workers:   workers,
		cacheSize: cacheSize,
		logger:    logger,
		metrics:   metrics,
		inFlight:  make(map[string]bool),
	}
}

// Sources lists the placefiles in dir that are inputs to a pass, sorted by name.
func Sources(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("list placefiles: %w", err)
	}
	sources := matches[:0]
	for _, m := range matches {
		if strings.HasSuffix(strings.TrimSuffix(filepath.Base(m), ".txt"), OutputSuffix) {
			continue
		}
		sources = append(sources, m)
	}
	slices.Sort(sources)
	return sources, nil
}

// OutputPath returns the sibling written for source.
func OutputPath(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + OutputSuffix + ".txt"
}

// Rewrite shifts every source placefile in dir. A file that cannot be read or
// written is reported and skipped; the other files are still processed. A
// line whose tags cannot be parsed is copied unchanged. Cancelling ctx
// abandons files that have not started; files in progress run to completion.
// The returned error joins every file error and the context error, if any.
func (r *Rewriter) Rewrite(ctx context.Context, dir string, job Job) (Report, error) {
	key := filepath.Clean(dir)
	if !r.acquire(key) {
		return Report{}, ErrRewriteInProgress
	}
	defer r.release(key)

	start := time.Now()
	sources, err := Sources(dir)
	if err != nil {
		return Report{}, err
	}

	var tr domain.Transposer
	if job.Transposition.Active() {
		cached, err := NewCachedTransposer(job.Transposition, r.cacheSize, r.metrics)
		if err != nil {
			return Report{}, fmt.Errorf("create transpose cache: %w", err)
		}
		tr = cached
	}

	r.logger.Info("placefile rewrite started",
		"dir", dir,
		"files", len(sources),
		"shift_seconds", int64(job.Shift/time.Second),
		"transpose", job.Transposition.Active(),
	)

	report := Report{Files: make([]FileReport, len(sources))}
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, src := range sources {
		report.Files[i] = FileReport{Source: src, Output: OutputPath(src)}
		if ctx.Err() != nil {
			report.Files[i].Skipped = true
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				report.Files[i].Skipped = true
				return nil
			}
			return r.rewriteFile(&report.Files[i], job.Shift, tr)
		})
	}
	// Wait reports only the first file error; every error is joined below
	// from the per-file reports.
	_ = g.Wait()

	var errs []error
	for _, f := range report.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}

	r.metrics.RewriteDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("placefile rewrite finished",
		"dir", dir,
		"rewritten", report.Rewritten(),
		"failed", len(errs),
		"duration", time.Since(start),
	)
	return report, errors.Join(errs...)
}

func (r *Rewriter) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[key] {
		return false
	}
	r.inFlight[key] = true
	return true
}

func (r *Rewriter) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, key)
}

// rewriteFile records the outcome in fr. A failed file does not stop the
// other workers; the group has no shared context to cancel.
func (r *Rewriter) rewriteFile(fr *FileReport, shift time.Duration, tr domain.Transposer) error {
	if err := r.shiftFile(fr, shift, tr); err != nil {
		fr.Err = err
		r.metrics.FileErrors.Inc()
		r.logger.Error("placefile rewrite failed, skipping file", "file", fr.Source, "error", err)
		return err
	}
	r.metrics.FilesRewritten.Inc()
	r.logger.Debug("placefile rewritten",
		"file", fr.Source,
		"lines", fr.Lines,
		"time_shifted", fr.TimeShifted,
		"moved", fr.Moved,
		"parse_errors", fr.ParseErrors,
	)
	return nil
}

// shiftFile streams fr.Source into fr.Output, which is replaced only once
// every line has been written.
func (r *Rewriter) shiftFile(fr *FileReport, shift time.Duration, tr domain.Transposer) error {
	in, err := os.Open(fr.Source)
	if err != nil {
		return fmt.Errorf("open placefile: %w", err)
	}
	defer in.Close()

	return fsutil.WriteFileFunc(fr.Output, 0o644, func(w io.Writer) error {
		br := bufio.NewReader(in)
		bw := bufio.NewWriter(w)
		for lineNo := 1; ; lineNo++ {
			line, readErr := br.ReadString('\n')
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				return fmt.Errorf("read %s line %d: %w", fr.Source, lineNo, readErr)
			}
			if line == "" {
				break
			}

			out, res := domain.ShiftLine(line, shift, tr)
			r.record(fr, lineNo, res)
			if _, err := bw.WriteString(out); err != nil {
				return fmt.Errorf("write %s: %w", fr.Output, err)
			}
			if errors.Is(readErr, io.EOF) {
				break
			}
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush %s: %w", fr.Output, err)
		}
		return nil
	})
}

func (r *Rewriter) record(fr *FileReport, lineNo int, res domain.LineResult) {
	fr.Lines++
	if res.TimeShifted {
		fr.TimeShifted++
		r.metrics.LinesShifted.WithLabelValues("time").Inc()
	}
	if res.Moved {
		fr.Moved++
		r.metrics.LinesShifted.WithLabelValues("space").Inc()
	}
	for _, perr := range res.Errors {
		fr.ParseErrors++
		r.metrics.ParseErrors.WithLabelValues(ruleOf(perr)).Inc()
		r.logger.Warn("placefile line not shifted", "file", fr.Source, "line", lineNo, "error", perr)
	}
}

func ruleOf(err error) string {
	var pe *domain.ParseError
	if errors.As(err, &pe) {
		return pe.Rule
	}
	return "unknown"
}
