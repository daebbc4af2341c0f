package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the replay engine.
type Metrics struct {
	// Placefile rewrite metrics.
	FilesRewritten  prometheus.Counter
	FileErrors      prometheus.Counter
	LinesShifted    *prometheus.CounterVec // labels: kind={time,space}
	ParseErrors     *prometheus.CounterVec // labels: rule={valid,timerange,coordinate}
	RewriteDuration prometheus.Histogram
	TransposeCache  *prometheus.CounterVec // labels: result={hit,miss}

	// Playback metrics.
	PlaybackClock  prometheus.Gauge // simulated clock, unix seconds
	PlaybackStatus prometheus.Gauge // domain.Status as an integer
	PlaybackSpeed  prometheus.Gauge
	Ticks          prometheus.Counter
	SinkErrors     *prometheus.CounterVec // labels: sink={dirlist,hodograph,publisher}
}

// NewMetrics creates and registers all replay metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.FilesRewritten,
		m.FileErrors,
		m.LinesShifted,
		m.ParseErrors,
		m.RewriteDuration,
		m.TransposeCache,
		m.PlaybackClock,
		m.PlaybackStatus,
		m.PlaybackSpeed,
		m.Ticks,
		m.SinkErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		FilesRewritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_replay",
			Name:      "placefiles_rewritten_total",
			Help:      help("Placefiles written to their _shifted sibling."),
		}),
		FileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_replay",
			Name:      "placefile_errors_total",
			Help:      help("Placefiles skipped because they could not be read or written."),
		}),
		LinesShifted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_replay",
			Name:      "placefile_lines_shifted_total",
			Help:      help("Placefile lines rewritten, by kind of shift."),
		}, []string{"kind"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_replay",
			Name:      "placefile_parse_errors_total",
			Help:      help("Placefile lines left unchanged because a tag could not be parsed."),
		}, []string{"rule"}),
		RewriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar_replay",
			Name:      "placefile_rewrite_duration_seconds",
			Help:      help("Duration of a complete placefile rewrite pass."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		TransposeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_replay",
			Name:      "transpose_cache_total",
			Help:      help("Coordinate transposition cache lookups by result."),
		}, []string{"result"}),
		PlaybackClock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar_replay",
			Name:      "playback_clock_seconds",
			Help:      help("Simulated playback clock as a unix timestamp."),
		}),
		PlaybackStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar_replay",
			Name:      "playback_status",
			Help:      help("0 not started, 1 running, 2 paused, 3 complete."),
		}),
		PlaybackSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar_replay",
			Name:      "playback_speed",
			Help:      help("Playback speed multiplier."),
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_replay",
			Name:      "playback_ticks_total",
			Help:      help("Tick source firings applied to the playback clock."),
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_replay",
			Name:      "sink_errors_total",
			Help:      help("Failed current-view notifications by sink."),
		}, []string{"sink"}),
	}
}
