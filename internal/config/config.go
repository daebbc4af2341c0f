package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/scottthomaswx/cloud-radar-server/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	LogFile         string
	ShutdownTimeout time.Duration

	// Event selection.
	EventStart    time.Time
	EventDuration int      // minutes
	Radars        []string // radars the event was recorded on
	NewRadar      string   // transposition target, empty for none

	// Session directories.
	PlacefilesDir  string
	PollingDir     string
	HodographsDir  string
	HodographsPage string

	// Playback.
	PlaybackSpeed float64
	TickInterval  time.Duration

	// Placefile rewrite.
	RewriteWorkers     int
	TransposeCacheSize int

	// Clock broadcast.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaClockTopic string
}

// Transposing reports whether a destination radar was requested.
func (c *Config) Transposing() bool {
	return c.NewRadar != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	eventStart, err := time.Parse(time.RFC3339, sharedcfg.EnvOrDefault("EVENT_START", "2024-07-16T00:30:00Z"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_START: %w", err)
	}

	eventDuration, err := strconv.Atoi(sharedcfg.EnvOrDefault("EVENT_DURATION", "60"))
	if err != nil || eventDuration < domain.MinEventDuration {
		return nil, fmt.Errorf("invalid EVENT_DURATION: must be at least %d minutes", domain.MinEventDuration)
	}

	speed, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("PLAYBACK_SPEED", "1.0"), 64)
	if err != nil || domain.ValidateSpeed(speed) != nil {
		return nil, errors.New("invalid PLAYBACK_SPEED")
	}

	tickInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("TICK_INTERVAL", "15s"))
	if err != nil || tickInterval <= 0 {
		return nil, errors.New("invalid TICK_INTERVAL")
	}

	workers, err := strconv.Atoi(sharedcfg.EnvOrDefault("REWRITE_WORKERS", "4"))
	if err != nil || workers < 1 || workers > 64 {
		return nil, errors.New("invalid REWRITE_WORKERS")
	}

	newRadar := strings.ToUpper(strings.TrimSpace(os.Getenv("NEW_RADAR")))
	if strings.EqualFold(newRadar, "NONE") {
		newRadar = ""
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogFile:         os.Getenv("LOG_FILE"),
		ShutdownTimeout: shutdownTimeout,

		EventStart:    eventStart.UTC(),
		EventDuration: eventDuration,
		Radars:        parseRadars(os.Getenv("RADARS")),
		NewRadar:      newRadar,

		PlacefilesDir:  sharedcfg.EnvOrDefault("PLACEFILES_DIR", "data/placefiles"),
		PollingDir:     sharedcfg.EnvOrDefault("POLLING_DIR", "data/polling"),
		HodographsDir:  sharedcfg.EnvOrDefault("HODOGRAPHS_DIR", "data/hodographs"),
		HodographsPage: sharedcfg.EnvOrDefault("HODOGRAPHS_PAGE", "data/hodographs.html"),

		PlaybackSpeed: speed,
		TickInterval:  tickInterval,

		RewriteWorkers:     workers,
		TransposeCacheSize: parseCacheSize(),

		KafkaEnabled:    kafkaEnabled,
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaClockTopic: sharedcfg.EnvOrDefault("KAFKA_CLOCK_TOPIC", "radar-playback-clock"),
	}

	if len(cfg.Radars) == 0 {
		return nil, errors.New("RADARS is required")
	}
	if cfg.Transposing() && len(cfg.Radars) != 1 {
		return nil, errors.New("NEW_RADAR requires exactly one radar in RADARS")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaClockTopic == "" {
		return nil, errors.New("KAFKA_CLOCK_TOPIC is required")
	}

	return cfg, nil
}

func parseRadars(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.ToUpper(strings.TrimSpace(r)); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func parseCacheSize() int {
	if s := os.Getenv("TRANSPOSE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 4096
}
