package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/scottthomaswx/cloud-radar-server/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the service logger from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
// With LOG_FILE set, output goes to a size-rotated file instead of stdout.
func NewLogger(cfg *config.Config) *slog.Logger {
	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
	}
	return newLogger(w, cfg.LogLevel, cfg.LogFormat)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
