package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/itohio/goclimate/pkg/config"
)

// New builds the application logger. Text format uses tint, json format
// uses the slog JSON handler with version attributes for log shipping.
func New(cfg config.LogConfig, version string, appName string) *slog.Logger {
	return newLogger(os.Stdout, cfg, version, appName)
}

func newLogger(w io.Writer, cfg config.LogConfig, version string, appName string) *slog.Logger {
	level, err := config.ParseLogLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	if cfg.Format != "json" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  version == "dev",
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(w),
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
	)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
