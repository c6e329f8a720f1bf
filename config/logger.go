package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// NewLogger returns the application logger. With TETHER_DEBUG set it writes
// debug-level records to <dataDir>/debug.log; otherwise it discards. The
// returned close function releases the log file.
func NewLogger(dataDir string) (*slog.Logger, func() error) {
	if !CheckDebug() {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
	}

	logPath := filepath.Join(dataDir, "debug.log")
	// 0600: debug output may contain prompts and tool arguments
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
	}

	logger := newLogger(f, slog.LevelDebug, true)
	logger.Info("debug logging started", "path", logPath)
	return logger, f.Close
}

func newLogger(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  true,
		TimeFormat: "2006-01-02 15:04:05.000Z07:00",
		NoColor:    noColor,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}
