package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MegaGrindStone/stream-chat/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 5
	maxLogBackups = 3
	maxLogAgeDays = 14
)

// New builds a logger from cfg. Logs go to cfg.File through a rotating writer when it is set, and to
// fallback otherwise. The returned io.Closer releases the log file and is never nil.
func New(cfg config.LoggingConfig, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return slog.New(newHandler(cfg.Format, fallback, opts)), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return slog.New(newHandler(cfg.Format, fallback, opts)), nopCloser{},
			fmt.Errorf("error creating log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}
	return slog.New(newHandler(cfg.Format, w, opts)), w, nil
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return slog.NewJSONHandler(out, opts)
	default:
		return slog.NewTextHandler(out, opts)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
