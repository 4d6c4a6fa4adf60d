package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reloquent/tabledoc/internal/config"
)

// Setup initializes the logger. Logs go to stderr, since stdout carries reports, and also
// to a dated file when directory is set. The returned close function flushes that file.
func Setup(level, directory string) (*slog.Logger, func() error, error) {
	return setup(os.Stderr, level, directory, time.Now())
}

func setup(stderr io.Writer, level, directory string, now time.Time) (*slog.Logger, func() error, error) {
	writer := stderr
	closer := func() error { return nil }

	if directory != "" {
		directory = config.ExpandHome(directory)
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}

		filename := fmt.Sprintf("tabledoc-%s.log", now.Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(directory, filename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = io.MultiWriter(stderr, file)
		closer = file.Close
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler), closer, nil
}

// ParseLevel maps a configured level name; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
