// Package watch re-runs work when definition artifacts change on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses editor save bursts into one change set.
const DefaultDebounce = 300 * time.Millisecond

// Extensions that trigger a change.
var Extensions = []string{".yaml", ".yml", ".sql", ".md"}

// Watcher watches artifact directories (not recursively).
type Watcher struct {
	fw       *fsnotify.Watcher
	dirs     []string
	debounce time.Duration
	logger   *slog.Logger
}

// New starts watching dirs. Empty entries are skipped; a directory that cannot be watched
// is an error.
func New(debounce time.Duration, logger *slog.Logger, dirs ...string) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w := &Watcher{fw: fw, debounce: debounce, logger: logger}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := fw.Add(d); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", d, err)
		}
		w.dirs = append(w.dirs, d)
	}
	return w, nil
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string { return w.dirs }

// Run delivers debounced change sets to onChange until ctx is done. Each set holds the
// sorted, unique paths changed since the previous call. An onChange error is logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string) error) error {
	defer w.fw.Close()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("artifact changed", "path", ev.Name, "op", ev.Op.String())
			pending[ev.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)

			if err := onChange(ctx, paths); err != nil {
				w.logger.Error("handling change", "paths", len(paths), "error", err)
			}
		}
	}
}

// Close stops watching without Run.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Tables returns the artifact stems of paths, sorted and unique.
func Tables(paths []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		stem = strings.TrimSuffix(stem, "_sample")
		if !seen[stem] {
			seen[stem] = true
			out = append(out, stem)
		}
	}
	sort.Strings(out)
	return out
}
