// Package lock guards an output directory against concurrent generators with a PID file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FileName is the lock file created inside a guarded output directory.
const FileName = ".tabledoc.lock"

// PathFor returns the lock file path guarding dir.
func PathFor(dir string) string {
	return filepath.Join(dir, FileName)
}

// Acquire creates the lock file holding the current PID. A lock left by a process that is
// no longer running, or one that cannot be parsed, is taken over.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			return werr
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("creating lock file: %w", err)
		}

		pid, ok := readPID(path)
		switch {
		case ok && pid == os.Getpid():
			return nil
		case ok && isProcessRunning(pid):
			return fmt.Errorf("another tabledoc instance is writing to %s (PID %d)", filepath.Dir(path), pid)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale lock: %w", err)
		}
	}
	return fmt.Errorf("could not acquire %s", path)
}

// Release removes the lock file.
func Release(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// IsHeld reports whether a running process holds the lock, and its PID when one is recorded.
func IsHeld(path string) (bool, int, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, err
	}
	pid, ok := readPID(path)
	if !ok {
		return false, 0, nil
	}
	return isProcessRunning(pid), pid, nil
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
