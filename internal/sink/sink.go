// Package sink publishes consistency check runs so drift can be tracked over time.
package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reloquent/tabledoc/internal/consistency"
)

// Publisher stores check runs.
type Publisher interface {
	Publish(ctx context.Context, r *consistency.Result) error
	// Recent returns up to n runs, newest first.
	Recent(ctx context.Context, n int) ([]*consistency.Result, error)
	Close(ctx context.Context) error
}

// JSONFile appends one JSON document per run to a history file.
type JSONFile struct {
	Path string
}

// Publish appends r to the history file.
func (j *JSONFile) Publish(_ context.Context, r *consistency.Result) error {
	if err := os.MkdirAll(filepath.Dir(j.Path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", r.RunID, err)
	}
	f, err := os.OpenFile(j.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("writing history file: %w", err)
	}
	return f.Close()
}

// Recent reads the history file. A missing file has no runs.
func (j *JSONFile) Recent(_ context.Context, n int) ([]*consistency.Result, error) {
	f, err := os.Open(j.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	var runs []*consistency.Result
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		r := &consistency.Result{}
		if err := json.Unmarshal(sc.Bytes(), r); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", j.Path, line, err)
		}
		runs = append(runs, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	// newest first
	for i, k := 0, len(runs)-1; i < k; i, k = i+1, k-1 {
		runs[i], runs[k] = runs[k], runs[i]
	}
	if n > 0 && len(runs) > n {
		runs = runs[:n]
	}
	return runs, nil
}

// Close is a no-op.
func (j *JSONFile) Close(context.Context) error { return nil }

// Multi publishes to every publisher and reads history from the first one.
type Multi []Publisher

// Publish calls every publisher and joins their errors.
func (m Multi) Publish(ctx context.Context, r *consistency.Result) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recent reads from the first publisher.
func (m Multi) Recent(ctx context.Context, n int) ([]*consistency.Result, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Recent(ctx, n)
}

// Close closes every publisher.
func (m Multi) Close(ctx context.Context) error {
	var errs []error
	for _, p := range m {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
