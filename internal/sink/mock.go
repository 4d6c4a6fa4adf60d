package sink

import (
	"context"
	"sync"

	"github.com/reloquent/tabledoc/internal/consistency"
)

// Recorder is an in-memory Publisher for tests.
type Recorder struct {
	PublishErr error
	RecentErr  error
	CloseErr   error

	mu     sync.Mutex
	runs   []*consistency.Result
	closed bool
}

func (r *Recorder) Publish(_ context.Context, res *consistency.Result) error {
	if r.PublishErr != nil {
		return r.PublishErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, res)
	return nil
}

func (r *Recorder) Recent(_ context.Context, n int) ([]*consistency.Result, error) {
	if r.RecentErr != nil {
		return nil, r.RecentErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*consistency.Result
	for i := len(r.runs) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		out = append(out, r.runs[i])
	}
	return out, nil
}

func (r *Recorder) Close(context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.CloseErr
}

// Runs returns the published runs in publish order.
func (r *Recorder) Runs() []*consistency.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*consistency.Result(nil), r.runs...)
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
