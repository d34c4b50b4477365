package tool

import (
	"context"
	"sync"
)

// recorder is a scripted Runner: each call is recorded and answered by fn.
type recorder struct {
	mu    sync.Mutex
	calls []Command
	fn    func(Command) (Result, error)
}

func (r *recorder) Run(_ context.Context, cmd Command) (Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()
	if r.fn == nil {
		return Result{}, nil
	}
	return r.fn(cmd)
}
