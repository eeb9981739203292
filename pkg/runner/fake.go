package runner

import (
	"context"
	"io"
	"sync"
)

// Recorder is a Runner that records invocations instead of starting
// processes. It is used by tests of packages that shell out to MySQL tools.
type Recorder struct {
	mu    sync.Mutex
	Calls []Command

	// Handler, when set, decides the outcome of each call. Stdout/Stdin of
	// the command may be used to simulate tool output.
	Handler func(ctx context.Context, cmd Command) (Result, error)
}

// Run records cmd and delegates to Handler
func (r *Recorder) Run(ctx context.Context, cmd Command) (Result, error) {
	r.mu.Lock()
	recorded := cmd
	recorded.Args = append([]string(nil), cmd.Args...)
	recorded.Env = append([]string(nil), cmd.Env...)
	r.Calls = append(r.Calls, recorded)
	handler := r.Handler
	r.mu.Unlock()

	if handler != nil {
		return handler(ctx, cmd)
	}
	if cmd.Stdin != nil {
		_, _ = io.Copy(io.Discard, cmd.Stdin)
	}
	return Result{}, nil
}

// Invocations returns a copy of the recorded commands
func (r *Recorder) Invocations() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.Calls...)
}
