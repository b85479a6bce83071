package scheduler

import "context"

// MainThread is the thread name reported outside any worker.
const MainThread = "main"

// Thread identifies the execution context of a task.
type Thread struct {
	// Name is the worker name ("single-1", "boundedElastic-2", ...).
	Name string
	// OSThreadID is the kernel thread id the worker is locked to, or 0 where
	// the platform does not expose it or the worker does not own its thread.
	OSThreadID int
}

type threadKey struct{}

// WithThread returns a context carrying t as the current thread.
func WithThread(ctx context.Context, t Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// CurrentThread returns the thread carried by ctx, or MainThread.
func CurrentThread(ctx context.Context) Thread {
	if ctx != nil {
		if t, ok := ctx.Value(threadKey{}).(Thread); ok {
			return t
		}
	}
	return Thread{Name: MainThread}
}

// ThreadName is a shorthand for CurrentThread(ctx).Name.
func ThreadName(ctx context.Context) string {
	return CurrentThread(ctx).Name
}
