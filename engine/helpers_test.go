package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/kbukum/fluxkit/pipeline"
	"github.com/kbukum/fluxkit/scheduler"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *scheduler.Registry) {
	t.Helper()
	reg := scheduler.NewRegistry(scheduler.Config{
		Parallel:       scheduler.ParallelConfig{Workers: 4},
		BoundedElastic: scheduler.BoundedElasticConfig{MaxWorkers: 4, IdleTTL: time.Minute},
	})
	t.Cleanup(func() { _ = reg.Dispose() })
	return New(reg, opts...), reg
}

// recorder captures the thread of every tapped stage and callback.
type recorder struct {
	mu             sync.Mutex
	stages         map[string][]string
	values         []any
	nextThreads    []string
	completeThread string
	errorThread    string
	completes      int
	errs           int
	err            error
}

func newRecorder() *recorder {
	return &recorder{stages: make(map[string][]string)}
}

func (r *recorder) tap(label string) func(ctx context.Context, v any) {
	return func(ctx context.Context, _ any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stages[label] = append(r.stages[label], scheduler.ThreadName(ctx))
	}
}

func (r *recorder) subscriber() Subscriber {
	return Subscriber{
		OnNext: func(ctx context.Context, v any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.values = append(r.values, v)
			r.nextThreads = append(r.nextThreads, scheduler.ThreadName(ctx))
		},
		OnComplete: func(ctx context.Context) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes++
			r.completeThread = scheduler.ThreadName(ctx)
		},
		OnError: func(ctx context.Context, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs++
			r.err = err
			r.errorThread = scheduler.ThreadName(ctx)
		},
	}
}

func (r *recorder) threads(label string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stages[label]...)
}

// observed is a copy of what a recorder saw.
type observed struct {
	values         []any
	nextThreads    []string
	completeThread string
	errorThread    string
	completes      int
	errs           int
	err            error
}

func (r *recorder) snapshot() observed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return observed{
		values:         append([]any(nil), r.values...),
		nextThreads:    append([]string(nil), r.nextThreads...),
		completeThread: r.completeThread,
		errorThread:    r.errorThread,
		completes:      r.completes,
		errs:           r.errs,
		err:            r.err,
	}
}

// eventLog is a Hook that keeps every event.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func wait(t *testing.T, sub *Subscription) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-sub.Done():
		return sub.Err()
	case <-ctx.Done():
		t.Fatal("activation did not finish")
		return nil
	}
}

func allEqual(t *testing.T, want string, got []string) {
	t.Helper()
	assert.NotZero(t, len(got))
	for _, g := range got {
		assert.Equal(t, want, g)
	}
}

func allPrefixed(t *testing.T, prefix string, got []string) {
	t.Helper()
	assert.NotZero(t, len(got))
	for _, g := range got {
		assert.True(t, strings.HasPrefix(g, prefix), "thread %q lacks prefix %q", g, prefix)
	}
}

var double = pipeline.Func(func(n int) int { return n * 2 })
