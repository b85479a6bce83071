package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/kbukum/fluxkit/errors"
)

// ImmediateName is the name of the Immediate scheduler.
const ImmediateName = "immediate"

type immediateScheduler struct{}

var immediate Scheduler = immediateScheduler{}

// Immediate returns the scheduler that runs tasks synchronously on the
// caller's goroutine. The task observes the caller's thread. Disposing it is
// a no-op.
func Immediate() Scheduler { return immediate }

// IsImmediate reports whether s runs tasks inline on the caller.
func IsImmediate(s Scheduler) bool {
	_, ok := s.(immediateScheduler)
	return ok
}

func (immediateScheduler) Name() string { return ImmediateName }

func (immediateScheduler) Schedule(ctx context.Context, task Task) (Disposable, error) {
	task(ctx)
	return doneHandle{}, nil
}

func (immediateScheduler) CreateWorker() (Worker, error) { return &immediateWorker{}, nil }
func (immediateScheduler) Dispose() error                 { return nil }
func (immediateScheduler) IsDisposed() bool               { return false }

type immediateWorker struct {
	disposed atomic.Bool
}

func (w *immediateWorker) Name() string { return ImmediateName }

func (w *immediateWorker) Schedule(ctx context.Context, task Task) (Disposable, error) {
	if w.disposed.Load() {
		return nil, errors.SchedulerClosed(ImmediateName)
	}
	task(ctx)
	return doneHandle{}, nil
}

func (w *immediateWorker) Dispose()         { w.disposed.Store(true) }
func (w *immediateWorker) IsDisposed() bool { return w.disposed.Load() }
