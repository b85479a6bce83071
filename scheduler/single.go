package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
)

// SingleName is the default name of a Single scheduler.
const SingleName = "single"

// SingleScheduler runs every task on one persistent worker named "<name>-1".
type SingleScheduler struct {
	name     string
	worker   *loopWorker
	disposed atomic.Bool
	log      *logger.Logger
}

// NewSingle starts a Single scheduler. An empty name defaults to "single".
func NewSingle(name string) *SingleScheduler {
	if name == "" {
		name = SingleName
	}
	log := logger.Get("scheduler").WithFields(logger.Fields(logger.FieldScheduler, name))
	s := &SingleScheduler{
		name:   name,
		worker: newLoopWorker(name+"-1", 0, log),
		log:    log,
	}
	log.Debug("single scheduler created")
	return s
}

// Name returns the scheduler name.
func (s *SingleScheduler) Name() string { return s.name }

// Schedule queues task on the shared worker.
func (s *SingleScheduler) Schedule(ctx context.Context, task Task) (Disposable, error) {
	if s.disposed.Load() {
		return nil, errors.SchedulerClosed(s.name)
	}
	return s.worker.submit(ctx, task, nil)
}

// CreateWorker returns a view of the shared worker. Every claimant of the
// same SingleScheduler observes the same thread.
func (s *SingleScheduler) CreateWorker() (Worker, error) {
	if s.disposed.Load() {
		return nil, errors.SchedulerClosed(s.name)
	}
	return newWorkerView(s.worker, nil), nil
}

// Dispose stops the worker.
func (s *SingleScheduler) Dispose() error {
	if s.disposed.CompareAndSwap(false, true) {
		s.worker.close()
		s.log.Debug("single scheduler disposed")
	}
	return nil
}

// IsDisposed reports whether Dispose was called.
func (s *SingleScheduler) IsDisposed() bool { return s.disposed.Load() }
