package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
)

// ParallelName is the default name of a Parallel scheduler.
const ParallelName = "parallel"

// ParallelScheduler owns a fixed set of workers named "<name>-1".."<name>-N"
// and hands them out round robin.
type ParallelScheduler struct {
	name     string
	workers  []*loopWorker
	next     atomic.Uint64
	disposed atomic.Bool
	log      *logger.Logger
}

// NewParallel starts a Parallel scheduler with size workers. A size of zero
// or less uses HardwareParallelism.
func NewParallel(name string, size int) *ParallelScheduler {
	if name == "" {
		name = ParallelName
	}
	if size <= 0 {
		size = HardwareParallelism()
	}
	if size <= 0 {
		size = 1
	}
	log := logger.Get("scheduler").WithFields(logger.Fields(logger.FieldScheduler, name))
	s := &ParallelScheduler{
		name:    name,
		workers: make([]*loopWorker, size),
		log:     log,
	}
	for i := range s.workers {
		s.workers[i] = newLoopWorker(fmt.Sprintf("%s-%d", name, i+1), 0, log)
	}
	log.Debug("parallel scheduler created", logger.Fields("workers", size))
	return s
}

// Name returns the scheduler name.
func (s *ParallelScheduler) Name() string { return s.name }

// Size returns the number of workers.
func (s *ParallelScheduler) Size() int { return len(s.workers) }

// Schedule queues task on the next worker in round-robin order.
func (s *ParallelScheduler) Schedule(ctx context.Context, task Task) (Disposable, error) {
	if s.disposed.Load() {
		return nil, errors.SchedulerClosed(s.name)
	}
	return s.pick().submit(ctx, task, nil)
}

// CreateWorker returns a view of the next worker in round-robin order.
func (s *ParallelScheduler) CreateWorker() (Worker, error) {
	if s.disposed.Load() {
		return nil, errors.SchedulerClosed(s.name)
	}
	return newWorkerView(s.pick(), nil), nil
}

// WorkerAt returns a view of worker index modulo Size.
func (s *ParallelScheduler) WorkerAt(index int) (Worker, error) {
	if s.disposed.Load() {
		return nil, errors.SchedulerClosed(s.name)
	}
	if index < 0 {
		index = -index
	}
	return newWorkerView(s.workers[index%len(s.workers)], nil), nil
}

func (s *ParallelScheduler) pick() *loopWorker {
	i := s.next.Add(1) - 1
	return s.workers[i%uint64(len(s.workers))]
}

// Dispose stops every worker.
func (s *ParallelScheduler) Dispose() error {
	if s.disposed.CompareAndSwap(false, true) {
		for _, w := range s.workers {
			w.close()
		}
		s.log.Debug("parallel scheduler disposed")
	}
	return nil
}

// IsDisposed reports whether Dispose was called.
func (s *ParallelScheduler) IsDisposed() bool { return s.disposed.Load() }
