package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
)

// Executor is a caller-owned pool of goroutines.
type Executor interface {
	// Submit arranges for task to run once on some pool goroutine. A non-nil
	// error means the task was rejected and will not run.
	Submit(task func()) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func()) error

// Submit calls f(task).
func (f ExecutorFunc) Submit(task func()) error { return f(task) }

// GoExecutor runs each task on a new goroutine.
var GoExecutor Executor = ExecutorFunc(func(task func()) error {
	go task()
	return nil
})

// ExecutorScheduler adapts an Executor. Workers are serial trampolines on top
// of the pool: tasks of one worker run in order, never concurrently, and
// observe the worker name "<name>-worker-<k>" even when consecutive tasks
// land on different pool goroutines. Disposing the scheduler stops handing
// work to the pool but never shuts the pool down.
type ExecutorScheduler struct {
	name     string
	exec     Executor
	seq      atomic.Int64
	disposed atomic.Bool
	log      *logger.Logger
}

// FromExecutor wraps exec. An empty name defaults to "executor".
func FromExecutor(name string, exec Executor) *ExecutorScheduler {
	if name == "" {
		name = "executor"
	}
	return &ExecutorScheduler{
		name: name,
		exec: exec,
		log:  logger.Get("scheduler").WithFields(logger.Fields(logger.FieldScheduler, name)),
	}
}

// Name returns the scheduler name.
func (s *ExecutorScheduler) Name() string { return s.name }

// Schedule runs task once on a fresh trampoline.
func (s *ExecutorScheduler) Schedule(ctx context.Context, task Task) (Disposable, error) {
	w, err := s.CreateWorker()
	if err != nil {
		return nil, err
	}
	return w.Schedule(ctx, task)
}

// CreateWorker returns a new serial trampoline over the pool.
func (s *ExecutorScheduler) CreateWorker() (Worker, error) {
	if s.disposed.Load() {
		return nil, errors.SchedulerClosed(s.name)
	}
	k := s.seq.Add(1)
	return &trampolineWorker{
		name:  fmt.Sprintf("%s-worker-%d", s.name, k),
		owner: s,
		queue: queue.New(),
	}, nil
}

// Dispose stops accepting tasks. The wrapped pool keeps running.
func (s *ExecutorScheduler) Dispose() error {
	if s.disposed.CompareAndSwap(false, true) {
		s.log.Debug("executor scheduler disposed")
	}
	return nil
}

// IsDisposed reports whether Dispose was called.
func (s *ExecutorScheduler) IsDisposed() bool { return s.disposed.Load() }

type trampolineWorker struct {
	name     string
	owner    *ExecutorScheduler
	disposed atomic.Bool

	mu       sync.Mutex
	queue    *queue.Queue
	draining bool
}

func (w *trampolineWorker) Name() string { return w.name }

func (w *trampolineWorker) Schedule(ctx context.Context, task Task) (Disposable, error) {
	if w.disposed.Load() || w.owner.disposed.Load() {
		return nil, errors.SchedulerClosed(w.name)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h := &taskHandle{}

	w.mu.Lock()
	w.queue.Add(queuedTask{ctx: ctx, task: task, handle: h})
	if w.draining {
		w.mu.Unlock()
		return h, nil
	}
	w.draining = true
	w.mu.Unlock()

	if err := w.owner.exec.Submit(w.drain); err != nil {
		// The pool refused the drain; nothing queued here will ever run.
		w.mu.Lock()
		for w.queue.Length() > 0 {
			w.queue.Remove().(queuedTask).handle.Dispose()
		}
		w.draining = false
		w.mu.Unlock()
		return nil, errors.New(errors.ErrCodeSchedulerBusy, fmt.Sprintf("executor %s rejected task", w.owner.name)).
			WithDetail("scheduler", w.owner.name).
			WithCause(err)
	}
	return h, nil
}

func (w *trampolineWorker) drain() {
	t := Thread{Name: w.name}
	for {
		w.mu.Lock()
		if w.queue.Length() == 0 {
			w.draining = false
			w.mu.Unlock()
			return
		}
		qt := w.queue.Remove().(queuedTask)
		w.mu.Unlock()

		if w.disposed.Load() || qt.handle.IsDisposed() {
			continue
		}
		w.run(t, qt)
	}
}

func (w *trampolineWorker) run(t Thread, qt queuedTask) {
	defer qt.handle.Dispose()
	defer func() {
		if r := recover(); r != nil {
			w.owner.log.Error("task panicked", logger.Fields(
				logger.FieldWorker, w.name,
				logger.FieldError, fmt.Sprint(r),
			))
		}
	}()
	qt.task(WithThread(qt.ctx, t))
}

func (w *trampolineWorker) Dispose() {
	if !w.disposed.CompareAndSwap(false, true) {
		return
	}
	w.mu.Lock()
	for w.queue.Length() > 0 {
		w.queue.Remove().(queuedTask).handle.Dispose()
	}
	w.mu.Unlock()
}

func (w *trampolineWorker) IsDisposed() bool { return w.disposed.Load() }
