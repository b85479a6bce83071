package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
)

type queuedTask struct {
	ctx    context.Context
	task   Task
	handle *taskHandle
	view   *workerView
}

// loopWorker owns one goroutine locked to one OS thread and runs queued
// tasks in FIFO order.
type loopWorker struct {
	name     string
	queueCap int // 0 means unbounded
	log      *logger.Logger

	mu         sync.Mutex
	queue      *queue.Queue
	running    bool
	closed     bool
	lastActive time.Time

	// refs and idleSince belong to the owning scheduler's lock.
	refs      int
	idleSince time.Time

	thread atomic.Value // Thread
	wake   chan struct{}
	done   chan struct{}
}

func newLoopWorker(name string, queueCap int, log *logger.Logger) *loopWorker {
	w := &loopWorker{
		name:       name,
		queueCap:   queueCap,
		log:        log,
		queue:      queue.New(),
		lastActive: time.Now(),
		idleSince:  time.Now(),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	w.thread.Store(Thread{Name: name})
	go w.run()
	return w
}

func (w *loopWorker) submit(ctx context.Context, task Task, view *workerView) (Disposable, error) {
	if task == nil {
		return nil, errors.New(errors.ErrCodeInternal, "nil task")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h := &taskHandle{}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, errors.SchedulerClosed(w.name)
	}
	if w.queueCap > 0 && w.queue.Length() >= w.queueCap {
		queued := w.queue.Length()
		w.mu.Unlock()
		return nil, errors.SchedulerBusy(w.name, queued, w.queueCap)
	}
	w.queue.Add(queuedTask{ctx: ctx, task: task, handle: h, view: view})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return h, nil
}

// pending returns the number of queued tasks plus the running one.
func (w *loopWorker) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.queue.Length()
	if w.running {
		n++
	}
	return n
}

// idleFor reports how long the worker has had nothing to do, or 0 when busy.
func (w *loopWorker) idleFor(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.queue.Length() > 0 {
		return 0
	}
	since := w.lastActive
	if w.idleSince.After(since) {
		since = w.idleSince
	}
	return now.Sub(since)
}

// close stops the worker. Queued tasks that have not started are dropped.
func (w *loopWorker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	dropped := w.queue.Length()
	for w.queue.Length() > 0 {
		qt := w.queue.Remove().(queuedTask)
		qt.handle.Dispose()
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	if dropped > 0 {
		w.log.Debug("worker closed with pending tasks", logger.Fields(logger.FieldWorker, w.name, "dropped", dropped))
	}
}

func (w *loopWorker) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *loopWorker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	t := Thread{Name: w.name, OSThreadID: osThreadID()}
	w.thread.Store(t)
	w.log.Trace("worker started", logger.Fields(logger.FieldWorker, w.name, logger.FieldThreadID, t.OSThreadID))

	for {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		if w.queue.Length() == 0 {
			w.mu.Unlock()
			<-w.wake
			continue
		}
		qt := w.queue.Remove().(queuedTask)
		w.running = true
		w.mu.Unlock()

		w.execute(t, qt)

		w.mu.Lock()
		w.running = false
		w.lastActive = time.Now()
		w.mu.Unlock()
	}
}

func (w *loopWorker) execute(t Thread, qt queuedTask) {
	if qt.handle.IsDisposed() || (qt.view != nil && qt.view.IsDisposed()) {
		return
	}
	defer qt.handle.Dispose()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("task panicked", logger.Fields(
				logger.FieldWorker, w.name,
				logger.FieldThreadID, t.OSThreadID,
				logger.FieldError, fmt.Sprint(r),
			))
		}
	}()
	qt.task(WithThread(qt.ctx, t))
}

// workerView is the Worker handed to one claimant. Disposing it never stops
// the underlying worker; it only discards the tasks scheduled through it.
type workerView struct {
	w        *loopWorker
	disposed atomic.Bool
	release  func()
}

func newWorkerView(w *loopWorker, release func()) *workerView {
	return &workerView{w: w, release: release}
}

func (v *workerView) Name() string { return v.w.name }

func (v *workerView) Schedule(ctx context.Context, task Task) (Disposable, error) {
	if v.disposed.Load() {
		return nil, errors.SchedulerClosed(v.w.name)
	}
	return v.w.submit(ctx, task, v)
}

func (v *workerView) Dispose() {
	if v.disposed.CompareAndSwap(false, true) && v.release != nil {
		v.release()
	}
}

func (v *workerView) IsDisposed() bool { return v.disposed.Load() }
