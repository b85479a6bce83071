package scheduler

import "sync/atomic"

// taskHandle is the Disposable returned for queued tasks. It is disposed
// either by the caller or by the worker once the task ran.
type taskHandle struct {
	disposed atomic.Bool
}

func (h *taskHandle) Dispose()         { h.disposed.Store(true) }
func (h *taskHandle) IsDisposed() bool { return h.disposed.Load() }

// doneHandle is returned for tasks that already ran inline.
type doneHandle struct{}

func (doneHandle) Dispose()         {}
func (doneHandle) IsDisposed() bool { return true }
