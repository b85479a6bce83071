package scheduler

import (
	"context"
	"runtime"
)

// Task is a unit of work. ctx carries the Thread executing it.
type Task func(ctx context.Context)

// Disposable is a handle on a scheduled task. A disposed task that has not
// started yet never runs.
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

// Scheduler is a place to run tasks.
type Scheduler interface {
	// Name identifies the scheduler, e.g. "single" or "boundedElastic".
	Name() string
	// Schedule runs task once on one of the scheduler's workers.
	Schedule(ctx context.Context, task Task) (Disposable, error)
	// CreateWorker claims a Worker. Dispose the worker to release it.
	CreateWorker() (Worker, error)
	// Dispose stops every worker and drops tasks that have not started.
	Dispose() error
	// IsDisposed reports whether Dispose was called.
	IsDisposed() bool
}

// Worker runs tasks serially, in submission order, on one thread identity.
type Worker interface {
	// Name is the thread name tasks observe, e.g. "parallel-3".
	Name() string
	// Schedule queues task behind every task already scheduled on this worker.
	Schedule(ctx context.Context, task Task) (Disposable, error)
	// Dispose releases the worker; tasks scheduled through it that have not
	// started are discarded.
	Dispose()
	// IsDisposed reports whether Dispose was called.
	IsDisposed() bool
}

// WorkerSelector is implemented by schedulers that can hand out a specific
// worker by index, used to pin parallel rails.
type WorkerSelector interface {
	WorkerAt(index int) (Worker, error)
}

// HardwareParallelism reports the number of hardware threads available to
// the process. Tests may replace it.
var HardwareParallelism = runtime.NumCPU
