package main

import (
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/scheduler"
)

var errPoolClosed = errors.New(errors.ErrCodeSchedulerClosed, "pool closed")

// fixedPool is an application-owned pool of at most size goroutines, handed
// to scheduler.FromExecutor. Submit blocks while every goroutine is busy.
type fixedPool struct {
	mu     sync.RWMutex
	p      *pool.Pool
	closed bool
}

func newFixedPool(size int) *fixedPool {
	return &fixedPool{p: pool.New().WithMaxGoroutines(size)}
}

// Size is the goroutine cap.
func (fp *fixedPool) Size() int { return fp.p.MaxGoroutines() }

// Executor exposes the pool to the scheduler package.
func (fp *fixedPool) Executor() scheduler.Executor {
	return scheduler.ExecutorFunc(fp.submit)
}

func (fp *fixedPool) submit(task func()) error {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	if fp.closed {
		return errPoolClosed
	}
	fp.p.Go(task)
	return nil
}

// Close stops accepting tasks and waits for running ones to finish.
func (fp *fixedPool) Close() {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.closed {
		return
	}
	fp.closed = true
	fp.p.Wait()
}
