// Package scheduler provides the places where pipeline work runs.
//
// A Scheduler hands out Workers. Tasks scheduled on one Worker run serially,
// in submission order, on one thread identity; the subscription engine
// claims one Worker per pipeline segment, which is what makes every value of
// an activation cross a publishOn boundary on the same thread.
//
// Variants:
//
//   - Immediate: runs tasks inline on the calling goroutine.
//   - Single: one persistent worker shared by every user of the instance.
//   - Parallel: a fixed set of workers, one per hardware thread, handed out round robin.
//   - BoundedElastic: grows on demand up to a cap, recycles idle workers and
//     rejects tasks with SCHEDULER_BUSY once a worker queue is full.
//   - Executor: wraps a caller-owned pool; disposing the scheduler never stops the pool.
//
// Every task receives a context carrying the executing Thread, read back with
// CurrentThread or ThreadName.
//
// Shared instances live in a Registry owned by the process root:
//
//	reg := scheduler.NewRegistry(cfg)
//	defer reg.Dispose()
//	w, _ := reg.Single().CreateWorker()
//	w.Schedule(ctx, func(ctx context.Context) {
//	    fmt.Println(scheduler.ThreadName(ctx)) // single-1
//	})
package scheduler
