package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/kbukum/fluxkit/errors"
)

// runOn schedules task on w and waits for it to finish.
func runOn(t *testing.T, w Worker, task Task) {
	t.Helper()
	done := make(chan struct{})
	_, err := w.Schedule(context.Background(), func(ctx context.Context) {
		defer close(done)
		task(ctx)
	})
	assert.NoError(t, err)
	waitFor(t, done)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestThreadNameOutsideWorker(t *testing.T) {
	assert.Equal(t, MainThread, ThreadName(context.Background()))
	ctx := WithThread(context.Background(), Thread{Name: "single-1", OSThreadID: 7})
	assert.Equal(t, Thread{Name: "single-1", OSThreadID: 7}, CurrentThread(ctx))
}

func TestImmediateRunsInline(t *testing.T) {
	ctx := WithThread(context.Background(), Thread{Name: "caller"})
	var observed string
	h, err := Immediate().Schedule(ctx, func(ctx context.Context) {
		observed = ThreadName(ctx)
	})
	assert.NoError(t, err)
	assert.Equal(t, "caller", observed)
	assert.True(t, h.IsDisposed())
	assert.True(t, IsImmediate(Immediate()))
	assert.NoError(t, Immediate().Dispose())
	assert.False(t, Immediate().IsDisposed())

	w, err := Immediate().CreateWorker()
	assert.NoError(t, err)
	w.Dispose()
	_, err = w.Schedule(ctx, func(context.Context) {})
	assert.IsError(t, err, errors.ErrSchedulerClosed)
}

func TestSingleSharesOneThread(t *testing.T) {
	s := NewSingle("")
	defer s.Dispose()

	w1, err := s.CreateWorker()
	assert.NoError(t, err)
	w2, err := s.CreateWorker()
	assert.NoError(t, err)

	var t1, t2 Thread
	runOn(t, w1, func(ctx context.Context) { t1 = CurrentThread(ctx) })
	runOn(t, w2, func(ctx context.Context) { t2 = CurrentThread(ctx) })

	assert.Equal(t, "single-1", t1.Name)
	assert.Equal(t, t1, t2)
	if runtime.GOOS == "linux" {
		assert.NotZero(t, t1.OSThreadID)
	}
}

func TestWorkerRunsTasksInOrder(t *testing.T) {
	s := NewSingle("ordered")
	defer s.Dispose()
	w, err := s.CreateWorker()
	assert.NoError(t, err)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		_, err := w.Schedule(context.Background(), func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
		assert.NoError(t, err)
	}
	runOn(t, w, func(context.Context) {})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 100, len(got))
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestParallelHandsOutWorkersRoundRobin(t *testing.T) {
	s := NewParallel("", 4)
	defer s.Dispose()
	assert.Equal(t, 4, s.Size())

	var names []string
	for i := 0; i < 5; i++ {
		w, err := s.CreateWorker()
		assert.NoError(t, err)
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"parallel-1", "parallel-2", "parallel-3", "parallel-4", "parallel-1"}, names)

	w, err := s.WorkerAt(5)
	assert.NoError(t, err)
	var observed string
	runOn(t, w, func(ctx context.Context) { observed = ThreadName(ctx) })
	assert.Equal(t, "parallel-2", observed)
}

func TestParallelDefaultsToHardwareParallelism(t *testing.T) {
	prev := HardwareParallelism
	HardwareParallelism = func() int { return 3 }
	defer func() { HardwareParallelism = prev }()

	s := NewParallel("p", 0)
	defer s.Dispose()
	assert.Equal(t, 3, s.Size())
}

func TestBoundedElasticGrowsUpToCap(t *testing.T) {
	s := NewBoundedElastic("", BoundedElasticConfig{MaxWorkers: 2, IdleTTL: time.Minute})
	defer s.Dispose()

	w1, err := s.CreateWorker()
	assert.NoError(t, err)
	w2, err := s.CreateWorker()
	assert.NoError(t, err)
	w3, err := s.CreateWorker()
	assert.NoError(t, err)

	assert.Equal(t, "boundedElastic-1", w1.Name())
	assert.Equal(t, "boundedElastic-2", w2.Name())
	assert.SliceContains(t, []string{"boundedElastic-1", "boundedElastic-2"}, w3.Name())
	assert.Equal(t, 2, s.LiveWorkers())
}

func TestBoundedElasticNegativeLimitsTakeDefaults(t *testing.T) {
	prev := HardwareParallelism
	HardwareParallelism = func() int { return 1 }
	defer func() { HardwareParallelism = prev }()

	s := NewBoundedElastic("neg", BoundedElasticConfig{MaxWorkers: -1, QueueCapPerWorker: -5, IdleTTL: -time.Second})
	defer s.Dispose()

	cfg := s.Config()
	assert.Equal(t, elasticWorkersPerCPU, cfg.MaxWorkers)
	assert.Equal(t, DefaultQueueCapPerWorker, cfg.QueueCapPerWorker)
	assert.Equal(t, DefaultIdleTTL, cfg.IdleTTL)

	w, err := s.CreateWorker()
	assert.NoError(t, err)
	assert.Equal(t, "neg-1", w.Name())
	runOn(t, w, func(context.Context) {})
}

func TestBoundedElasticReusesIdleWorker(t *testing.T) {
	s := NewBoundedElastic("io", BoundedElasticConfig{MaxWorkers: 4, IdleTTL: time.Minute})
	defer s.Dispose()

	w1, err := s.CreateWorker()
	assert.NoError(t, err)
	runOn(t, w1, func(context.Context) {})
	w1.Dispose()

	w2, err := s.CreateWorker()
	assert.NoError(t, err)
	assert.Equal(t, "io-1", w2.Name())
	assert.Equal(t, 1, s.LiveWorkers())
}

func TestBoundedElasticRejectsWhenQueueFull(t *testing.T) {
	s := NewBoundedElastic("", BoundedElasticConfig{MaxWorkers: 1, QueueCapPerWorker: 1, IdleTTL: time.Minute})
	defer s.Dispose()

	w, err := s.CreateWorker()
	assert.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	_, err = w.Schedule(context.Background(), func(context.Context) {
		close(started)
		<-release
	})
	assert.NoError(t, err)
	waitFor(t, started)

	_, err = w.Schedule(context.Background(), func(context.Context) {})
	assert.NoError(t, err)

	_, err = w.Schedule(context.Background(), func(context.Context) {})
	assert.IsError(t, err, errors.ErrSchedulerBusy)
	assert.True(t, errors.IsRetryable(err))

	close(release)
}

func TestBoundedElasticEvictsIdleWorkers(t *testing.T) {
	s := NewBoundedElastic("", BoundedElasticConfig{MaxWorkers: 4, IdleTTL: 20 * time.Millisecond})
	defer s.Dispose()

	w, err := s.CreateWorker()
	assert.NoError(t, err)
	runOn(t, w, func(context.Context) {})
	assert.Equal(t, 1, s.LiveWorkers())

	w.Dispose()
	eventually(t, func() bool { return s.LiveWorkers() == 0 })

	w, err = s.CreateWorker()
	assert.NoError(t, err)
	assert.Equal(t, "boundedElastic-2", w.Name())
}

func TestBoundedElasticKeepsClaimedWorkers(t *testing.T) {
	s := NewBoundedElastic("", BoundedElasticConfig{MaxWorkers: 4, IdleTTL: time.Hour})
	defer s.Dispose()

	w, err := s.CreateWorker()
	assert.NoError(t, err)
	assert.Equal(t, 0, s.evictIdle(time.Now().Add(time.Hour)))
	w.Dispose()
	assert.Equal(t, 1, s.evictIdle(time.Now().Add(time.Hour)))
}

func TestDisposedSchedulersReject(t *testing.T) {
	for _, s := range []Scheduler{
		NewSingle(""),
		NewParallel("", 2),
		NewBoundedElastic("", BoundedElasticConfig{}),
		FromExecutor("pool", GoExecutor),
	} {
		t.Run(s.Name(), func(t *testing.T) {
			assert.NoError(t, s.Dispose())
			assert.True(t, s.IsDisposed())

			_, err := s.Schedule(context.Background(), func(context.Context) {})
			assert.IsError(t, err, errors.ErrSchedulerClosed)
			_, err = s.CreateWorker()
			assert.IsError(t, err, errors.ErrSchedulerClosed)
			assert.NoError(t, s.Dispose())
		})
	}
}

func TestDisposedWorkerDiscardsPendingTasks(t *testing.T) {
	s := NewSingle("")
	defer s.Dispose()

	blocker, err := s.CreateWorker()
	assert.NoError(t, err)
	w, err := s.CreateWorker()
	assert.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	_, err = blocker.Schedule(context.Background(), func(context.Context) {
		close(started)
		<-release
	})
	assert.NoError(t, err)
	waitFor(t, started)

	var ran atomic.Bool
	h, err := w.Schedule(context.Background(), func(context.Context) { ran.Store(true) })
	assert.NoError(t, err)
	w.Dispose()
	close(release)

	runOn(t, blocker, func(context.Context) {})
	assert.False(t, ran.Load())
	assert.False(t, h.IsDisposed())

	_, err = w.Schedule(context.Background(), func(context.Context) {})
	assert.IsError(t, err, errors.ErrSchedulerClosed)
}

func TestDisposedTaskHandleSkipsTask(t *testing.T) {
	s := NewSingle("")
	defer s.Dispose()
	w, err := s.CreateWorker()
	assert.NoError(t, err)

	release := make(chan struct{})
	_, err = w.Schedule(context.Background(), func(context.Context) { <-release })
	assert.NoError(t, err)

	var ran atomic.Bool
	h, err := w.Schedule(context.Background(), func(context.Context) { ran.Store(true) })
	assert.NoError(t, err)
	h.Dispose()
	close(release)

	runOn(t, w, func(context.Context) {})
	assert.False(t, ran.Load())
}

func TestPanickingTaskKeepsWorkerAlive(t *testing.T) {
	s := NewSingle("")
	defer s.Dispose()
	w, err := s.CreateWorker()
	assert.NoError(t, err)

	_, err = w.Schedule(context.Background(), func(context.Context) { panic("boom") })
	assert.NoError(t, err)

	var observed string
	runOn(t, w, func(ctx context.Context) { observed = ThreadName(ctx) })
	assert.Equal(t, "single-1", observed)
}
