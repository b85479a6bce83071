package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
)

// BoundedElasticName is the default name of a BoundedElastic scheduler.
const BoundedElasticName = "boundedElastic"

// BoundedElasticScheduler grows its worker set on demand up to MaxWorkers.
//
// CreateWorker hands out an idle worker when one exists, starts a new one
// while below the cap, and otherwise shares the least claimed worker. Each
// worker queue holds at most QueueCapPerWorker tasks; beyond that Schedule
// fails with SCHEDULER_BUSY. Workers idle for longer than IdleTTL are
// retired by a background evictor.
type BoundedElasticScheduler struct {
	name string
	cfg  BoundedElasticConfig
	log  *logger.Logger

	mu       sync.Mutex
	workers  []*loopWorker
	seq      int
	disposed bool

	stop chan struct{}
	done chan struct{}
}

// NewBoundedElastic starts a BoundedElastic scheduler. Zero or negative
// config fields take their defaults.
func NewBoundedElastic(name string, cfg BoundedElasticConfig) *BoundedElasticScheduler {
	if name == "" {
		name = BoundedElasticName
	}
	cfg = cfg.runnable()
	log := logger.Get("scheduler").WithFields(logger.Fields(logger.FieldScheduler, name))
	s := &BoundedElasticScheduler{
		name: name,
		cfg:  cfg,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.evictLoop()
	log.Debug("bounded elastic scheduler created", logger.Fields(
		"max_workers", cfg.MaxWorkers,
		"queue_cap", cfg.QueueCapPerWorker,
		"idle_ttl", cfg.IdleTTL.String(),
	))
	return s
}

// Name returns the scheduler name.
func (s *BoundedElasticScheduler) Name() string { return s.name }

// Schedule runs task once on a claimed worker.
func (s *BoundedElasticScheduler) Schedule(ctx context.Context, task Task) (Disposable, error) {
	v, err := s.claim()
	if err != nil {
		return nil, err
	}
	// The queued task keeps the worker from being evicted, so the claim
	// can be dropped right away.
	defer v.Dispose()
	return v.w.submit(ctx, task, nil)
}

// CreateWorker claims a worker until the returned Worker is disposed.
func (s *BoundedElasticScheduler) CreateWorker() (Worker, error) {
	return s.claim()
}

func (s *BoundedElasticScheduler) claim() (*workerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, errors.SchedulerClosed(s.name)
	}

	w := s.idleWorker()
	if w == nil && len(s.workers) < s.cfg.MaxWorkers {
		s.seq++
		w = newLoopWorker(fmt.Sprintf("%s-%d", s.name, s.seq), s.cfg.QueueCapPerWorker, s.log)
		s.workers = append(s.workers, w)
		s.log.Debug("worker created", logger.Fields(logger.FieldWorker, w.name, "live", len(s.workers)))
	}
	if w == nil {
		w = s.leastClaimed()
	}
	w.refs++

	return newWorkerView(w, func() { s.release(w) }), nil
}

// idleWorker returns an unclaimed worker with nothing queued. Caller holds s.mu.
func (s *BoundedElasticScheduler) idleWorker() *loopWorker {
	for _, w := range s.workers {
		if w.refs == 0 && w.pending() == 0 {
			return w
		}
	}
	return nil
}

// leastClaimed returns the worker with the fewest claims, then the shortest
// queue. Caller holds s.mu and s.workers is not empty.
func (s *BoundedElasticScheduler) leastClaimed() *loopWorker {
	best := s.workers[0]
	bestPending := best.pending()
	for _, w := range s.workers[1:] {
		p := w.pending()
		if w.refs < best.refs || (w.refs == best.refs && p < bestPending) {
			best, bestPending = w, p
		}
	}
	return best
}

func (s *BoundedElasticScheduler) release(w *loopWorker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.refs > 0 {
		w.refs--
	}
	if w.refs == 0 {
		w.idleSince = time.Now()
	}
}

func (s *BoundedElasticScheduler) evictLoop() {
	defer close(s.done)
	interval := s.cfg.IdleTTL / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.evictIdle(now)
		}
	}
}

// evictIdle retires unclaimed workers idle for at least IdleTTL.
func (s *BoundedElasticScheduler) evictIdle(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.workers[:0]
	evicted := 0
	for _, w := range s.workers {
		if w.refs == 0 && w.idleFor(now) >= s.cfg.IdleTTL {
			w.close()
			evicted++
			s.log.Debug("worker retired", logger.Fields(logger.FieldWorker, w.name))
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(s.workers); i++ {
		s.workers[i] = nil
	}
	s.workers = kept
	return evicted
}

// LiveWorkers returns the number of workers currently alive.
func (s *BoundedElasticScheduler) LiveWorkers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Config returns the effective configuration.
func (s *BoundedElasticScheduler) Config() BoundedElasticConfig { return s.cfg }

// Dispose stops the evictor and every worker.
func (s *BoundedElasticScheduler) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	workers := s.workers
	s.workers = nil
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	for _, w := range workers {
		w.close()
	}
	s.log.Debug("bounded elastic scheduler disposed", logger.Fields("workers", len(workers)))
	return nil
}

// IsDisposed reports whether Dispose was called.
func (s *BoundedElasticScheduler) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
