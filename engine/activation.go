package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
	"github.com/kbukum/fluxkit/pipeline"
	"github.com/kbukum/fluxkit/scheduler"
)

const (
	stateActive int32 = iota
	stateCompleted
	stateFailed
	stateCancelled
)

// segRun is a Segment bound to the worker claimed for one activation. A nil
// worker runs the segment on the dispatching thread.
type segRun struct {
	Segment
	worker scheduler.Worker
}

func (s *segRun) name() string {
	if s.Scheduler == nil {
		return "inline"
	}
	return s.Scheduler.Name()
}

// chain is the segmented step list a value travels through: the main
// pipeline, or one rail of a parallel pipeline.
type chain struct {
	steps    []pipeline.Step
	segments []*segRun
	// offset is added to step indices in errors and events.
	offset     int
	rail       int
	onValue    func(ctx context.Context, c *chain, v any)
	onComplete func(ctx context.Context, c *chain)
}

type activation struct {
	id           string
	e            *Engine
	sub          Subscriber
	subscription *Subscription
	pipeline     string
	started      time.Time

	ctx    context.Context
	cancel context.CancelFunc

	source  *pipeline.Pipeline
	main    *chain
	rails   []*chain
	workers []scheduler.Worker

	dispatched atomic.Int64
	railsLeft  atomic.Int32

	state atomic.Int32
	// termMu serializes subscriber callbacks.
	termMu sync.Mutex
	errMu  sync.Mutex
	err    error
	once   sync.Once
	done   chan struct{}
}

// newChain claims one worker per segment of asg. Rails pin their workers
// by rail index when the scheduler supports it.
func (a *activation) newChain(steps []pipeline.Step, asg *Assignment, offset, rail int) (*chain, error) {
	c := &chain{steps: steps, offset: offset, rail: rail}
	for _, seg := range asg.segments {
		run := &segRun{Segment: seg}
		if seg.Scheduler != nil {
			w, err := a.claim(seg.Scheduler, rail)
			if err != nil {
				return nil, err
			}
			run.worker = w
		}
		c.segments = append(c.segments, run)
	}
	return c, nil
}

func (a *activation) claim(s scheduler.Scheduler, rail int) (scheduler.Worker, error) {
	var (
		w   scheduler.Worker
		err error
	)
	if sel, ok := s.(scheduler.WorkerSelector); ok && rail >= 0 {
		w, err = sel.WorkerAt(rail)
	} else {
		w, err = s.CreateWorker()
	}
	if err != nil {
		return nil, err
	}
	a.workers = append(a.workers, w)
	return w, nil
}

func (a *activation) start(ctx context.Context, asg *Assignment, setupErr error) {
	ev := a.event(ctx, EventSubscribed)
	if asg != nil {
		ev.To = asg.Source().Name()
	}
	a.emit(ev)
	a.e.log.Debug("activation started", logger.Fields(
		logger.FieldActivationID, a.id,
		"pipeline", a.pipeline,
		logger.FieldScheduler, ev.To,
	))

	if a.sub.OnSubscribe != nil {
		if err := guard(func() { a.sub.OnSubscribe(ctx, a.subscription) }); err != nil && setupErr == nil {
			setupErr = errors.Internal(err)
		}
	}
	if setupErr != nil {
		a.fail(ctx, setupErr)
		return
	}
	if ctx.Err() != nil {
		a.cancelActivation(ctx)
		return
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				a.cancelActivation(ctx)
			case <-a.done:
			}
		}()
	}
	if !a.active() {
		return
	}

	if _, err := a.main.segments[0].worker.Schedule(a.ctx, a.produce); err != nil {
		a.fail(ctx, err)
	}
}

// produce pulls the source on the source worker.
func (a *activation) produce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(ctx, errors.SourceFailure(fmt.Errorf("panic: %v", r)))
		}
	}()

	it := a.source.Open(ctx)
	defer it.Close()
	for a.active() {
		v, ok, err := it.Next(ctx)
		if err != nil {
			if a.ctx.Err() != nil {
				a.cancelActivation(ctx)
				return
			}
			a.fail(ctx, errors.SourceFailure(err))
			return
		}
		if !ok {
			a.forwardComplete(ctx, a.main, 0)
			return
		}
		ev := a.event(ctx, EventValueProduced)
		ev.Value = v
		a.emit(ev)
		a.run(ctx, a.main, 0, v)
	}
}

// run executes the steps of segment idx on the current thread, then hands
// the result to the next segment.
func (a *activation) run(ctx context.Context, c *chain, idx int, v any) {
	for _, si := range c.segments[idx].Steps {
		if !a.active() {
			a.drop(ctx, c, v)
			return
		}
		st := c.steps[si]
		stage := c.offset + si

		ev := a.event(ctx, EventStageEntered)
		ev.Stage, ev.StageName, ev.Rail, ev.Value = stage, st.Name, c.rail, v
		a.emit(ev)

		out, keep, err := callStep(ctx, st, v)
		if err != nil {
			a.fail(ctx, errors.StageFailure(stage, v, err))
			return
		}
		if !keep {
			return
		}
		v = out
	}
	a.handoff(ctx, c, idx+1, v)
}

func (a *activation) handoff(ctx context.Context, c *chain, next int, v any) {
	if next == len(c.segments) {
		c.onValue(ctx, c, v)
		return
	}
	seg := c.segments[next]
	if seg.worker == nil {
		a.run(ctx, c, next, v)
		return
	}
	var due time.Time
	if seg.Delay > 0 {
		due = time.Now().Add(seg.Delay)
	}

	ev := a.event(ctx, EventMigrated)
	ev.From, ev.To, ev.Rail, ev.Value = c.segments[next-1].name(), seg.name(), c.rail, v
	a.emit(ev)

	_, err := seg.worker.Schedule(a.ctx, func(ctx context.Context) {
		if !a.active() {
			a.drop(ctx, c, v)
			return
		}
		if !due.IsZero() && !a.sleepUntil(due) {
			return
		}
		a.run(ctx, c, next, v)
	})
	if err != nil {
		a.fail(ctx, err)
	}
}

// forwardComplete moves the completion signal past segment from, through
// the same hand-offs the values took.
func (a *activation) forwardComplete(ctx context.Context, c *chain, from int) {
	next := from + 1
	if next == len(c.segments) {
		c.onComplete(ctx, c)
		return
	}
	seg := c.segments[next]
	if seg.worker == nil {
		a.forwardComplete(ctx, c, next)
		return
	}

	ev := a.event(ctx, EventMigrated)
	ev.From, ev.To, ev.Rail = c.segments[from].name(), seg.name(), c.rail
	a.emit(ev)

	_, err := seg.worker.Schedule(a.ctx, func(ctx context.Context) {
		if a.active() {
			a.forwardComplete(ctx, c, next)
		}
	})
	if err != nil {
		a.fail(ctx, err)
	}
}

// dispatch deals a value from the prefix to the next rail.
func (a *activation) dispatch(ctx context.Context, _ *chain, v any) {
	i := a.dispatched.Add(1) - 1
	a.run(ctx, a.rails[pipeline.RailOf(i, len(a.rails))], 0, v)
}

func (a *activation) completeRails(ctx context.Context, _ *chain) {
	for _, r := range a.rails {
		a.forwardComplete(ctx, r, 0)
	}
}

func (a *activation) railComplete(ctx context.Context, c *chain) {
	if a.railsLeft.Add(-1) == 0 {
		a.complete(ctx, c)
	}
}

func (a *activation) deliver(ctx context.Context, c *chain, v any) {
	a.termMu.Lock()
	if !a.active() {
		a.termMu.Unlock()
		a.drop(ctx, c, v)
		return
	}
	var err error
	if a.sub.OnNext != nil {
		err = guard(func() { a.sub.OnNext(ctx, v) })
	}
	a.termMu.Unlock()

	ev := a.event(ctx, EventValueDelivered)
	ev.Rail, ev.Value = c.rail, v
	a.emit(ev)
	if err != nil {
		a.fail(ctx, errors.Internal(err))
	}
}

func (a *activation) complete(ctx context.Context, c *chain) {
	a.termMu.Lock()
	if !a.state.CompareAndSwap(stateActive, stateCompleted) {
		a.termMu.Unlock()
		a.drop(ctx, c, nil)
		return
	}
	var err error
	if a.sub.OnComplete != nil {
		err = guard(func() { a.sub.OnComplete(ctx) })
	}
	a.termMu.Unlock()

	if err != nil {
		a.e.log.Error("subscriber panicked in OnComplete", logger.ErrorFields("complete", err))
	}
	a.emit(a.event(ctx, EventCompleted))
	a.finish()
}

// fail terminates the activation with err, reporting it on the current
// thread. Later failures are dropped.
func (a *activation) fail(ctx context.Context, err error) {
	a.termMu.Lock()
	if !a.state.CompareAndSwap(stateActive, stateFailed) {
		a.termMu.Unlock()
		ev := a.event(ctx, EventDropped)
		ev.Err = err
		a.emit(ev)
		return
	}
	a.setErr(err)
	var cbErr error
	if a.sub.OnError != nil {
		cbErr = guard(func() { a.sub.OnError(ctx, err) })
	}
	a.termMu.Unlock()

	if cbErr != nil {
		a.e.log.Error("subscriber panicked in OnError", logger.ErrorFields("error", cbErr))
	}
	ev := a.event(ctx, EventErrored)
	ev.Err = err
	if idx, _, ok := errors.StageFailureInfo(err); ok {
		ev.Stage = idx
	}
	a.emit(ev)
	a.finish()
}

// cancelActivation never takes termMu, so it is safe from inside callbacks.
func (a *activation) cancelActivation(ctx context.Context) {
	if !a.state.CompareAndSwap(stateActive, stateCancelled) {
		return
	}
	a.setErr(errors.Cancelled())
	a.emit(a.event(ctx, EventCancelled))
	a.finish()
}

// finish releases the claimed workers, which discards queued hand-offs.
func (a *activation) finish() {
	a.once.Do(func() {
		for _, w := range a.workers {
			w.Dispose()
		}
		a.cancel()
		close(a.done)
		a.e.log.Debug("activation finished", logger.Fields(
			logger.FieldActivationID, a.id,
			"pipeline", a.pipeline,
			logger.FieldError, fmt.Sprint(a.Err()),
			logger.FieldDuration, a.e.now().Sub(a.started).Milliseconds(),
		))
	})
}

func (a *activation) drop(ctx context.Context, c *chain, v any) {
	ev := a.event(ctx, EventDropped)
	ev.Value = v
	if c != nil {
		ev.Rail = c.rail
	}
	a.emit(ev)
}

func (a *activation) sleepUntil(due time.Time) bool {
	d := time.Until(due)
	if d <= 0 {
		return a.active()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return a.active()
	case <-a.done:
		return false
	}
}

func (a *activation) active() bool { return a.state.Load() == stateActive }

func (a *activation) setErr(err error) {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	a.err = err
}

func (a *activation) Err() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.err
}

func (a *activation) event(ctx context.Context, t EventType) Event {
	return Event{Type: t, Stage: -1, Rail: -1, Thread: scheduler.CurrentThread(ctx)}
}

func (a *activation) emit(ev Event) {
	ev.ActivationID = a.id
	ev.Pipeline = a.pipeline
	ev.Time = a.e.now()
	if ev.Type.IsTerminal() {
		ev.Elapsed = ev.Time.Sub(a.started)
	}
	// Hook panics are logged; delivery continues.
	if err := guard(func() { a.e.hook.OnEvent(ev) }); err != nil {
		a.e.log.Error("hook panicked", logger.Fields(
			logger.FieldActivationID, a.id,
			logger.FieldEvent, ev.Type.String(),
			logger.FieldThreadID, ev.Thread.Name,
			logger.FieldError, err.Error(),
		))
	}
}

// callStep runs a stage or filter. keep is false when a filter rejects v.
func callStep(ctx context.Context, st pipeline.Step, v any) (out any, keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, keep, err = nil, false, fmt.Errorf("panic: %v", r)
		}
	}()
	switch st.Kind {
	case pipeline.StepStage:
		out, err = st.Stage(ctx, v)
		return out, err == nil, err
	case pipeline.StepFilter:
		keep, err = st.Filter(ctx, v)
		return v, keep, err
	default:
		return v, true, nil
	}
}

// guard runs fn and turns a panic into an error.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
