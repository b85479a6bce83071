package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
	"github.com/kbukum/fluxkit/pipeline"
	"github.com/kbukum/fluxkit/scheduler"
)

// Subscriber receives the signals of one activation. Nil callbacks are
// skipped. Every callback receives a context carrying the executing thread.
type Subscriber struct {
	// OnSubscribe runs on the caller of Subscribe before any value is produced.
	OnSubscribe func(ctx context.Context, sub *Subscription)
	OnNext      func(ctx context.Context, v any)
	OnComplete  func(ctx context.Context)
	OnError     func(ctx context.Context, err error)
}

// Engine activates pipelines against a scheduler registry.
type Engine struct {
	reg  *scheduler.Registry
	hook Hook
	log  *logger.Logger
	now  func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithHook adds an event hook. Several hooks are called in order.
func WithHook(h Hook) Option {
	return func(e *Engine) {
		if h == nil {
			return
		}
		if _, ok := e.hook.(nopHook); ok {
			e.hook = h
			return
		}
		e.hook = MultiHook(e.hook, h)
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine. A nil registry gets a default one.
func New(reg *scheduler.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = scheduler.NewRegistry(scheduler.Config{})
	}
	e := &Engine{
		reg:  reg,
		hook: nopHook{},
		log:  logger.Get("engine"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the scheduler registry.
func (e *Engine) Registry() *scheduler.Registry { return e.reg }

func (e *Engine) delayScheduler() scheduler.Scheduler { return e.reg.Parallel() }

// Subscribe activates p. Work on the Immediate scheduler, including an
// Immediate source, runs before Subscribe returns; everything else runs on
// scheduler workers. Cancelling ctx cancels the activation.
func (e *Engine) Subscribe(ctx context.Context, p *pipeline.Pipeline, sub Subscriber) *Subscription {
	a := e.newActivation(ctx, sub)
	if p == nil {
		a.start(ctx, nil, errors.InvalidPipeline("pipeline is nil"))
		return a.subscription
	}
	a.pipeline = p.Name()

	asg, err := e.Resolve(p)
	if err != nil {
		a.start(ctx, nil, err)
		return a.subscription
	}
	main, err := a.newChain(p.Steps(), asg, 0, -1)
	if err != nil {
		a.start(ctx, asg, err)
		return a.subscription
	}
	main.onValue = a.deliver
	main.onComplete = a.complete
	a.main = main
	a.source = p
	a.start(ctx, asg, nil)
	return a.subscription
}

// SubscribeParallel activates pp. The prefix runs like a sequential
// pipeline; its values are dealt round robin to the rails, and each rail
// claims its own worker of every RunOn scheduler. OnNext calls are
// serialized; OnComplete follows the last rail.
func (e *Engine) SubscribeParallel(ctx context.Context, pp *pipeline.ParallelPipeline, sub Subscriber) *Subscription {
	a := e.newActivation(ctx, sub)
	if pp == nil {
		a.start(ctx, nil, errors.InvalidPipeline("pipeline is nil"))
		return a.subscription
	}
	prefix := pp.Prefix()
	a.pipeline = prefix.Name()

	asg, err := e.Resolve(prefix)
	if err != nil {
		a.start(ctx, nil, err)
		return a.subscription
	}
	main, err := a.newChain(prefix.Steps(), asg, 0, -1)
	if err != nil {
		a.start(ctx, asg, err)
		return a.subscription
	}
	railAsg, err := resolveRail(pp.Steps())
	if err != nil {
		a.start(ctx, asg, err)
		return a.subscription
	}

	rails := make([]*chain, pp.Rails())
	for r := range rails {
		c, err := a.newChain(pp.Steps(), railAsg, len(prefix.Steps()), r)
		if err != nil {
			a.start(ctx, asg, err)
			return a.subscription
		}
		c.onValue = a.deliver
		c.onComplete = a.railComplete
		rails[r] = c
	}
	a.rails = rails
	a.railsLeft.Store(int32(len(rails)))

	main.onValue = a.dispatch
	main.onComplete = a.completeRails
	a.main = main
	a.source = prefix
	a.start(ctx, asg, nil)
	return a.subscription
}

func (e *Engine) newActivation(ctx context.Context, sub Subscriber) *activation {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	a := &activation{
		id:      uuid.NewString(),
		e:       e,
		sub:     sub,
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: e.now(),
	}
	a.subscription = &Subscription{a: a}
	return a
}
