package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/fluxkit/pipeline"
)

// WaitAll waits for every subscription and returns the first error.
func WaitAll(ctx context.Context, subs ...*Subscription) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range subs {
		g.Go(func() error { return s.Wait(gctx) })
	}
	return g.Wait()
}

// Collect activates p and returns the delivered values in delivery order.
// The activation is cancelled when ctx is done first.
func (e *Engine) Collect(ctx context.Context, p *pipeline.Pipeline) ([]any, error) {
	var c collector
	return c.wait(ctx, e.Subscribe(ctx, p, c.subscriber()))
}

// CollectParallel is Collect for a parallel pipeline. Order across rails is
// unspecified.
func (e *Engine) CollectParallel(ctx context.Context, pp *pipeline.ParallelPipeline) ([]any, error) {
	var c collector
	return c.wait(ctx, e.SubscribeParallel(ctx, pp, c.subscriber()))
}

type collector struct {
	mu     sync.Mutex
	values []any
}

func (c *collector) subscriber() Subscriber {
	return Subscriber{OnNext: func(_ context.Context, v any) {
		c.mu.Lock()
		c.values = append(c.values, v)
		c.mu.Unlock()
	}}
}

func (c *collector) wait(ctx context.Context, sub *Subscription) ([]any, error) {
	err := sub.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		sub.Cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.values...), err
}
