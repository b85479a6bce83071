package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/kbukum/fluxkit/scheduler"
)

// Pipeline is an immutable, lazily evaluated chain of steps over a Source.
type Pipeline struct {
	name   string
	source Source
	steps  []Step
}

func newPipeline(name string, src Source) *Pipeline {
	return &Pipeline{name: name, source: src}
}

// with returns a copy of p with step appended. The receiver is never mutated.
func (p *Pipeline) with(step Step) *Pipeline {
	steps := make([]Step, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return &Pipeline{name: p.name, source: p.source, steps: append(steps, step)}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Named returns a copy of p called name.
func (p *Pipeline) Named(name string) *Pipeline {
	return &Pipeline{name: name, source: p.source, steps: p.steps}
}

// Open creates the source iterator for one activation.
func (p *Pipeline) Open(ctx context.Context) Iterator[any] {
	return p.source(ctx)
}

// Steps returns a copy of the step list.
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Map appends a stage.
func (p *Pipeline) Map(fn StageFunc) *Pipeline {
	return p.with(Step{Kind: StepStage, Stage: fn})
}

// MapNamed appends a stage labelled name.
func (p *Pipeline) MapNamed(name string, fn StageFunc) *Pipeline {
	return p.with(Step{Kind: StepStage, Name: name, Stage: fn})
}

// Filter appends a filter.
func (p *Pipeline) Filter(pred Predicate) *Pipeline {
	return p.with(Step{Kind: StepFilter, Filter: pred})
}

// Tap appends a stage that observes values without changing them.
func (p *Pipeline) Tap(fn func(ctx context.Context, v any)) *Pipeline {
	return p.with(tapStep(fn))
}

func tapStep(fn func(ctx context.Context, v any)) Step {
	return Step{Kind: StepStage, Name: "tap", Stage: func(ctx context.Context, v any) (any, error) {
		fn(ctx, v)
		return v, nil
	}}
}

// SubscribeOn requests that the source produce values on s. When several
// are present, the first in definition order wins.
func (p *Pipeline) SubscribeOn(s scheduler.Scheduler) *Pipeline {
	return p.with(Step{Kind: StepSubscribeOn, Scheduler: s})
}

// PublishOn moves every following step and the subscriber to a worker of s.
// PublishOn(scheduler.Immediate()) keeps the current thread.
func (p *Pipeline) PublishOn(s scheduler.Scheduler) *Pipeline {
	return p.with(Step{Kind: StepPublishOn, Scheduler: s})
}

// DelayElements holds every value for d, then continues on a worker of s.
// A nil s means the engine's shared Parallel scheduler.
func (p *Pipeline) DelayElements(d time.Duration, s scheduler.Scheduler) *Pipeline {
	return p.with(Step{Kind: StepDelay, Delay: d, Scheduler: s})
}

// AddStage is Map.
func (p *Pipeline) AddStage(fn StageFunc) *Pipeline { return p.Map(fn) }

// AddSubscribeOn is SubscribeOn.
func (p *Pipeline) AddSubscribeOn(s scheduler.Scheduler) *Pipeline { return p.SubscribeOn(s) }

// AddPublishOn is PublishOn.
func (p *Pipeline) AddPublishOn(s scheduler.Scheduler) *Pipeline { return p.PublishOn(s) }

// Parallel splits the values of p into rails dealt round robin. A rail
// count of zero or less uses scheduler.HardwareParallelism.
func (p *Pipeline) Parallel(rails int) *ParallelPipeline {
	if rails <= 0 {
		rails = scheduler.HardwareParallelism()
	}
	if rails <= 0 {
		rails = 1
	}
	return &ParallelPipeline{prefix: p, rails: rails}
}

func (p *Pipeline) String() string {
	parts := make([]string, 0, len(p.steps)+1)
	parts = append(parts, p.name)
	for _, s := range p.steps {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " -> ")
}
