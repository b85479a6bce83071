package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/fluxkit/scheduler"
)

// ParallelPipeline deals the values of a prefix pipeline to rails. Rail
// steps run per rail; RunOn moves the rail steps after it to a worker of
// the given scheduler, one worker claimed per rail.
type ParallelPipeline struct {
	prefix *Pipeline
	rails  int
	steps  []Step
}

func (pp *ParallelPipeline) with(step Step) *ParallelPipeline {
	steps := make([]Step, len(pp.steps), len(pp.steps)+1)
	copy(steps, pp.steps)
	return &ParallelPipeline{prefix: pp.prefix, rails: pp.rails, steps: append(steps, step)}
}

// Rails returns the rail count.
func (pp *ParallelPipeline) Rails() int { return pp.rails }

// Prefix returns the sequential pipeline feeding the rails.
func (pp *ParallelPipeline) Prefix() *Pipeline { return pp.prefix }

// Steps returns a copy of the per-rail step list. RunOn appears as a
// StepPublishOn step.
func (pp *ParallelPipeline) Steps() []Step {
	return append([]Step(nil), pp.steps...)
}

// RunOn moves the following rail steps and the subscriber to s.
func (pp *ParallelPipeline) RunOn(s scheduler.Scheduler) *ParallelPipeline {
	return pp.with(Step{Kind: StepPublishOn, Scheduler: s})
}

// Map appends a rail stage.
func (pp *ParallelPipeline) Map(fn StageFunc) *ParallelPipeline {
	return pp.with(Step{Kind: StepStage, Stage: fn})
}

// MapNamed appends a rail stage labelled name.
func (pp *ParallelPipeline) MapNamed(name string, fn StageFunc) *ParallelPipeline {
	return pp.with(Step{Kind: StepStage, Name: name, Stage: fn})
}

// Filter appends a rail filter.
func (pp *ParallelPipeline) Filter(pred Predicate) *ParallelPipeline {
	return pp.with(Step{Kind: StepFilter, Filter: pred})
}

// Tap appends a rail stage that observes values without changing them.
func (pp *ParallelPipeline) Tap(fn func(ctx context.Context, v any)) *ParallelPipeline {
	return pp.with(tapStep(fn))
}

func (pp *ParallelPipeline) String() string {
	parts := []string{pp.prefix.String(), fmt.Sprintf("parallel(%d)", pp.rails)}
	for _, s := range pp.steps {
		if s.Kind == StepPublishOn {
			parts = append(parts, fmt.Sprintf("runOn(%s)", schedulerName(s.Scheduler)))
			continue
		}
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " -> ")
}

// Partition deals values to rails round robin: value i goes to rail
// i % rails. Every rail keeps the relative order of its values.
func Partition[T any](values []T, rails int) [][]T {
	if rails <= 0 {
		return nil
	}
	out := make([][]T, rails)
	for i, v := range values {
		out[i%rails] = append(out[i%rails], v)
	}
	return out
}

// RailOf returns the rail the index-th value is dealt to.
func RailOf(index int64, rails int) int {
	return int(index % int64(rails))
}
