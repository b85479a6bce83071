package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/pipeline"
	"github.com/kbukum/fluxkit/scheduler"
)

func noop(context.Context, any) {}

func TestResolveWithoutDirectives(t *testing.T) {
	e, _ := newTestEngine(t)
	asg, err := e.Resolve(pipeline.Just(1).Map(double).Tap(noop))
	assert.NoError(t, err)

	assert.True(t, scheduler.IsImmediate(asg.Source()))
	segs := asg.Segments()
	assert.Equal(t, 1, len(segs))
	assert.Equal(t, -1, segs[0].Boundary)
	assert.Equal(t, []int{0, 1}, segs[0].Steps)
}

func TestResolveSegments(t *testing.T) {
	e, reg := newTestEngine(t)
	keep := pipeline.Match(func(int) bool { return true })
	p := pipeline.Just(1).
		SubscribeOn(reg.Single()).            // 0
		Map(double).                          // 1
		PublishOn(reg.BoundedElastic()).      // 2
		Map(double).                          // 3
		Filter(keep).                         // 4
		DelayElements(time.Millisecond, nil). // 5
		Tap(noop).                            // 6
		PublishOn(scheduler.Immediate()).     // 7
		Tap(noop)                             // 8

	asg, err := e.Resolve(p)
	assert.NoError(t, err)
	assert.Equal(t, "single", asg.Source().Name())

	segs := asg.Segments()
	assert.Equal(t, 3, len(segs))
	assert.Equal(t, "single", segs[0].Scheduler.Name())
	assert.Equal(t, []int{1}, segs[0].Steps)
	assert.Equal(t, "boundedElastic", segs[1].Scheduler.Name())
	assert.Equal(t, 2, segs[1].Boundary)
	assert.Equal(t, []int{3, 4}, segs[1].Steps)
	assert.Equal(t, "parallel", segs[2].Scheduler.Name())
	assert.Equal(t, time.Millisecond, segs[2].Delay)
	assert.Equal(t, []int{6, 8}, segs[2].Steps)

	s, ok := asg.StageScheduler(4)
	assert.True(t, ok)
	assert.Equal(t, "boundedElastic", s.Name())
	_, ok = asg.StageScheduler(2)
	assert.False(t, ok)

	segs[0].Steps[0] = 99
	assert.Equal(t, []int{1}, asg.Segments()[0].Steps)
}

// Later subscribeOn directives never move the source or open a segment,
// wherever they appear relative to publishOn.
func TestResolveChainedSubscribeOn(t *testing.T) {
	e, reg := newTestEngine(t)
	a, b, c := reg.NewSingle("a"), reg.NewSingle("b"), reg.NewSingle("c")
	t.Cleanup(func() {
		_ = a.Dispose()
		_ = b.Dispose()
		_ = c.Dispose()
	})

	tests := []struct {
		name     string
		p        *pipeline.Pipeline
		source   string
		segments []string
	}{
		{
			name:     "adjacent at head",
			p:        pipeline.Just(1).SubscribeOn(a).SubscribeOn(b).SubscribeOn(c).Map(double),
			source:   "a",
			segments: []string{"a"},
		},
		{
			name:     "spread along the chain",
			p:        pipeline.Just(1).Map(double).SubscribeOn(b).Map(double).SubscribeOn(a).Map(double).SubscribeOn(c),
			source:   "b",
			segments: []string{"b"},
		},
		{
			name:     "after publishOn",
			p:        pipeline.Just(1).PublishOn(reg.Parallel()).SubscribeOn(c).Map(double).SubscribeOn(a).SubscribeOn(b),
			source:   "c",
			segments: []string{"c", "parallel"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asg, err := e.Resolve(tt.p)
			assert.NoError(t, err)
			assert.Equal(t, tt.source, asg.Source().Name())
			var names []string
			for _, s := range asg.Segments() {
				names = append(names, s.Scheduler.Name())
			}
			assert.Equal(t, tt.segments, names)
		})
	}
}

func TestResolveIsFreshPerCall(t *testing.T) {
	e, reg := newTestEngine(t)
	p := pipeline.Just(1).PublishOn(reg.Single())
	a1, err := e.Resolve(p)
	assert.NoError(t, err)
	a2, err := e.Resolve(p)
	assert.NoError(t, err)
	assert.True(t, a1 != a2)
}

func TestResolveRejectsMalformedSteps(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, p := range []*pipeline.Pipeline{
		pipeline.Just(1).SubscribeOn(nil),
		pipeline.Just(1).PublishOn(nil),
		pipeline.Just(1).Map(nil),
		pipeline.Just(1).Filter(nil),
		pipeline.Just(1).DelayElements(-time.Second, nil),
	} {
		_, err := e.Resolve(p)
		assert.IsError(t, err, errors.ErrInvalidPipeline, p.String())
	}
	_, err := e.Resolve(nil)
	assert.IsError(t, err, errors.ErrInvalidPipeline)
}

func TestResolveRail(t *testing.T) {
	_, reg := newTestEngine(t)
	pp := pipeline.Just(1).Parallel(2).Map(double).RunOn(reg.Parallel()).Tap(noop).RunOn(scheduler.Immediate()).Tap(noop)
	asg, err := resolveRail(pp.Steps())
	assert.NoError(t, err)
	segs := asg.Segments()
	assert.Equal(t, 2, len(segs))
	assert.Zero(t, segs[0].Scheduler)
	assert.Equal(t, []int{0}, segs[0].Steps)
	assert.Equal(t, []int{2, 4}, segs[1].Steps)

	for _, st := range []pipeline.Step{
		{Kind: pipeline.StepSubscribeOn, Scheduler: reg.Single()},
		{Kind: pipeline.StepDelay, Delay: time.Millisecond},
	} {
		_, err := resolveRail([]pipeline.Step{st})
		assert.IsError(t, err, errors.ErrInvalidPipeline)
	}
}
