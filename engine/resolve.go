package engine

import (
	"fmt"
	"time"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/pipeline"
	"github.com/kbukum/fluxkit/scheduler"
)

// Segment is a contiguous run of steps executed by one worker.
type Segment struct {
	// Scheduler runs the segment. It is nil for the leading segment of a
	// rail, which runs on the thread that dispatched the value.
	Scheduler scheduler.Scheduler
	// Delay is how long each value waits before the segment runs it.
	Delay time.Duration
	// Boundary is the step index of the directive that opened the segment,
	// or -1 for the leading segment.
	Boundary int
	// Steps lists the stage and filter step indices of the segment.
	Steps []int
}

// Assignment maps the steps of one activation to schedulers. It is
// computed fresh for every activation.
type Assignment struct {
	source   scheduler.Scheduler
	segments []Segment
	stages   map[int]scheduler.Scheduler
}

// Source returns the scheduler the source produces on.
func (a *Assignment) Source() scheduler.Scheduler { return a.source }

// Segments returns a copy of the segments in order.
func (a *Assignment) Segments() []Segment {
	out := make([]Segment, len(a.segments))
	for i, s := range a.segments {
		s.Steps = append([]int(nil), s.Steps...)
		out[i] = s
	}
	return out
}

// StageScheduler returns the scheduler executing step i, which must be a
// stage or filter. A nil scheduler with ok set means the dispatching thread.
func (a *Assignment) StageScheduler(i int) (s scheduler.Scheduler, ok bool) {
	s, ok = a.stages[i]
	return s, ok
}

// Resolve computes the assignment for p.
func (e *Engine) Resolve(p *pipeline.Pipeline) (*Assignment, error) {
	if p == nil {
		return nil, errors.InvalidPipeline("pipeline is nil")
	}
	return resolve(p.Steps(), e.delayScheduler)
}

// resolve runs both passes over a sequential step list.
func resolve(steps []pipeline.Step, delayDefault func() scheduler.Scheduler) (*Assignment, error) {
	// Pass 1: the first SubscribeOn in definition order places the source.
	source := scheduler.Immediate()
	for i, st := range steps {
		if st.Kind != pipeline.StepSubscribeOn {
			continue
		}
		if st.Scheduler == nil {
			return nil, errors.InvalidPipeline(fmt.Sprintf("step %d: subscribeOn without scheduler", i))
		}
		source = st.Scheduler
		break
	}

	// Pass 2: cut segments at PublishOn and Delay boundaries.
	return segment(steps, Segment{Scheduler: source, Boundary: -1}, delayDefault)
}

func segment(steps []pipeline.Step, lead Segment, delayDefault func() scheduler.Scheduler) (*Assignment, error) {
	a := &Assignment{
		source:   lead.Scheduler,
		segments: []Segment{lead},
		stages:   make(map[int]scheduler.Scheduler),
	}
	current := &a.segments[0]
	for i, st := range steps {
		switch st.Kind {
		case pipeline.StepSubscribeOn:
			if st.Scheduler == nil {
				return nil, errors.InvalidPipeline(fmt.Sprintf("step %d: subscribeOn without scheduler", i))
			}
		case pipeline.StepPublishOn:
			if st.Scheduler == nil {
				return nil, errors.InvalidPipeline(fmt.Sprintf("step %d: publishOn without scheduler", i))
			}
			if scheduler.IsImmediate(st.Scheduler) {
				continue
			}
			a.segments = append(a.segments, Segment{Scheduler: st.Scheduler, Boundary: i})
			current = &a.segments[len(a.segments)-1]
		case pipeline.StepDelay:
			if st.Delay < 0 {
				return nil, errors.InvalidPipeline(fmt.Sprintf("step %d: negative delay", i))
			}
			s := st.Scheduler
			if s == nil {
				s = delayDefault()
			}
			a.segments = append(a.segments, Segment{Scheduler: s, Delay: st.Delay, Boundary: i})
			current = &a.segments[len(a.segments)-1]
		case pipeline.StepStage, pipeline.StepFilter:
			if (st.Kind == pipeline.StepStage && st.Stage == nil) || (st.Kind == pipeline.StepFilter && st.Filter == nil) {
				return nil, errors.InvalidPipeline(fmt.Sprintf("step %d: %s without function", i, st.Kind))
			}
			current.Steps = append(current.Steps, i)
			a.stages[i] = current.Scheduler
		}
	}
	return a, nil
}

// resolveRail cuts the per-rail steps of a parallel pipeline. The leading
// segment runs on the dispatching thread.
func resolveRail(steps []pipeline.Step) (*Assignment, error) {
	for i, st := range steps {
		// runOn is the only directive a rail carries.
		if st.IsDirective() && st.Kind != pipeline.StepPublishOn {
			return nil, errors.InvalidPipeline(fmt.Sprintf("rail step %d: %s is not allowed on rails", i, st.Kind))
		}
	}
	return segment(steps, Segment{Boundary: -1}, nil)
}
