package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/scheduler"
)

// StageFunc transforms one value. A returned error fails the activation.
type StageFunc func(ctx context.Context, v any) (any, error)

// Predicate decides whether a value continues downstream.
type Predicate func(ctx context.Context, v any) (bool, error)

// StepKind identifies what a Step does.
type StepKind int

const (
	// StepStage applies a StageFunc.
	StepStage StepKind = iota
	// StepFilter drops values rejected by a Predicate.
	StepFilter
	// StepSubscribeOn requests the scheduler the source produces on.
	StepSubscribeOn
	// StepPublishOn moves everything downstream to a scheduler.
	StepPublishOn
	// StepDelay holds each value for a duration, then continues on a scheduler.
	StepDelay
)

func (k StepKind) String() string {
	switch k {
	case StepStage:
		return "stage"
	case StepFilter:
		return "filter"
	case StepSubscribeOn:
		return "subscribeOn"
	case StepPublishOn:
		return "publishOn"
	case StepDelay:
		return "delay"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one element of a pipeline definition.
type Step struct {
	Kind StepKind
	// Name labels stages and filters in logs and hook events.
	Name      string
	Stage     StageFunc
	Filter    Predicate
	Scheduler scheduler.Scheduler
	// Delay is set for StepDelay. A nil Scheduler on a delay step means the
	// engine's shared Parallel scheduler.
	Delay time.Duration
}

// IsDirective reports whether the step only changes where work runs.
func (s Step) IsDirective() bool {
	return s.Kind == StepSubscribeOn || s.Kind == StepPublishOn || s.Kind == StepDelay
}

func (s Step) String() string {
	switch s.Kind {
	case StepSubscribeOn, StepPublishOn:
		return fmt.Sprintf("%s(%s)", s.Kind, schedulerName(s.Scheduler))
	case StepDelay:
		return fmt.Sprintf("%s(%s, %s)", s.Kind, s.Delay, schedulerName(s.Scheduler))
	default:
		if s.Name != "" {
			return fmt.Sprintf("%s(%s)", s.Kind, s.Name)
		}
		return s.Kind.String()
	}
}

func schedulerName(s scheduler.Scheduler) string {
	if s == nil {
		return "default"
	}
	return s.Name()
}

// Transform adapts a typed function to a StageFunc. A value that is not an I
// fails the stage.
func Transform[I, O any](fn func(ctx context.Context, in I) (O, error)) StageFunc {
	return func(ctx context.Context, v any) (any, error) {
		in, ok := v.(I)
		if !ok {
			var want I
			return nil, errors.New(errors.ErrCodeStageFailure,
				fmt.Sprintf("stage expects %T, got %T", want, v))
		}
		return fn(ctx, in)
	}
}

// Func adapts an infallible typed function to a StageFunc.
func Func[I, O any](fn func(in I) O) StageFunc {
	return Transform(func(_ context.Context, in I) (O, error) {
		return fn(in), nil
	})
}

// Match adapts a typed predicate. A value that is not a T fails the filter.
func Match[T any](fn func(v T) bool) Predicate {
	return func(_ context.Context, v any) (bool, error) {
		in, ok := v.(T)
		if !ok {
			var want T
			return false, errors.New(errors.ErrCodeStageFailure,
				fmt.Sprintf("filter expects %T, got %T", want, v))
		}
		return fn(in), nil
	}
}
