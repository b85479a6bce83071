package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/fluxkit/engine"
	"github.com/kbukum/fluxkit/errors"
)

// Hook records activation events as spans and metrics. Either metrics or
// tracer may be nil.
type Hook struct {
	metrics *Metrics
	tracer  trace.Tracer
	spans   sync.Map // activation id -> trace.Span
}

// NewHook returns an engine.Hook recording into metrics and tracer.
func NewHook(metrics *Metrics, tracer trace.Tracer) *Hook {
	return &Hook{metrics: metrics, tracer: tracer}
}

var _ engine.Hook = (*Hook)(nil)

// OnEvent implements engine.Hook.
func (h *Hook) OnEvent(ev engine.Event) {
	ctx := context.Background()
	switch ev.Type {
	case engine.EventSubscribed:
		h.start(ctx, ev)
	case engine.EventValueProduced:
		if h.metrics != nil {
			h.metrics.RecordProduced(ctx, ev.Pipeline)
		}
	case engine.EventValueDelivered:
		if h.metrics != nil {
			h.metrics.RecordDelivered(ctx, ev.Pipeline)
		}
	case engine.EventMigrated:
		if h.metrics != nil {
			h.metrics.RecordMigration(ctx, ev.From, ev.To)
		}
		if span, ok := h.span(ev.ActivationID); ok {
			span.AddEvent(EventMigration, trace.WithTimestamp(ev.Time), trace.WithAttributes(
				attribute.String(AttrFrom, ev.From),
				attribute.String(AttrTo, ev.To),
				attribute.String(AttrThread, ev.Thread.Name),
				attribute.Int(AttrRail, ev.Rail),
			))
		}
	case engine.EventCompleted, engine.EventErrored, engine.EventCancelled:
		h.end(ctx, ev)
	}
}

// Active returns the number of activations with an open span.
func (h *Hook) Active() int {
	n := 0
	h.spans.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hook) start(ctx context.Context, ev engine.Event) {
	if h.metrics != nil {
		h.metrics.RecordActivationStart(ctx, ev.Pipeline)
	}
	if h.tracer == nil {
		return
	}
	_, span := h.tracer.Start(ctx, SpanActivation,
		trace.WithTimestamp(ev.Time),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrActivationID, ev.ActivationID),
			attribute.String(AttrPipeline, ev.Pipeline),
			attribute.String(AttrScheduler, ev.To),
		),
	)
	h.spans.Store(ev.ActivationID, span)
}

func (h *Hook) end(ctx context.Context, ev engine.Event) {
	status := ev.Type.String()
	if h.metrics != nil {
		h.metrics.RecordActivationEnd(ctx, ev.Pipeline, status, ev.Elapsed)
		if ev.Type == engine.EventErrored {
			h.metrics.RecordError(ctx, ev.Pipeline, string(errors.CodeOf(ev.Err)))
		}
	}
	v, ok := h.spans.LoadAndDelete(ev.ActivationID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.String(AttrStatus, status))
	switch ev.Type {
	case engine.EventErrored:
		if ev.Err != nil {
			span.RecordError(ev.Err)
			span.SetStatus(codes.Error, ev.Err.Error())
		} else {
			span.SetStatus(codes.Error, status)
		}
	case engine.EventCompleted:
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(ev.Time))
}

func (h *Hook) span(id string) (trace.Span, bool) {
	v, ok := h.spans.Load(id)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}
