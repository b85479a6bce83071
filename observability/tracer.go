package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/kbukum/fluxkit/logger"
	"github.com/kbukum/fluxkit/scheduler"
)

const (
	defaultTracerName = "github.com/kbukum/fluxkit/observability"
	defaultEndpoint   = "localhost:4318"
)

// AttrParallelism is the resource attribute carrying the CPU count the
// parallel and bounded-elastic schedulers are sized from.
const AttrParallelism = "fluxkit.hardware_parallelism"

// TracerConfig configures the OpenTelemetry tracer. It is normally derived
// from Config.TracerConfig.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP host:port.
	Endpoint string
	Insecure bool
	// SampleRate is the fraction of root activations traced. Child spans
	// follow their parent's decision.
	SampleRate float64
}

// DefaultTracerConfig exports to a local collector without TLS, tracing
// every activation.
func DefaultTracerConfig(serviceName string) TracerConfig {
	c := Config{Endpoint: defaultEndpoint, Insecure: true}
	c.ApplyDefaults()
	return *c.TracerConfig(serviceName, "dev", "development")
}

// Sampler returns a parent-based sampler whose root decision is taken from
// SampleRate. Rates outside (0, 1) collapse to always or never.
func (c *TracerConfig) Sampler() sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case c.SampleRate >= 1:
		root = sdktrace.AlwaysSample()
	case c.SampleRate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(c.SampleRate)
	}
	return sdktrace.ParentBased(root)
}

// InitTracer installs a batching OTLP tracer provider as the global one,
// together with W3C trace-context and baggage propagation. The caller owns
// the returned provider and must shut it down.
func InitTracer(ctx context.Context, config *TracerConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := traceExporter(ctx, config)
	if err != nil {
		return nil, err
	}
	res, err := serviceResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("building resource: %w", err), exporter.Shutdown(ctx))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(config.Sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracer initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"sampler", config.Sampler().Description(),
	))
	return tp, nil
}

func traceExporter(ctx context.Context, config *TracerConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return exporter, nil
}

// serviceResource describes the process to the collector. Attributes from
// OTEL_RESOURCE_ATTRIBUTES are read first so that the configured service
// identity wins. The detectors carry no schema URL, so the result never
// conflicts with the SDK's own schema version.
func serviceResource(ctx context.Context, service, version, environment string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcessRuntimeName(),
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
			semconv.DeploymentEnvironment(environment),
			attribute.Int(AttrParallelism, scheduler.HardwareParallelism()),
		),
	)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span using the default tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(defaultTracerName).Start(ctx, name, opts...)
}

// SetSpanError records an error on the current span in context.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span != nil && span.IsRecording() {
		span.RecordError(err)
	}
}

// Span names.
const (
	SpanActivation = "fluxkit.activation"
	EventMigration = "fluxkit.migration"
)

// Attribute keys.
const (
	AttrActivationID = "fluxkit.activation.id"
	AttrPipeline     = "fluxkit.pipeline"
	AttrScheduler    = "fluxkit.scheduler"
	AttrFrom         = "fluxkit.from"
	AttrTo           = "fluxkit.to"
	AttrThread       = "fluxkit.thread"
	AttrRail         = "fluxkit.rail"
	AttrStatus       = "status"
	AttrErrorCode    = "error.code"
)
