package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"

	"github.com/kbukum/fluxkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig exports to a local collector without TLS at the
// default interval.
func DefaultMeterConfig(serviceName string) MeterConfig {
	c := Config{Endpoint: defaultEndpoint, Insecure: true}
	c.ApplyDefaults()
	return *c.MeterConfig(serviceName, "dev", "development")
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := serviceResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("building resource: %w", err), exporter.Shutdown(ctx))
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded for pipeline activations.
type Metrics struct {
	activations        metric.Int64Counter
	activationsActive  metric.Int64UpDownCounter
	activationDuration metric.Float64Histogram
	produced           metric.Int64Counter
	delivered          metric.Int64Counter
	migrations         metric.Int64Counter
	errorTotal         metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	activations, err := meter.Int64Counter("fluxkit.activations",
		metric.WithDescription("Total number of finished activations by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fluxkit.activations counter: %w", err)
	}

	activationsActive, err := meter.Int64UpDownCounter("fluxkit.activations.active",
		metric.WithDescription("Number of activations currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fluxkit.activations.active gauge: %w", err)
	}

	activationDuration, err := meter.Float64Histogram("fluxkit.activation.duration",
		metric.WithDescription("Duration of activations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fluxkit.activation.duration histogram: %w", err)
	}

	produced, err := meter.Int64Counter("fluxkit.values.produced",
		metric.WithDescription("Values emitted by pipeline sources"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fluxkit.values.produced counter: %w", err)
	}

	delivered, err := meter.Int64Counter("fluxkit.values.delivered",
		metric.WithDescription("Values delivered to subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fluxkit.values.delivered counter: %w", err)
	}

	migrations, err := meter.Int64Counter("fluxkit.migrations",
		metric.WithDescription("Signals handed off between execution contexts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fluxkit.migrations counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("fluxkit.errors",
		metric.WithDescription("Failed activations by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fluxkit.errors counter: %w", err)
	}

	return &Metrics{
		activations:        activations,
		activationsActive:  activationsActive,
		activationDuration: activationDuration,
		produced:           produced,
		delivered:          delivered,
		migrations:         migrations,
		errorTotal:         errorTotal,
	}, nil
}

// RecordActivationStart increments the active activation count.
func (m *Metrics) RecordActivationStart(ctx context.Context, pipeline string) {
	m.activationsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPipeline, pipeline)))
}

// RecordActivationEnd decrements active activations and records the finished one.
func (m *Metrics) RecordActivationEnd(ctx context.Context, pipeline, status string, duration time.Duration) {
	m.activationsActive.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrPipeline, pipeline)))
	m.activations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String(AttrStatus, status),
	))
	m.activationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
	))
}

// RecordProduced counts one value emitted by a source.
func (m *Metrics) RecordProduced(ctx context.Context, pipeline string) {
	m.produced.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPipeline, pipeline)))
}

// RecordDelivered counts one value handed to a subscriber.
func (m *Metrics) RecordDelivered(ctx context.Context, pipeline string) {
	m.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPipeline, pipeline)))
}

// RecordMigration counts one hand-off between execution contexts.
func (m *Metrics) RecordMigration(ctx context.Context, from, to string) {
	m.migrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrFrom, from),
		attribute.String(AttrTo, to),
	))
}

// RecordError records a failed activation by error code.
func (m *Metrics) RecordError(ctx context.Context, pipeline, code string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String(AttrErrorCode, code),
	))
}
