package observability

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/kbukum/fluxkit/component"
	"github.com/kbukum/fluxkit/engine"
	"github.com/kbukum/fluxkit/logger"
)

// Telemetry owns the tracer and meter providers of a service. It is a
// component.Component: Start installs the global providers, Stop flushes
// and shuts them down.
type Telemetry struct {
	cfg         Config
	service     string
	version     string
	environment string

	mu      sync.Mutex
	started bool
	stop    []func(context.Context) error
}

// NewTelemetry creates the telemetry component.
func NewTelemetry(cfg Config, service, version, environment string) *Telemetry {
	cfg.ApplyDefaults()
	return &Telemetry{cfg: cfg, service: service, version: version, environment: environment}
}

// Hook returns an engine hook bound to the global providers. It may be
// created before Start; instruments forward once the providers are set.
func (t *Telemetry) Hook() (engine.Hook, error) {
	metrics, err := NewMetrics(Meter(defaultTracerName))
	if err != nil {
		return nil, err
	}
	return NewHook(metrics, Tracer(defaultTracerName)), nil
}

// Name returns the component name.
func (t *Telemetry) Name() string { return "telemetry" }

// Start installs the tracer and meter providers.
func (t *Telemetry) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	tp, err := InitTracer(ctx, t.cfg.TracerConfig(t.service, t.version, t.environment))
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, t.cfg.MeterConfig(t.service, t.version, t.environment))
	if err != nil {
		return multierr.Append(err, tp.Shutdown(ctx))
	}
	t.stop = []func(context.Context) error{mp.Shutdown, tp.Shutdown}
	t.started = true
	return nil
}

// Stop flushes and shuts down the providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs error
	for _, fn := range t.stop {
		errs = multierr.Append(errs, fn(ctx))
	}
	t.stop = nil
	t.started = false
	if errs != nil {
		logger.Warn("telemetry shutdown incomplete", logger.ErrorFields("telemetry_stop", errs))
	}
	return errs
}

// Health reports whether the providers are installed.
func (t *Telemetry) Health(ctx context.Context) component.Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return component.Health{Name: t.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: t.Name(), Status: component.StatusHealthy}
}

// Describe reports the export endpoint.
func (t *Telemetry) Describe() component.Description {
	return component.Description{
		Name:    "Telemetry",
		Type:    "otlp",
		Details: t.cfg.Endpoint,
	}
}
