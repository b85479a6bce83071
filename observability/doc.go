// Package observability provides OpenTelemetry tracing and metrics for
// pipeline activations.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("fluxkit"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("fluxkit"))
//	defer mp.Shutdown(ctx)
//	metrics, err := observability.NewMetrics(observability.Meter("fluxkit"))
//
// Wiring into the engine:
//
//	eng := engine.New(reg, engine.WithHook(observability.NewHook(metrics, observability.Tracer("fluxkit"))))
//
// Every activation becomes one span carrying its migrations as span events.
package observability
