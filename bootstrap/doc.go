// Package bootstrap wires a fluxkit service together: configuration, the
// logger, the scheduler registry, the subscription engine and optional
// OpenTelemetry export, all under one start/stop lifecycle.
//
// # Quick Start
//
//	var cfg config.ServiceConfig
//	_ = config.LoadConfig("fluxdemo", &cfg)
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := app.Engine.Collect(ctx, pipeline.Range(1, 10).PublishOn(app.Schedulers.Parallel()))
//	    return err
//	})
//
// Components start in registration order and stop in reverse on task
// completion or SIGINT/SIGTERM.
package bootstrap
