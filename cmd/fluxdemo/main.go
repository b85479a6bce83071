// Command fluxdemo replays scheduling scenarios and logs the thread every
// stage runs on.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kbukum/fluxkit/bootstrap"
	"github.com/kbukum/fluxkit/config"
	"github.com/kbukum/fluxkit/engine"
	"github.com/kbukum/fluxkit/logger"
	"github.com/kbukum/fluxkit/pipeline"
	"github.com/kbukum/fluxkit/scheduler"
)

const (
	serviceName = "fluxdemo"
	poolName    = "pool"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to config.yml (searched for when empty)")
	envFile := fs.String("env-file", "", "path to a .env file (searched for when empty)")
	only := fs.StringSlice("scenario", nil, "scenarios to run, in order (default all)")
	definition := fs.String("definition", "", "run a YAML pipeline definition instead of the scenarios")
	delay := fs.Duration("delay", 200*time.Millisecond, "delay used by delayElements scenarios")
	poolSize := fs.Int("pool-size", 10, "goroutines in the external pool")
	list := fs.Bool("list", false, "list scenarios and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *poolSize < 1 {
		fmt.Fprintln(stderr, "--pool-size must be at least 1")
		return 2
	}

	if *list {
		for _, s := range scenarios {
			fmt.Fprintf(stdout, "%-30s %s\n", s.name, s.desc)
		}
		return 0
	}

	selected, err := selectScenarios(*only)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg := config.ServiceConfig{Name: serviceName}
	var loadOpts []config.LoaderOption
	if *configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		loadOpts = append(loadOpts, config.WithEnvFile(*envFile))
	}
	if err := config.LoadConfig(serviceName, &cfg, loadOpts...); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	app, err := bootstrap.NewApp(&cfg, bootstrap.WithSummaryOutput(stdout))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	pool := newFixedPool(*poolSize)
	d := &demo{log: app.Logger.WithComponent("demo"), reg: app.Schedulers, delay: *delay}

	var flows []flow
	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*config.ServiceConfig]) error {
		exec := scheduler.FromExecutor(poolName, pool.Executor())
		if err := a.Schedulers.Register(poolName, exec); err != nil {
			return err
		}
		d.pool = exec

		if *definition != "" {
			f, err := loadDefinition(*definition, d)
			if err != nil {
				return err
			}
			flows = []flow{f}
		} else {
			for _, s := range selected {
				flows = append(flows, s.build(d))
			}
		}
		for _, f := range flows {
			if f.par != nil {
				a.Summary.TrackPipeline(f.par)
			} else {
				a.Summary.TrackPipeline(f.seq)
			}
		}
		return nil
	})
	// OnStop runs before the schedulers are disposed and after every
	// activation has finished.
	app.OnStop(func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	err = app.RunTask(ctx, func(ctx context.Context) error {
		for _, f := range flows {
			if err := replay(ctx, app.Engine, d.log, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		app.Logger.Error("demo failed", logger.ErrorFields("run", err))
		return 1
	}
	return 0
}

// replay runs one flow and logs its values on the calling thread.
func replay(ctx context.Context, eng *engine.Engine, log *logger.Logger, f flow) error {
	log.Info("subscribing", logger.Fields(logger.FieldOperation, f.String()))
	start := time.Now()
	values, err := f.run(ctx, eng)
	if err != nil {
		return fmt.Errorf("%s: %w", f, err)
	}
	fields := logger.DurationFields("replay", time.Since(start))
	fields[logger.FieldWorker] = scheduler.ThreadName(ctx)
	fields["values"] = fmt.Sprint(values)
	log.Info("received", fields)
	return nil
}

// loadDefinition builds a pipeline from a YAML definition using the demo's
// stage catalogue.
func loadDefinition(path string, d *demo) (flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return flow{}, err
	}
	def, err := pipeline.ParseDefinition(data)
	if err != nil {
		return flow{}, err
	}
	built, err := pipeline.Build(def, stageCatalogue(d), d.reg)
	if err != nil {
		return flow{}, err
	}
	return flow{seq: built.Pipeline, par: built.Parallel}, nil
}

// stageCatalogue names the stages a definition may reference.
func stageCatalogue(d *demo) *pipeline.StageRegistry {
	stages := pipeline.NewStageRegistry()
	stages.RegisterStage("double", pipeline.Func(func(n int) int { return n * 2 }))
	stages.RegisterStage("square", pipeline.Func(func(n int) int { return n * n }))
	stages.RegisterStage("describe", d.stage("describe", ""))
	stages.RegisterFilter("even", pipeline.Match(func(n int) bool { return n%2 == 0 }))
	stages.RegisterFilter("odd", pipeline.Match(func(n int) bool { return n%2 != 0 }))
	stages.RegisterTap("log", func(ctx context.Context, v any) {
		d.log.Info("tap", logger.Fields(logger.FieldValue, fmt.Sprint(v), logger.FieldWorker, scheduler.ThreadName(ctx)))
	})
	return stages
}
