package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kbukum/fluxkit/engine"
	"github.com/kbukum/fluxkit/logger"
	"github.com/kbukum/fluxkit/pipeline"
	"github.com/kbukum/fluxkit/scheduler"
)

// demo carries what scenario builders need.
type demo struct {
	log   *logger.Logger
	reg   *scheduler.Registry
	pool  scheduler.Scheduler
	delay time.Duration
	// seen, when set, is told which thread ran each stage.
	seen func(stage, thread string)
}

// flow is either a sequential or a parallel pipeline.
type flow struct {
	seq *pipeline.Pipeline
	par *pipeline.ParallelPipeline
}

func (f flow) String() string {
	if f.par != nil {
		return f.par.String()
	}
	return f.seq.String()
}

type scenario struct {
	name  string
	desc  string
	build func(d *demo) flow
}

// stage logs the value it sees and the thread it runs on, appending suffix
// to the input first.
func (d *demo) stage(name, suffix string) pipeline.StageFunc {
	return func(ctx context.Context, v any) (any, error) {
		in := fmt.Sprint(v) + suffix
		thread := scheduler.ThreadName(ctx)
		d.log.Info("inside operator", logger.Fields(
			logger.FieldStage, name,
			logger.FieldValue, in,
			logger.FieldWorker, thread,
		))
		if d.seen != nil {
			d.seen(name, thread)
		}
		return name + " : " + in, nil
	}
}

func (d *demo) mapped(p *pipeline.Pipeline, name, suffix string) *pipeline.Pipeline {
	return p.MapNamed(name, d.stage(name, suffix))
}

var parse = pipeline.Transform(func(_ context.Context, s string) (int, error) {
	return strconv.Atoi(s)
})

var scenarios = []scenario{
	{"default", "no scheduler: everything runs on the subscribing thread", func(d *demo) flow {
		return flow{seq: d.mapped(pipeline.Just("1").MapNamed("parse", parse), "map", "")}
	}},
	{"delay", "delayElements hops to the parallel scheduler", func(d *demo) flow {
		return flow{seq: d.mapped(pipeline.Just("1").DelayElements(d.delay, nil), "map", "")}
	}},
	{"immediate", "publishOn(immediate) stays on the calling thread", func(d *demo) flow {
		return flow{seq: d.mapped(pipeline.Just("1").PublishOn(d.reg.Immediate()), "map", "")}
	}},
	{"immediate-after-delay", "publishOn(immediate) after a delay keeps the delay's thread", func(d *demo) flow {
		p := pipeline.Just("1").
			DelayElements(d.delay, nil).
			PublishOn(d.reg.Immediate()).
			DelayElements(d.delay, nil)
		return flow{seq: d.mapped(p, "map", "")}
	}},
	{"single", "publishOn(single)", func(d *demo) flow {
		return flow{seq: d.mapped(pipeline.Just("1").PublishOn(d.reg.Single()), "map", "")}
	}},
	{"bounded-elastic", "publishOn(boundedElastic)", func(d *demo) flow {
		return flow{seq: d.mapped(pipeline.Just("1").PublishOn(d.reg.BoundedElastic()), "map", "")}
	}},
	{"executor", "publishOn an external fixed pool, values stay in order", func(d *demo) flow {
		return flow{seq: d.mapped(pipeline.Just("1", "2", "3").PublishOn(d.pool), "map", "")}
	}},
	{"subscribe-on", "subscribeOn(single) moves the source and every stage", func(d *demo) flow {
		p := pipeline.Just("1").SubscribeOn(d.reg.Single())
		return flow{seq: d.mapped(d.mapped(p, "map 2", " 2"), "map 3", " 3")}
	}},
	{"subscribe-then-publish", "subscribeOn(single) then publishOn(boundedElastic)", func(d *demo) flow {
		p := d.mapped(pipeline.Just("1").SubscribeOn(d.reg.Single()), "map 2", " 2").
			PublishOn(d.reg.BoundedElastic())
		return flow{seq: d.mapped(p, "map 3", " 3")}
	}},
	{"publish-on", "publishOn(boundedElastic) only moves what follows it", func(d *demo) flow {
		p := d.mapped(pipeline.Just("1"), "map 2", " 2").PublishOn(d.reg.BoundedElastic())
		return flow{seq: d.mapped(p, "map 3", " 3")}
	}},
	{"subscribe-precedence", "the subscribeOn nearest the source wins", func(d *demo) flow {
		p := d.mapped(pipeline.Just("1"), "map 2", " 2").
			SubscribeOn(d.reg.BoundedElastic()).
			SubscribeOn(d.reg.Single())
		return flow{seq: d.mapped(p, "map 3", " 3")}
	}},
	{"subscribe-precedence-parallel", "three subscribeOns, parallel is nearest the source", func(d *demo) flow {
		p := d.mapped(pipeline.Just("1").SubscribeOn(d.reg.Parallel()), "map 2", " 2").
			SubscribeOn(d.reg.BoundedElastic()).
			SubscribeOn(d.reg.Single())
		return flow{seq: d.mapped(p, "map 3", " 3")}
	}},
	{"mixed-single", "subscribeOn(parallel) with publishOn(single) in between", func(d *demo) flow {
		p := d.mapped(pipeline.Just("1").SubscribeOn(d.reg.Parallel()), "map 2", " 2").
			PublishOn(d.reg.Single()).
			SubscribeOn(d.reg.BoundedElastic()).
			SubscribeOn(d.reg.Single())
		return flow{seq: d.mapped(p, "map 3", " 3")}
	}},
	{"mixed-parallel", "publishOn(parallel) picks another parallel worker", func(d *demo) flow {
		p := d.mapped(pipeline.Just("1").SubscribeOn(d.reg.Parallel()), "map 2", " 2").
			PublishOn(d.reg.Parallel()).
			SubscribeOn(d.reg.BoundedElastic()).
			SubscribeOn(d.reg.Single())
		return flow{seq: d.mapped(p, "map 3", " 3")}
	}},
	{"mixed-bounded-elastic", "subscribeOn(parallel) with publishOn(boundedElastic)", func(d *demo) flow {
		p := d.mapped(pipeline.Just("1").SubscribeOn(d.reg.Parallel()), "map 2", " 2").
			PublishOn(d.reg.BoundedElastic()).
			SubscribeOn(d.reg.BoundedElastic()).
			SubscribeOn(d.reg.Single())
		return flow{seq: d.mapped(p, "map 3", " 3")}
	}},
	{"run-on", "range(1,10) split into rails, each rail on its own parallel worker", func(d *demo) flow {
		pp := pipeline.Range(1, 10).Parallel(0).RunOn(d.reg.Parallel())
		return flow{par: pp.MapNamed("map 2", d.stage("map 2", ""))}
	}},
}

// selectScenarios returns the named scenarios in the given order, or all of
// them when names is empty.
func selectScenarios(names []string) ([]scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}
	byName := make(map[string]scenario, len(scenarios))
	for _, s := range scenarios {
		byName[s.name] = s
	}
	out := make([]scenario, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

// run collects f and logs the values on the calling thread.
func (f flow) run(ctx context.Context, eng *engine.Engine) ([]any, error) {
	if f.par != nil {
		return eng.CollectParallel(ctx, f.par)
	}
	return eng.Collect(ctx, f.seq)
}
