package pipeline

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/scheduler"
	"github.com/kbukum/fluxkit/validation"
)

// Definition is a pipeline declared in YAML:
//
//	name: ingest
//	source:
//	  range: {start: 1, count: 10}
//	steps:
//	  - subscribeOn: single
//	  - map: double
//	  - publishOn: boundedElastic
//	  - filter: even
//	  - delay: {duration: 10ms}
//	  - parallel: 4
//	  - runOn: parallel
//	  - tap: log
type Definition struct {
	Name   string    `yaml:"name"`
	Source SourceDef `yaml:"source"`
	Steps  []StepDef `yaml:"steps"`
}

// SourceDef selects the values a defined pipeline emits. Exactly one of
// Values and Range may be set; neither means an empty source.
type SourceDef struct {
	Values []any     `yaml:"values"`
	Range  *RangeDef `yaml:"range"`
}

// RangeDef emits Count ints starting at Start.
type RangeDef struct {
	Start int `yaml:"start"`
	Count int `yaml:"count"`
}

// StepDef is one step. Exactly one field must be set.
type StepDef struct {
	Map         string    `yaml:"map,omitempty"`
	Filter      string    `yaml:"filter,omitempty"`
	Tap         string    `yaml:"tap,omitempty"`
	SubscribeOn string    `yaml:"subscribeOn,omitempty"`
	PublishOn   string    `yaml:"publishOn,omitempty"`
	Delay       *DelayDef `yaml:"delay,omitempty"`
	Parallel    int       `yaml:"parallel,omitempty"`
	RunOn       string    `yaml:"runOn,omitempty"`
}

// DelayDef configures a delay step. An empty Scheduler means the engine's
// shared Parallel scheduler.
type DelayDef struct {
	Duration  Duration `yaml:"duration"`
	Scheduler string   `yaml:"scheduler,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as "10ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (s StepDef) kind() (string, int) {
	kind, n := "", 0
	set := func(name string, ok bool) {
		if ok {
			kind = name
			n++
		}
	}
	set("map", s.Map != "")
	set("filter", s.Filter != "")
	set("tap", s.Tap != "")
	set("subscribeOn", s.SubscribeOn != "")
	set("publishOn", s.PublishOn != "")
	set("delay", s.Delay != nil)
	set("parallel", s.Parallel != 0)
	set("runOn", s.RunOn != "")
	return kind, n
}

// ParseDefinition parses and validates a YAML pipeline definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.InvalidPipeline("parse definition").WithCause(err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the shape of the definition without resolving names. All
// problems are reported in one INVALID_PIPELINE error.
func (d *Definition) Validate() error {
	v := validation.New()
	v.Check(d.Source.Values == nil || d.Source.Range == nil, "source", "values and range are mutually exclusive")
	if d.Source.Range != nil {
		v.Min("source.range.count", d.Source.Range.Count, 0)
	}
	parallel := false
	for i, s := range d.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		kind, n := s.kind()
		if n != 1 {
			v.Fail(field, "exactly one operation required, got %d", n)
			continue
		}
		switch kind {
		case "parallel":
			v.Check(!parallel, field+".parallel", "may appear once")
			v.Min(field+".parallel", s.Parallel, 1)
			parallel = true
		case "runOn":
			v.Check(parallel, field+".runOn", "requires a preceding parallel step")
		case "subscribeOn", "publishOn", "delay":
			v.Check(!parallel, field+"."+kind, "is not allowed after parallel")
		}
	}
	return v.Err(errors.ErrCodeInvalidPipeline)
}

// SchedulerLookup resolves scheduler names. *scheduler.Registry implements it.
type SchedulerLookup interface {
	Lookup(name string) (scheduler.Scheduler, error)
}

// Built is the result of Build. Parallel is set when the definition has a
// parallel step; Pipeline is then its sequential prefix.
type Built struct {
	Pipeline *Pipeline
	Parallel *ParallelPipeline
}

// Build resolves the names of def against stages and schedulers.
func Build(def *Definition, stages *StageRegistry, schedulers SchedulerLookup) (*Built, error) {
	if def == nil {
		return nil, errors.InvalidPipeline("definition is nil")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var p *Pipeline
	switch {
	case def.Source.Range != nil:
		p = Range(def.Source.Range.Start, def.Source.Range.Count)
	case def.Source.Values != nil:
		p = Just(def.Source.Values...)
	default:
		p = Empty()
	}
	if def.Name != "" {
		p = p.Named(def.Name)
	}

	lookup := func(i int, name string) (scheduler.Scheduler, error) {
		if schedulers == nil {
			return nil, errors.InvalidPipeline(fmt.Sprintf("step %d: no scheduler lookup for %q", i, name))
		}
		s, err := schedulers.Lookup(name)
		if err != nil {
			return nil, errors.InvalidPipeline(fmt.Sprintf("step %d: unknown scheduler %q", i, name)).WithCause(err)
		}
		return s, nil
	}
	missing := func(i int, kind, name string) error {
		return errors.InvalidPipeline(fmt.Sprintf("step %d: %s %q not registered", i, kind, name))
	}
	if stages == nil {
		stages = NewStageRegistry()
	}

	var pp *ParallelPipeline
	for i, s := range def.Steps {
		kind, _ := s.kind()
		switch kind {
		case "map":
			fn, ok := stages.Stage(s.Map)
			if !ok {
				return nil, missing(i, "stage", s.Map)
			}
			if pp != nil {
				pp = pp.MapNamed(s.Map, fn)
			} else {
				p = p.MapNamed(s.Map, fn)
			}
		case "filter":
			pred, ok := stages.Filter(s.Filter)
			if !ok {
				return nil, missing(i, "filter", s.Filter)
			}
			step := Step{Kind: StepFilter, Name: s.Filter, Filter: pred}
			if pp != nil {
				pp = pp.with(step)
			} else {
				p = p.with(step)
			}
		case "tap":
			fn, ok := stages.Tap(s.Tap)
			if !ok {
				return nil, missing(i, "tap", s.Tap)
			}
			step := tapStep(fn)
			step.Name = s.Tap
			if pp != nil {
				pp = pp.with(step)
			} else {
				p = p.with(step)
			}
		case "subscribeOn":
			sch, err := lookup(i, s.SubscribeOn)
			if err != nil {
				return nil, err
			}
			p = p.SubscribeOn(sch)
		case "publishOn":
			sch, err := lookup(i, s.PublishOn)
			if err != nil {
				return nil, err
			}
			p = p.PublishOn(sch)
		case "delay":
			var sch scheduler.Scheduler
			if s.Delay.Scheduler != "" {
				var err error
				if sch, err = lookup(i, s.Delay.Scheduler); err != nil {
					return nil, err
				}
			}
			p = p.DelayElements(s.Delay.Duration.Duration(), sch)
		case "parallel":
			pp = p.Parallel(s.Parallel)
		case "runOn":
			sch, err := lookup(i, s.RunOn)
			if err != nil {
				return nil, err
			}
			pp = pp.RunOn(sch)
		}
	}

	if pp != nil {
		return &Built{Pipeline: p, Parallel: pp}, nil
	}
	return &Built{Pipeline: p}, nil
}
