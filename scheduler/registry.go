package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/kbukum/fluxkit/component"
	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
)

// Registry owns the process-wide shared schedulers. Shared instances are
// created on first use; after Dispose the next lookup creates fresh ones.
//
// Registry implements component.Component so the process root can manage it
// next to other resources.
type Registry struct {
	cfg Config
	log *logger.Logger

	mu       sync.Mutex
	single   *SingleScheduler
	parallel *ParallelScheduler
	elastic  *BoundedElasticScheduler
	named    map[string]Scheduler
}

var _ component.Component = (*Registry)(nil)

// NewRegistry creates a registry. Zero config fields take their defaults.
func NewRegistry(cfg Config) *Registry {
	cfg.ApplyDefaults()
	return &Registry{
		cfg:   cfg,
		log:   logger.Get("scheduler"),
		named: make(map[string]Scheduler),
	}
}

// Config returns the effective configuration.
func (r *Registry) Config() Config { return r.cfg }

// Immediate returns the Immediate scheduler.
func (r *Registry) Immediate() Scheduler { return Immediate() }

// Single returns the shared Single scheduler.
func (r *Registry) Single() Scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.single == nil || r.single.IsDisposed() {
		r.single = NewSingle(r.cfg.Single.Name)
	}
	return r.single
}

// Parallel returns the shared Parallel scheduler.
func (r *Registry) Parallel() Scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parallel == nil || r.parallel.IsDisposed() {
		r.parallel = NewParallel(r.cfg.Parallel.Name, r.cfg.Parallel.Workers)
	}
	return r.parallel
}

// BoundedElastic returns the shared BoundedElastic scheduler.
func (r *Registry) BoundedElastic() Scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.elastic == nil || r.elastic.IsDisposed() {
		r.elastic = NewBoundedElastic(r.cfg.BoundedElastic.Name, r.cfg.BoundedElastic)
	}
	return r.elastic
}

// NewSingle creates an unshared Single scheduler. The caller disposes it.
func (r *Registry) NewSingle(name string) *SingleScheduler { return NewSingle(name) }

// NewParallel creates an unshared Parallel scheduler. The caller disposes it.
func (r *Registry) NewParallel(name string, size int) *ParallelScheduler {
	return NewParallel(name, size)
}

// NewBoundedElastic creates an unshared BoundedElastic scheduler. The caller
// disposes it.
func (r *Registry) NewBoundedElastic(name string, cfg BoundedElasticConfig) *BoundedElasticScheduler {
	return NewBoundedElastic(name, cfg)
}

// Register makes s available to Lookup under name. The registry disposes
// registered schedulers on Dispose.
func (r *Registry) Register(name string, s Scheduler) error {
	if name == "" || s == nil {
		return errors.InvalidConfig("scheduler name and instance are required")
	}
	if r.isBuiltin(name) {
		return errors.InvalidConfig(fmt.Sprintf("scheduler name %q is reserved", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.named[name]; ok {
		return errors.InvalidConfig(fmt.Sprintf("scheduler %q already registered", name))
	}
	r.named[name] = s
	r.log.Debug("scheduler registered", logger.Fields(logger.FieldScheduler, name))
	return nil
}

func (r *Registry) isBuiltin(name string) bool {
	switch name {
	case ImmediateName, r.cfg.Single.Name, r.cfg.Parallel.Name, r.cfg.BoundedElastic.Name:
		return true
	}
	return false
}

// Lookup resolves a scheduler by name: "immediate", the shared scheduler
// names, or a registered one.
func (r *Registry) Lookup(name string) (Scheduler, error) {
	switch name {
	case ImmediateName:
		return r.Immediate(), nil
	case r.cfg.Single.Name:
		return r.Single(), nil
	case r.cfg.Parallel.Name:
		return r.Parallel(), nil
	case r.cfg.BoundedElastic.Name:
		return r.BoundedElastic(), nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.named[name]; ok {
		return s, nil
	}
	return nil, errors.InvalidConfig(fmt.Sprintf("unknown scheduler %q", name))
}

// Dispose disposes every shared and registered scheduler.
func (r *Registry) Dispose() error {
	r.mu.Lock()
	owned := make([]Scheduler, 0, 3+len(r.named))
	if r.single != nil {
		owned = append(owned, r.single)
	}
	if r.parallel != nil {
		owned = append(owned, r.parallel)
	}
	if r.elastic != nil {
		owned = append(owned, r.elastic)
	}
	for _, s := range r.named {
		owned = append(owned, s)
	}
	r.single, r.parallel, r.elastic = nil, nil, nil
	r.named = make(map[string]Scheduler)
	r.mu.Unlock()

	var errs error
	for _, s := range owned {
		if err := s.Dispose(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dispose %s: %w", s.Name(), err))
		}
	}
	return errs
}

// --- component.Component ---

// Name returns the component name.
func (r *Registry) Name() string { return "schedulers" }

// Start validates the configuration.
func (r *Registry) Start(ctx context.Context) error {
	return r.cfg.Validate()
}

// Stop disposes every owned scheduler.
func (r *Registry) Stop(ctx context.Context) error {
	return r.Dispose()
}

// Health reports unhealthy once a shared scheduler was disposed behind the
// registry's back.
func (r *Registry) Health(ctx context.Context) component.Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	var disposed []string
	if r.single != nil && r.single.IsDisposed() {
		disposed = append(disposed, r.single.Name())
	}
	if r.parallel != nil && r.parallel.IsDisposed() {
		disposed = append(disposed, r.parallel.Name())
	}
	if r.elastic != nil && r.elastic.IsDisposed() {
		disposed = append(disposed, r.elastic.Name())
	}
	if len(disposed) > 0 {
		return component.Health{Name: r.Name(), Status: component.StatusDegraded, Message: fmt.Sprintf("disposed: %v", disposed)}
	}
	return component.Health{Name: r.Name(), Status: component.StatusHealthy}
}

// Describe summarizes the live schedulers.
func (r *Registry) Describe() component.Description {
	r.mu.Lock()
	defer r.mu.Unlock()
	elastic := 0
	if r.elastic != nil && !r.elastic.IsDisposed() {
		elastic = r.elastic.LiveWorkers()
	}
	names := make([]string, 0, len(r.named))
	for n := range r.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return component.Description{
		Name: "Schedulers",
		Type: "scheduler",
		Details: fmt.Sprintf("parallel=%d boundedElastic=%d/%d registered=%v",
			r.cfg.Parallel.Workers, elastic, r.cfg.BoundedElastic.MaxWorkers, names),
	}
}
