package pipeline

import (
	"context"
	"sort"
	"sync"
)

// StageRegistry maps names used in pipeline definitions to functions. Safe
// for concurrent use.
type StageRegistry struct {
	mu      sync.RWMutex
	stages  map[string]StageFunc
	filters map[string]Predicate
	taps    map[string]func(ctx context.Context, v any)
}

// NewStageRegistry returns an empty registry.
func NewStageRegistry() *StageRegistry {
	return &StageRegistry{
		stages:  make(map[string]StageFunc),
		filters: make(map[string]Predicate),
		taps:    make(map[string]func(ctx context.Context, v any)),
	}
}

// RegisterStage adds a stage under name, replacing any previous one.
func (r *StageRegistry) RegisterStage(name string, fn StageFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[name] = fn
}

// RegisterFilter adds a predicate under name, replacing any previous one.
func (r *StageRegistry) RegisterFilter(name string, pred Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[name] = pred
}

// RegisterTap adds an observer under name, replacing any previous one.
func (r *StageRegistry) RegisterTap(name string, fn func(ctx context.Context, v any)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taps[name] = fn
}

// Stage returns the stage registered under name.
func (r *StageRegistry) Stage(name string) (StageFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.stages[name]
	return fn, ok
}

// Filter returns the predicate registered under name.
func (r *StageRegistry) Filter(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.filters[name]
	return fn, ok
}

// Tap returns the observer registered under name.
func (r *StageRegistry) Tap(name string) (func(ctx context.Context, v any), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.taps[name]
	return fn, ok
}

// Names returns every registered name, sorted.
func (r *StageRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stages)+len(r.filters)+len(r.taps))
	for n := range r.stages {
		names = append(names, n)
	}
	for n := range r.filters {
		names = append(names, n)
	}
	for n := range r.taps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
