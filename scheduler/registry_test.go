package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/kbukum/fluxkit/component"
	"github.com/kbukum/fluxkit/errors"
)

func testConfig() Config {
	return Config{
		Parallel:       ParallelConfig{Workers: 2},
		BoundedElastic: BoundedElasticConfig{MaxWorkers: 4, IdleTTL: time.Minute},
	}
}

func TestConfigDefaults(t *testing.T) {
	prev := HardwareParallelism
	HardwareParallelism = func() int { return 2 }
	defer func() { HardwareParallelism = prev }()

	var cfg Config
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "single", cfg.Single.Name)
	assert.Equal(t, 2, cfg.Parallel.Workers)
	assert.Equal(t, 20, cfg.BoundedElastic.MaxWorkers)
	assert.Equal(t, DefaultQueueCapPerWorker, cfg.BoundedElastic.QueueCapPerWorker)
	assert.Equal(t, DefaultIdleTTL, cfg.BoundedElastic.IdleTTL)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.Parallel.Workers = -1
	cfg.ApplyDefaults()
	err := cfg.Validate()
	assert.IsError(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "parallel.workers")
}

func TestRegistrySharedInstances(t *testing.T) {
	r := NewRegistry(testConfig())
	defer r.Dispose()

	assert.True(t, r.Single() == r.Single())
	assert.True(t, r.Parallel() == r.Parallel())
	assert.True(t, r.BoundedElastic() == r.BoundedElastic())
	assert.True(t, IsImmediate(r.Immediate()))

	for _, name := range []string{"immediate", "single", "parallel", "boundedElastic"} {
		s, err := r.Lookup(name)
		assert.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := r.Lookup("nope")
	assert.IsError(t, err, errors.ErrInvalidConfig)
}

func TestRegistryRecreatesAfterDispose(t *testing.T) {
	r := NewRegistry(testConfig())
	first := r.Single()
	assert.NoError(t, r.Dispose())
	assert.True(t, first.IsDisposed())

	second := r.Single()
	defer r.Dispose()
	assert.False(t, second.IsDisposed())
	assert.True(t, first != second)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(testConfig())
	pool := FromExecutor("pool", GoExecutor)

	assert.NoError(t, r.Register("pool", pool))
	assert.IsError(t, r.Register("pool", pool), errors.ErrInvalidConfig)
	assert.IsError(t, r.Register("single", pool), errors.ErrInvalidConfig)

	s, err := r.Lookup("pool")
	assert.NoError(t, err)
	assert.True(t, s == Scheduler(pool))

	assert.NoError(t, r.Dispose())
	assert.True(t, pool.IsDisposed())
	_, err = r.Lookup("pool")
	assert.Error(t, err)
}

func TestRegistryComponent(t *testing.T) {
	r := NewRegistry(testConfig())
	ctx := context.Background()

	assert.Equal(t, "schedulers", r.Name())
	assert.NoError(t, r.Start(ctx))
	r.Parallel()
	assert.Equal(t, component.StatusHealthy, r.Health(ctx).Status)
	assert.Contains(t, r.Describe().Details, "parallel=2")

	_ = r.Parallel().Dispose()
	assert.Equal(t, component.StatusDegraded, r.Health(ctx).Status)
	assert.NoError(t, r.Stop(ctx))

	bad := NewRegistry(Config{Parallel: ParallelConfig{Workers: -3}})
	assert.Error(t, bad.Start(ctx))
}
