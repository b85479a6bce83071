package scheduler

import (
	"time"

	"github.com/kbukum/fluxkit/validation"
)

const (
	// DefaultQueueCapPerWorker bounds each BoundedElastic worker queue.
	DefaultQueueCapPerWorker = 100000
	// DefaultIdleTTL is how long an unclaimed BoundedElastic worker survives.
	DefaultIdleTTL = 60 * time.Second
	// elasticWorkersPerCPU scales the BoundedElastic worker cap.
	elasticWorkersPerCPU = 10
)

// Config configures the shared schedulers of a Registry.
type Config struct {
	Single         SingleConfig         `mapstructure:"single" yaml:"single"`
	Parallel       ParallelConfig       `mapstructure:"parallel" yaml:"parallel"`
	BoundedElastic BoundedElasticConfig `mapstructure:"bounded_elastic" yaml:"bounded_elastic"`
}

// SingleConfig configures the shared Single scheduler.
type SingleConfig struct {
	Name string `mapstructure:"name" yaml:"name" validate:"required"`
}

// ParallelConfig configures the shared Parallel scheduler.
type ParallelConfig struct {
	Name    string `mapstructure:"name" yaml:"name" validate:"required"`
	Workers int    `mapstructure:"workers" yaml:"workers" validate:"gte=1"`
}

// BoundedElasticConfig configures a BoundedElastic scheduler.
type BoundedElasticConfig struct {
	Name              string        `mapstructure:"name" yaml:"name" validate:"required"`
	MaxWorkers        int           `mapstructure:"max_workers" yaml:"max_workers" validate:"gte=1"`
	QueueCapPerWorker int           `mapstructure:"queue_cap_per_worker" yaml:"queue_cap_per_worker" validate:"gte=1"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl" validate:"gt=0"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Single.Name == "" {
		c.Single.Name = SingleName
	}
	c.Parallel.ApplyDefaults()
	c.BoundedElastic.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// ApplyDefaults fills zero fields.
func (c *ParallelConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ParallelName
	}
	if c.Workers == 0 {
		c.Workers = HardwareParallelism()
	}
}

// ApplyDefaults fills zero fields.
func (c *BoundedElasticConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = BoundedElasticName
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = elasticWorkersPerCPU * HardwareParallelism()
	}
	if c.QueueCapPerWorker == 0 {
		c.QueueCapPerWorker = DefaultQueueCapPerWorker
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = DefaultIdleTTL
	}
}

// runnable is cfg with defaults applied and non-positive limits replaced, so
// a scheduler built outside the validated config path always has at least
// one worker.
func (c BoundedElasticConfig) runnable() BoundedElasticConfig {
	c.ApplyDefaults()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = max(elasticWorkersPerCPU*HardwareParallelism(), 1)
	}
	if c.QueueCapPerWorker <= 0 {
		c.QueueCapPerWorker = DefaultQueueCapPerWorker
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	return c
}
