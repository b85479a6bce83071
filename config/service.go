package config

import (
	"fmt"

	"github.com/kbukum/fluxkit/errors"
	"github.com/kbukum/fluxkit/logger"
	"github.com/kbukum/fluxkit/observability"
	"github.com/kbukum/fluxkit/scheduler"
	"github.com/kbukum/fluxkit/validation"
)

// ServiceConfig contains the configuration of a fluxkit service.
// Projects extend this by embedding it in their own config structs.
//
// Example:
//
//	type MyConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Pipelines []string   `yaml:"pipelines" mapstructure:"pipelines"`
//	}
type ServiceConfig struct {
	Name          string               `yaml:"name" mapstructure:"name"`
	Environment   string               `yaml:"environment" mapstructure:"environment"`
	Version       string               `yaml:"version" mapstructure:"version"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Schedulers    scheduler.Config     `yaml:"schedulers" mapstructure:"schedulers"`
	Observability observability.Config `yaml:"otel" mapstructure:"otel"`
}

// GetServiceConfig returns the base ServiceConfig.
// When embedded in a larger config struct, this method is promoted.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values to the configuration.
// Override this in embedding structs and call c.ServiceConfig.ApplyDefaults() first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	c.Logging.ApplyDefaults()
	c.Schedulers.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate validates the configuration fields.
// Override this in embedding structs and call c.ServiceConfig.Validate() first.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return errors.InvalidConfig("config.name is required")
	}
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return errors.InvalidConfig(fmt.Sprintf(
			"config.environment must be one of [development, staging, production] (got: %s)", c.Environment))
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.InvalidConfig("config.logging").WithCause(err)
	}
	if err := c.Schedulers.Validate(); err != nil {
		return errors.InvalidConfig("config.schedulers").WithCause(err)
	}
	if err := validation.Validate(&c.Observability); err != nil {
		return errors.InvalidConfig("config.otel").WithCause(err)
	}
	return nil
}
