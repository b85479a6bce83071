package logger

import "github.com/kbukum/fluxkit/validation"

// Config contains logging configuration (key "logging").
type Config struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format    string `yaml:"format" mapstructure:"format" validate:"oneof=json console pretty"`
	Output    string `yaml:"output" mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp *bool  `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`
}

// ApplyDefaults fills console output at info level with timestamps. An
// explicit timestamp: false is kept.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	if c.Timestamp == nil {
		on := true
		c.Timestamp = &on
	}
}

// Timestamps reports whether entries carry a time field. Unset means off.
func (c *Config) Timestamps() bool { return c.Timestamp != nil && *c.Timestamp }

// Validate returns an INVALID_CONFIG error naming every bad field.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
