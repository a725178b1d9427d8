// Package config loads the host configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// Defaults for optional settings.
const (
	DefaultBanner         = "ESMTP mailhook"
	DefaultMaxMessageSize = 10 * 1024 * 1024
	DefaultLogLevel       = "info"
)

// Validation errors.
var (
	ErrMissingModuleName = errors.New("config: module entry requires a name")
	ErrBadLogLevel       = errors.New("config: unknown log level")
	ErrBadMessageSize    = errors.New("config: max_message_size must not be negative")
)

// Config is the host configuration.
type Config struct {
	// Banner is the greeting text surfaced at connect time.
	Banner string `toml:"banner"`

	// MaxMessageSize caps the DATA payload in bytes. Zero disables the cap.
	MaxMessageSize int64 `toml:"max_message_size"`

	Log     Log     `toml:"log"`
	Plugins Plugins `toml:"plugins"`
}

// Log configures host diagnostics.
type Log struct {
	Level string `toml:"level"`
}

// Plugins configures module discovery and registration.
type Plugins struct {
	// Paths are the plugin search paths, checked in order. Empty means the
	// loader's defaults.
	Paths []string `toml:"paths"`

	// Modules are the modules to register, in registration order.
	Modules []Module `toml:"modules"`
}

// Module is one registration entry.
type Module struct {
	Name string   `toml:"name"`
	Args []string `toml:"args"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Banner:         DefaultBanner,
		MaxMessageSize: DefaultMaxMessageSize,
		Log:            Log{Level: DefaultLogLevel},
	}
}

// Load reads and validates a TOML configuration file. Settings absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates TOML configuration bytes.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrBadLogLevel, c.Log.Level)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("%w: %d", ErrBadMessageSize, c.MaxMessageSize)
	}
	for i, m := range c.Plugins.Modules {
		if m.Name == "" {
			return fmt.Errorf("%w: entry %d", ErrMissingModuleName, i)
		}
	}
	return nil
}

// LogLevel returns the parsed logrus level.
func (c *Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
