// Package config provides configuration management for relay benchmarks
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Environment represents the environment a benchmark runs in
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvCI          Environment = "ci"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvCI, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
		return true
	default:
		return false
	}
}

// Config represents the complete benchmark configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log"`

	// Concurrency engine configuration
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Benchmark matrix
	Bench BenchConfig `yaml:"bench" json:"bench"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name"`

	// Environment the benchmarks run in
	Environment Environment `yaml:"environment" json:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level"`

	// Log format (json, text)
	Format string `yaml:"format" json:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Fields to include in log output
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// EngineConfig contains settings shared by the concurrency engines
type EngineConfig struct {
	// Mailbox capacity for engines with bounded mailboxes
	MailboxSize int `yaml:"mailbox_size" json:"mailbox_size"`

	// Worker goroutines of the pool engine, 0 means GOMAXPROCS
	Workers int `yaml:"workers" json:"workers"`

	// Time allowed for an engine to shut down
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// UnmarshalJSON accepts shutdown_timeout either as a duration string such as
// "10s", matching the YAML form, or as integer nanoseconds.
func (c *EngineConfig) UnmarshalJSON(data []byte) error {
	type plain EngineConfig
	aux := struct {
		*plain
		ShutdownTimeout json.RawMessage `json:"shutdown_timeout"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ShutdownTimeout) == 0 || string(aux.ShutdownTimeout) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(aux.ShutdownTimeout, &text); err == nil {
		d, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("invalid shutdown_timeout %q: %w", text, err)
		}
		c.ShutdownTimeout = d
		return nil
	}
	var nanos int64
	if err := json.Unmarshal(aux.ShutdownTimeout, &nanos); err != nil {
		return fmt.Errorf("invalid shutdown_timeout %s: %w", aux.ShutdownTimeout, err)
	}
	c.ShutdownTimeout = time.Duration(nanos)
	return nil
}

// BenchConfig enumerates the benchmark matrix
type BenchConfig struct {
	// Engines to benchmark, by registry name
	Engines []string `yaml:"engines" json:"engines"`

	// Relay chain lengths
	ChainLengths []int `yaml:"chain_lengths" json:"chain_lengths"`

	// Message sizes in bytes
	MessageSizes []int `yaml:"message_sizes" json:"message_sizes"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "relaybench",
			Environment: EnvDevelopment,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "text",
			Output: "stderr",
		},
		Engine: EngineConfig{
			MailboxSize:     1000,
			Workers:         0,
			ShutdownTimeout: 10 * time.Second,
		},
		Bench: BenchConfig{
			Engines:      []string{"mailbox", "pool", "phony"},
			ChainLengths: []int{1, 2, 4, 8},
			MessageSizes: []int{0, 1, 4, 16, 64, 256, 1024, 4096},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	// Validate log config
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	// Validate engine config
	if c.Engine.MailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}
	if c.Engine.Workers < 0 {
		return ErrInvalidWorkers
	}

	// Validate benchmark matrix
	if len(c.Bench.Engines) == 0 {
		return ErrInvalidEngines
	}
	for _, name := range c.Bench.Engines {
		if name == "" {
			return ErrInvalidEngines
		}
	}
	if len(c.Bench.ChainLengths) == 0 {
		return ErrInvalidChainLength
	}
	for _, n := range c.Bench.ChainLengths {
		if n < 1 {
			return ErrInvalidChainLength
		}
	}
	if len(c.Bench.MessageSizes) == 0 {
		return ErrInvalidMessageSize
	}
	for _, size := range c.Bench.MessageSizes {
		if size < 0 {
			return ErrInvalidMessageSize
		}
	}

	return nil
}

// IsDebugEnabled returns true if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == EnvDevelopment
}
