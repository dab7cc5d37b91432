// Package config provides configuration loading and parsing functionality
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config

	// Environment lookup, replaceable in tests
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"./configs",
		},
		envPrefix:     "RELAY",
		defaultConfig: DefaultConfig(),
		lookupEnv:     os.LookupEnv,
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// Load loads configuration from the specified file, or from defaults and
// the environment when filename is empty
func (l *Loader) Load(filename string) (*Config, error) {
	if filename != "" {
		return l.LoadFromFile(filename)
	}
	return l.finish(l.defaults())
}

// LoadFromFile loads configuration from a specific file
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	format, err := formatOf(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return l.finish(l.mergeConfig(l.defaults(), config))
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return l.finish(l.mergeConfig(l.defaults(), config))
}

// AutoLoad automatically discovers and loads configuration, falling back to
// defaults when no file is found. It also returns the file it loaded, empty
// for defaults.
func (l *Loader) AutoLoad() (*Config, string, error) {
	configFile, err := l.findConfigFile()
	if err == ErrConfigFileNotFound {
		config, err := l.finish(l.defaults())
		return config, "", err
	}
	if err != nil {
		return nil, "", err
	}
	config, err := l.LoadFromFile(configFile)
	if err != nil {
		return nil, "", err
	}
	return config, configFile, nil
}

// finish applies environment overrides and validates
func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func (l *Loader) defaults() *Config {
	if l.defaultConfig == nil {
		return DefaultConfig()
	}
	// Copy so that env overrides never leak into the shared default.
	c := *l.defaultConfig
	c.Bench.Engines = append([]string(nil), l.defaultConfig.Bench.Engines...)
	c.Bench.ChainLengths = append([]int(nil), l.defaultConfig.Bench.ChainLengths...)
	c.Bench.MessageSizes = append([]int(nil), l.defaultConfig.Bench.MessageSizes...)
	return &c
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"relaybench.yaml", "relaybench.yml",
		"config.yaml", "config.yml",
		"relaybench.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

func formatOf(filename string) (ConfigFormat, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// parseConfig parses configuration data based on format
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := &Config{}

	switch format {
	case FormatYAML:
		err := yaml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case FormatJSON:
		err := json.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	return config, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	env := func(key string) (string, bool) {
		val, ok := l.lookupEnv(l.envPrefix + "_" + key)
		return val, ok && val != ""
	}

	// App configuration
	if val, ok := env("APP_NAME"); ok {
		config.App.Name = val
	}
	if val, ok := env("APP_ENVIRONMENT"); ok {
		config.App.Environment = Environment(val)
	}
	if val, ok := env("APP_DEBUG"); ok {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val, ok := env("LOG_LEVEL"); ok {
		config.Log.Level = LogLevel(val)
	}
	if val, ok := env("LOG_FORMAT"); ok {
		config.Log.Format = val
	}
	if val, ok := env("LOG_OUTPUT"); ok {
		config.Log.Output = val
	}

	// Engine configuration
	if val, ok := env("ENGINE_MAILBOX_SIZE"); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_ENGINE_MAILBOX_SIZE: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Engine.MailboxSize = n
	}
	if val, ok := env("ENGINE_WORKERS"); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_ENGINE_WORKERS: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Engine.Workers = n
	}
	if val, ok := env("ENGINE_SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %s_ENGINE_SHUTDOWN_TIMEOUT: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Engine.ShutdownTimeout = d
	}

	// Benchmark matrix
	if val, ok := env("BENCH_ENGINES"); ok {
		config.Bench.Engines = splitList(val)
	}
	if val, ok := env("BENCH_CHAIN_LENGTHS"); ok {
		lengths, err := parseIntList(val)
		if err != nil {
			return fmt.Errorf("%w: %s_BENCH_CHAIN_LENGTHS: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Bench.ChainLengths = lengths
	}
	if val, ok := env("BENCH_MESSAGE_SIZES"); ok {
		sizes, err := parseIntList(val)
		if err != nil {
			return fmt.Errorf("%w: %s_BENCH_MESSAGE_SIZES: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Bench.MessageSizes = sizes
	}

	return nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntList(val string) ([]int, error) {
	parts := splitList(val)
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// mergeConfig merges user config with default config
func (l *Loader) mergeConfig(defaultConfig, userConfig *Config) *Config {
	// Start with default config
	merged := *defaultConfig

	// App config
	if userConfig.App.Name != "" {
		merged.App.Name = userConfig.App.Name
	}
	if userConfig.App.Environment != "" {
		merged.App.Environment = userConfig.App.Environment
	}
	merged.App.Debug = userConfig.App.Debug

	// Log config
	if userConfig.Log.Level != "" {
		merged.Log.Level = userConfig.Log.Level
	}
	if userConfig.Log.Format != "" {
		merged.Log.Format = userConfig.Log.Format
	}
	if userConfig.Log.Output != "" {
		merged.Log.Output = userConfig.Log.Output
	}
	if userConfig.Log.Fields != nil {
		merged.Log.Fields = userConfig.Log.Fields
	}

	// Engine config
	if userConfig.Engine.MailboxSize != 0 {
		merged.Engine.MailboxSize = userConfig.Engine.MailboxSize
	}
	if userConfig.Engine.Workers != 0 {
		merged.Engine.Workers = userConfig.Engine.Workers
	}
	if userConfig.Engine.ShutdownTimeout != 0 {
		merged.Engine.ShutdownTimeout = userConfig.Engine.ShutdownTimeout
	}

	// Benchmark matrix
	if len(userConfig.Bench.Engines) != 0 {
		merged.Bench.Engines = userConfig.Bench.Engines
	}
	if len(userConfig.Bench.ChainLengths) != 0 {
		merged.Bench.ChainLengths = userConfig.Bench.ChainLengths
	}
	if len(userConfig.Bench.MessageSizes) != 0 {
		merged.Bench.MessageSizes = userConfig.Bench.MessageSizes
	}

	return &merged
}
