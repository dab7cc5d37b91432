// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName     = errors.New("invalid application name")
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidMailboxSize = errors.New("invalid mailbox size")
	ErrInvalidWorkers     = errors.New("invalid worker count")
	ErrInvalidEngines     = errors.New("invalid engine list")
	ErrInvalidChainLength = errors.New("invalid chain length")
	ErrInvalidMessageSize = errors.New("invalid message size")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrEnvironmentVarError = errors.New("environment variable error")
)
