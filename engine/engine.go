// Package engine is the registry of concurrency engines.
package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/najoast/relaybench/config"
	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/engine/mailbox"
	"github.com/najoast/relaybench/engine/phony"
	"github.com/najoast/relaybench/engine/pool"
)

// ErrUnknownEngine is returned by New for names not in the registry.
var ErrUnknownEngine = errors.New("unknown engine")

// Factory creates an engine from the engine configuration.
type Factory func(cfg config.EngineConfig, logger *zap.Logger) core.Engine

var factories = map[string]Factory{
	mailbox.Name: func(cfg config.EngineConfig, logger *zap.Logger) core.Engine {
		return mailbox.New(logger, cfg.MailboxSize)
	},
	pool.Name: func(cfg config.EngineConfig, logger *zap.Logger) core.Engine {
		return pool.New(logger, cfg.Workers)
	},
	phony.Name: func(_ config.EngineConfig, logger *zap.Logger) core.Engine {
		return phony.New(logger)
	},
}

// Names lists the registered engines in a stable order.
func Names() []string {
	return []string{mailbox.Name, pool.Name, phony.Name}
}

// New creates the engine registered under name.
func New(name string, cfg config.EngineConfig, logger *zap.Logger) (core.Engine, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return f(cfg, logger), nil
}

// Known reports whether name is a registered engine.
func Known(name string) bool {
	_, ok := factories[name]
	return ok
}
