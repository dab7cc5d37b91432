package bench

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/najoast/relaybench/bootstrap"
	"github.com/najoast/relaybench/config"
	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/engine"
	"github.com/najoast/relaybench/logutil"
	"github.com/najoast/relaybench/metrics"
)

// Session owns the engines named by a configuration for the duration of a
// benchmark run. Engines start after the configuration service and stop
// before it.
type Session struct {
	logger    *zap.Logger
	loader    *config.Loader
	lifecycle *bootstrap.LifecycleManager
	configSvc *configService

	mu       sync.RWMutex
	cfg      *config.Config
	onReload []func([]Case)
}

// NewSession registers one EngineService per configured engine.
func NewSession(cfg *config.Config, logger *zap.Logger) (*Session, error) {
	return newSession(cfg, logger, config.NewLoader())
}

func newSession(cfg *config.Config, logger *zap.Logger, loader *config.Loader) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		logger:    logger,
		loader:    loader,
		lifecycle: bootstrap.NewLifecycleManager(logger),
		cfg:       cfg,
	}
	if cfg.Engine.ShutdownTimeout > 0 {
		s.lifecycle.SetTimeout(cfg.Engine.ShutdownTimeout)
	}

	s.configSvc = &configService{s: s}
	if err := s.lifecycle.Register(s.configSvc); err != nil {
		return nil, err
	}
	for _, name := range cfg.Bench.Engines {
		if !engine.Known(name) {
			return nil, fmt.Errorf("%w: %q", engine.ErrUnknownEngine, name)
		}
		svc := NewEngineService(name, cfg.Engine, logger)
		if err := s.lifecycle.Register(svc, configServiceName); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Open loads the configuration in filename, or the first one AutoLoad finds
// when filename is empty, builds the logger it describes and returns a
// session that watches the loaded file. Engine collectors are registered on
// registry if it is not nil.
func Open(filename string, registry *prometheus.Registry) (*Session, error) {
	loader := config.NewLoader()

	var (
		cfg *config.Config
		err error
	)
	if filename == "" {
		cfg, filename, err = loader.AutoLoad()
	} else {
		cfg, err = loader.LoadFromFile(filename)
	}
	if err != nil {
		return nil, err
	}

	logger, err := logutil.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if registry != nil {
		metrics.InitMetrics(registry)
	}

	s, err := newSession(cfg, logger, loader)
	if err != nil {
		return nil, err
	}
	s.configSvc.file = filename
	return s, nil
}

// Watch reloads the matrix whenever file changes while the session runs.
// It must be called before Start.
func (s *Session) Watch(file string) error {
	if s.lifecycle.IsStarted() {
		return fmt.Errorf("cannot watch %s: %w", file, bootstrap.ErrAlreadyStarted)
	}
	s.configSvc.file = file
	return nil
}

// ConfigFile returns the watched configuration file, empty if none.
func (s *Session) ConfigFile() string {
	return s.configSvc.file
}

// OnReload registers fn to receive the new matrix after each reload.
func (s *Session) OnReload(fn func([]Case)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// OnLifecycle registers fn for engine and config service lifecycle events.
func (s *Session) OnLifecycle(fn func(bootstrap.LifecycleEvent)) {
	s.lifecycle.AddListener(fn)
}

// reload applies the chain lengths and message sizes of a reloaded file.
// Engines are fixed for the life of the session.
func (s *Session) reload(_, newCfg *config.Config) {
	s.mu.Lock()
	cfg := *s.cfg
	if !slices.Equal(cfg.Bench.Engines, newCfg.Bench.Engines) {
		s.logger.Warn("engine list changes need a new session",
			zap.Strings("running", cfg.Bench.Engines), zap.Strings("configured", newCfg.Bench.Engines))
	}
	cfg.Bench.ChainLengths = newCfg.Bench.ChainLengths
	cfg.Bench.MessageSizes = newCfg.Bench.MessageSizes
	s.cfg = &cfg
	cases := Matrix(cfg.Bench)
	fns := append([](func([]Case))(nil), s.onReload...)
	s.mu.Unlock()

	s.logger.Info("benchmark matrix reloaded", zap.Int("cases", len(cases)))
	for _, fn := range fns {
		fn(cases)
	}
}

// Config returns the session configuration. A reload replaces it rather
// than modifying it.
func (s *Session) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Start starts every engine.
func (s *Session) Start(ctx context.Context) error {
	return s.lifecycle.Start(ctx)
}

// Close shuts every engine down.
func (s *Session) Close(ctx context.Context) error {
	return s.lifecycle.Stop(ctx)
}

// Cases returns the configured benchmark matrix.
func (s *Session) Cases() []Case {
	return Matrix(s.Config().Bench)
}

// Health reports the state of every engine and of the config service.
func (s *Session) Health(ctx context.Context) map[string]bootstrap.HealthStatus {
	return s.lifecycle.Health(ctx)
}

// Engine returns the running engine registered under name.
func (s *Session) Engine(name string) (core.Engine, error) {
	svc, ok := s.lifecycle.GetService(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownEngine, name)
	}
	es, ok := svc.(*EngineService)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownEngine, name)
	}
	return es.Engine()
}

// Setup builds the relay chain of c on its engine.
func (s *Session) Setup(ctx context.Context, c Case, opts ...core.ChainOption) (*core.Chain, error) {
	e, err := s.Engine(c.Engine)
	if err != nil {
		return nil, err
	}
	chain, err := Setup(ctx, e, c, opts...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("chain ready", zap.String("case", c.Name()))
	return chain, nil
}

// Setup builds the relay chain of c on e, which must be the engine c names.
func Setup(ctx context.Context, e core.Engine, c Case, opts ...core.ChainOption) (*core.Chain, error) {
	if e.Name() != c.Engine {
		return nil, fmt.Errorf("%w: case %q on engine %q", engine.ErrUnknownEngine, c.Name(), e.Name())
	}
	return core.BuildChain(ctx, e, c.Length, c.Size, opts...)
}
