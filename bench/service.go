package bench

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/najoast/relaybench/bootstrap"
	"github.com/najoast/relaybench/config"
	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/engine"
)

// ErrEngineNotRunning is returned when an engine is used outside Start/Stop.
var ErrEngineNotRunning = errors.New("engine is not running")

// EngineService runs one concurrency engine as a bootstrap.Service.
type EngineService struct {
	name   string
	cfg    config.EngineConfig
	logger *zap.Logger

	mu     sync.RWMutex
	engine core.Engine
}

var _ bootstrap.Service = (*EngineService)(nil)

// NewEngineService returns a stopped service for the named engine.
func NewEngineService(name string, cfg config.EngineConfig, logger *zap.Logger) *EngineService {
	return &EngineService{name: name, cfg: cfg, logger: logger}
}

// Name implements bootstrap.Service.
func (s *EngineService) Name() string {
	return s.name
}

// Start implements bootstrap.Service.
func (s *EngineService) Start(ctx context.Context) error {
	e, err := engine.New(s.name, s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
	return nil
}

// Stop implements bootstrap.Service.
func (s *EngineService) Stop(ctx context.Context) error {
	s.mu.Lock()
	e := s.engine
	s.engine = nil
	s.mu.Unlock()

	if e == nil {
		return nil
	}
	return e.Shutdown(ctx)
}

// Health implements bootstrap.Service.
func (s *EngineService) Health(ctx context.Context) (bootstrap.HealthStatus, error) {
	s.mu.RLock()
	e := s.engine
	s.mu.RUnlock()

	if e == nil {
		return bootstrap.HealthStatus{State: bootstrap.HealthStopped}, nil
	}
	return bootstrap.HealthStatus{
		State: bootstrap.HealthHealthy,
		Data:  map[string]interface{}{"actors": len(e.Stats())},
	}, nil
}

// Engine returns the running engine.
func (s *EngineService) Engine() (core.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, ErrEngineNotRunning
	}
	return s.engine, nil
}
