// Package bootstrap provides service lifecycle management
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Lifecycle errors
var (
	ErrAlreadyStarted      = errors.New("lifecycle manager already started")
	ErrCircularDependency  = errors.New("circular dependency detected")
	ErrUnknownDependency   = errors.New("dependency is not registered")
	ErrServiceRegistered   = errors.New("service is already registered")
	ErrInvalidRegistration = errors.New("invalid service registration")
)

// LifecycleManager starts services in dependency order and stops them in
// reverse order
type LifecycleManager struct {
	logger *zap.Logger

	// mutex protects concurrent access
	mutex sync.RWMutex

	// services holds all registered services
	services map[string]Service

	// dependencies tracks service dependencies
	dependencies map[string][]string

	// startOrder tracks the order services were started
	startOrder []string

	started bool

	// listeners for lifecycle events
	listeners []func(LifecycleEvent)

	// timeout for service operations
	timeout time.Duration
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(logger *zap.Logger) *LifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleManager{
		logger:       logger.Named("lifecycle"),
		services:     make(map[string]Service),
		dependencies: make(map[string][]string),
		timeout:      30 * time.Second,
	}
}

// Register registers a service with optional dependencies
func (lm *LifecycleManager) Register(service Service, deps ...string) error {
	if service == nil || service.Name() == "" {
		return ErrInvalidRegistration
	}
	name := service.Name()

	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("cannot register service %s: %w", name, ErrAlreadyStarted)
	}
	if _, exists := lm.services[name]; exists {
		return fmt.Errorf("%w: %s", ErrServiceRegistered, name)
	}

	lm.services[name] = service
	lm.dependencies[name] = deps
	lm.broadcastEvent(LifecycleEvent{Type: "service.registered", Service: name})
	return nil
}

// Start starts all services in dependency order. If one fails, the services
// already started are stopped again.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return ErrAlreadyStarted
	}

	startOrder, err := lm.calculateStartOrder()
	if err != nil {
		return &LifecycleError{Operation: "start", Err: err}
	}

	for _, serviceName := range startOrder {
		service := lm.services[serviceName]

		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := service.Start(startCtx)
		cancel()

		if err != nil {
			lm.broadcastEvent(LifecycleEvent{Type: "service.start_failed", Service: serviceName, Error: err})
			if stopErr := lm.stopStarted(ctx); stopErr != nil {
				lm.logger.Error("failed to roll back started services", zap.String("service", serviceName), zap.Error(stopErr))
				err = errors.Join(err, stopErr)
			}
			return &LifecycleError{Operation: "start", Service: serviceName, Err: err}
		}

		lm.startOrder = append(lm.startOrder, serviceName)
		lm.broadcastEvent(LifecycleEvent{Type: "service.started", Service: serviceName})
	}

	lm.started = true
	return nil
}

// Stop stops all services in reverse start order and returns the first error
func (lm *LifecycleManager) Stop(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if !lm.started {
		return nil
	}
	err := lm.stopStarted(ctx)
	lm.started = false
	return err
}

func (lm *LifecycleManager) stopStarted(ctx context.Context) error {
	var firstErr error
	for i := len(lm.startOrder) - 1; i >= 0; i-- {
		serviceName := lm.startOrder[i]

		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := lm.services[serviceName].Stop(stopCtx)
		cancel()

		if err != nil {
			if firstErr == nil {
				firstErr = &LifecycleError{Operation: "stop", Service: serviceName, Err: err}
			}
			lm.broadcastEvent(LifecycleEvent{Type: "service.stop_failed", Service: serviceName, Error: err})
			continue
		}
		lm.broadcastEvent(LifecycleEvent{Type: "service.stopped", Service: serviceName})
	}
	lm.startOrder = nil
	return firstErr
}

// Health returns the health status of all services
func (lm *LifecycleManager) Health(ctx context.Context) map[string]HealthStatus {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	health := make(map[string]HealthStatus, len(lm.services))
	for name, service := range lm.services {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		status, err := service.Health(healthCtx)
		cancel()

		if err != nil {
			status = HealthStatus{State: HealthUnhealthy, Message: err.Error()}
		}
		health[name] = status
	}
	return health
}

// Services returns all registered service names
func (lm *LifecycleManager) Services() []string {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	names := make([]string, 0, len(lm.services))
	for name := range lm.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetService returns a registered service by name
func (lm *LifecycleManager) GetService(name string) (Service, bool) {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	service, exists := lm.services[name]
	return service, exists
}

// AddListener adds a lifecycle event listener. Listeners run synchronously
// while the manager holds its lock, so they must not call back into it.
func (lm *LifecycleManager) AddListener(listener func(LifecycleEvent)) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.listeners = append(lm.listeners, listener)
}

// SetTimeout sets the timeout for service operations
func (lm *LifecycleManager) SetTimeout(timeout time.Duration) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.timeout = timeout
}

// IsStarted returns true if the lifecycle manager has been started
func (lm *LifecycleManager) IsStarted() bool {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	return lm.started
}

// calculateStartOrder is a topological sort (Kahn's algorithm); ties are
// broken by name so the order is deterministic.
func (lm *LifecycleManager) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int, len(lm.services))
	graph := make(map[string][]string, len(lm.services))

	for service := range lm.services {
		inDegree[service] = 0
	}
	for service, deps := range lm.dependencies {
		for _, dep := range deps {
			if _, exists := lm.services[dep]; !exists {
				return nil, fmt.Errorf("%w: %s required by %s", ErrUnknownDependency, dep, service)
			}
			graph[dep] = append(graph[dep], service)
			inDegree[service]++
		}
	}

	var queue []string
	for service, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, service)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(lm.services))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var next []string
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if len(result) != len(lm.services) {
		return nil, ErrCircularDependency
	}
	return result, nil
}

// broadcastEvent logs a lifecycle event and hands it to all listeners
func (lm *LifecycleManager) broadcastEvent(event LifecycleEvent) {
	fields := []zap.Field{zap.String("event", event.Type)}
	if event.Service != "" {
		fields = append(fields, zap.String("service", event.Service))
	}
	if event.Error != nil {
		lm.logger.Warn("lifecycle event", append(fields, zap.Error(event.Error))...)
	} else {
		lm.logger.Debug("lifecycle event", fields...)
	}

	for _, listener := range lm.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					lm.logger.Error("lifecycle listener panicked", zap.Any("panic", r))
				}
			}()
			listener(event)
		}()
	}
}
