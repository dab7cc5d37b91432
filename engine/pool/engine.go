// Package pool is the shared-worker engine: a fixed set of worker goroutines
// polls actors that have pending messages, so no actor owns a goroutine.
// A handler waiting on another actor parks its actor instead of blocking
// a worker, which keeps chains longer than the worker count live.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/logutil"
	"github.com/najoast/relaybench/metrics"
)

// Name is the registry name of this engine.
const Name = "pool"

// Engine implements core.Engine.
type Engine struct {
	logger  *zap.Logger
	workers int
	ready   *readyQueue
	group   *errgroup.Group

	actors    sync.Map // map[core.ActorID]*actor
	idCounter uint64

	mu       sync.RWMutex
	stopping bool
}

var _ core.Engine = (*Engine)(nil)

// New starts an engine with the given number of workers; workers <= 0 means
// GOMAXPROCS.
func New(logger *zap.Logger, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e := &Engine{
		logger:  logutil.Named(logger, Name),
		workers: workers,
		ready:   newReadyQueue(),
		group:   &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		e.group.Go(e.work)
	}
	e.logger.Debug("engine started", zap.Int("workers", workers))
	return e
}

func (e *Engine) work() error {
	for {
		a, ok := e.ready.pop()
		if !ok {
			return nil
		}
		a.poll()
	}
}

// Name implements core.Engine.
func (e *Engine) Name() string {
	return Name
}

// Workers returns the number of worker goroutines.
func (e *Engine) Workers() int {
	return e.workers
}

// Spawn implements core.Spawner. Mailboxes are unbounded, so
// opts.MailboxSize is ignored.
func (e *Engine) Spawn(h core.Handler, opts core.ActorOptions) (core.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopping {
		return nil, core.ErrEngineStopped
	}

	id := core.ActorID(atomic.AddUint64(&e.idCounter, 1))
	a := newActor(id, h, opts, e)
	e.actors.Store(id, a)

	metrics.ActorsSpawned.WithLabelValues(Name).Inc()
	metrics.LiveActors.WithLabelValues(Name).Inc()
	e.logger.Debug("actor spawned", zap.Uint64("actor", uint64(id)), zap.String("name", opts.Name))
	return &address{a: a}, nil
}

// Stop implements core.Spawner.
func (e *Engine) Stop(addr core.Address) error {
	ad, ok := addr.(*address)
	if !ok || ad.a.engine != e {
		return fmt.Errorf("%w: %v is not a %s actor", core.ErrActorNotFound, addr, Name)
	}
	if _, loaded := e.actors.LoadAndDelete(ad.a.id); !loaded {
		return fmt.Errorf("%w: actor %d", core.ErrActorNotFound, ad.a.id)
	}

	ad.a.stop()
	metrics.LiveActors.WithLabelValues(Name).Dec()
	e.logger.Debug("actor stopped", zap.Uint64("actor", uint64(ad.a.id)))
	return nil
}

// Shutdown implements core.Engine. It stops every actor, then releases the
// workers once their current poll returns.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	e.actors.Range(func(_, value interface{}) bool {
		_ = e.Stop(&address{a: value.(*actor)})
		return true
	})
	e.ready.close()

	done := make(chan error, 1)
	go func() {
		done <- e.group.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats implements core.Engine.
func (e *Engine) Stats() []core.ActorStats {
	var stats []core.ActorStats
	e.actors.Range(func(_, value interface{}) bool {
		stats = append(stats, value.(*actor).stats())
		return true
	})
	return stats
}

func (e *Engine) deliveryFailure(id core.ActorID) *core.Future {
	metrics.DeliveryFailures.WithLabelValues(Name).Inc()
	e.logger.Warn("delivery failure", zap.Uint64("actor", uint64(id)))
	return core.Resolved(core.DeliveryFailure(id))
}
