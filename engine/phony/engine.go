// Package phony runs actors on github.com/Arceliar/phony inboxes. Messages
// are closures executed one at a time by the inbox; phony schedules inboxes
// on short-lived goroutines, so actors have no thread affinity.
package phony

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Arceliar/phony"
	"go.uber.org/zap"

	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/logutil"
	"github.com/najoast/relaybench/metrics"
)

// Name is the registry name of this engine.
const Name = "phony"

// Engine implements core.Engine.
type Engine struct {
	logger *zap.Logger

	actors    sync.Map // map[core.ActorID]*actor
	idCounter uint64

	mu       sync.RWMutex
	stopping bool
}

var _ core.Engine = (*Engine)(nil)

// New creates a phony engine.
func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logutil.Named(logger, Name)}
}

// Name implements core.Engine.
func (e *Engine) Name() string {
	return Name
}

// Spawn implements core.Spawner. Inboxes are unbounded, so
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

// Stop implements core.Spawner. It blocks until the actor's inbox has run the
// teardown, so it must not be called from the actor's own handler.
func (e *Engine) Stop(addr core.Address) error {
	ad, ok := addr.(*address)
	if !ok || ad.a.engine != e {
		return fmt.Errorf("%w: %v is not a %s actor", core.ErrActorNotFound, addr, Name)
	}
	if _, loaded := e.actors.LoadAndDelete(ad.a.id); !loaded {
		return fmt.Errorf("%w: actor %d", core.ErrActorNotFound, ad.a.id)
	}

	phony.Block(ad.a, ad.a.stop)
	metrics.LiveActors.WithLabelValues(Name).Dec()
	e.logger.Debug("actor stopped", zap.Uint64("actor", uint64(ad.a.id)))
	return nil
}

// Shutdown implements core.Engine.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.actors.Range(func(_, value interface{}) bool {
			_ = e.Stop(&address{a: value.(*actor)})
			return true
		})
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats implements core.Engine.
func (e *Engine) Stats() []core.ActorStats {
	var stats []core.ActorStats
	e.actors.Range(func(_, value interface{}) bool {
		a := value.(*actor)
		var s core.ActorStats
		phony.Block(a, func() { s = a.stats() })
		stats = append(stats, s)
		return true
	})
	return stats
}

func (e *Engine) deliveryFailure(id core.ActorID) *core.Future {
	metrics.DeliveryFailures.WithLabelValues(Name).Inc()
	e.logger.Warn("delivery failure", zap.Uint64("actor", uint64(id)))
	return core.Resolved(core.DeliveryFailure(id))
}
