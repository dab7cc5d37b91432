// Package mailbox is the goroutine-per-actor engine: every actor owns a
// dedicated goroutine draining a bounded channel mailbox.
package mailbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/logutil"
	"github.com/najoast/relaybench/metrics"
)

// Name is the registry name of this engine.
const Name = "mailbox"

// Engine implements core.Engine.
type Engine struct {
	logger      *zap.Logger
	mailboxSize int

	// Map of actor ID to *actor
	actors sync.Map

	// Counter for generating unique actor IDs
	idCounter uint64

	// Serializes Spawn against Shutdown
	mu       sync.RWMutex
	stopping bool
}

var _ core.Engine = (*Engine)(nil)

// New creates an engine whose actors default to mailboxSize slots.
func New(logger *zap.Logger, mailboxSize int) *Engine {
	if mailboxSize <= 0 {
		mailboxSize = core.DefaultMailboxSize
	}
	return &Engine{
		logger:      logutil.Named(logger, Name),
		mailboxSize: mailboxSize,
	}
}

// Name implements core.Engine.
func (e *Engine) Name() string {
	return Name
}

// Spawn implements core.Spawner.
func (e *Engine) Spawn(h core.Handler, opts core.ActorOptions) (core.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopping {
		return nil, core.ErrEngineStopped
	}

	if opts.MailboxSize <= 0 {
		opts.MailboxSize = e.mailboxSize
	}
	id := core.ActorID(atomic.AddUint64(&e.idCounter, 1))
	a := newActor(id, h, opts, e)
	e.actors.Store(id, a)
	go a.messageLoop()

	metrics.ActorsSpawned.WithLabelValues(Name).Inc()
	metrics.LiveActors.WithLabelValues(Name).Inc()
	e.logger.Debug("actor spawned", zap.Uint64("actor", uint64(id)), zap.String("name", opts.Name))
	return &address{a: a}, nil
}

// Stop implements core.Spawner. It must not be called from the actor's own
// handler.
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

// Shutdown implements core.Engine.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		e.actors.Range(func(_, value interface{}) bool {
			a := value.(*actor)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = e.Stop(&address{a: a})
			}()
			return true
		})
		wg.Wait()
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
