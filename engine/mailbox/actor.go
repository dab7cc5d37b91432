package mailbox

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/metrics"
)

type envelope struct {
	msg   core.Message
	reply *core.Future
}

// actor runs its handler on a dedicated goroutine, one message at a time.
type actor struct {
	id      core.ActorID
	name    string
	handler core.Handler
	engine  *Engine
	ctx     core.Context

	// Channel for receiving messages
	mailbox chan envelope

	// mu guards stopped against concurrent senders; senders hold it shared.
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	// Atomic counters for statistics
	state             int32 // core.ActorState
	messagesProcessed uint64
}

func newActor(id core.ActorID, h core.Handler, opts core.ActorOptions, e *Engine) *actor {
	size := opts.MailboxSize
	if size <= 0 {
		size = core.DefaultMailboxSize
	}
	a := &actor{
		id:      id,
		name:    opts.Name,
		handler: h,
		engine:  e,
		mailbox: make(chan envelope, size),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.ctx = core.NewContext(&address{a: a}, e.logger.With(zap.String("name", opts.Name)))
	return a
}

// send enqueues a message, blocking while the mailbox is full.
func (a *actor) send(msg core.Message) *core.Future {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stopped {
		return a.engine.deliveryFailure(a.id)
	}

	reply := core.NewFuture()
	select {
	case a.mailbox <- envelope{msg: msg, reply: reply}:
		return reply
	case <-a.stopCh:
		return a.engine.deliveryFailure(a.id)
	}
}

// messageLoop is the main processing loop for the actor.
func (a *actor) messageLoop() {
	defer close(a.done)

	for {
		select {
		case env := <-a.mailbox:
			select {
			case <-a.stopCh:
				env.reply.Resolve(a.engine.deliveryFailure(a.id).Err())
				return
			default:
			}
			a.process(env)
		case <-a.stopCh:
			return
		}
	}
}

// process handles a single message to completion.
func (a *actor) process(env envelope) {
	atomic.StoreInt32(&a.state, int32(core.ActorStateRunning))
	defer atomic.StoreInt32(&a.state, int32(core.ActorStateIdle))

	atomic.AddUint64(&a.messagesProcessed, 1)
	metrics.MessagesHandled.WithLabelValues(Name).Inc()

	fut := core.Invoke(a.handler, a.ctx, env.msg)
	// The actor accepts nothing else until the handler's work completes.
	<-fut.Done()
	env.reply.Resolve(fut.Err())
}

// stop tears down the mailbox. A message being handled finishes normally;
// queued ones fail with a delivery error.
func (a *actor) stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)

		// Wait for in-flight senders, then refuse new ones.
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()

		<-a.done
		atomic.StoreInt32(&a.state, int32(core.ActorStateStopped))
		a.drainMailbox()
	})
}

// drainMailbox fails every message left behind by the loop.
func (a *actor) drainMailbox() {
	for {
		select {
		case env := <-a.mailbox:
			env.reply.Resolve(a.engine.deliveryFailure(a.id).Err())
		default:
			return
		}
	}
}

func (a *actor) stats() core.ActorStats {
	return core.ActorStats{
		ID:                a.id,
		Name:              a.name,
		State:             core.ActorState(atomic.LoadInt32(&a.state)),
		MessagesProcessed: atomic.LoadUint64(&a.messagesProcessed),
		MailboxSize:       len(a.mailbox),
	}
}

// address is the core.Address of a mailbox actor.
type address struct {
	a *actor
}

func (ad *address) ID() core.ActorID {
	return ad.a.id
}

func (ad *address) Send(msg core.Message) *core.Future {
	return ad.a.send(msg)
}

func (ad *address) Clone() core.Address {
	return &address{a: ad.a}
}

func (ad *address) Alive() bool {
	ad.a.mu.RLock()
	defer ad.a.mu.RUnlock()
	return !ad.a.stopped
}
