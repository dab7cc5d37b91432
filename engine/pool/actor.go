package pool

import (
	"sync"
	"sync/atomic"

	"github.com/edwingeng/deque"
	"go.uber.org/zap"

	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/metrics"
)

// batchSize bounds how many messages one poll handles before the actor
// yields its worker.
const batchSize = 64

type envelope struct {
	msg   core.Message
	reply *core.Future
}

// actor is polled by whichever worker pops it from the ready queue.
//
// scheduled is true while the actor sits in the ready queue or is being
// polled; busy is true while a handler's pending Future is outstanding.
// An actor is pushed to the ready queue only when it is neither.
type actor struct {
	id      core.ActorID
	name    string
	handler core.Handler
	engine  *Engine
	ctx     core.Context

	mu        sync.Mutex
	mailbox   deque.Deque // stores envelope
	scheduled bool
	busy      bool
	stopped   bool

	running           int32
	messagesProcessed uint64
}

func newActor(id core.ActorID, h core.Handler, opts core.ActorOptions, e *Engine) *actor {
	a := &actor{
		id:      id,
		name:    opts.Name,
		handler: h,
		engine:  e,
		mailbox: deque.NewDeque(),
	}
	a.ctx = core.NewContext(&address{a: a}, e.logger.With(zap.String("name", opts.Name)))
	return a
}

func (a *actor) send(msg core.Message) *core.Future {
	reply := core.NewFuture()

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return a.engine.deliveryFailure(a.id)
	}
	a.mailbox.PushBack(envelope{msg: msg, reply: reply})
	schedule := !a.scheduled && !a.busy
	if schedule {
		a.scheduled = true
	}
	a.mu.Unlock()

	if schedule {
		a.engine.ready.push(a)
	}
	return reply
}

// poll handles queued messages on the calling worker.
func (a *actor) poll() {
	for i := 0; i < batchSize; i++ {
		a.mu.Lock()
		if a.stopped || a.busy || a.mailbox.Empty() {
			a.scheduled = false
			a.mu.Unlock()
			return
		}
		env := a.mailbox.PopFront().(envelope)
		a.busy = true
		a.mu.Unlock()

		atomic.StoreInt32(&a.running, 1)
		atomic.AddUint64(&a.messagesProcessed, 1)
		metrics.MessagesHandled.WithLabelValues(Name).Inc()
		fut := core.Invoke(a.handler, a.ctx, env.msg)
		atomic.StoreInt32(&a.running, 0)

		if fut.IsResolved() {
			env.reply.Resolve(fut.Err())
			a.mu.Lock()
			a.busy = false
			a.mu.Unlock()
			continue
		}

		// Park instead of blocking the worker; resume reschedules.
		fut.OnComplete(func(err error) {
			env.reply.Resolve(err)
			a.resume()
		})

		a.mu.Lock()
		if a.busy {
			a.scheduled = false
			a.mu.Unlock()
			return
		}
		// Completed while registering the callback; keep going.
		a.mu.Unlock()
	}

	// Batch exhausted: yield the worker but stay scheduled if work remains.
	a.mu.Lock()
	requeue := !a.stopped && !a.busy && !a.mailbox.Empty()
	if !requeue {
		a.scheduled = false
	}
	a.mu.Unlock()
	if requeue {
		a.engine.ready.push(a)
	}
}

// resume is called once a parked handler's Future resolves.
func (a *actor) resume() {
	a.mu.Lock()
	a.busy = false
	schedule := !a.scheduled && !a.stopped && !a.mailbox.Empty()
	if schedule {
		a.scheduled = true
	}
	a.mu.Unlock()

	if schedule {
		a.engine.ready.push(a)
	}
}

// stop tears down the mailbox and fails everything still queued.
func (a *actor) stop() {
	a.mu.Lock()
	a.stopped = true
	var pending []envelope
	for !a.mailbox.Empty() {
		pending = append(pending, a.mailbox.PopFront().(envelope))
	}
	a.mu.Unlock()

	for _, env := range pending {
		env.reply.Resolve(a.engine.deliveryFailure(a.id).Err())
	}
}

func (a *actor) alive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.stopped
}

func (a *actor) stats() core.ActorStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := core.ActorStateIdle
	switch {
	case a.stopped:
		state = core.ActorStateStopped
	case a.busy || atomic.LoadInt32(&a.running) == 1:
		state = core.ActorStateRunning
	}
	return core.ActorStats{
		ID:                a.id,
		Name:              a.name,
		State:             state,
		MessagesProcessed: atomic.LoadUint64(&a.messagesProcessed),
		MailboxSize:       a.mailbox.Len(),
	}
}

// address is the core.Address of a pool actor.
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
	return ad.a.alive()
}
