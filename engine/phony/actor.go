package phony

import (
	"sync/atomic"

	"github.com/Arceliar/phony"
	"github.com/edwingeng/deque"
	"go.uber.org/zap"

	"github.com/najoast/relaybench/core"
	"github.com/najoast/relaybench/metrics"
)

type envelope struct {
	msg   core.Message
	reply *core.Future
}

// actor embeds a phony.Inbox. Every field below the inbox is only touched
// from closures run by that inbox, except the atomics.
type actor struct {
	phony.Inbox

	id      core.ActorID
	name    string
	handler core.Handler
	engine  *Engine
	ctx     core.Context

	// Messages that arrived while a handler was still pending
	backlog deque.Deque // stores envelope
	busy    bool

	stopped           atomic.Bool
	messagesProcessed atomic.Uint64
}

func newActor(id core.ActorID, h core.Handler, opts core.ActorOptions, e *Engine) *actor {
	a := &actor{
		id:      id,
		name:    opts.Name,
		handler: h,
		engine:  e,
		backlog: deque.NewDeque(),
	}
	a.ctx = core.NewContext(&address{a: a}, e.logger.With(zap.String("name", opts.Name)))
	return a
}

func (a *actor) send(msg core.Message) *core.Future {
	if a.stopped.Load() {
		return a.engine.deliveryFailure(a.id)
	}

	reply := core.NewFuture()
	a.Act(nil, func() {
		if a.stopped.Load() {
			reply.Resolve(a.engine.deliveryFailure(a.id).Err())
			return
		}
		a.backlog.PushBack(envelope{msg: msg, reply: reply})
		a.drain()
	})
	return reply
}

// drain handles backlog messages until one leaves a pending Future.
// Runs inside the inbox.
func (a *actor) drain() {
	for !a.busy && !a.backlog.Empty() && !a.stopped.Load() {
		env := a.backlog.PopFront().(envelope)

		a.messagesProcessed.Add(1)
		metrics.MessagesHandled.WithLabelValues(Name).Inc()
		fut := core.Invoke(a.handler, a.ctx, env.msg)
		if fut.IsResolved() {
			env.reply.Resolve(fut.Err())
			continue
		}

		a.busy = true
		fut.OnComplete(func(err error) {
			// Re-enter the inbox to keep state access sequential.
			a.Act(nil, func() {
				a.busy = false
				env.reply.Resolve(err)
				a.drain()
			})
		})
	}
}

// stop runs inside the inbox and fails the backlog.
func (a *actor) stop() {
	a.stopped.Store(true)
	for !a.backlog.Empty() {
		env := a.backlog.PopFront().(envelope)
		env.reply.Resolve(a.engine.deliveryFailure(a.id).Err())
	}
}

// stats runs inside the inbox.
func (a *actor) stats() core.ActorStats {
	state := core.ActorStateIdle
	switch {
	case a.stopped.Load():
		state = core.ActorStateStopped
	case a.busy:
		state = core.ActorStateRunning
	}
	return core.ActorStats{
		ID:                a.id,
		Name:              a.name,
		State:             state,
		MessagesProcessed: a.messagesProcessed.Load(),
		MailboxSize:       a.backlog.Len(),
	}
}

// address is the core.Address of a phony actor.
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
	return !ad.a.stopped.Load()
}
