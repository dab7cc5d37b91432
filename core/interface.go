package core

import (
	"context"

	"go.uber.org/zap"
)

// Handler is the message-processing behaviour of an Actor.
type Handler interface {
	// Handle processes a single message.
	//
	// A nil or resolved Future means the message is done. A pending Future
	// keeps the Actor busy: no other message is handled until it resolves,
	// and the sender observes the same result.
	Handle(ctx Context, msg Message) *Future
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx Context, msg Message) *Future

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx Context, msg Message) *Future {
	return f(ctx, msg)
}

// Context is the execution context a Handler runs in.
type Context interface {
	// Self returns the address of the Actor handling the message.
	Self() Address

	// Logger returns the logger of the owning engine, annotated with the actor.
	Logger() *zap.Logger
}

// Address is a shareable handle used to deliver messages to an Actor.
// Holding an Address does not own the Actor.
type Address interface {
	// ID returns the identifier of the referenced Actor.
	ID() ActorID

	// Send enqueues msg and returns a Future that resolves once the Actor
	// has finished handling it. The Future resolves with ErrDeliveryFailure
	// if the Actor has been stopped.
	Send(msg Message) *Future

	// Clone returns another handle to the same Actor.
	Clone() Address

	// Alive reports whether the Actor still accepts messages.
	Alive() bool
}

// Spawner creates and tears down Actors.
type Spawner interface {
	// Spawn starts a new Actor running h and returns its Address.
	Spawn(h Handler, opts ActorOptions) (Address, error)

	// Stop tears down the Actor behind addr. Messages still queued, and any
	// sent afterwards, fail with ErrDeliveryFailure.
	Stop(addr Address) error
}

// Engine is a concurrency engine able to run Actors.
type Engine interface {
	Spawner

	// Name returns the registry name of the engine.
	Name() string

	// Shutdown stops every Actor and releases the engine's workers.
	Shutdown(ctx context.Context) error

	// Stats returns statistics for all live Actors.
	Stats() []ActorStats
}

// Probe observes relay handler invocations.
type Probe interface {
	Observe(index int)
}
