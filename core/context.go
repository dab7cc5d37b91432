package core

import (
	"fmt"

	"go.uber.org/zap"
)

type actorContext struct {
	self   Address
	logger *zap.Logger
}

// NewContext returns the Context engines hand to handlers of the Actor at self.
func NewContext(self Address, logger *zap.Logger) Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &actorContext{
		self:   self,
		logger: logger.With(zap.Uint64("actor", uint64(self.ID()))),
	}
}

func (c *actorContext) Self() Address {
	return c.self
}

func (c *actorContext) Logger() *zap.Logger {
	return c.logger
}

// Invoke runs h for msg, converting a panic into a Future resolved with
// ErrHandlerPanic.
func Invoke(h Handler, ctx Context, msg Message) (fut *Future) {
	defer func() {
		if r := recover(); r != nil {
			ctx.Logger().Error("handler panicked",
				zap.Any("panic", r), zap.Stack("stack"))
			fut = Resolved(fmt.Errorf("%w: actor %d: %v", ErrHandlerPanic, ctx.Self().ID(), r))
		}
	}()
	return h.Handle(ctx, msg)
}

// DeliveryFailure returns the error reported for a message that cannot reach id.
func DeliveryFailure(id ActorID) error {
	return fmt.Errorf("%w: actor %d", ErrDeliveryFailure, id)
}
