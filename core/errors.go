package core

import "errors"

// Delivery errors
var (
	ErrDeliveryFailure = errors.New("delivery failure: actor mailbox is torn down")
	ErrHandlerPanic    = errors.New("handler panicked")
)

// Construction errors
var (
	ErrConstructionFailure = errors.New("construction failure")
	ErrEngineStopped       = errors.New("engine is stopped")
)

// Workload errors
var (
	ErrEmptyChain    = errors.New("relay chain is empty")
	ErrMessageSize   = errors.New("message size does not match chain")
	ErrActorNotFound = errors.New("actor not found")
)
