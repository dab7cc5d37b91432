package core

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Chain is an ordered relay chain. Index 0 is the root, index Len()-1 the tail.
// Actor i holds the Address of actor i-1 as its predecessor.
type Chain struct {
	spawner Spawner
	size    int
	addrs   []Address
	preds   []Address
}

type chainOptions struct {
	probe     Probe
	actorOpts ActorOptions
}

// ChainOption configures BuildChain.
type ChainOption func(*chainOptions)

// WithProbe installs p on every relay handler of the chain.
func WithProbe(p Probe) ChainOption {
	return func(o *chainOptions) {
		o.probe = p
	}
}

// WithActorOptions sets the options each Actor is spawned with. An empty
// Name is replaced by "relay-<index>".
func WithActorOptions(opts ActorOptions) ChainOption {
	return func(o *chainOptions) {
		o.actorOpts = opts
	}
}

// BuildChain spawns length relay actors on sp, wiring actor i to actor i-1.
// messageSize is the only message size the chain accepts.
//
// If any spawn fails, or ctx is done before the chain is complete, the
// already spawned actors are stopped and an error wrapping
// ErrConstructionFailure is returned.
func BuildChain(ctx context.Context, sp Spawner, length, messageSize int, opts ...ChainOption) (*Chain, error) {
	o := chainOptions{actorOpts: DefaultActorOptions()}
	for _, opt := range opts {
		opt(&o)
	}
	if length < 0 {
		length = 0
	}

	c := &Chain{
		spawner: sp,
		size:    messageSize,
		addrs:   make([]Address, 0, length),
		preds:   make([]Address, 0, length),
	}

	var prev Address
	for i := 0; i < length; i++ {
		if err := ctx.Err(); err != nil {
			c.discard()
			return nil, fmt.Errorf("%w: building actor %d: %w", ErrConstructionFailure, i, err)
		}

		var pred Address
		if prev != nil {
			pred = prev.Clone()
		}
		actorOpts := o.actorOpts
		if actorOpts.Name == "" {
			actorOpts.Name = fmt.Sprintf("relay-%d", i)
		}

		addr, err := sp.Spawn(&RelayHandler{Index: i, Predecessor: pred, Probe: o.probe}, actorOpts)
		if err != nil {
			c.discard()
			return nil, fmt.Errorf("%w: spawning actor %d: %w", ErrConstructionFailure, i, err)
		}
		c.addrs = append(c.addrs, addr)
		c.preds = append(c.preds, pred)
		prev = addr
	}
	return c, nil
}

// discard stops a partially built chain; it is never reused.
func (c *Chain) discard() {
	for i := len(c.addrs) - 1; i >= 0; i-- {
		_ = c.spawner.Stop(c.addrs[i])
	}
	c.addrs = nil
	c.preds = nil
}

// Len returns the number of actors in the chain.
func (c *Chain) Len() int {
	return len(c.addrs)
}

// MessageSize returns the message size the chain was built for.
func (c *Chain) MessageSize() int {
	return c.size
}

// At returns the Address at index i.
func (c *Chain) At(i int) Address {
	return c.addrs[i]
}

// Addresses returns the chain addresses, root first.
func (c *Chain) Addresses() []Address {
	out := make([]Address, len(c.addrs))
	copy(out, c.addrs)
	return out
}

// Root returns the first created actor, or nil for an empty chain.
func (c *Chain) Root() Address {
	if len(c.addrs) == 0 {
		return nil
	}
	return c.addrs[0]
}

// Tail returns the last created actor, or nil for an empty chain.
func (c *Chain) Tail() Address {
	if len(c.addrs) == 0 {
		return nil
	}
	return c.addrs[len(c.addrs)-1]
}

// Predecessor returns the Address wired into actor i, nil for the root.
func (c *Chain) Predecessor(i int) Address {
	return c.preds[i]
}

// RunOnce sends msg into the tail and returns the relay completion.
func (c *Chain) RunOnce(msg Message) *Future {
	if len(c.addrs) == 0 {
		return Resolved(ErrEmptyChain)
	}
	if msg.Size() != c.size {
		return Resolved(fmt.Errorf("%w: got %d bytes, chain carries %d", ErrMessageSize, msg.Size(), c.size))
	}
	return RunOnce(c.Tail(), msg)
}

// Relay sends msg into the tail and waits for the whole chain to complete.
func (c *Chain) Relay(ctx context.Context, msg Message) error {
	return c.RunOnce(msg).Wait(ctx)
}

// Close stops every actor of the chain. Actors already stopped are skipped.
func (c *Chain) Close() error {
	var g errgroup.Group
	for _, addr := range c.addrs {
		addr := addr
		g.Go(func() error {
			if err := c.spawner.Stop(addr); err != nil && !errors.Is(err, ErrActorNotFound) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
