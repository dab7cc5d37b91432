package core

import (
	"context"
	"sync"
)

// Future is a one-shot completion signal carrying an error.
//
// A nil *Future is treated as already resolved with no error, so handlers
// that finish synchronously may simply return nil.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	err       error
	resolved  bool
	callbacks []func(error)
}

// NewFuture returns a pending Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future already resolved with err.
func Resolved(err error) *Future {
	f := NewFuture()
	f.Resolve(err)
	return f
}

// Resolve completes the Future with err. Only the first call has an effect;
// it reports whether this call resolved the Future.
// Callbacks run on the calling goroutine after the Future is marked done.
func (f *Future) Resolve(err error) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
	return true
}

// IsResolved reports whether the Future has completed.
func (f *Future) IsResolved() bool {
	if f == nil {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// Done returns a channel closed once the Future resolves.
func (f *Future) Done() <-chan struct{} {
	if f == nil {
		return closedCh
	}
	return f.done
}

// Err returns the result of a resolved Future, or nil while it is pending.
func (f *Future) Err() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Wait blocks until the Future resolves or ctx is done. Cancelling ctx does
// not affect the Future itself.
func (f *Future) Wait(ctx context.Context) error {
	if f == nil {
		return nil
	}
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnComplete registers cb to run exactly once with the result. If the Future
// is already resolved, cb runs immediately on the calling goroutine.
func (f *Future) OnComplete(cb func(error)) {
	if f == nil {
		cb(nil)
		return
	}
	f.mu.Lock()
	if f.resolved {
		err := f.err
		f.mu.Unlock()
		cb(err)
		return
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
