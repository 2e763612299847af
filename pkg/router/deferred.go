package router

import (
	"context"
	"sync"
)

// Promise is a single-assignment result that can be awaited by any number
// of goroutines.
type Promise struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// Deferred is a Promise together with the functions that settle it.
type Deferred struct {
	Promise *Promise
}

// NewDeferred returns an unsettled Deferred.
func NewDeferred() *Deferred {
	return &Deferred{Promise: &Promise{done: make(chan struct{})}}
}

// Resolve settles the promise with v. Only the first settle call wins.
func (d *Deferred) Resolve(v any) { d.Promise.settle(v, nil) }

// Reject settles the promise with err. Only the first settle call wins.
func (d *Deferred) Reject(err error) { d.Promise.settle(nil, err) }

// Resolved returns a promise already settled with v.
func Resolved(v any) *Promise {
	d := NewDeferred()
	d.Resolve(v)
	return d.Promise
}

// Rejected returns a promise already settled with err.
func Rejected(err error) *Promise {
	d := NewDeferred()
	d.Reject(err)
	return d.Promise
}

func (p *Promise) settle(v any, err error) {
	p.once.Do(func() {
		p.value, p.err = v, err
		close(p.done)
	})
}

// Await blocks until the promise settles or ctx is done. A nil promise
// resolves immediately with nil.
func (p *Promise) Await(ctx context.Context) (any, error) {
	if p == nil {
		return nil, nil
	}
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Settled reports whether the promise has settled.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error. ok is false while the
// promise is still pending.
func (p *Promise) Result() (value any, ok bool, err error) {
	if !p.Settled() {
		return nil, false, nil
	}
	return p.value, true, p.err
}
