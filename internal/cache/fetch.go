package cache

import (
	"context"
	"errors"

	"github.com/five82/wayfinder/internal/flight"
)

// ErrPending is returned by Read while the fetch is still in flight.
var ErrPending = errors.New("fetch pending")

// FetchFunc starts a fetch. Reconciler code calls it at most once per node.
type FetchFunc func() *Fetch

// Fetch is a one-shot future for a Flight response.
type Fetch struct {
	done chan struct{}
	data flight.Data
	err  error
}

// StartFetch runs fn in a goroutine and returns the future for its result.
func StartFetch(ctx context.Context, fn func(context.Context) (flight.Data, error)) *Fetch {
	f := &Fetch{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.data, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns an already settled fetch.
func Resolved(data flight.Data, err error) *Fetch {
	f := &Fetch{done: make(chan struct{}), data: data, err: err}
	close(f.done)
	return f
}

// Done is closed once the fetch settles.
func (f *Fetch) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the fetch has settled.
func (f *Fetch) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Read returns the result without blocking, or ErrPending.
func (f *Fetch) Read() (flight.Data, error) {
	if !f.Ready() {
		return flight.Data{}, ErrPending
	}
	return f.data, f.err
}

// Wait blocks until the fetch settles or ctx is done.
func (f *Fetch) Wait(ctx context.Context) (flight.Data, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return flight.Data{}, ctx.Err()
	}
}
