package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/rainbow-me/gateway-correlation/exchange"
)

// Future is the deferred completion of a chain stage. It completes exactly once, with
// either a response or an error.
type Future struct {
	done chan struct{}
	once sync.Once
	resp *exchange.Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(resp *exchange.Response, err error) {
	f.once.Do(func() {
		f.resp, f.err = resp, err
		close(f.done)
	})
}

// Completed returns a future that already holds resp.
func Completed(resp *exchange.Response) *Future {
	f := newFuture()
	f.complete(resp, nil)
	return f
}

// Failed returns a future that already holds err.
func Failed(err error) *Future {
	f := newFuture()
	f.complete(nil, err)
	return f
}

// Go runs fn on its own goroutine. A panic in fn completes the future with an error.
func Go(ctx context.Context, fn func(ctx context.Context) (*exchange.Response, error)) *Future {
	f := newFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.complete(nil, errors.Newf("panic in chain stage: %s", fmt.Sprint(r)))
			}
		}()
		f.complete(fn(ctx))
	}()
	return f
}

// Done is closed once the future has completed.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future completes or ctx is done.
func (f *Future) Await(ctx context.Context) (*exchange.Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	default:
	}
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then returns a future completed with fn applied to the outcome of f. fn runs inline
// when f is already complete, otherwise on a goroutine waiting for f.
func (f *Future) Then(fn func(*exchange.Response, error) (*exchange.Response, error)) *Future {
	select {
	case <-f.done:
		return settle(fn, f.resp, f.err)
	default:
	}

	next := newFuture()
	go func() {
		<-f.done
		next.complete(settle(fn, f.resp, f.err).outcome())
	}()
	return next
}

func settle(fn func(*exchange.Response, error) (*exchange.Response, error), resp *exchange.Response, err error) (out *Future) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(errors.Newf("panic in completion callback: %s", fmt.Sprint(r)))
		}
	}()
	return result(fn(resp, err))
}

func result(resp *exchange.Response, err error) *Future {
	if err != nil {
		return Failed(err)
	}
	return Completed(resp)
}

// outcome blocks until f completes and returns what it holds.
func (f *Future) outcome() (*exchange.Response, error) {
	<-f.done
	return f.resp, f.err
}
