package filter

import (
	"sync/atomic"

	"github.com/rainbow-me/gateway-correlation/exchange"
)

// Pipeline is an immutable, ordered list of filters. It holds no per-request state and is
// safe for concurrent use by any number of requests.
type Pipeline struct {
	filters []Filter
}

// Len returns the number of filters.
func (p *Pipeline) Len() int { return len(p.filters) }

// Serve runs ex through every filter and then through terminal. Filters of one request
// run sequentially on the calling goroutine; terminal decides whether the final stage is
// asynchronous.
func (p *Pipeline) Serve(ex *exchange.Exchange, terminal Terminal) *Future {
	return p.run(0, ex, terminal)
}

func (p *Pipeline) run(i int, ex *exchange.Exchange, terminal Terminal) *Future {
	if ex == nil {
		return Failed(ErrNilExchange)
	}

	var fut *Future
	if i == len(p.filters) {
		fut = terminal(ex)
	} else {
		fut = p.filters[i].Filter(ex, &link{pipeline: p, next: i + 1, terminal: terminal})
	}

	if fut == nil {
		return Failed(ErrNilFuture)
	}
	return fut
}

// link is the Chain handed to the filter at position next-1.
type link struct {
	pipeline *Pipeline
	next     int
	terminal Terminal
	used     atomic.Bool
}

func (l *link) Proceed(ex *exchange.Exchange) *Future {
	if !l.used.CompareAndSwap(false, true) {
		return Failed(ErrAlreadyProceeded)
	}
	return l.pipeline.run(l.next, ex, l.terminal)
}
