// Package filter is the ordered, asynchronous request pipeline the gateway runs every
// inbound request through.
//
// Filters are registered with a numeric order and run in ascending order. Each filter
// receives the exchange produced by the previous one and decides whether to continue by
// calling Chain.Proceed, which it may do at most once.
package filter

import (
	"context"

	"github.com/rainbow-me/gateway-correlation/exchange"
)

// Chain is the remainder of the pipeline as seen from one filter.
type Chain interface {
	// Proceed hands ex to the next stage. It must be called at most once per request;
	// a filter that never calls it short-circuits the chain.
	Proceed(ex *exchange.Exchange) *Future
}

type Filter interface {
	Filter(ex *exchange.Exchange, chain Chain) *Future
}

// Func adapts a plain function to Filter.
type Func func(ex *exchange.Exchange, chain Chain) *Future

func (f Func) Filter(ex *exchange.Exchange, chain Chain) *Future { return f(ex, chain) }

// Handler is the work done once every filter has run, typically routing the request.
type Handler func(ctx context.Context, ex *exchange.Exchange) (*exchange.Response, error)

// Terminal is the last stage of a pipeline. Use Async or Inline to build one.
type Terminal func(ex *exchange.Exchange) *Future

// Async runs h on its own goroutine, so Serve returns as soon as the filters are done.
func Async(h Handler) Terminal {
	return func(ex *exchange.Exchange) *Future {
		return Go(ex.Context(), func(ctx context.Context) (*exchange.Response, error) {
			return h(ctx, ex)
		})
	}
}

// Inline runs h on the goroutine that called Serve. Transports whose handler must stay
// on the request goroutine (gin, gRPC) use this.
func Inline(h Handler) Terminal {
	return func(ex *exchange.Exchange) *Future {
		return result(h(ex.Context(), ex))
	}
}
