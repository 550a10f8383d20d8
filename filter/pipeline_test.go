package filter_test

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainbow-me/gateway-correlation/exchange"
	"github.com/rainbow-me/gateway-correlation/filter"
)

func TestServeWithoutFilters(t *testing.T) {
	p := filter.NewRegistry().Commit()

	resp, err := p.Serve(newExchange(t), filter.Inline(okHandler)).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServePassesReplacementExchange(t *testing.T) {
	r := filter.NewRegistry()
	r.Register("tag", 1, filter.Func(func(ex *exchange.Exchange, chain filter.Chain) *filter.Future {
		return chain.Proceed(ex.WithHeader("x-stage", "tagged"))
	}))

	var seen string
	terminal := filter.Inline(func(_ context.Context, ex *exchange.Exchange) (*exchange.Response, error) {
		seen = ex.HeaderValue("x-stage")
		return &exchange.Response{StatusCode: http.StatusOK}, nil
	})

	original := newExchange(t)
	_, err := r.Commit().Serve(original, terminal).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tagged", seen)
	assert.Empty(t, original.HeaderValue("x-stage"))
}

func TestShortCircuit(t *testing.T) {
	tr := &trail{}
	r := filter.NewRegistry()
	r.Register("a", 1, marker(tr, "a"))
	r.Register("deny", 2, filter.Func(func(*exchange.Exchange, filter.Chain) *filter.Future {
		tr.add("deny")
		return filter.Completed(&exchange.Response{StatusCode: http.StatusForbidden})
	}))
	r.Register("b", 3, marker(tr, "b"))

	var called atomic.Bool
	terminal := filter.Inline(func(context.Context, *exchange.Exchange) (*exchange.Response, error) {
		called.Store(true)
		return nil, nil
	})

	resp, err := r.Commit().Serve(newExchange(t), terminal).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, []string{"a", "deny"}, tr.get())
	assert.False(t, called.Load())
}

func TestProceedIsOnceOnly(t *testing.T) {
	var second *filter.Future
	r := filter.NewRegistry()
	r.Register("twice", 1, filter.Func(func(ex *exchange.Exchange, chain filter.Chain) *filter.Future {
		first := chain.Proceed(ex)
		second = chain.Proceed(ex)
		return first
	}))

	var calls atomic.Int32
	terminal := filter.Inline(func(context.Context, *exchange.Exchange) (*exchange.Response, error) {
		calls.Add(1)
		return &exchange.Response{StatusCode: http.StatusOK}, nil
	})

	_, err := r.Commit().Serve(newExchange(t), terminal).Await(context.Background())
	require.NoError(t, err)

	_, err = second.Await(context.Background())
	assert.ErrorIs(t, err, filter.ErrAlreadyProceeded)
	assert.EqualValues(t, 1, calls.Load())
}

func TestServeErrors(t *testing.T) {
	tests := []struct {
		name    string
		filter  filter.Filter
		wantErr error
	}{
		{
			name: "nil exchange",
			filter: filter.Func(func(_ *exchange.Exchange, chain filter.Chain) *filter.Future {
				return chain.Proceed(nil)
			}),
			wantErr: filter.ErrNilExchange,
		},
		{
			name: "nil future",
			filter: filter.Func(func(*exchange.Exchange, filter.Chain) *filter.Future {
				return nil
			}),
			wantErr: filter.ErrNilFuture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := filter.NewRegistry()
			r.Register("f", 1, tt.filter)

			_, err := r.Commit().Serve(newExchange(t), filter.Inline(okHandler)).Await(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTerminalErrorReachesCaller(t *testing.T) {
	upstreamErr := errors.New("upstream unreachable")
	tr := &trail{}
	r := filter.NewRegistry()
	r.Register("a", 1, marker(tr, "a"))

	terminal := filter.Async(func(context.Context, *exchange.Exchange) (*exchange.Response, error) {
		return nil, upstreamErr
	})

	_, err := r.Commit().Serve(newExchange(t), terminal).Await(context.Background())
	assert.ErrorIs(t, err, upstreamErr)
}

func TestAsyncTerminalUsesExchangeContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	terminal := filter.Async(func(ctx context.Context, _ *exchange.Exchange) (*exchange.Response, error) {
		return &exchange.Response{Payload: ctx.Value(key{})}, nil
	})

	ex := exchange.New(ctx, http.MethodGet, "/", nil)
	resp, err := filter.NewRegistry().Commit().Serve(ex, terminal).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "value", resp.Payload)
}

func TestPipelineConcurrentUse(t *testing.T) {
	const requests = 64

	r := filter.NewRegistry()
	r.Register("stamp", 1, filter.Func(func(ex *exchange.Exchange, chain filter.Chain) *filter.Future {
		return chain.Proceed(ex.WithHeader("x-seen", ex.Path()))
	}))
	p := r.Commit()

	var calls atomic.Int32
	terminal := filter.Async(func(_ context.Context, ex *exchange.Exchange) (*exchange.Response, error) {
		calls.Add(1)
		return &exchange.Response{Payload: ex.HeaderValue("x-seen")}, nil
	})

	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path := "/requests/" + strconv.Itoa(i)
			ex := exchange.New(context.Background(), http.MethodGet, path, nil)
			resp, err := p.Serve(ex, terminal).Await(context.Background())
			if assert.NoError(t, err) {
				assert.Equal(t, path, resp.Payload)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, requests, calls.Load())
}
