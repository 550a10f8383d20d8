package filter_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rainbow-me/gateway-correlation/exchange"
	"github.com/rainbow-me/gateway-correlation/filter"
)

// trail records the order in which stages ran.
type trail struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trail) add(step string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, step)
}

func (tr *trail) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

func marker(tr *trail, name string) filter.Filter {
	return filter.Func(func(ex *exchange.Exchange, chain filter.Chain) *filter.Future {
		tr.add(name)
		return chain.Proceed(ex)
	})
}

func okHandler(_ context.Context, _ *exchange.Exchange) (*exchange.Response, error) {
	return &exchange.Response{StatusCode: http.StatusOK}, nil
}

func newExchange(t *testing.T) *exchange.Exchange {
	t.Helper()
	return exchange.New(context.Background(), http.MethodGet, "/", nil)
}

// runOrder commits r, serves one request and returns the stage order.
func runOrder(t *testing.T, r *filter.Registry, tr *trail) []string {
	t.Helper()
	_, err := r.Commit().Serve(newExchange(t), filter.Inline(okHandler)).Await(context.Background())
	require.NoError(t, err)
	return tr.get()
}
