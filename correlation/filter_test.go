package correlation_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/common/metadata"
	"github.com/rainbow-me/gateway-correlation/common/test"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/exchange"
	"github.com/rainbow-me/gateway-correlation/filter"
)

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[correlation.Outcome]int
	failures map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: map[correlation.Outcome]int{}, failures: map[string]int{}}
}

func (r *fakeRecorder) RecordOutcome(o correlation.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[o]++
}

func (r *fakeRecorder) RecordFailure(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[reason]++
}

// downstream records every exchange that reached the end of the chain.
type downstream struct {
	mu    sync.Mutex
	seen  []*exchange.Exchange
	calls atomic.Int32
}

func (d *downstream) handler(_ context.Context, ex *exchange.Exchange) (*exchange.Response, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.seen = append(d.seen, ex)
	d.mu.Unlock()
	return &exchange.Response{StatusCode: http.StatusOK}, nil
}

func (d *downstream) last(t *testing.T) *exchange.Exchange {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.seen)
	return d.seen[len(d.seen)-1]
}

func newPipeline(f filter.Filter) *filter.Pipeline {
	r := filter.NewRegistry()
	r.Register(correlation.TraceFilterID, correlation.TraceFilterOrder, f)
	return r.Commit()
}

func serve(t *testing.T, p *filter.Pipeline, ex *exchange.Exchange, d *downstream) error {
	t.Helper()
	_, err := p.Serve(ex, filter.Inline(d.handler)).Await(context.Background())
	return err
}

func request(header map[string]string) *exchange.Exchange {
	return exchange.New(context.Background(), http.MethodGet, "/accounts", metadata.New(header))
}

func messages(logs *observer.ObservedLogs, msg string) []observer.LoggedEntry {
	return logs.FilterMessage(msg).All()
}

func TestTraceFilterKeepsSuppliedID(t *testing.T) {
	log, logs := test.NewObservedLogger(t)
	rec := newFakeRecorder()
	p := newPipeline(correlation.NewTraceFilter(correlation.WithLogger(log), correlation.WithRecorder(rec)))
	d := &downstream{}

	require.NoError(t, serve(t, p, request(map[string]string{"x-correlation-id": "test-123"}), d))

	ex := d.last(t)
	assert.Equal(t, []string{"test-123"}, ex.Header().Get("x-correlation-id"))

	found := messages(logs, "correlation id found")
	require.Len(t, found, 1)
	assert.Equal(t, zapcore.DebugLevel, found[0].Level)
	assert.Equal(t, "test-123", found[0].ContextMap()[correlation.IDKey])
	assert.Empty(t, messages(logs, "correlation id generated"))
	assert.Equal(t, 1, rec.outcomes[correlation.OutcomeFound])
}

func TestTraceFilterCollapsesRepeatedHeader(t *testing.T) {
	rec := newFakeRecorder()
	p := newPipeline(correlation.NewTraceFilter(correlation.WithRecorder(rec)))
	d := &downstream{}

	header := metadata.FromMap(map[string][]string{
		"X-Correlation-Id": {"a", "b"},
		"Accept":           {"application/json"},
	})
	ex := exchange.New(context.Background(), http.MethodGet, "/accounts", header)
	require.NoError(t, serve(t, p, ex, d))

	got := d.last(t)
	assert.Equal(t, []string{"a"}, got.Header().Get("x-correlation-id"))
	assert.Equal(t, []string{"application/json"}, got.Header().Get("accept"))
	assert.Equal(t, []string{"a", "b"}, ex.Header().Get("x-correlation-id"), "inbound exchange must stay untouched")
	assert.Equal(t, 1, rec.outcomes[correlation.OutcomeFound])

	id, ok := correlation.IDFromContext(got.Context())
	require.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestTraceFilterGeneratesMissingID(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
	}{
		{name: "missing header", header: nil},
		{name: "empty value", header: map[string]string{"x-correlation-id": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := test.NewObservedLogger(t)
			rec := newFakeRecorder()
			p := newPipeline(correlation.NewTraceFilter(correlation.WithLogger(log), correlation.WithRecorder(rec)))
			d := &downstream{}

			original := request(tt.header)
			require.NoError(t, serve(t, p, original, d))

			vals := d.last(t).Header().Get("x-correlation-id")
			require.Len(t, vals, 1)
			assert.Regexp(t, canonicalID, vals[0])
			assert.Empty(t, original.HeaderValue("x-correlation-id"))

			generated := messages(logs, "correlation id generated")
			require.Len(t, generated, 1)
			assert.Equal(t, zapcore.DebugLevel, generated[0].Level)
			assert.Equal(t, vals[0], generated[0].ContextMap()[correlation.IDKey])
			assert.Empty(t, messages(logs, "correlation id found"))
			assert.Equal(t, 1, rec.outcomes[correlation.OutcomeGenerated])
		})
	}
}

func TestTraceFilterDetectsAnyCase(t *testing.T) {
	p := newPipeline(correlation.NewTraceFilter())
	d := &downstream{}

	ex := exchange.New(context.Background(), http.MethodGet, "/", metadata.FromMap(map[string][]string{
		"X-CORRELATION-ID": {"abc"},
	}))
	require.NoError(t, serve(t, p, ex, d))
	assert.Equal(t, "abc", d.last(t).HeaderValue("x-correlation-id"))
}

func TestTraceFilterIsIdempotent(t *testing.T) {
	log, logs := test.NewObservedLogger(t)
	p := newPipeline(correlation.NewTraceFilter(correlation.WithLogger(log)))
	d := &downstream{}

	require.NoError(t, serve(t, p, request(nil), d))
	first := d.last(t)

	require.NoError(t, serve(t, p, first, d))
	second := d.last(t)

	assert.Equal(t, first.Header(), second.Header())
	assert.Len(t, messages(logs, "correlation id generated"), 1)
	assert.Len(t, messages(logs, "correlation id found"), 1)
}

func TestTraceFilterBareRequestGetsNewIDEachRun(t *testing.T) {
	p := newPipeline(correlation.NewTraceFilter())
	d := &downstream{}
	bare := request(nil)

	require.NoError(t, serve(t, p, bare, d))
	first := d.last(t).HeaderValue("x-correlation-id")
	require.NoError(t, serve(t, p, bare, d))
	second := d.last(t).HeaderValue("x-correlation-id")

	assert.Len(t, first, 36)
	assert.Len(t, second, 36)
	assert.NotEqual(t, first, second)
}

func TestTraceFilterConcurrentRequests(t *testing.T) {
	const n = 500

	p := newPipeline(correlation.NewTraceFilter())
	d := &downstream{}

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Serve(request(nil), filter.Async(d.handler)).Await(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, n, d.calls.Load())
	ids := make(map[string]struct{}, n)
	for _, ex := range d.seen {
		ids[ex.HeaderValue("x-correlation-id")] = struct{}{}
	}
	assert.Len(t, ids, n)
}

func TestTraceFilterGeneratorUnavailable(t *testing.T) {
	log, logs := test.NewObservedLogger(t)
	rec := newFakeRecorder()
	gen := correlation.NewUUIDGenerator(correlation.WithRandomSource(iotest.ErrReader(errors.New("no entropy"))))
	p := newPipeline(correlation.NewTraceFilter(
		correlation.WithLogger(log),
		correlation.WithGenerator(gen),
		correlation.WithRecorder(rec),
	))
	d := &downstream{}

	err := serve(t, p, request(nil), d)
	assert.True(t, errors.Is(err, correlation.ErrGeneratorUnavailable))
	assert.Zero(t, d.calls.Load())
	assert.Equal(t, 1, rec.failures[correlation.ReasonGeneratorUnavailable])
	assert.Empty(t, messages(logs, "correlation id generated"))
}

func TestTraceFilterEmptyGeneratedID(t *testing.T) {
	gen := correlation.GeneratorFunc(func() (string, error) { return "", nil })
	p := newPipeline(correlation.NewTraceFilter(correlation.WithGenerator(gen)))
	d := &downstream{}

	err := serve(t, p, request(nil), d)
	assert.True(t, errors.Is(err, correlation.ErrInvalidArgument))
	assert.Zero(t, d.calls.Load())
}

func TestTraceFilterStrictValidation(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		wantReplaced bool
	}{
		{name: "plain value", value: "test-123"},
		{name: "newline", value: "abc\nforged log line", wantReplaced: true},
		{name: "non-ascii", value: "id-é", wantReplaced: true},
		{name: "too long", value: strings.Repeat("a", 200), wantReplaced: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := test.NewObservedLogger(t)
			rec := newFakeRecorder()
			p := newPipeline(correlation.NewTraceFilter(
				correlation.WithLogger(log),
				correlation.WithRecorder(rec),
				correlation.WithValidation(correlation.ValidationStrict),
			))
			d := &downstream{}

			require.NoError(t, serve(t, p, request(map[string]string{"x-correlation-id": tt.value}), d))
			got := d.last(t).HeaderValue("x-correlation-id")

			if !tt.wantReplaced {
				assert.Equal(t, tt.value, got)
				assert.Zero(t, rec.outcomes[correlation.OutcomeRejected])
				return
			}
			assert.Regexp(t, canonicalID, got)
			assert.Len(t, messages(logs, "correlation id rejected"), 1)
			assert.Len(t, messages(logs, "correlation id generated"), 1)
			assert.Equal(t, 1, rec.outcomes[correlation.OutcomeRejected])
			assert.Equal(t, 1, rec.outcomes[correlation.OutcomeGenerated])
		})
	}
}

func TestTraceFilterCustomHeader(t *testing.T) {
	a, err := correlation.NewAccessor("bankapp-correlation-id")
	require.NoError(t, err)
	p := newPipeline(correlation.NewTraceFilter(correlation.WithAccessor(a)))
	d := &downstream{}

	require.NoError(t, serve(t, p, request(map[string]string{"x-correlation-id": "ignored"}), d))
	ex := d.last(t)
	assert.Equal(t, "ignored", ex.HeaderValue("x-correlation-id"))
	assert.Regexp(t, canonicalID, ex.HeaderValue("bankapp-correlation-id"))
}

func TestTraceFilterEnrichesContext(t *testing.T) {
	log, logs := test.NewObservedLogger(t)
	p := newPipeline(correlation.NewTraceFilter(correlation.WithLogger(log)))

	var ctxID string
	terminal := filter.Inline(func(ctx context.Context, _ *exchange.Exchange) (*exchange.Response, error) {
		ctxID, _ = correlation.IDFromContext(ctx)
		logger.FromContext(ctx).Info("handled")
		return &exchange.Response{StatusCode: http.StatusOK}, nil
	})

	_, err := p.Serve(request(map[string]string{"x-correlation-id": "ctx-1"}), terminal).Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ctx-1", ctxID)
	handled := messages(logs, "handled")
	require.Len(t, handled, 1)
	assert.Equal(t, "ctx-1", handled[0].ContextMap()[correlation.IDKey])
}

func TestTraceFilterResponseUntouched(t *testing.T) {
	p := newPipeline(correlation.NewTraceFilter())
	want := &exchange.Response{StatusCode: http.StatusCreated, Body: []byte("ok")}

	got, err := p.Serve(request(nil), filter.Inline(func(context.Context, *exchange.Exchange) (*exchange.Response, error) {
		return want, nil
	})).Await(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
}
