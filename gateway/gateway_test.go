package gateway_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rainbow-me/gateway-correlation/common/test"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/gateway"
)

var canonicalID = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func init() {
	gin.SetMode(gin.TestMode)
}

// upstream records what the gateway forwarded.
type upstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.requests = append(u.requests, r.Clone(context.Background()))
		u.bodies = append(u.bodies, string(body))
		u.mu.Unlock()

		w.Header().Set("X-Upstream", "accounts")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) last(t *testing.T) (*http.Request, string) {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.requests, "upstream not called")
	return u.requests[len(u.requests)-1], u.bodies[len(u.bodies)-1]
}

func newGateway(t *testing.T, upstreamURL string, mutate func(*gateway.Config), opts ...gateway.Option) (*gateway.Gateway, *prometheus.Registry) {
	t.Helper()
	cfg := gateway.Config{
		ServiceName: "gateway-test",
		Upstream:    gateway.UpstreamConfig{URL: upstreamURL, Timeout: 2 * time.Second},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	reg := prometheus.NewRegistry()
	g, err := gateway.New(cfg, test.NewLogger(t), append(opts, gateway.WithPrometheusRegistry(reg))...)
	require.NoError(t, err)
	return g, reg
}

func TestGatewayForwardsSuppliedID(t *testing.T) {
	up := newUpstream(t)
	g, reg := newGateway(t, up.URL, nil)

	req := httptest.NewRequest(http.MethodPost, "/accounts/42?expand=owner", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("X-Correlation-ID", "test-123")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	g.HTTPHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "test-123", rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "accounts", rec.Header().Get("X-Upstream"))

	got, body := up.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/accounts/42", got.URL.Path)
	assert.Equal(t, "expand=owner", got.URL.RawQuery)
	assert.Equal(t, []string{"test-123"}, got.Header.Values("X-Correlation-ID"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.NotEmpty(t, got.Header.Get("X-Forwarded-For"))
	assert.Equal(t, `{"name":"x"}`, body)

	assertOutcome(t, reg, "found", 1)
}

func TestGatewayGeneratesID(t *testing.T) {
	up := newUpstream(t)
	g, reg := newGateway(t, up.URL, nil)
	handler := g.HTTPHandler()

	ids := make(map[string]struct{})
	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts", nil))
		require.Equal(t, http.StatusCreated, rec.Code)

		id := rec.Header().Get("X-Correlation-ID")
		assert.Regexp(t, canonicalID, id)
		got, _ := up.last(t)
		assert.Equal(t, []string{id}, got.Header.Values("X-Correlation-ID"))
		ids[id] = struct{}{}
	}

	assert.Len(t, ids, 3, "every bare request gets its own id")
	assertOutcome(t, reg, "generated", 3)
}

func TestGatewayCustomHeader(t *testing.T) {
	up := newUpstream(t)
	g, _ := newGateway(t, up.URL, func(c *gateway.Config) {
		c.Correlation.Header = "BankApp-Correlation-ID"
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Bankapp-Correlation-Id", "bank-1")
	rec := httptest.NewRecorder()
	g.HTTPHandler().ServeHTTP(rec, req)

	assert.Equal(t, "bank-1", rec.Header().Get("bankapp-correlation-id"))
	got, _ := up.last(t)
	assert.Equal(t, []string{"bank-1"}, got.Header.Values("Bankapp-Correlation-Id"))
	assert.Empty(t, got.Header.Get("X-Correlation-ID"))
}

func TestGatewayStrictValidationReplacesID(t *testing.T) {
	up := newUpstream(t)
	g, reg := newGateway(t, up.URL, func(c *gateway.Config) {
		c.Correlation.Validation = "strict"
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("X-Correlation-ID", strings.Repeat("a", 200))
	rec := httptest.NewRecorder()
	g.HTTPHandler().ServeHTTP(rec, req)

	assert.Regexp(t, canonicalID, rec.Header().Get("X-Correlation-ID"))
	expected := `
# HELP gateway_correlation_ids_total Correlation ids handled by the trace filter, by outcome
# TYPE gateway_correlation_ids_total counter
gateway_correlation_ids_total{outcome="generated"} 1
gateway_correlation_ids_total{outcome="rejected"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gateway_correlation_ids_total"))
}

func TestGatewayGeneratorUnavailable(t *testing.T) {
	up := newUpstream(t)
	gen := correlation.NewUUIDGenerator(correlation.WithRandomSource(iotest.ErrReader(errors.New("no entropy"))))
	g, reg := newGateway(t, up.URL, nil, gateway.WithGenerator(gen))

	rec := httptest.NewRecorder()
	g.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Correlation-ID"))
	up.mu.Lock()
	assert.Empty(t, up.requests, "upstream must not be called")
	up.mu.Unlock()

	count, err := testutil.GatherAndCount(reg, "gateway_correlation_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGatewayUpstreamDown(t *testing.T) {
	up := newUpstream(t)
	url := up.URL
	up.Close()
	g, _ := newGateway(t, url, nil)

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("X-Correlation-ID", "down-1")
	rec := httptest.NewRecorder()
	g.HTTPHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "down-1", rec.Header().Get("X-Correlation-ID"))
	assert.JSONEq(t, `{"message":"Bad Gateway"}`, rec.Body.String())
}

func TestGatewayCORSExposesCorrelationHeader(t *testing.T) {
	up := newUpstream(t)
	g, _ := newGateway(t, up.URL, func(c *gateway.Config) {
		c.CORS.AllowedOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	g.HTTPHandler().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers")), "x-correlation-id")
}

func TestGatewayAdmin(t *testing.T) {
	up := newUpstream(t)
	g, _ := newGateway(t, up.URL, nil)
	g.HTTPHandler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/accounts", nil))
	admin := g.AdminHandler()

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `gateway_correlation_ids_total{outcome="generated"} 1`)
	})

	t.Run("filters", func(t *testing.T) {
		rec := httptest.NewRecorder()
		admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/filters", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"filters":["correlation-trace","request-logging"]}`, rec.Body.String())
	})

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		g.Drain()
		rec = httptest.NewRecorder()
		admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGatewayGRPC(t *testing.T) {
	up := newUpstream(t)
	g, _ := newGateway(t, up.URL, nil)

	listener := bufconn.Listen(1024 * 1024)
	srv := g.GRPCServer()
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var header metadata.MD
	resp, err := healthpb.NewHealthClient(conn).Check(ctx,
		&healthpb.HealthCheckRequest{Service: "gateway-test"}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	require.Len(t, header.Get("x-correlation-id"), 1)
	assert.Regexp(t, canonicalID, header.Get("x-correlation-id")[0])
}

func TestGatewayServerLifecycle(t *testing.T) {
	up := newUpstream(t)
	g, _ := newGateway(t, up.URL, func(c *gateway.Config) {
		c.HTTP.Address = "127.0.0.1:0"
		c.GRPC.Address = "127.0.0.1:0"
		c.Admin.Address = "127.0.0.1:0"
		c.ShutdownTimeout = time.Second
	})

	srv, err := g.Server()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, srv.GracefulShutdown(context.Background()))
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("servers did not stop")
	}
}

func assertOutcome(t *testing.T, reg *prometheus.Registry, outcome string, n int) {
	t.Helper()
	expected := fmt.Sprintf(`
# HELP gateway_correlation_ids_total Correlation ids handled by the trace filter, by outcome
# TYPE gateway_correlation_ids_total counter
gateway_correlation_ids_total{outcome=%q} %d
`, outcome, n)
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gateway_correlation_ids_total"))
}
