package gateway

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rainbow-me/gateway-correlation/common/headers"
	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/filter"
	"github.com/rainbow-me/gateway-correlation/grpc/interceptors"
	"github.com/rainbow-me/gateway-correlation/grpc/server"
	apphttp "github.com/rainbow-me/gateway-correlation/http"
	gininterceptors "github.com/rainbow-me/gateway-correlation/http/interceptors/gin"
	restyinterceptors "github.com/rainbow-me/gateway-correlation/http/interceptors/resty"
	"github.com/rainbow-me/gateway-correlation/observability"
)

// writeTimeoutMargin leaves room to write the upstream answer after the upstream timeout.
const writeTimeoutMargin = 5 * time.Second

type options struct {
	generator  correlation.Generator
	httpClient *http.Client
	registry   *prometheus.Registry
}

// Option customizes New.
type Option func(*options)

// WithGenerator replaces the UUID generator of the trace filter.
func WithGenerator(g correlation.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithHTTPClient sets the client the upstream requests go through.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithPrometheusRegistry registers the gateway metrics on reg instead of a private registry
// with the Go and process collectors.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// Gateway wires the correlation filter chain into the HTTP, gRPC and admin servers.
type Gateway struct {
	cfg       Config
	log       *logger.Logger
	accessor  *correlation.Accessor
	filters   []string
	pipeline  *filter.Pipeline
	forwarder *Forwarder
	registry  *prometheus.Registry
	health    *health.Server
	draining  atomic.Bool
}

// New validates cfg and builds the filter pipeline: the trace filter first, then request
// logging, then whatever the transport runs last.
func New(cfg Config, log *logger.Logger, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid gateway config")
	}
	if log == nil {
		log = logger.NoOp()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	accessor, err := correlation.NewAccessor(cfg.Correlation.Header)
	if err != nil {
		return nil, err
	}
	validation, err := correlation.ParseValidation(cfg.Correlation.Validation)
	if err != nil {
		return nil, err
	}

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	traceOpts := []correlation.TraceFilterOption{
		correlation.WithAccessor(accessor),
		correlation.WithLogger(log),
		correlation.WithRecorder(observability.NewMetrics(reg)),
		correlation.WithValidation(validation),
	}
	if o.generator != nil {
		traceOpts = append(traceOpts, correlation.WithGenerator(o.generator))
	}

	filters := filter.NewRegistry()
	filters.Register(correlation.TraceFilterID, correlation.TraceFilterOrder, correlation.NewTraceFilter(traceOpts...))
	filters.Register(filter.RequestLoggingID, filter.RequestLoggingOrder, filter.RequestLogging(log))

	client := o.httpClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Tracing.Enabled {
		client = apphttp.NewTracedClient(client)
	}
	upstream := apphttp.NewRestyWithClient(client, log,
		restyinterceptors.WithTracingEnabled(cfg.Tracing.Enabled),
		restyinterceptors.WithCorrelationHeader(accessor.Header()),
	).SetTimeout(cfg.Upstream.Timeout)

	forwarder, err := NewForwarder(cfg.Upstream.URL, upstream)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:       cfg,
		log:       log,
		accessor:  accessor,
		filters:   filters.IDs(),
		pipeline:  filters.Commit(),
		forwarder: forwarder,
		registry:  reg,
		health:    health.NewServer(),
	}
	g.health.SetServingStatus(cfg.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return g, nil
}

// Config returns the validated configuration.
func (g *Gateway) Config() Config { return g.cfg }

// Pipeline returns the filter pipeline shared by every transport.
func (g *Gateway) Pipeline() *filter.Pipeline { return g.pipeline }

// Accessor returns the accessor for the configured correlation header.
func (g *Gateway) Accessor() *correlation.Accessor { return g.accessor }

// HTTPHandler is the public HTTP entry point: CORS, then the default gin middlewares with
// the filter pipeline, then the upstream forwarder for every path.
func (g *Gateway) HTTPHandler() http.Handler {
	engine := gin.New()
	opts := []gininterceptors.InterceptorOpt{
		gininterceptors.WithFilterChain(g.pipeline, g.accessor),
		gininterceptors.WithTimeout(g.cfg.Upstream.Timeout),
		gininterceptors.WithTracingEnabled(g.cfg.Tracing.Enabled),
	}
	if g.cfg.Tracing.Debug {
		opts = append(opts, gininterceptors.WithHTTPDebug())
	}
	engine.Use(gininterceptors.DefaultInterceptors(opts...)...)
	engine.Any("/*path", g.forwarder.Handle)

	exposed := []string{g.accessor.Header(), headers.HeaderXRequestID, headers.HeaderXTraceID}
	return apphttp.CORS(engine, apphttp.DefaultCORSConfig(
		apphttp.WithAllowedOrigins(g.cfg.CORS.AllowedOrigins),
		apphttp.WithAllowCredentials(g.cfg.CORS.AllowCredentials),
		apphttp.WithAllowedHeaders(append(headers.CORSAllowedHeaders(), g.accessor.Header())),
		apphttp.WithExposedHeaders(exposed),
	))
}

// GRPCServer builds the gRPC server behind the default interceptor chains with the health
// service registered.
func (g *Gateway) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	unary, stream := interceptors.NewDefaultServerChains(g.cfg.ServiceName, g.log,
		interceptors.WithRequestTimeout(g.cfg.Upstream.Timeout),
		interceptors.WithTracing(g.cfg.Tracing.Enabled),
		interceptors.WithFilterChain(g.pipeline, g.accessor),
	)
	srv := server.NewGRPCServer(unary.Commit(), stream.Commit(), opts...)
	grpc_health_v1.RegisterHealthServer(srv, g.health)
	return srv
}

// AdminHandler serves /metrics, /healthz and /filters.
func (g *Gateway) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{Registry: g.registry}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if g.draining.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("draining"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/filters", func(w http.ResponseWriter, _ *http.Request) {
		_ = render.JSON{Data: gin.H{"filters": g.filters}}.Render(w)
	})
	return r
}

// Drain flips the health endpoints to not serving, so load balancers stop routing here
// before the servers stop.
func (g *Gateway) Drain() {
	g.draining.Store(true)
	g.health.Shutdown()
}

// Server assembles the process runner: public HTTP, gRPC and admin servers, with a
// shutdown hook that drains the health endpoints first.
func (g *Gateway) Server(opts ...server.Option) (*server.Server, error) {
	base := []server.Option{
		server.WithLogger(g.log),
		server.WithShutdownTimeout(g.cfg.ShutdownTimeout),
		server.WithHTTPServer("http", g.cfg.HTTP.Address, g.HTTPHandler(),
			server.WithHTTPWriteTimeout(g.cfg.Upstream.Timeout+writeTimeoutMargin)),
		server.WithGRPCServer("grpc", g.cfg.GRPC.Address, g.GRPCServer(), func(*grpc.Server) {}),
		server.WithHTTPServer("admin", g.cfg.Admin.Address, g.AdminHandler()),
		server.WithShutdownHook(server.ShutdownHook{
			Name:     "drain-health",
			Priority: 0,
			Hook: func(_ context.Context) error {
				g.Drain()
				return nil
			},
		}),
	}
	return server.NewServer(append(base, opts...)...)
}
