package interceptors

import (
	"time"

	grpctrace "github.com/DataDog/dd-trace-go/contrib/google.golang.org/grpc/v2"
	"google.golang.org/grpc"

	"github.com/rainbow-me/gateway-correlation/common/headers"
	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/filter"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
)

// Interceptor ids used by the default chains.
const (
	TraceID         = "trace"
	DeadlineID      = "server-deadline"
	CorrelationID   = "correlation"
	TraceHeadersID  = "trace-headers"
	PanicRecoveryID = "panic-recovery"
	ContextStatusID = "context-status"
)

// Config holds the options of the default server chains.
type Config struct {
	ServiceName    string
	RequestTimeout time.Duration

	TracingEnabled       bool
	PanicRecoveryEnabled bool

	// Pipeline runs at ingress when set; Accessor defaults to the x-correlation-id one.
	Pipeline *filter.Pipeline
	Accessor *correlation.Accessor
}

// ConfigOption is a functional option for configuring the interceptor chain
type ConfigOption func(*Config)

// WithRequestTimeout sets the server-side request timeout duration
func WithRequestTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// WithTracing enables or disables the Datadog interceptor
func WithTracing(enabled bool) ConfigOption {
	return func(c *Config) {
		c.TracingEnabled = enabled
	}
}

// WithPanicRecovery enables or disables panic recovery interceptor
func WithPanicRecovery(enabled bool) ConfigOption {
	return func(c *Config) {
		c.PanicRecoveryEnabled = enabled
	}
}

// WithFilterChain runs pipeline on every incoming call
func WithFilterChain(pipeline *filter.Pipeline, accessor *correlation.Accessor) ConfigOption {
	return func(c *Config) {
		c.Pipeline = pipeline
		c.Accessor = accessor
	}
}

// NewConfig creates a new configuration with sensible defaults
func NewConfig(serviceName string, opts ...ConfigOption) *Config {
	config := &Config{
		ServiceName:          serviceName,
		RequestTimeout:       30 * time.Second,
		TracingEnabled:       true,
		PanicRecoveryEnabled: true,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// NewDefaultServerChains builds the unary and stream server chains, outermost first:
// trace, server-deadline, correlation, trace-headers, panic-recovery, context-status.
// Recovery sits inside the correlation stage so panic logs carry the correlation id.
//
//	unary, stream := NewDefaultServerChains("gateway", log,
//	    WithRequestTimeout(10*time.Second),
//	    WithFilterChain(pipeline, accessor),
//	)
//	srv := server.NewGRPCServer(unary.Commit(), stream.Commit())
func NewDefaultServerChains(
	serviceName string,
	log *logger.Logger,
	opts ...ConfigOption,
) (*UnaryServerInterceptorChain, *StreamServerInterceptorChain) {
	cfg := NewConfig(serviceName, opts...)
	unary := NewChain[grpc.UnaryServerInterceptor]()
	stream := NewChain[grpc.StreamServerInterceptor]()

	if cfg.TracingEnabled {
		unary.Push(TraceID, grpctrace.UnaryServerInterceptor(
			grpctrace.WithService(cfg.ServiceName),
			grpctrace.WithMetadataTags(),
			grpctrace.WithUntracedMethods(healthCheckMethod),
		))
		stream.Push(TraceID, grpctrace.StreamServerInterceptor(
			grpctrace.WithService(cfg.ServiceName),
			grpctrace.WithMetadataTags(),
		))
	}

	if cfg.RequestTimeout > 0 {
		unary.Push(DeadlineID, UnaryDeadlineServerInterceptor(cfg.RequestTimeout))
		stream.Push(DeadlineID, StreamDeadlineServerInterceptor(cfg.RequestTimeout))
	}

	if cfg.Pipeline != nil {
		unary.Push(CorrelationID, UnaryCorrelationServerInterceptor(cfg.Pipeline, cfg.Accessor))
		stream.Push(CorrelationID, StreamCorrelationServerInterceptor(cfg.Pipeline, cfg.Accessor))
	}
	unary.Push(TraceHeadersID, UnaryTraceHeadersServerInterceptor())

	if cfg.PanicRecoveryEnabled {
		unary.Push(PanicRecoveryID, UnaryPanicRecoveryServerInterceptor(log))
		stream.Push(PanicRecoveryID, StreamPanicRecoveryServerInterceptor(log))
	}

	unary.Push(ContextStatusID, UnaryContextStatusInterceptor())
	stream.Push(ContextStatusID, StreamContextStatusInterceptor())

	return unary, stream
}

// NewDefaultClientChains builds the chains for outbound calls: a Datadog client span, then
// the correlation id of the call context copied to header (x-correlation-id when empty).
func NewDefaultClientChains(serviceName, header string) (*UnaryClientInterceptorChain, *StreamClientInterceptorChain) {
	if header == "" {
		header = headers.HeaderXCorrelationID
	}
	unary := NewChain[grpc.UnaryClientInterceptor]()
	stream := NewChain[grpc.StreamClientInterceptor]()

	unary.Push(TraceID, grpctrace.UnaryClientInterceptor(grpctrace.WithService(serviceName)))
	stream.Push(TraceID, grpctrace.StreamClientInterceptor(grpctrace.WithService(serviceName)))

	// after trace so that a current span is active
	unary.Push(CorrelationID, UnaryCorrelationClientInterceptor(header))
	stream.Push(CorrelationID, StreamCorrelationClientInterceptor(header))

	return unary, stream
}
