package health

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rainbow-me/gateway-correlation/common/headers"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/grpc/interceptors"
)

// ErrNotServing is returned by Probe when the service answers with any status but SERVING.
var ErrNotServing = errors.New("service not serving")

// config holds the configuration for creating a health checker.
type config struct {
	target            string
	dialTimeout       time.Duration
	correlationHeader string
	dialOptions       []grpc.DialOption
}

// Option is a functional option for configuring the health checker creation.
type Option func(*config)

// WithTarget sets the target address for the gRPC connection (e.g., "localhost:9090").
func WithTarget(target string) Option {
	return func(c *config) {
		c.target = target
	}
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.dialTimeout = timeout
	}
}

// WithCorrelationHeader sets the metadata key the probe's correlation id is sent under.
func WithCorrelationHeader(header string) Option {
	return func(c *config) {
		c.correlationHeader = header
	}
}

// WithDialOptions allows passing custom gRPC DialOptions.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *config) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// HealthChecker is a wrapper around the gRPC health client that manages the underlying connection.
type HealthChecker struct {
	client grpc_health_v1.HealthClient
	conn   *grpc.ClientConn
}

// Check performs a health check on the specified service.
func (h *HealthChecker) Check(
	ctx context.Context,
	req *grpc_health_v1.HealthCheckRequest,
	opts ...grpc.CallOption,
) (*grpc_health_v1.HealthCheckResponse, error) {
	return h.client.Check(ctx, req, opts...)
}

// Probe checks service and fails unless it is SERVING. The correlation id found in ctx is
// sent along, so the probe shows up in the gateway logs under that id.
func (h *HealthChecker) Probe(ctx context.Context, service string) error {
	resp, err := h.client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return errors.Wrapf(err, "health check %q", service)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return errors.Wrapf(ErrNotServing, "service %q is %s", service, resp.GetStatus())
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (h *HealthChecker) Close() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

// NewHealthChecker creates a new HealthChecker with the provided functional options.
// The user should call Close() when done, typically with defer.
// Default target is "localhost:9090", insecure, 10s dial timeout, correlation ids sent under
// x-correlation-id.
func NewHealthChecker(opts ...Option) (*HealthChecker, error) {
	c := &config{
		target:            "localhost:9090",
		dialTimeout:       10 * time.Second,
		correlationHeader: headers.HeaderXCorrelationID,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.target == "" {
		return nil, errors.New("target address is required")
	}
	if _, err := correlation.NewAccessor(c.correlationHeader); err != nil {
		return nil, err
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: c.dialTimeout,
		}),
		grpc.WithChainUnaryInterceptor(interceptors.UnaryCorrelationClientInterceptor(c.correlationHeader)),
	}
	// caller options last so they can override credentials
	dialOpts = append(dialOpts, c.dialOptions...)

	conn, err := grpc.NewClient(c.target, dialOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create health client")
	}

	return &HealthChecker{client: grpc_health_v1.NewHealthClient(conn), conn: conn}, nil
}
