package server

import (
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/rainbow-me/gateway-correlation/common/logger"
)

var (
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultHookTimeout       = 5 * time.Second
	DefaultHTTPReadTimeout   = 5 * time.Second
	DefaultHTTPWriteTimeout  = 10 * time.Second
	DefaultHTTPIdleTimeout   = 120 * time.Second
	DefaultHTTPHeaderTimeout = 2 * time.Second
)

// HTTPConfig holds configuration for HTTP servers
type HTTPConfig struct {
	Name          string        // Unique name for this server (used in logging)
	Address       string        // Address to bind to (e.g., ":8080")
	Handler       http.Handler  // HTTP handler for this server (pre-configured with routes and middlewares)
	ReadTimeout   time.Duration // Maximum duration for reading the entire request
	WriteTimeout  time.Duration // Maximum duration before timing out writes
	IdleTimeout   time.Duration // Maximum amount of time to wait for next request when keep-alives are enabled
	HeaderTimeout time.Duration // Amount of time allowed to read request headers
}

// GRPCConfig holds configuration for gRPC servers
type GRPCConfig struct {
	Name       string             // Unique name for this server (used in logging)
	Address    string             // Address to bind to (e.g., ":9090")
	GRPCServer *grpc.Server       // Existing gRPC server instance; if not provided, one will be created
	SetupFunc  func(*grpc.Server) // Function to register services on the gRPC server
}

// HTTPConfigOption is a functional option for configuring HTTPConfig
type HTTPConfigOption func(*HTTPConfig)

// WithHTTPReadTimeout sets the read timeout for the HTTP config
func WithHTTPReadTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.ReadTimeout = timeout
	}
}

// WithHTTPWriteTimeout sets the write timeout for the HTTP config
func WithHTTPWriteTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.WriteTimeout = timeout
	}
}

// WithHTTPIdleTimeout sets the idle timeout for the HTTP config
func WithHTTPIdleTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.IdleTimeout = timeout
	}
}

// WithHTTPHeaderTimeout sets the header timeout for the HTTP config
func WithHTTPHeaderTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.HeaderTimeout = timeout
	}
}

type config struct {
	http            []HTTPConfig
	grpc            []GRPCConfig
	hooks           ShutdownHooks
	shutdownTimeout time.Duration
	signalHandling  bool
	automaticStop   bool
	log             *logger.Logger
}

// Option configures a Server.
type Option func(*config)

// WithHTTPServer adds an HTTP server. A nil handler is rejected by NewServer.
func WithHTTPServer(name, address string, handler http.Handler, opts ...HTTPConfigOption) Option {
	return func(c *config) {
		hc := HTTPConfig{
			Name:          name,
			Address:       address,
			Handler:       handler,
			ReadTimeout:   DefaultHTTPReadTimeout,
			WriteTimeout:  DefaultHTTPWriteTimeout,
			IdleTimeout:   DefaultHTTPIdleTimeout,
			HeaderTimeout: DefaultHTTPHeaderTimeout,
		}
		for _, opt := range opts {
			opt(&hc)
		}
		c.http = append(c.http, hc)
	}
}

// WithGRPCServer adds a gRPC server. srv may be nil, in which case a bare server is
// created; setup registers the services and is required.
func WithGRPCServer(name, address string, srv *grpc.Server, setup func(*grpc.Server)) Option {
	return func(c *config) {
		c.grpc = append(c.grpc, GRPCConfig{
			Name:       name,
			Address:    address,
			GRPCServer: srv,
			SetupFunc:  setup,
		})
	}
}

// WithShutdownTimeout bounds GracefulShutdown, hooks included. Default DefaultShutdownTimeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.shutdownTimeout = timeout
	}
}

// WithShutdownHook registers a function run during GracefulShutdown, before the servers stop.
func WithShutdownHook(hook ShutdownHook) Option {
	return func(c *config) {
		c.hooks = append(c.hooks, hook)
	}
}

// WithSignalHandling makes Serve react to SIGINT and SIGTERM. Default enabled.
func WithSignalHandling(enabled bool) Option {
	return func(c *config) {
		c.signalHandling = enabled
	}
}

// WithAutomaticStop selects what a signal triggers: a graceful shutdown when enabled
// (default), an immediate Stop otherwise.
func WithAutomaticStop(enabled bool) Option {
	return func(c *config) {
		c.automaticStop = enabled
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log *logger.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}
