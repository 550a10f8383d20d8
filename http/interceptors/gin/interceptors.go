package gin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/filter"
)

const (
	httpHandlerOp = "http.handler"
	componentName = "gin"
)

type interceptorCfg struct {
	TracingEnabled bool
	HTTPDebug      bool
	HTTPTrace      bool
	Timeout        time.Duration
	Pipeline       *filter.Pipeline
	Accessor       *correlation.Accessor
}

// InterceptorOpt tunes DefaultInterceptors.
type InterceptorOpt func(cfg *interceptorCfg)

// WithFilterChain runs pipeline for every request, see CorrelationMiddleware.
// Without it no correlation id is established.
func WithFilterChain(pipeline *filter.Pipeline, accessor *correlation.Accessor) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.Pipeline = pipeline
		cfg.Accessor = accessor
	}
}

// WithTimeout bounds each request, filters and upstream call included. Default 1 minute,
// zero disables it.
func WithTimeout(timeout time.Duration) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.Timeout = timeout
	}
}

// WithTracingEnabled toggles the Datadog server span. Default on.
func WithTracingEnabled(enabled bool) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.TracingEnabled = enabled
	}
}

// WithHTTPDebug logs one line per request with method, path, status, size and duration.
func WithHTTPDebug() InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.HTTPDebug = true
	}
}

// WithHTTPTrace implies WithHTTPDebug and adds the first 4 KiB of both bodies to the line.
func WithHTTPTrace() InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.HTTPDebug = true
		cfg.HTTPTrace = true
	}
}

// DefaultInterceptors returns the gateway middleware stack in the order gin must run it:
// request logging, panic recovery, error handling, tracing, timeout, then the filter chain.
func DefaultInterceptors(opts ...InterceptorOpt) []gin.HandlerFunc {
	cfg := &interceptorCfg{
		TracingEnabled: true,
		Timeout:        time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	middlewares := []gin.HandlerFunc{
		RequestLogging(loggingCfg{
			debug: cfg.HTTPDebug,
			trace: cfg.HTTPTrace,
		}),
		PanicRecoveryMiddleware,
		ErrorHandlingMiddleware,
	}
	if cfg.TracingEnabled {
		middlewares = append(middlewares, TracingMiddleware)
	}
	// the timeout goes first so filters and handlers share one deadline
	middlewares = append(middlewares, TimeoutMiddleware(cfg.Timeout))
	if cfg.Pipeline != nil {
		middlewares = append(middlewares, CorrelationMiddleware(cfg.Pipeline, cfg.Accessor))
	}

	return middlewares
}
