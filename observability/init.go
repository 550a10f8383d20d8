package observability

import (
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"

	"github.com/rainbow-me/gateway-correlation/common/logger"
)

type config struct {
	MetricsEnabled   bool
	AnalyticsEnabled bool
	DebugStack       bool
	Version          string
	GlobalTags       map[string]string
}

// Option tunes InitObservability.
type Option func(o *config)

// WithMetrics enables/disables collection of Go Runtime Metrics. Default enabled.
// When enabled, pushes metrics to DataDog every few seconds.
func WithMetrics(enabled bool) Option {
	return func(c *config) {
		c.MetricsEnabled = enabled
	}
}

// WithAnalytics enables/disables trace analytics. Default enabled.
func WithAnalytics(enabled bool) Option {
	return func(c *config) {
		c.AnalyticsEnabled = enabled
	}
}

// WithDebugStack enables/disables capture of stack traces when an error is set on a span. Default disabled.
func WithDebugStack(enabled bool) Option {
	return func(c *config) {
		c.DebugStack = enabled
	}
}

// WithVersion tags every span with the deployed gateway version.
func WithVersion(version string) Option {
	return func(c *config) {
		c.Version = version
	}
}

// WithGlobalTag adds a tag to every span the process emits.
func WithGlobalTag(key, value string) Option {
	return func(c *config) {
		if c.GlobalTags == nil {
			c.GlobalTags = make(map[string]string)
		}
		c.GlobalTags[key] = value
	}
}

// InitObservability starts the Datadog tracer. The returned function stops it and is safe
// to call even when the tracer failed to start.
func InitObservability(serviceName, env string, log *logger.Logger, opts ...Option) (stop func()) {
	if log == nil {
		log = logger.NoOp()
	}
	log.Info("Starting tracer", logger.String("service", serviceName), logger.String("env", env))

	cfg := &config{
		MetricsEnabled:   true,
		AnalyticsEnabled: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	tracerOpts := []tracer.StartOption{
		tracer.WithEnv(env),
		tracer.WithService(serviceName),
		tracer.WithLogger((*logger.Adapter)(log)),
		tracer.WithDebugStack(cfg.DebugStack),
		tracer.WithAnalytics(cfg.AnalyticsEnabled),
	}
	if cfg.Version != "" {
		tracerOpts = append(tracerOpts, tracer.WithServiceVersion(cfg.Version))
	}
	for k, v := range cfg.GlobalTags {
		tracerOpts = append(tracerOpts, tracer.WithGlobalTag(k, v))
	}
	if cfg.MetricsEnabled {
		tracerOpts = append(tracerOpts, tracer.WithRuntimeMetrics())
	}

	if err := tracer.Start(tracerOpts...); err != nil {
		log.Error("Failed to start tracer", logger.Error(err))
	}
	return tracer.Stop
}
