package http

import (
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/rainbow-me/gateway-correlation/common/headers"
)

// CORSOption is a functional option for configuring CORS
type CORSOption func(*CORSConfig)

// WithAllowedOrigins sets the allowed origins for CORS
func WithAllowedOrigins(origins []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedOrigins = origins
	}
}

// WithAllowedMethods sets the allowed methods for CORS
func WithAllowedMethods(methods []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedMethods = methods
	}
}

// WithAllowedHeaders sets the allowed headers for CORS
func WithAllowedHeaders(headers []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedHeaders = headers
	}
}

// WithExposedHeaders sets the response headers browsers may read.
func WithExposedHeaders(headers []string) CORSOption {
	return func(c *CORSConfig) {
		c.ExposedHeaders = headers
	}
}

// WithAllowCredentials sets whether credentials are allowed
func WithAllowCredentials(allow bool) CORSOption {
	return func(c *CORSConfig) {
		c.AllowCredentials = allow
	}
}

// CORSConfig holds the CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
}

// DefaultCORSConfig allows every origin and exposes the correlation and request id
// headers, so browser clients can report them.
func DefaultCORSConfig(opts ...CORSOption) CORSConfig {
	cfg := CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead,
			http.MethodPatch,
		},
		AllowedHeaders: headers.CORSAllowedHeaders(),
		ExposedHeaders: []string{headers.HeaderXCorrelationID, headers.HeaderXRequestID},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// CORS wraps handler with the gorilla CORS middleware configured by cfg.
func CORS(handler http.Handler, cfg CORSConfig) http.Handler {
	options := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods(cfg.AllowedMethods),
		handlers.AllowedHeaders(cfg.AllowedHeaders),
		handlers.ExposedHeaders(cfg.ExposedHeaders),
		handlers.OptionStatusCode(http.StatusNoContent),
	}

	if cfg.AllowCredentials {
		options = append(options, handlers.AllowCredentials())
	}

	return handlers.CORS(options...)(handler)
}
