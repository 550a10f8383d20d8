package gateway

import (
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rainbow-me/gateway-correlation/common/headers"
	"github.com/rainbow-me/gateway-correlation/correlation"
)

const (
	defaultServiceName     = "gateway-correlation"
	defaultHTTPAddress     = ":8080"
	defaultGRPCAddress     = ":9090"
	defaultAdminAddress    = ":8081"
	defaultUpstreamTimeout = 30 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Config is the gateway configuration, usually read by config.LoadConfig from
// cmd/config/<ENVIRONMENT>.yaml.
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`

	HTTP  ListenConfig `mapstructure:"http"`
	GRPC  ListenConfig `mapstructure:"grpc"`
	Admin ListenConfig `mapstructure:"admin"`

	Correlation CorrelationConfig `mapstructure:"correlation"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Tracing     TracingConfig     `mapstructure:"tracing"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ListenConfig struct {
	Address string `mapstructure:"address"`
}

type CorrelationConfig struct {
	// Header carries the correlation id in and out of the gateway
	Header string `mapstructure:"header"`
	// Validation is "none" (default) or "strict"
	Validation string `mapstructure:"validation"`
}

type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type TracingConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Analytics bool `mapstructure:"analytics"`
	// Debug logs every HTTP request with its duration
	Debug bool `mapstructure:"debug"`
}

// Validate fills in defaults and reports the first invalid value.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = defaultHTTPAddress
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = defaultGRPCAddress
	}
	if c.Admin.Address == "" {
		c.Admin.Address = defaultAdminAddress
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = defaultUpstreamTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}

	c.Correlation.Header = strings.ToLower(strings.TrimSpace(c.Correlation.Header))
	if c.Correlation.Header == "" {
		c.Correlation.Header = headers.HeaderXCorrelationID
	}
	if _, err := correlation.ParseValidation(c.Correlation.Validation); err != nil {
		return errors.Wrap(err, "correlation.validation")
	}

	if c.Upstream.URL == "" {
		return errors.New("upstream.url is required")
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil {
		return errors.Wrap(err, "upstream.url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("upstream.url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("upstream.url: host is required")
	}
	if c.Upstream.Timeout < 0 {
		return errors.New("upstream.timeout must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown_timeout must not be negative")
	}
	return nil
}
