package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/gateway-correlation/common/config"
	"github.com/rainbow-me/gateway-correlation/common/env"
	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/gateway"
	"github.com/rainbow-me/gateway-correlation/grpc/health"
	"github.com/rainbow-me/gateway-correlation/observability"
)

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve()
	case "healthcheck":
		err = healthcheck()
	default:
		err = errors.Newf("unknown command %q, expected serve or healthcheck", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func load() (gateway.Config, env.Environment, *logger.Logger, error) {
	currentEnv, err := env.GetApplicationEnv()
	if err != nil {
		return gateway.Config{}, "", nil, err
	}
	z, err := logger.InitLogger()
	if err != nil {
		return gateway.Config{}, "", nil, err
	}
	l := logger.NewLogger(z)
	logger.SetInstance(l)

	var cfg gateway.Config
	if err = config.LoadConfig(&cfg, l); err != nil {
		return gateway.Config{}, "", nil, err
	}
	if err = cfg.Validate(); err != nil {
		return gateway.Config{}, "", nil, err
	}
	return cfg, currentEnv, l, nil
}

func serve() error {
	cfg, currentEnv, l, err := load()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	if !currentEnv.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Tracing.Enabled {
		stop := observability.InitObservability(cfg.ServiceName, currentEnv.String(), l,
			observability.WithVersion(cfg.Version),
			observability.WithAnalytics(cfg.Tracing.Analytics),
			observability.WithGlobalTag("correlation.header", cfg.Correlation.Header),
		)
		defer stop()
	}

	g, err := gateway.New(cfg, l)
	if err != nil {
		return err
	}
	srv, err := g.Server()
	if err != nil {
		return err
	}

	l.Info("gateway starting",
		logger.String("http", cfg.HTTP.Address),
		logger.String("grpc", cfg.GRPC.Address),
		logger.String("admin", cfg.Admin.Address),
		logger.String("correlation_header", cfg.Correlation.Header),
	)
	return srv.Serve()
}

// healthcheck probes the local gRPC health service, for container health checks.
func healthcheck() error {
	cfg, _, l, err := load()
	if err != nil {
		return err
	}

	checker, err := health.NewHealthChecker(
		health.WithTarget(localTarget(cfg.GRPC.Address)),
		health.WithCorrelationHeader(cfg.Correlation.Header),
		health.WithDialTimeout(2*time.Second),
	)
	if err != nil {
		return err
	}
	defer checker.Close()

	id, err := correlation.NewUUIDGenerator().Generate()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = checker.Probe(correlation.ContextWithID(ctx, id), cfg.ServiceName); err != nil {
		return err
	}
	l.Info("gateway healthy", correlation.LogField(id))
	return nil
}

// localTarget turns a listen address such as ":9090" into a dialable one.
func localTarget(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
