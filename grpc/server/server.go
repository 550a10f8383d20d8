package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rainbow-me/gateway-correlation/common/logger"
)

var (
	// ErrNoServers is returned by Serve when no HTTP or gRPC server was configured.
	ErrNoServers = errors.New("no servers configured")
	// ErrShutdownTimeout marks a graceful shutdown that did not finish in time.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

type httpEntry struct {
	cfg HTTPConfig
	srv *http.Server
}

type grpcEntry struct {
	cfg GRPCConfig
	srv *grpc.Server
}

// Server runs a set of named HTTP and gRPC servers side by side and stops them together.
type Server struct {
	cfg   config
	http  []*httpEntry
	grpc  []*grpcEntry
	hooks ShutdownHooks

	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
	done     chan struct{}
}

// NewServer validates opts and prepares the servers. Nothing listens until Serve.
func NewServer(opts ...Option) (*Server, error) {
	cfg := config{
		shutdownTimeout: DefaultShutdownTimeout,
		signalHandling:  true,
		automaticStop:   true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.NoOp()
	}

	names := make(map[string]struct{})
	addrs := make(map[string]struct{})
	register := func(name, addr string) error {
		if name == "" {
			return errors.New("server name is required")
		}
		if _, ok := names[name]; ok {
			return errors.Newf("duplicate server name %q", name)
		}
		names[name] = struct{}{}
		if _, port, err := net.SplitHostPort(addr); err == nil && port != "0" {
			if _, ok := addrs[addr]; ok {
				return errors.Newf("duplicate server address %q", addr)
			}
			addrs[addr] = struct{}{}
		}
		return nil
	}

	s := &Server{cfg: cfg, done: make(chan struct{})}
	for _, hc := range cfg.http {
		if hc.Handler == nil {
			return nil, errors.Newf("http server %q: handler is required", hc.Name)
		}
		if err := register(hc.Name, hc.Address); err != nil {
			return nil, err
		}
		s.http = append(s.http, &httpEntry{
			cfg: hc,
			srv: &http.Server{
				Addr:              hc.Address,
				Handler:           hc.Handler,
				ReadTimeout:       hc.ReadTimeout,
				WriteTimeout:      hc.WriteTimeout,
				IdleTimeout:       hc.IdleTimeout,
				ReadHeaderTimeout: hc.HeaderTimeout,
			},
		})
	}
	for _, gc := range cfg.grpc {
		if gc.SetupFunc == nil {
			return nil, errors.Newf("grpc server %q: setup function is required", gc.Name)
		}
		if err := register(gc.Name, gc.Address); err != nil {
			return nil, err
		}
		srv := gc.GRPCServer
		if srv == nil {
			srv = NewGRPCServer(nil, nil)
		}
		gc.SetupFunc(srv)
		s.grpc = append(s.grpc, &grpcEntry{cfg: gc, srv: srv})
	}

	for _, h := range cfg.hooks {
		if err := h.validate(); err != nil {
			return nil, err
		}
	}
	s.hooks = append(ShutdownHooks(nil), cfg.hooks...)
	sort.Stable(s.hooks)
	return s, nil
}

// Serve binds every server and blocks until they all stop. It returns nil after Stop or a
// graceful shutdown, and the first failure otherwise. When signal handling is enabled,
// SIGINT and SIGTERM trigger GracefulShutdown (or Stop without automatic stop).
func (s *Server) Serve() error {
	if len(s.http) == 0 && len(s.grpc) == 0 {
		return ErrNoServers
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	listeners := make([]net.Listener, 0, len(s.http)+len(s.grpc))
	listen := func(name, addr string) (net.Listener, error) {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return nil, errors.Wrapf(err, "listen %s on %s", name, addr)
		}
		listeners = append(listeners, lis)
		return lis, nil
	}

	g := new(errgroup.Group)
	for _, e := range s.http {
		lis, err := listen(e.cfg.Name, e.cfg.Address)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.cfg.log.Info("http server listening",
			logger.String("server", e.cfg.Name), logger.String("address", lis.Addr().String()))
		g.Go(func() error {
			if err := e.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "http server %s", e.cfg.Name)
			}
			return nil
		})
	}
	for _, e := range s.grpc {
		lis, err := listen(e.cfg.Name, e.cfg.Address)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.cfg.log.Info("grpc server listening",
			logger.String("server", e.cfg.Name), logger.String("address", lis.Addr().String()))
		g.Go(func() error {
			if err := e.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return errors.Wrapf(err, "grpc server %s", e.cfg.Name)
			}
			return nil
		})
	}
	s.mu.Unlock()

	if s.cfg.signalHandling {
		go s.handleSignals()
	}

	err := g.Wait()
	if err != nil {
		// one server failing takes the others down with it
		_ = s.Stop()
	}
	s.stopOnce.Do(func() { close(s.done) })
	return err
}

func (s *Server) handleSignals() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case <-s.done:
		return
	case <-ctx.Done():
	}

	s.cfg.log.Info("shutdown signal received")
	if !s.cfg.automaticStop {
		if err := s.Stop(); err != nil {
			s.cfg.log.Error("failed to stop servers", logger.Error(err))
		}
		return
	}
	if err := s.GracefulShutdown(context.Background()); err != nil {
		s.cfg.log.Error("graceful shutdown failed", logger.Error(err))
	}
}

// Stop closes every server immediately, dropping in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true

	var errs []error
	for _, e := range s.http {
		if err := e.srv.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close http server %s", e.cfg.Name))
		}
	}
	for _, e := range s.grpc {
		e.srv.Stop()
	}
	return errors.Join(errs...)
}

// GracefulShutdown runs the shutdown hooks, then drains the servers. The whole sequence is
// bounded by ctx and the configured shutdown timeout; running out of time stops the
// servers hard and returns an error wrapping ErrShutdownTimeout.
func (s *Server) GracefulShutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
	defer cancel()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	var errs []error
	if err := s.ExecuteShutdownHooks(ctx); err != nil {
		errs = append(errs, err)
	}

	var wg sync.WaitGroup
	for _, e := range s.http {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.srv.Shutdown(ctx); err != nil {
				_ = e.srv.Close()
			}
		}()
	}
	for _, e := range s.grpc {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stopped := make(chan struct{})
			go func() {
				e.srv.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-ctx.Done():
				e.srv.Stop()
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		errs = append(errs, errors.WithSecondaryError(errors.Wrap(ErrShutdownTimeout, "graceful shutdown"), ctx.Err()))
		return errors.Join(errs...)
	}
	s.cfg.log.Info("servers stopped")
	return errors.Join(errs...)
}

// ExecuteShutdownHooks runs the hooks by ascending priority, each bounded by its own
// timeout. Every hook runs even if an earlier one fails; hooks not yet started when ctx
// expires are skipped.
func (s *Server) ExecuteShutdownHooks(ctx context.Context) error {
	var errs []error
	for _, hook := range s.hooks {
		if ctx.Err() != nil {
			errs = append(errs, errors.Wrapf(ctx.Err(), "shutdown hook %s not run", hook.Name))
			continue
		}
		if err := s.runHook(ctx, hook); err != nil {
			s.cfg.log.Error("shutdown hook failed", logger.String("hook", hook.Name), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		s.cfg.log.Debug("shutdown hook done", logger.String("hook", hook.Name))
	}
	return errors.Join(errs...)
}

func (s *Server) runHook(ctx context.Context, hook ShutdownHook) error {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	start := time.Now()
	go func() { result <- hook.Hook(ctx) }()

	select {
	case err := <-result:
		return errors.Wrapf(err, "shutdown hook %s", hook.Name)
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "shutdown hook %s abandoned after %s", hook.Name, time.Since(start).Round(time.Millisecond))
	}
}
