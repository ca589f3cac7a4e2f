package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const stopTimeout = 5 * time.Second

// Config is the listener configuration, parsed from the environment with
// a per-service prefix.
type Config struct {
	Host string `env:"HOST" envDefault:""`
	Port string `env:"PORT" envDefault:"7070"`
}

// Server is anything with a Start/Stop lifecycle managed by the main's
// errgroup.
type Server interface {
	Start() error
	Stop() error
}

type httpServer struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string
	server *http.Server
	logger *slog.Logger
}

// NewHTTPServer wraps an http.Handler with graceful shutdown tied to the
// process context.
func NewHTTPServer(ctx context.Context, cancel context.CancelFunc, name string, cfg Config, handler http.Handler, logger *slog.Logger) Server {
	return &httpServer{
		ctx:    ctx,
		cancel: cancel,
		name:   name,
		server: &http.Server{
			Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
			Handler: handler,
		},
		logger: logger,
	}
}

func (s *httpServer) Start() error {
	s.logger.Info(fmt.Sprintf("%s service HTTP server listening at %s", s.name, s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *httpServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info(fmt.Sprintf("%s service HTTP server stopped", s.name))

	return nil
}

// StopSignalHandler blocks until SIGINT/SIGTERM or context cancellation,
// then stops the given servers and cancels the process context.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string, servers ...Server) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-c:
		defer cancel()
		for _, s := range servers {
			if err := s.Stop(); err != nil {
				logger.Error(fmt.Sprintf("%s service error during shutdown: %s", svcName, err))
			}
		}
		logger.Info(fmt.Sprintf("%s service shutdown by signal: %s", svcName, sig))

		return nil
	case <-ctx.Done():
		for _, s := range servers {
			if err := s.Stop(); err != nil {
				logger.Error(fmt.Sprintf("%s service error during shutdown: %s", svcName, err))
			}
		}

		return nil
	}
}
