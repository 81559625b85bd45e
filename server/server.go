package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caasmo/faviconproxy/config"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	configProvider *config.Provider
	handler        http.Handler
	logger         *slog.Logger

	// reloadFunc is called on SIGHUP.
	reloadFunc func() error

	exitFunc func(int)

	// onReady, when set, receives the bound address once the listener is up.
	onReady func(net.Addr)
}

func NewServer(provider *config.Provider, handler http.Handler, logger *slog.Logger, reloadFunc func() error) *Server {
	return &Server{
		configProvider: provider,
		handler:        handler,
		logger:         logger,
		reloadFunc:     reloadFunc,
		exitFunc:       os.Exit,
	}
}

// Run serves until SIGINT, SIGQUIT or SIGTERM, then shuts down gracefully
// and exits the process. SIGHUP reloads without restarting.
func (s *Server) Run() {
	cfg := s.configProvider.Get().Server

	s.logger.Info("Server configuration",
		"addr", cfg.Addr,
		"self_domain", cfg.SelfDomain,
		"read_timeout", cfg.ReadTimeout.Duration,
		"read_header_timeout", cfg.ReadHeaderTimeout.Duration,
		"write_timeout", cfg.WriteTimeout.Duration,
		"idle_timeout", cfg.IdleTimeout.Duration,
		"shutdown_timeout", cfg.ShutdownGracefulTimeout.Duration,
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout.Duration,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration,
		WriteTimeout:      cfg.WriteTimeout.Duration,
		IdleTimeout:       cfg.IdleTimeout.Duration,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,  // kill -SIGINT XXXX or Ctrl+c
		syscall.SIGQUIT, // kill -SIGQUIT XXXX
		syscall.SIGTERM, // kill XXXX
	)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.logger.Error("Listen error", "addr", cfg.Addr, "err", err)
		s.exitFunc(1)
		return
	}
	if s.onReady != nil {
		s.onReady(ln.Addr())
	}

	// Start HTTP server
	serverError := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Serve error", "err", err)
			serverError <- err
		}
	}()

	// Wait for either interrupt signal or server error
	serveFailed := false
loop:
	for {
		select {
		case <-hup:
			s.reload()
		case <-ctx.Done():
			s.logger.Info("Received shutdown signal - gracefully shutting down")
			break loop
		case err := <-serverError:
			s.logger.Error("Server error - initiating shutdown", "err", err)
			serveFailed = true
			break loop
		}
	}

	// Reset signals default behavior, similar to signal.Reset
	stop()

	timeout := s.configProvider.Get().Server.ShutdownGracefulTimeout.Duration
	gracefulCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	shutdownGroup, _ := errgroup.WithContext(gracefulCtx)

	shutdownGroup.Go(func() error {
		s.logger.Info("Shutting down HTTP server")
		if err := srv.Shutdown(gracefulCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "err", err)
			return err
		}
		s.logger.Info("HTTP server stopped gracefully")
		return nil
	})

	if err := shutdownGroup.Wait(); err != nil || serveFailed {
		s.logger.Error("Error during shutdown", "err", err)
		s.exitFunc(1)
		return
	}

	s.logger.Info("All systems stopped gracefully")
	s.exitFunc(0)
}

func (s *Server) reload() {
	s.logger.Info("Received SIGHUP - reloading configuration")
	if s.reloadFunc == nil {
		return
	}
	if err := s.reloadFunc(); err != nil {
		s.logger.Error("Reload failed, keeping current configuration", "err", err)
		return
	}
	s.logger.Info("Configuration reloaded")
}
