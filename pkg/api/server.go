package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/skylane/skylane/config"
	"github.com/skylane/skylane/pkg/logger"
)

// HTTPServer serves the coordinator API: the delivery workflow endpoints,
// saga inspection, health probes, and the websocket event stream.
type HTTPServer struct {
	server *http.Server
	logger logger.Logger
}

// NewHTTPServer assembles the router and binds it to the configured address.
func NewHTTPServer(cfg *config.Config, log logger.Logger, handlers *Handlers) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      NewRouter(cfg, log, handlers),
			ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
			WriteTimeout: cfg.Server.HTTP.WriteTimeout,
			IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
		},
		logger: log,
	}
}

// Start blocks serving requests until Shutdown is called or the listener
// fails. A clean shutdown returns nil.
func (s *HTTPServer) Start() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires. Sagas started by
// those requests are not interrupted; the recovery manager resumes any that
// were cut off mid-run on next startup.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("http server draining")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
