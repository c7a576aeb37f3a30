// Package server exposes the scene-graph engine over HTTP.
//
// The API is read-mostly: hierarchy and z-order views, loop validation, and
// an SVG rendering of the current graph, plus one mutating endpoint that
// applies a transaction. All handlers serve JSON except /v1/render.svg.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/strata-gfx/strata/pkg/engine"
)

// Server routes HTTP requests to one engine.
type Server struct {
	engine *engine.Engine
	logger *log.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a server around an engine.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{engine: e, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/hierarchy", s.handleHierarchy)
		r.Get("/hierarchy/{id}", s.handleSubtree)
		r.Get("/zorder", s.handleZOrder)
		r.Get("/validate", s.handleValidate)
		r.Get("/render.svg", s.handleRenderSVG)
		r.Post("/transactions", s.handleTransaction)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
