package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/five82/wayfinder/internal/manifest"
	"github.com/five82/wayfinder/internal/walker"
)

var tracer = otel.Tracer("wayfinder.server")

const shutdownTimeout = 5 * time.Second

// Options configure a Server.
type Options struct {
	Manifests *manifest.Holder
	Loader    walker.DataLoader
	Renderer  walker.Renderer
	Logger    *slog.Logger
}

// Server answers Flight and first-load requests for the current manifest.
type Server struct {
	manifests *manifest.Holder
	loader    walker.DataLoader
	renderer  walker.Renderer
	logger    *slog.Logger
	engine    *gin.Engine
}

// New builds a server. Manifests is required.
func New(opts Options) (*Server, error) {
	if opts.Manifests == nil || opts.Manifests.Get() == nil {
		return nil, fmt.Errorf("server: manifest is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		manifests: opts.Manifests,
		loader:    opts.Loader,
		renderer:  opts.Renderer,
		logger:    opts.Logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(opts.Logger))
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// Every other path belongs to the route manifest.
	engine.NoRoute(s.handleRoute)
	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("flight server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("flight server stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
