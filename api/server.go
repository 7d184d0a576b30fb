package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/b0bbywan/go-odio-portal/backend"
	"github.com/b0bbywan/go-odio-portal/config"
	"github.com/b0bbywan/go-odio-portal/logger"
)

type Server struct {
	mux         *http.ServeMux
	config      *config.ApiConfig
	broadcaster *backend.Broadcaster
}

func NewServer(cfg *config.ApiConfig, b *backend.Backend) *Server {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	server := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
	}
	if b != nil {
		server.broadcaster = b.Broadcast
	}
	server.register(b)
	return server
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Listen,
		Handler: s.mux,
		// Derive request contexts from ctx so that long-lived handlers
		// (SSE, requests waiting on the user) exit when the application shuts down.
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Info("[api] server %s shutdown error: %v", srv.Addr, err)
		}
	}()

	logger.Info("[api] http server running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server %s: %w", srv.Addr, err)
	}
	return nil
}

func (s *Server) register(b *backend.Backend) {
	// no catch-all: unmatched paths get 404, wrong methods 405
	if b == nil {
		return
	}

	s.registerServerRoutes(b)

	if b.Portal == nil {
		return
	}
	if b.Portal.Camera != nil {
		s.registerCameraRoutes(b)
	}
	if b.Portal.Screenshot != nil {
		s.registerScreenshotRoutes(b)
	}
	if b.Portal.Wallpaper != nil {
		s.registerWallpaperRoutes(b)
	}
}
