package api

import (
	"net/http"

	"github.com/b0bbywan/go-odio-portal/backend"
	"github.com/b0bbywan/go-odio-portal/logger"
)

func (s *Server) registerServerRoutes(b *backend.Backend) {
	s.mux.HandleFunc(
		"GET /server",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return b.GetServerDeviceInfo(r.Context())
		}),
	)

	if s.broadcaster != nil {
		s.mux.HandleFunc("GET /events", sseHandler(s.broadcaster, b.Snapshot))
		logger.Info("[api] SSE route registered at /events")
	}
}

func (s *Server) registerCameraRoutes(b *backend.Backend) {
	cam := b.Portal.Camera
	s.mux.HandleFunc(
		"GET /camera",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return cam.Status(), nil
		}),
	)
	s.mux.HandleFunc(
		"POST /camera/start",
		StartCameraHandler(cam),
	)
	s.mux.HandleFunc(
		"POST /camera/stop",
		StopCameraHandler(cam),
	)
}

func (s *Server) registerScreenshotRoutes(b *backend.Backend) {
	s.mux.HandleFunc(
		"POST /screenshot",
		TakeScreenshotHandler(b.Portal),
	)
	s.mux.HandleFunc(
		"POST /screenshot/pick_color",
		PickColorHandler(b.Portal),
	)
}

func (s *Server) registerWallpaperRoutes(b *backend.Backend) {
	s.mux.HandleFunc(
		"POST /wallpaper",
		SetWallpaperHandler(b.Portal),
	)
}
