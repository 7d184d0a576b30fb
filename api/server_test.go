package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/b0bbywan/go-odio-portal/backend"
	"github.com/b0bbywan/go-odio-portal/backend/portal/portaltest"
	"github.com/b0bbywan/go-odio-portal/config"
)

func apiConfig() *config.ApiConfig {
	return &config.ApiConfig{
		Enabled: true,
		Port:    8090,
		Listen:  "127.0.0.1:8090",
	}
}

func backendConfig() *config.Config {
	return &config.Config{
		Api: apiConfig(),
		Portal: &config.PortalConfig{
			CallTimeout: time.Second,
			OutcomeTTL:  time.Minute,
			Camera:      &config.CameraConfig{Enabled: true},
			Screenshot:  &config.ScreenshotConfig{Enabled: true},
			Wallpaper:   &config.WallpaperConfig{Enabled: true},
		},
		Zeroconf: &config.ZeroConfig{},
	}
}

// newTestServer serves a backend wired to broker b.
func newTestServer(t *testing.T, b *portaltest.Broker, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := backendConfig()
	if mutate != nil {
		mutate(cfg)
	}
	be, err := backend.New(context.Background(), b, cfg)
	if err != nil {
		t.Fatalf("backend.New() error: %v", err)
	}
	t.Cleanup(be.Close)

	server := NewServer(cfg.Api, be)
	if server == nil {
		t.Fatal("NewServer should return a non-nil server")
	}
	return server
}

func serve(s *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// TestServerDisabled verifies that NewServer returns nil when API is disabled
func TestServerDisabled(t *testing.T) {
	cfg := apiConfig()
	cfg.Enabled = false

	if server := NewServer(cfg, &backend.Backend{}); server != nil {
		t.Error("NewServer should return nil when API is disabled")
	}
	if server := NewServer(nil, &backend.Backend{}); server != nil {
		t.Error("NewServer should return nil without config")
	}
}

func TestNilBackendHandling(t *testing.T) {
	server := NewServer(apiConfig(), nil)
	if server == nil {
		t.Fatal("NewServer should return a non-nil server even with nil backend")
	}
	if w := serve(server, http.MethodGet, "/server", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET /server status = %d, want 404", w.Code)
	}
}

func TestRoutesWithDisabledCapabilities(t *testing.T) {
	server := newTestServer(t, portaltest.NewBroker(), func(cfg *config.Config) {
		cfg.Portal.Camera.Enabled = false
		cfg.Portal.Wallpaper.Enabled = false
	})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusNotFound},
		{http.MethodGet, "/camera", http.StatusNotFound},
		{http.MethodPost, "/camera/start", http.StatusNotFound},
		{http.MethodPost, "/wallpaper", http.StatusNotFound},
		{http.MethodGet, "/server", http.StatusOK},
	}
	for _, tt := range tests {
		if w := serve(server, tt.method, tt.path, ""); w.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestRouteMethodRestrictions(t *testing.T) {
	server := newTestServer(t, portaltest.NewBroker(), nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/camera/start"},
		{http.MethodGet, "/camera/stop"},
		{http.MethodGet, "/screenshot"},
		{http.MethodGet, "/screenshot/pick_color"},
		{http.MethodGet, "/wallpaper"},
		{http.MethodPost, "/server"},
		{http.MethodPost, "/camera"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := serve(server, tt.method, tt.path, ""); w.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", w.Code)
			}
		})
	}
}

func TestServerRun_Shutdown(t *testing.T) {
	cfg := apiConfig()
	cfg.Listen = "127.0.0.1:0"
	server := NewServer(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
