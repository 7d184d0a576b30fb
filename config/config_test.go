package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/b0bbywan/go-odio-portal/logger"
)

func loadYAML(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	return load(v)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}

	if !cfg.Api.Enabled || cfg.Api.Port != 8090 {
		t.Errorf("Api = %+v, want enabled on 8090", cfg.Api)
	}
	if cfg.Api.Listen != "127.0.0.1:8090" {
		t.Errorf("Listen = %q, want 127.0.0.1:8090", cfg.Api.Listen)
	}
	if cfg.Portal.CallTimeout != 5*time.Second {
		t.Errorf("CallTimeout = %s, want 5s", cfg.Portal.CallTimeout)
	}
	if cfg.Portal.ResponseTimeout != 0 {
		t.Errorf("ResponseTimeout = %s, want 0", cfg.Portal.ResponseTimeout)
	}
	if cfg.Portal.OutcomeTTL != 10*time.Minute {
		t.Errorf("OutcomeTTL = %s, want 10m", cfg.Portal.OutcomeTTL)
	}
	if cfg.LogLevel != logger.WARN {
		t.Errorf("LogLevel = %d, want WARN", cfg.LogLevel)
	}
	if cfg.Zeroconf.Enabled {
		t.Error("zeroconf should be disabled by default")
	}
}

func TestOptionalKeysStayUnset(t *testing.T) {
	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}

	if cfg.Portal.Screenshot.Interactive != nil || cfg.Portal.Screenshot.Modal != nil {
		t.Error("screenshot defaults should be nil when not configured")
	}
	if cfg.Portal.Wallpaper.ShowPreview != nil {
		t.Error("wallpaper.show_preview should be nil when not configured")
	}
	if cfg.Portal.Wallpaper.SetOn != "" {
		t.Errorf("SetOn = %q, want empty", cfg.Portal.Wallpaper.SetOn)
	}
}

func TestLoadFromYAML(t *testing.T) {
	cfg, err := loadYAML(t, `
api:
  port: 9000
portal:
  response_timeout: 2m
  parent_window: "x11:1a2b"
screenshot:
  interactive: false
  modal: true
wallpaper:
  show_preview: true
  set_on: Both
  watch_dir: /tmp/walls
camera:
  enabled: false
log:
  levels:
    portal: debug
`)
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}

	if cfg.Api.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Api.Port)
	}
	if cfg.Portal.ResponseTimeout != 2*time.Minute {
		t.Errorf("ResponseTimeout = %s, want 2m", cfg.Portal.ResponseTimeout)
	}
	if cfg.Portal.ParentWindow != "x11:1a2b" {
		t.Errorf("ParentWindow = %q", cfg.Portal.ParentWindow)
	}
	if s := cfg.Portal.Screenshot; s.Interactive == nil || *s.Interactive || s.Modal == nil || !*s.Modal {
		t.Errorf("Screenshot = %+v, want interactive=false modal=true", s)
	}
	if w := cfg.Portal.Wallpaper; w.ShowPreview == nil || !*w.ShowPreview || w.SetOn != "both" || w.WatchDir != "/tmp/walls" {
		t.Errorf("Wallpaper = %+v", w)
	}
	if cfg.Portal.Camera.Enabled {
		t.Error("camera should be disabled")
	}
	if cfg.LogLevels["portal"] != logger.DEBUG {
		t.Errorf("LogLevels[portal] = %d, want DEBUG", cfg.LogLevels["portal"])
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port too high", "api:\n  port: 70000\n"},
		{"port zero", "api:\n  port: 0\n"},
		{"unknown set_on", "wallpaper:\n  set_on: ceiling\n"},
		{"negative response timeout", "portal:\n  response_timeout: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadYAML(t, tt.yaml); err == nil {
				t.Error("load() should fail")
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ODIO_PORTAL_WALLPAPER_SET_ON", "lockscreen")
	t.Setenv("ODIO_PORTAL_SCREENSHOT_MODAL", "false")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.Portal.Wallpaper.SetOn != "lockscreen" {
		t.Errorf("SetOn = %q, want lockscreen", cfg.Portal.Wallpaper.SetOn)
	}
	if m := cfg.Portal.Screenshot.Modal; m == nil || *m {
		t.Errorf("Modal = %v, want false", m)
	}
}

func TestInterfaceForIP(t *testing.T) {
	if iface, err := interfaceForIP("127.0.0.1"); iface != nil || err != nil {
		t.Errorf("loopback should yield nil, nil; got %v, %v", iface, err)
	}
	if _, err := interfaceForIP("not-an-ip"); err == nil {
		t.Error("invalid IP should fail")
	}
}
