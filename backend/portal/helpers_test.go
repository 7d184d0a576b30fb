package portal_test

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-odio-portal/backend/portal"
	"github.com/b0bbywan/go-odio-portal/backend/portal/portaltest"
	"github.com/b0bbywan/go-odio-portal/config"
	"github.com/b0bbywan/go-odio-portal/events"
)

func testConfig() *config.PortalConfig {
	return &config.PortalConfig{
		CallTimeout:   time.Second,
		OutcomeTTL:    time.Minute,
		WindowTimeout: 50 * time.Millisecond,
		Camera:        &config.CameraConfig{Enabled: true},
		Screenshot:    &config.ScreenshotConfig{Enabled: true},
		Wallpaper:     &config.WallpaperConfig{Enabled: true},
	}
}

func newClient(t *testing.T, b *portaltest.Broker, mutate func(*config.PortalConfig)) *portal.Client {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	c, err := portal.New(context.Background(), b, cfg)
	if err != nil {
		t.Fatalf("portal.New() error: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitHandle(t *testing.T, ch <-chan dbus.ObjectPath) dbus.ObjectPath {
	t.Helper()
	select {
	case h := <-ch:
		return h
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a request handle")
		return ""
	}
}

// drainEvents returns the events buffered so far.
func drainEvents(c *portal.Client) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-c.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(evts []events.Event) []string {
	types := make([]string, len(evts))
	for i, e := range evts {
		types[i] = e.Type
	}
	return types
}

func hasEvent(evts []events.Event, typ string) bool {
	for _, e := range evts {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
