package zeroconf

import (
	"context"
	"net"
	"testing"

	"github.com/b0bbywan/go-odio-portal/config"
)

func TestNew_Disabled(t *testing.T) {
	for _, cfg := range []*config.ZeroConfig{nil, {Enabled: false}} {
		backend, err := New(context.Background(), cfg)
		if err != nil {
			t.Errorf("New() with disabled config returned error: %v", err)
		}
		if backend != nil {
			t.Error("New() with disabled config should return nil backend")
		}
	}
}

func TestNew_NoInterfaces(t *testing.T) {
	cfg := &config.ZeroConfig{
		Enabled: true,
		Listen:  []net.Interface{},
	}
	backend, err := New(context.Background(), cfg)

	if err != nil {
		t.Errorf("New() with no interfaces returned error: %v", err)
	}
	if backend != nil {
		t.Error("New() with no interfaces should return nil backend")
	}
}

func TestNew_WithInterfaces(t *testing.T) {
	ifaces, err := net.Interfaces()
	if err != nil || len(ifaces) == 0 {
		t.Skip("No network interfaces available for testing")
	}

	cfg := &config.ZeroConfig{
		Enabled:      true,
		InstanceName: "test-instance",
		ServiceType:  "_http._tcp",
		Domain:       "local.",
		Port:         8090,
		TxtRecords:   []string{"version=test"},
		Listen:       []net.Interface{ifaces[0]},
	}

	backend, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() with valid config returned error: %v", err)
	}
	if backend == nil {
		t.Fatal("New() with valid config should return non-nil backend")
	}
	if backend.Config != cfg {
		t.Error("backend.Config should match provided config")
	}
	if backend.ctx == nil || backend.cancel == nil {
		t.Error("backend context should be set")
	}

	backend.Close()
	if backend.cancel != nil {
		t.Error("Close() should drop the cancel func")
	}
}

func TestClose_Idempotent(t *testing.T) {
	z := &ZeroConfBackend{}
	z.Close()
	z.Close()
}
