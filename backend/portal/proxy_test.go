package portal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-odio-portal/backend/portal"
	"github.com/b0bbywan/go-odio-portal/backend/portal/portaltest"
)

func newProxy(t *testing.T) (*portal.Proxy, *portal.Correlator, *portaltest.Broker) {
	t.Helper()
	b := portaltest.NewBroker()
	c := portal.NewCorrelator(context.Background(), b, time.Minute)
	t.Cleanup(c.Close)
	return portal.NewProxy(b, c), c, b
}

func TestProxySubscribesBeforeCall(t *testing.T) {
	p, _, b := newProxy(t)
	results := map[string]dbus.Variant{"uri": dbus.MakeVariant("file:///tmp/a.png")}
	// The broker emits the outcome before replying with the handle.
	b.Handle(portal.SCREENSHOT_METHOD_SCREENSHOT, portaltest.Reply(0, results))

	req, err := p.Screenshot(context.Background(), "x11:1f", portal.ScreenshotOptions{Interactive: portal.Bool(true)})
	if err != nil {
		t.Fatalf("Screenshot() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := req.Await(ctx)
	if err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if outcome.Status() != portal.StatusSuccess {
		t.Errorf("Status() = %s, want success", outcome.Status())
	}

	call, _ := b.LastCall(portal.SCREENSHOT_METHOD_SCREENSHOT)
	if got := call.Args[0]; got != "x11:1f" {
		t.Errorf("parent_window argument = %v, want x11:1f", got)
	}
	if req.Handle().Path() != portaltest.RequestPath(call) {
		t.Errorf("Handle() = %s, want %s", req.Handle(), portaltest.RequestPath(call))
	}
}

func TestProxySendsHandleTokenAndOptions(t *testing.T) {
	p, _, b := newProxy(t)
	b.Handle(portal.WALLPAPER_METHOD_SET_URI, portaltest.Pending(nil))

	setOn := portal.SetOnLockscreen
	opts := portal.WallpaperOptions{ShowPreview: portal.Bool(false), SetOn: &setOn}
	req, err := p.SetWallpaperURI(context.Background(), "", "file:///tmp/bg.png", opts)
	if err != nil {
		t.Fatalf("SetWallpaperURI() error: %v", err)
	}
	defer req.Close()

	call, ok := b.LastCall(portal.WALLPAPER_METHOD_SET_URI)
	if !ok {
		t.Fatal("SetWallpaperURI was not called")
	}
	if len(call.Args) != 3 {
		t.Fatalf("got %d arguments, want 3", len(call.Args))
	}
	if call.Args[1] != "file:///tmp/bg.png" {
		t.Errorf("uri argument = %v", call.Args[1])
	}

	options := call.Options()
	token, ok := options[portal.OPT_HANDLE_TOKEN].Value().(string)
	if !ok || !strings.HasPrefix(token, "odio_") {
		t.Errorf("handle_token = %v, want odio_ prefix", options[portal.OPT_HANDLE_TOKEN])
	}
	if v, ok := options[portal.OPT_SHOW_PREVIEW].Value().(bool); !ok || v {
		t.Errorf("show-preview = %v, want false", options[portal.OPT_SHOW_PREVIEW])
	}
	if v, _ := options[portal.OPT_SET_ON].Value().(string); v != "lockscreen" {
		t.Errorf("set-on = %v, want lockscreen", options[portal.OPT_SET_ON])
	}
}

func TestProxyTokensAreUnique(t *testing.T) {
	p, _, b := newProxy(t)
	b.Handle(portal.SCREENSHOT_METHOD_PICK_COLOR, portaltest.Pending(nil))

	seen := map[portal.RequestHandle]bool{}
	for i := 0; i < 5; i++ {
		req, err := p.PickColor(context.Background(), "")
		if err != nil {
			t.Fatalf("PickColor() error: %v", err)
		}
		if seen[req.Handle()] {
			t.Fatalf("handle %s reused", req.Handle())
		}
		seen[req.Handle()] = true
		req.Close()
	}
}

func TestProxyTransportErrorReleasesWatch(t *testing.T) {
	p, c, b := newProxy(t)
	b.Handle(portal.SCREENSHOT_METHOD_SCREENSHOT, portaltest.Fail(errors.New("access denied")))

	_, err := p.Screenshot(context.Background(), "", portal.ScreenshotOptions{})
	var trErr *portal.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("Screenshot() error = %v, want *TransportError", err)
	}
	if trErr.Method != portal.SCREENSHOT_METHOD_SCREENSHOT {
		t.Errorf("Method = %s", trErr.Method)
	}
	if b.WatchCount() != 0 {
		t.Errorf("WatchCount() = %d, want 0", b.WatchCount())
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestProxyUnknownMethod(t *testing.T) {
	p, _, _ := newProxy(t)
	_, err := p.AccessCamera(context.Background())
	var trErr *portal.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("AccessCamera() error = %v, want *TransportError", err)
	}
}

func TestProxyInvalidHandle(t *testing.T) {
	p, _, b := newProxy(t)
	b.Handle(portal.SCREENSHOT_METHOD_PICK_COLOR, func(*portaltest.Broker, portaltest.Call) ([]interface{}, error) {
		return []interface{}{dbus.ObjectPath("not a path")}, nil
	})

	_, err := p.PickColor(context.Background(), "")
	var decErr *portal.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("PickColor() error = %v, want wrapped *DecodeError", err)
	}
	if b.WatchCount() != 0 {
		t.Errorf("WatchCount() = %d, want 0", b.WatchCount())
	}
}

func TestProxyLegacyHandle(t *testing.T) {
	p, c, b := newProxy(t)
	legacy := dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/t7")
	b.Handle(portal.CAMERA_METHOD_ACCESS, portaltest.ReplyAt(legacy, nil))

	req, err := p.AccessCamera(context.Background())
	if err != nil {
		t.Fatalf("AccessCamera() error: %v", err)
	}
	if req.Handle().Path() != legacy {
		t.Fatalf("Handle() = %s, want %s", req.Handle(), legacy)
	}
	if !b.Watching(legacy) || b.WatchCount() != 1 {
		t.Errorf("only the returned handle should be watched, got %d watches", b.WatchCount())
	}
	if c.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", c.Pending())
	}

	b.Respond(legacy, 0, nil)
	outcome, err := req.Await(context.Background())
	if err != nil || outcome.Status() != portal.StatusSuccess {
		t.Errorf("Await() = %+v, %v, want success", outcome, err)
	}
}

func TestProxyProperties(t *testing.T) {
	p, _, b := newProxy(t)
	b.SetProperty(portal.CAMERA_IFACE, portal.CAMERA_PROP_PRESENT, true)
	b.SetProperty(portal.SCREENSHOT_IFACE, portal.PROP_VERSION, uint32(2))

	present, err := p.IsCameraPresent(context.Background())
	if err != nil || !present {
		t.Errorf("IsCameraPresent() = %t, %v, want true", present, err)
	}
	version, err := p.Version(context.Background(), portal.CapabilityScreenshot)
	if err != nil || version != 2 {
		t.Errorf("Version() = %d, %v, want 2", version, err)
	}

	var trErr *portal.TransportError
	if _, err := p.Version(context.Background(), portal.CapabilityWallpaper); !errors.As(err, &trErr) {
		t.Errorf("Version() on missing property = %v, want *TransportError", err)
	}

	b.SetProperty(portal.CAMERA_IFACE, portal.CAMERA_PROP_PRESENT, "yes")
	var decErr *portal.DecodeError
	if _, err := p.IsCameraPresent(context.Background()); !errors.As(err, &decErr) {
		t.Errorf("IsCameraPresent() on string = %v, want *DecodeError", err)
	}
}

func TestProxyOpenPipeWireRemote(t *testing.T) {
	p, _, b := newProxy(t)
	fds := make(chan int, 1)
	b.Handle(portal.CAMERA_METHOD_OPEN_PIPEWIRE, portaltest.Stream(fds))

	stream, err := p.OpenPipeWireRemote(context.Background())
	if err != nil {
		t.Fatalf("OpenPipeWireRemote() error: %v", err)
	}
	if fd := <-fds; stream.Fd() != fd {
		t.Errorf("Fd() = %d, want %d", stream.Fd(), fd)
	}
	if stream.Closed() {
		t.Error("fresh stream reported closed")
	}
	if stream.Name() != "pipewire-remote" {
		t.Errorf("Name() = %q", stream.Name())
	}
}

func TestProxySetWallpaperFilePassesDescriptor(t *testing.T) {
	p, _, b := newProxy(t)
	b.Handle(portal.WALLPAPER_METHOD_SET_FILE, portaltest.Pending(nil))

	path := filepath.Join(t.TempDir(), "bg.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	req, err := p.SetWallpaperFile(context.Background(), "", f, portal.WallpaperOptions{})
	if err != nil {
		t.Fatalf("SetWallpaperFile() error: %v", err)
	}
	defer req.Close()

	call, _ := b.LastCall(portal.WALLPAPER_METHOD_SET_FILE)
	fd, ok := call.Args[1].(dbus.UnixFD)
	if !ok || int(fd) != int(f.Fd()) {
		t.Errorf("file argument = %#v, want UnixFD(%d)", call.Args[1], f.Fd())
	}
}
