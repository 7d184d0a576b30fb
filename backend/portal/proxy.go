package portal

import (
	"context"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	idbus "github.com/b0bbywan/go-odio-portal/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-portal/logger"
)

// Proxy issues capability method calls and hands back request handles.
// It only waits for the broker's acknowledgment, never for the user.
type Proxy struct {
	transport  Transport
	correlator *Correlator
	newToken   func() string
}

func NewProxy(t Transport, c *Correlator) *Proxy {
	return &Proxy{
		transport:  t,
		correlator: c,
		newToken:   newHandleToken,
	}
}

// newHandleToken returns a token valid as an object path element.
func newHandleToken() string {
	return tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// invoke subscribes to the expected request handle, then sends the call.
func (p *Proxy) invoke(ctx context.Context, c Capability, method string, args []interface{}, opts Options) (*Request, error) {
	options, err := EncodeOptions(c, opts)
	if err != nil {
		return nil, err
	}
	token := p.newToken()
	options[OPT_HANDLE_TOKEN] = dbus.MakeVariant(token)

	req, err := p.correlator.Register(requestHandleFor(p.transport.UniqueName(), token))
	if err != nil {
		return nil, err
	}

	callArgs := make([]interface{}, 0, len(args)+1)
	callArgs = append(callArgs, args...)
	callArgs = append(callArgs, options)

	var path dbus.ObjectPath
	if err := p.transport.Call(ctx, method, callArgs, &path); err != nil {
		req.Close()
		logger.Error("[portal] %s failed: %v", method, err)
		return nil, &TransportError{Method: method, Err: err}
	}
	if !path.IsValid() {
		req.Close()
		return nil, &TransportError{Method: method, Err: &DecodeError{Capability: c, Kind: WrongType, Value: path}}
	}
	if err := p.correlator.rebind(req, RequestHandle(path)); err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	logger.Debug("[portal] %s -> %s", method, path)
	return req, nil
}

// AccessCamera asks the user for camera access.
func (p *Proxy) AccessCamera(ctx context.Context) (*Request, error) {
	return p.invoke(ctx, CapabilityCamera, CAMERA_METHOD_ACCESS, nil, CameraOptions{})
}

// IsCameraPresent reads whether the broker sees any camera.
func (p *Proxy) IsCameraPresent(ctx context.Context) (bool, error) {
	v, err := p.transport.Property(ctx, CAMERA_IFACE, CAMERA_PROP_PRESENT)
	if err != nil {
		return false, &TransportError{Method: CAMERA_IFACE + "." + CAMERA_PROP_PRESENT, Err: err}
	}
	present, ok := idbus.ExtractBool(v)
	if !ok {
		return false, &DecodeError{Capability: CapabilityCamera, Key: CAMERA_PROP_PRESENT, Kind: WrongType, Value: v.Value()}
	}
	return present, nil
}

// OpenPipeWireRemote opens the camera stream. The broker answers with the
// descriptor directly rather than through a request.
func (p *Proxy) OpenPipeWireRemote(ctx context.Context) (*StreamResource, error) {
	var fd dbus.UnixFD
	args := []interface{}{map[string]dbus.Variant{}}
	if err := p.transport.Call(ctx, CAMERA_METHOD_OPEN_PIPEWIRE, args, &fd); err != nil {
		return nil, &TransportError{Method: CAMERA_METHOD_OPEN_PIPEWIRE, Err: err}
	}
	if fd < 0 {
		return nil, &DecodeError{Capability: CapabilityCamera, Kind: WrongType, Value: int32(fd)}
	}
	return newStreamResource(os.NewFile(uintptr(fd), "pipewire-remote")), nil
}

func (p *Proxy) Screenshot(ctx context.Context, window WindowIdentifier, opts ScreenshotOptions) (*Request, error) {
	return p.invoke(ctx, CapabilityScreenshot, SCREENSHOT_METHOD_SCREENSHOT, []interface{}{string(window)}, opts)
}

func (p *Proxy) PickColor(ctx context.Context, window WindowIdentifier) (*Request, error) {
	return p.invoke(ctx, CapabilityScreenshot, SCREENSHOT_METHOD_PICK_COLOR, []interface{}{string(window)}, nil)
}

func (p *Proxy) SetWallpaperURI(ctx context.Context, window WindowIdentifier, uri string, opts WallpaperOptions) (*Request, error) {
	return p.invoke(ctx, CapabilityWallpaper, WALLPAPER_METHOD_SET_URI, []interface{}{string(window), uri}, opts)
}

// SetWallpaperFile passes f to the broker; the caller still owns f.
func (p *Proxy) SetWallpaperFile(ctx context.Context, window WindowIdentifier, f *os.File, opts WallpaperOptions) (*Request, error) {
	return p.invoke(ctx, CapabilityWallpaper, WALLPAPER_METHOD_SET_FILE, []interface{}{string(window), dbus.UnixFD(f.Fd())}, opts)
}

// Version reads the interface version the broker implements for c.
func (p *Proxy) Version(ctx context.Context, c Capability) (uint32, error) {
	iface := c.Interface()
	v, err := p.transport.Property(ctx, iface, PROP_VERSION)
	if err != nil {
		return 0, &TransportError{Method: iface + "." + PROP_VERSION, Err: err}
	}
	version, ok := idbus.ExtractUint32(v)
	if !ok {
		return 0, &DecodeError{Capability: c, Key: PROP_VERSION, Kind: WrongType, Value: v.Value()}
	}
	return version, nil
}
