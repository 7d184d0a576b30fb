package portal

import (
	"context"
	"errors"

	"github.com/b0bbywan/go-odio-portal/config"
	"github.com/b0bbywan/go-odio-portal/events"
	"github.com/b0bbywan/go-odio-portal/logger"
)

// Client bundles the enabled capabilities on top of one transport.
// Disabled capabilities are nil.
type Client struct {
	Camera     *CameraSession
	Screenshot *Screenshot
	Wallpaper  *Wallpaper

	proxy      *Proxy
	correlator *Correlator
	resolver   *WindowResolver
	parent     Surface
	eventsC    chan events.Event
}

// New wires the capabilities enabled in cfg on an established transport.
func New(ctx context.Context, t Transport, cfg *config.PortalConfig) (*Client, error) {
	if t == nil {
		return nil, errors.New("portal: nil transport")
	}
	if cfg == nil {
		return nil, errors.New("portal: nil config")
	}

	correlator := NewCorrelator(ctx, t, cfg.OutcomeTTL)
	c := &Client{
		proxy:      NewProxy(t, correlator),
		correlator: correlator,
		resolver:   NewWindowResolver(cfg.WindowTimeout),
		eventsC:    make(chan events.Event, 16),
	}
	if cfg.ParentWindow != "" {
		c.parent = StaticWindow(cfg.ParentWindow)
	}

	base := capability{
		proxy:           c.proxy,
		notify:          c.notify,
		responseTimeout: cfg.ResponseTimeout,
	}

	if cfg.Camera != nil && cfg.Camera.Enabled {
		c.Camera = newCameraSession(base)
	}
	if cfg.Screenshot != nil && cfg.Screenshot.Enabled {
		c.Screenshot = newScreenshot(base, ScreenshotOptions{
			Interactive: cfg.Screenshot.Interactive,
			Modal:       cfg.Screenshot.Modal,
		})
	}
	if cfg.Wallpaper != nil && cfg.Wallpaper.Enabled {
		defaults := WallpaperOptions{ShowPreview: cfg.Wallpaper.ShowPreview}
		if cfg.Wallpaper.SetOn != "" {
			setOn, err := ParseSetOn(cfg.Wallpaper.SetOn)
			if err != nil {
				correlator.Close()
				return nil, err
			}
			defaults.SetOn = &setOn
		}
		c.Wallpaper = newWallpaper(base, defaults)
	}

	logger.Info("[portal] client initialized (camera=%t screenshot=%t wallpaper=%t)",
		c.Camera != nil, c.Screenshot != nil, c.Wallpaper != nil)
	return c, nil
}

func (c *Client) Events() <-chan events.Event {
	return c.eventsC
}

func (c *Client) notify(e events.Event) {
	select {
	case c.eventsC <- e:
	default:
		logger.Warn("[portal] event channel full, dropping %s event", e.Type)
	}
}

// Window resolves the parent window hint: override when well formed,
// the configured parent otherwise.
func (c *Client) Window(ctx context.Context, override string) WindowIdentifier {
	var s Surface = c.parent
	if override != "" {
		s = StaticWindow(override)
	}
	return c.resolver.Resolve(ctx, s)
}

// Versions reports the broker interface version of each enabled capability.
// Capabilities whose version cannot be read are left out.
func (c *Client) Versions(ctx context.Context) map[Capability]uint32 {
	out := map[Capability]uint32{}
	for _, name := range c.Capabilities() {
		v, err := c.proxy.Version(ctx, name)
		if err != nil {
			logger.Debug("[portal] %s version unavailable: %v", name, err)
			continue
		}
		out[name] = v
	}
	return out
}

// Capabilities lists the enabled capabilities.
func (c *Client) Capabilities() []Capability {
	var caps []Capability
	if c.Camera != nil {
		caps = append(caps, CapabilityCamera)
	}
	if c.Screenshot != nil {
		caps = append(caps, CapabilityScreenshot)
	}
	if c.Wallpaper != nil {
		caps = append(caps, CapabilityWallpaper)
	}
	return caps
}

// Close stops the camera session and fails pending requests.
func (c *Client) Close() {
	if c.Camera != nil {
		c.Camera.Stop()
	}
	c.correlator.Close()
}
