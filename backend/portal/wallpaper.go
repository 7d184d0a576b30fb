package portal

import (
	"context"
	"os"

	"github.com/b0bbywan/go-odio-portal/events"
	"github.com/b0bbywan/go-odio-portal/logger"
)

// WallpaperData is the payload of wallpaper.set events.
type WallpaperData struct {
	Source string `json:"source"`
	SetOn  SetOn  `json:"set_on,omitempty"`
}

// Wallpaper sets the desktop background through the broker.
type Wallpaper struct {
	capability
	defaults WallpaperOptions
	guard    requestGuard
}

func newWallpaper(base capability, defaults WallpaperOptions) *Wallpaper {
	return &Wallpaper{capability: base, defaults: defaults}
}

func (w *Wallpaper) State() State { return w.guard.State() }

func (o WallpaperOptions) withDefaults(d WallpaperOptions) WallpaperOptions {
	if o.ShowPreview == nil {
		o.ShowPreview = d.ShowPreview
	}
	if o.SetOn == nil {
		o.SetOn = d.SetOn
	}
	return o
}

// SetURI applies the picture at uri.
func (w *Wallpaper) SetURI(ctx context.Context, window WindowIdentifier, uri string, opts WallpaperOptions) error {
	if err := w.guard.begin(); err != nil {
		return err
	}
	defer w.guard.end()

	opts = opts.withDefaults(w.defaults)
	req, err := w.proxy.SetWallpaperURI(ctx, window, uri, opts)
	if err != nil {
		return err
	}
	return w.complete(ctx, req, uri, opts)
}

// SetFile applies the picture stored at path, passed to the broker as a descriptor.
func (w *Wallpaper) SetFile(ctx context.Context, window WindowIdentifier, path string, opts WallpaperOptions) error {
	if err := w.guard.begin(); err != nil {
		return err
	}
	defer w.guard.end()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("[wallpaper] failed to close %s: %v", path, err)
		}
	}()

	opts = opts.withDefaults(w.defaults)
	req, err := w.proxy.SetWallpaperFile(ctx, window, f, opts)
	if err != nil {
		return err
	}
	return w.complete(ctx, req, path, opts)
}

func (w *Wallpaper) complete(ctx context.Context, req *Request, source string, opts WallpaperOptions) error {
	outcome, err := w.await(ctx, req)
	if err := w.settle(CapabilityWallpaper, outcome, err); err != nil {
		return err
	}

	data := WallpaperData{Source: source}
	if opts.SetOn != nil {
		data.SetOn = *opts.SetOn
	}
	logger.Info("[wallpaper] set from %s", source)
	w.emit(events.Event{Type: events.TypeWallpaperSet, Data: data})
	return nil
}
