package backend

import (
	"context"

	"github.com/b0bbywan/go-odio-portal/backend/portal"
	"github.com/b0bbywan/go-odio-portal/backend/watcher"
	"github.com/b0bbywan/go-odio-portal/backend/zeroconf"
	"github.com/b0bbywan/go-odio-portal/config"
	"github.com/b0bbywan/go-odio-portal/events"
	"github.com/b0bbywan/go-odio-portal/logger"
)

type Backend struct {
	Portal    *portal.Client
	Watcher   *watcher.WallpaperWatcher
	Zeroconf  *zeroconf.ZeroConfBackend
	Broadcast *Broadcaster
}

// New assembles the backends on an established broker transport.
func New(ctx context.Context, t portal.Transport, cfg *config.Config) (*Backend, error) {
	var backend Backend

	p, err := portal.New(ctx, t, cfg.Portal)
	if err != nil {
		return nil, err
	}
	backend.Portal = p

	if cfg.Portal.Wallpaper != nil && cfg.Portal.Wallpaper.WatchDir != "" {
		dir := cfg.Portal.Wallpaper.WatchDir
		if p.Wallpaper == nil {
			logger.Warn("[watcher] wallpaper disabled, ignoring watch_dir %s", dir)
		} else {
			w, err := watcher.New(ctx, dir, p.Wallpaper, func(ctx context.Context) portal.WindowIdentifier {
				return p.Window(ctx, "")
			})
			if err != nil {
				p.Close()
				return nil, err
			}
			backend.Watcher = w
		}
	}

	z, err := zeroconf.New(ctx, cfg.Zeroconf)
	if err != nil {
		backend.Close()
		return nil, err
	}
	backend.Zeroconf = z

	backend.Broadcast = newBroadcasterFromBackend(ctx, &backend)
	return &backend, nil
}

// Start launches the watcher and the mDNS advertisement. Neither is fatal.
func (b *Backend) Start() error {
	if b.Watcher != nil {
		if err := b.Watcher.Start(); err != nil {
			logger.Warn("[watcher] not watching %s: %v", b.Watcher.Dir(), err)
		}
	}
	if b.Zeroconf != nil {
		if err := b.Zeroconf.Start(); err != nil {
			logger.Warn("[discovery] failed to publish service: %v", err)
		}
	}
	return nil
}

// Snapshot returns the current state events a new subscriber starts from.
func (b *Backend) Snapshot() []events.Event {
	if b == nil || b.Portal == nil || b.Portal.Camera == nil {
		return nil
	}
	return []events.Event{{Type: events.TypeCameraState, Data: b.Portal.Camera.Status()}}
}

func (b *Backend) Close() {
	if b.Watcher != nil {
		b.Watcher.Close()
	}
	if b.Zeroconf != nil {
		b.Zeroconf.Close()
	}
	if b.Portal != nil {
		b.Portal.Close()
	}
}
