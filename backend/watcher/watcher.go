// Package watcher applies pictures dropped into a directory as the wallpaper.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/b0bbywan/go-odio-portal/backend/portal"
	"github.com/b0bbywan/go-odio-portal/logger"
)

const defaultDebounce = 500 * time.Millisecond

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".svg":  true,
}

// Setter applies a wallpaper from a local file. *portal.Wallpaper implements it.
type Setter interface {
	SetFile(ctx context.Context, window portal.WindowIdentifier, path string, opts portal.WallpaperOptions) error
}

// WindowFunc resolves the parent window used for the wallpaper dialog.
type WindowFunc func(ctx context.Context) portal.WindowIdentifier

type WallpaperWatcher struct {
	dir      string
	setter   Setter
	window   WindowFunc
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
}

// New returns nil when dir is empty.
func New(ctx context.Context, dir string, setter Setter, window WindowFunc) (*WallpaperWatcher, error) {
	if dir == "" {
		return nil, nil
	}
	if setter == nil {
		return nil, errors.New("watcher: wallpaper capability disabled")
	}
	subCtx, cancel := context.WithCancel(ctx)
	return &WallpaperWatcher{
		dir:      dir,
		setter:   setter,
		window:   window,
		debounce: defaultDebounce,
		ctx:      subCtx,
		cancel:   cancel,
		timers:   make(map[string]*time.Timer),
	}, nil
}

func (w *WallpaperWatcher) Dir() string { return w.dir }

// Start watches the directory until Close or the parent context ends.
func (w *WallpaperWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return fmt.Errorf("watcher already started on %s", w.dir)
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Info("[watcher] failed to close watcher: %v", closeErr)
		}
		return err
	}
	w.watcher = watcher

	logger.Info("[watcher] monitoring %s for wallpapers", w.dir)
	w.wg.Add(1)
	go w.listen(watcher)
	return nil
}

func (w *WallpaperWatcher) listen(watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warn("[watcher] failed to close watcher: %v", err)
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.dispatch(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("[watcher] fsnotify error: %v", err)
		}
	}
}

func (w *WallpaperWatcher) dispatch(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !isImage(event.Name) {
		logger.Debug("[watcher] ignoring %s", filepath.Base(event.Name))
		return
	}
	w.schedule(event.Name)
}

// schedule applies path once writes to it have settled.
func (w *WallpaperWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(path)
}

// scheduleLocked arms a fresh timer for path. A timer that already fired
// and waits on w.mu finds itself replaced and does nothing.
func (w *WallpaperWatcher) scheduleLocked(path string) {
	if w.ctx.Err() != nil {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timers[path] != t || w.ctx.Err() != nil {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		w.apply(path)
	})
	w.timers[path] = t
}

func (w *WallpaperWatcher) apply(path string) {
	if w.ctx.Err() != nil {
		return
	}
	var window portal.WindowIdentifier
	if w.window != nil {
		window = w.window(w.ctx)
	}

	err := w.setter.SetFile(w.ctx, window, path, portal.WallpaperOptions{})
	switch {
	case err == nil:
		logger.Info("[watcher] applied %s", filepath.Base(path))
	case errors.Is(err, portal.ErrCancelled):
		logger.Info("[watcher] %s declined by user", filepath.Base(path))
	case errors.Is(err, portal.ErrAlreadyActive):
		logger.Warn("[watcher] wallpaper request in progress, skipping %s", filepath.Base(path))
	default:
		logger.Error("[watcher] failed to apply %s: %v", path, err)
	}
}

// Close stops watching, drops pending files and waits for a wallpaper
// request already running.
func (w *WallpaperWatcher) Close() {
	if w == nil {
		return
	}
	w.cancel()
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func isImage(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}
