package portal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/b0bbywan/go-odio-portal/logger"
)

const (
	x11Prefix     = "x11:"
	waylandPrefix = "wayland:"

	defaultResolveTimeout = time.Second
)

// WindowIdentifier lets the broker anchor its dialog to the caller's window.
// The empty identifier means no parent hint.
type WindowIdentifier string

func (w WindowIdentifier) String() string { return string(w) }

// ParseWindowIdentifier keeps well-formed x11:/wayland: identifiers and
// maps anything else to the empty identifier.
func ParseWindowIdentifier(s string) WindowIdentifier {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, x11Prefix):
		if _, err := strconv.ParseUint(strings.TrimPrefix(s, x11Prefix), 16, 32); err == nil {
			return WindowIdentifier(s)
		}
	case strings.HasPrefix(s, waylandPrefix):
		if len(s) > len(waylandPrefix) && !strings.ContainsAny(s, " \t\n") {
			return WindowIdentifier(s)
		}
	}
	return ""
}

// Surface is a calling UI surface able to describe itself to the broker.
type Surface interface {
	WindowHandle(ctx context.Context) (WindowIdentifier, error)
}

// X11Window is an X11 window XID.
type X11Window uint32

func (w X11Window) WindowHandle(context.Context) (WindowIdentifier, error) {
	if w == 0 {
		return "", nil
	}
	return WindowIdentifier(fmt.Sprintf("%s%x", x11Prefix, uint32(w))), nil
}

// HandleExporter performs the xdg-foreign export handshake with the compositor.
type HandleExporter interface {
	ExportHandle(ctx context.Context) (string, error)
}

// WaylandSurface exports a toplevel handle on demand.
type WaylandSurface struct {
	Exporter HandleExporter
}

func (w WaylandSurface) WindowHandle(ctx context.Context) (WindowIdentifier, error) {
	if w.Exporter == nil {
		return "", nil
	}
	handle, err := w.Exporter.ExportHandle(ctx)
	if err != nil {
		return "", err
	}
	if handle == "" {
		return "", nil
	}
	return WindowIdentifier(waylandPrefix + handle), nil
}

// StaticWindow is an identifier already known as text, e.g. from config.
type StaticWindow string

func (w StaticWindow) WindowHandle(context.Context) (WindowIdentifier, error) {
	return ParseWindowIdentifier(string(w)), nil
}

// WindowResolver turns surfaces into identifiers without ever failing:
// a missing surface, an error or a slow handshake all yield "".
type WindowResolver struct {
	Timeout time.Duration
}

func NewWindowResolver(timeout time.Duration) *WindowResolver {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &WindowResolver{Timeout: timeout}
}

func (r *WindowResolver) Resolve(ctx context.Context, s Surface) WindowIdentifier {
	if s == nil {
		return ""
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		id  WindowIdentifier
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := s.WindowHandle(ctx)
		done <- result{id, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			logger.Debug("[portal] window identifier unavailable: %v", res.err)
			return ""
		}
		return res.id
	case <-ctx.Done():
		logger.Debug("[portal] window identifier handshake timed out after %s", timeout)
		return ""
	}
}
