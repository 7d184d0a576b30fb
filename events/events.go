package events

import "slices"

const (
	TypeServerInfo       = "server.info"
	TypeCameraState      = "camera.state"
	TypeScreenshotTaken  = "screenshot.taken"
	TypeColorPicked      = "color.picked"
	TypeWallpaperSet     = "wallpaper.set"
	TypeRequestCancelled = "request.cancelled"
	TypeRequestFailed    = "request.failed"
)

type Event struct {
	Type string
	Data any
}

// CapabilityTypes maps a capability name to the event types it emits,
// so clients can subscribe with ?capability=camera.
var CapabilityTypes = map[string][]string{
	"camera":     {TypeCameraState},
	"screenshot": {TypeScreenshotTaken, TypeColorPicked},
	"wallpaper":  {TypeWallpaperSet},
}

// NewFilter returns a predicate accepting events whose type is in include
// (all types when include is empty) and not in exclude.
// It returns nil when both lists are empty, meaning pass-all.
func NewFilter(include, exclude []string) func(Event) bool {
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}
	return func(e Event) bool {
		if slices.Contains(exclude, e.Type) {
			return false
		}
		return len(include) == 0 || slices.Contains(include, e.Type)
	}
}

// Scoped is implemented by event payloads that belong to one capability,
// such as request outcomes shared by all of them.
type Scoped interface {
	EventCapability() string
}

// ScopeFilter narrows next to the given capabilities: events whose payload
// is Scoped pass only when their capability is listed. With no
// capabilities it returns next unchanged.
func ScopeFilter(capabilities []string, next func(Event) bool) func(Event) bool {
	if len(capabilities) == 0 {
		return next
	}
	return func(e Event) bool {
		if next != nil && !next(e) {
			return false
		}
		if s, ok := e.Data.(Scoped); ok {
			return slices.Contains(capabilities, s.EventCapability())
		}
		return true
	}
}
