package portal

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// Capability is one privileged operation category exposed by the broker.
type Capability string

const (
	CapabilityCamera     Capability = "camera"
	CapabilityScreenshot Capability = "screenshot"
	CapabilityWallpaper  Capability = "wallpaper"
)

// Interface returns the broker D-Bus interface serving the capability.
func (c Capability) Interface() string {
	switch c {
	case CapabilityCamera:
		return CAMERA_IFACE
	case CapabilityScreenshot:
		return SCREENSHOT_IFACE
	case CapabilityWallpaper:
		return WALLPAPER_IFACE
	}
	return ""
}

// RequestHandle is the broker-assigned object path of one request.
type RequestHandle dbus.ObjectPath

func (h RequestHandle) Path() dbus.ObjectPath { return dbus.ObjectPath(h) }
func (h RequestHandle) String() string        { return string(h) }

// requestHandleFor builds the handle the broker will assign to a request
// issued by sender with the given handle_token.
func requestHandleFor(sender, token string) RequestHandle {
	s := strings.ReplaceAll(strings.TrimPrefix(sender, ":"), ".", "_")
	return RequestHandle(REQUEST_PATH_PREFIX + s + "/" + token)
}

// ResponseCode is the raw code carried by Request::Response.
type ResponseCode uint32

const (
	ResponseSuccess   ResponseCode = 0
	ResponseCancelled ResponseCode = 1
	ResponseOther     ResponseCode = 2
)

type Status int

const (
	StatusSuccess Status = iota
	StatusCancelled
	StatusOther
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Outcome is the single resolution of a request.
type Outcome struct {
	Handle  RequestHandle
	Code    ResponseCode
	Results map[string]dbus.Variant
}

// Status maps the raw code: only the user-dismissed code is Cancelled,
// every other non-zero code stays Other with the code preserved.
func (o Outcome) Status() Status {
	switch o.Code {
	case ResponseSuccess:
		return StatusSuccess
	case ResponseCancelled:
		return StatusCancelled
	default:
		return StatusOther
	}
}

// Err returns nil on success, ErrCancelled or a *ResponseError.
func (o Outcome) Err() error {
	switch o.Status() {
	case StatusSuccess:
		return nil
	case StatusCancelled:
		return ErrCancelled
	default:
		return &ResponseError{Handle: o.Handle, Code: o.Code}
	}
}

// State of a capability session.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateStarting   State = "starting"
	StateStreaming  State = "streaming"
)

type Color struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

type ScreenshotResult struct {
	URI string `json:"uri"`
}
