package dbus

import (
	"context"
	"errors"
	"time"

	"github.com/godbus/dbus/v5"
)

// DefaultTimeout bounds method calls whose caller did not pick a deadline.
var DefaultTimeout = 5 * time.Second

// WithTimeout derives a context bounded by timeout, or DefaultTimeout when
// timeout is not positive. An earlier parent deadline wins.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Call runs method on obj, stores the reply in ret and turns a deadline hit
// into a *TimeoutError.
func Call(ctx context.Context, obj dbus.BusObject, method string, args []interface{}, ret ...interface{}) error {
	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		if errors.Is(call.Err, context.DeadlineExceeded) {
			return &TimeoutError{Method: method}
		}
		return call.Err
	}
	if len(ret) == 0 {
		return nil
	}
	return call.Store(ret...)
}

// GetProperty retrieves a single property from a D-Bus object.
func GetProperty(ctx context.Context, obj dbus.BusObject, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	if err := Call(ctx, obj, PROP_GET, []interface{}{iface, prop}, &v); err != nil {
		return dbus.Variant{}, err
	}
	return v, nil
}

// ParseResponse splits an org.freedesktop.portal.Request::Response body
// into its response code and results map.
func ParseResponse(sig *dbus.Signal) (uint32, map[string]dbus.Variant, error) {
	if sig == nil {
		return 0, nil, &SignalError{Reason: "channel closed"}
	}
	if len(sig.Body) < 2 {
		return 0, nil, &SignalError{Reason: "body too short"}
	}
	code, ok := sig.Body[0].(uint32)
	if !ok {
		return 0, nil, &SignalError{Reason: "body[0] is not uint32"}
	}
	results, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return 0, nil, &SignalError{Reason: "body[1] is not map[string]Variant"}
	}
	return code, results, nil
}

// --- Variant extraction helpers ---

// ExtractString extracts a string from a dbus.Variant.
func ExtractString(v dbus.Variant) (string, bool) {
	val, ok := v.Value().(string)
	return val, ok
}

// ExtractBool extracts a bool from a dbus.Variant.
func ExtractBool(v dbus.Variant) (bool, bool) {
	val, ok := v.Value().(bool)
	return val, ok
}

// ExtractUint32 extracts a uint32 from a dbus.Variant.
func ExtractUint32(v dbus.Variant) (uint32, bool) {
	val, ok := v.Value().(uint32)
	return val, ok
}

// ExtractFloat64s extracts a fixed-size struct of doubles, e.g. (ddd).
// godbus decodes D-Bus structs into []interface{} when the target is a Variant.
func ExtractFloat64s(v dbus.Variant, n int) ([]float64, bool) {
	switch val := v.Value().(type) {
	case []float64:
		if len(val) != n {
			return nil, false
		}
		return val, true
	case []interface{}:
		if len(val) != n {
			return nil, false
		}
		out := make([]float64, n)
		for i, item := range val {
			f, ok := item.(float64)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// --- Map helpers (results map[string]dbus.Variant) ---

// Keys returns the keys of a results map (useful for debug logging).
func Keys(props map[string]dbus.Variant) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	return keys
}
