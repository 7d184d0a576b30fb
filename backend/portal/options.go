package portal

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-portal/backend/internal/dbus"
)

// Option keys as they appear on the wire.
const (
	OPT_SHOW_PREVIEW = "show-preview"
	OPT_SET_ON       = "set-on"
	OPT_INTERACTIVE  = "interactive"
	OPT_MODAL        = "modal"

	RESULT_URI   = "uri"
	RESULT_COLOR = "color"
)

// SetOn selects which surfaces receive a wallpaper.
type SetOn string

const (
	SetOnLockscreen SetOn = "lockscreen"
	SetOnBackground SetOn = "background"
	SetOnBoth       SetOn = "both"
)

// ParseSetOn accepts only the canonical lowercase tags.
func ParseSetOn(s string) (SetOn, error) {
	switch v := SetOn(s); v {
	case SetOnLockscreen, SetOnBackground, SetOnBoth:
		return v, nil
	}
	return "", &DecodeError{Capability: CapabilityWallpaper, Key: OPT_SET_ON, Kind: UnknownVariant, Value: s}
}

// Options is the closed set of per-capability option shapes.
// Nil fields are left out of the encoded map so the broker applies its defaults.
type Options interface {
	Capability() Capability
	encode() map[string]dbus.Variant
}

// Bool returns a pointer to b, for optional fields.
func Bool(b bool) *bool { return &b }

type CameraOptions struct{}

func (CameraOptions) Capability() Capability          { return CapabilityCamera }
func (CameraOptions) encode() map[string]dbus.Variant { return map[string]dbus.Variant{} }

type ScreenshotOptions struct {
	Interactive *bool
	Modal       *bool
}

func (ScreenshotOptions) Capability() Capability { return CapabilityScreenshot }

func (o ScreenshotOptions) encode() map[string]dbus.Variant {
	m := map[string]dbus.Variant{}
	putBool(m, OPT_INTERACTIVE, o.Interactive)
	putBool(m, OPT_MODAL, o.Modal)
	return m
}

type WallpaperOptions struct {
	ShowPreview *bool
	SetOn       *SetOn
}

func (WallpaperOptions) Capability() Capability { return CapabilityWallpaper }

func (o WallpaperOptions) encode() map[string]dbus.Variant {
	m := map[string]dbus.Variant{}
	putBool(m, OPT_SHOW_PREVIEW, o.ShowPreview)
	if o.SetOn != nil {
		m[OPT_SET_ON] = dbus.MakeVariant(string(*o.SetOn))
	}
	return m
}

func putBool(m map[string]dbus.Variant, key string, v *bool) {
	if v != nil {
		m[key] = dbus.MakeVariant(*v)
	}
}

// EncodeOptions converts typed options into the a{sv} argument of a
// capability method. A nil opts encodes to an empty map.
func EncodeOptions(c Capability, opts Options) (map[string]dbus.Variant, error) {
	if opts == nil {
		return map[string]dbus.Variant{}, nil
	}
	if opts.Capability() != c {
		return nil, fmt.Errorf("%w: %s options for %s", ErrOptionMismatch, opts.Capability(), c)
	}
	return opts.encode(), nil
}

// DecodeOptions reads typed options back from a generic map. Unknown keys
// are ignored, absent keys stay nil.
func DecodeOptions(c Capability, m map[string]dbus.Variant) (Options, error) {
	switch c {
	case CapabilityCamera:
		return CameraOptions{}, nil
	case CapabilityScreenshot:
		var o ScreenshotOptions
		var err error
		if o.Interactive, err = optBool(c, m, OPT_INTERACTIVE); err != nil {
			return nil, err
		}
		if o.Modal, err = optBool(c, m, OPT_MODAL); err != nil {
			return nil, err
		}
		return o, nil
	case CapabilityWallpaper:
		var o WallpaperOptions
		var err error
		if o.ShowPreview, err = optBool(c, m, OPT_SHOW_PREVIEW); err != nil {
			return nil, err
		}
		if v, ok := m[OPT_SET_ON]; ok {
			s, ok := idbus.ExtractString(v)
			if !ok {
				return nil, &DecodeError{Capability: c, Key: OPT_SET_ON, Kind: WrongType, Value: v.Value()}
			}
			setOn, err := ParseSetOn(s)
			if err != nil {
				return nil, err
			}
			o.SetOn = &setOn
		}
		return o, nil
	}
	return nil, &DecodeError{Capability: c, Kind: UnknownVariant, Value: string(c)}
}

func optBool(c Capability, m map[string]dbus.Variant, key string) (*bool, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	b, ok := idbus.ExtractBool(v)
	if !ok {
		return nil, &DecodeError{Capability: c, Key: key, Kind: WrongType, Value: v.Value()}
	}
	return &b, nil
}

// DecodeScreenshot reads the uri of a successful Screenshot response.
func DecodeScreenshot(results map[string]dbus.Variant) (ScreenshotResult, error) {
	v, ok := results[RESULT_URI]
	if !ok {
		return ScreenshotResult{}, &DecodeError{Capability: CapabilityScreenshot, Key: RESULT_URI, Kind: MissingKey}
	}
	uri, ok := idbus.ExtractString(v)
	if !ok {
		return ScreenshotResult{}, &DecodeError{Capability: CapabilityScreenshot, Key: RESULT_URI, Kind: WrongType, Value: v.Value()}
	}
	return ScreenshotResult{URI: uri}, nil
}

// DecodeColor reads the (ddd) color of a successful PickColor response.
func DecodeColor(results map[string]dbus.Variant) (Color, error) {
	v, ok := results[RESULT_COLOR]
	if !ok {
		return Color{}, &DecodeError{Capability: CapabilityScreenshot, Key: RESULT_COLOR, Kind: MissingKey}
	}
	rgb, ok := idbus.ExtractFloat64s(v, 3)
	if !ok {
		return Color{}, &DecodeError{Capability: CapabilityScreenshot, Key: RESULT_COLOR, Kind: WrongType, Value: v.Value()}
	}
	return Color{Red: rgb[0], Green: rgb[1], Blue: rgb[2]}, nil
}
