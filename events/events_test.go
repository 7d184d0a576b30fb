package events

import "testing"

func TestNewFilter_Empty(t *testing.T) {
	if NewFilter(nil, nil) != nil {
		t.Error("NewFilter(nil, nil) should return nil (pass-all)")
	}
}

func TestNewFilter_Include(t *testing.T) {
	f := NewFilter([]string{TypeCameraState, TypeServerInfo}, nil)
	if !f(Event{Type: TypeCameraState}) {
		t.Errorf("filter should pass %s", TypeCameraState)
	}
	if f(Event{Type: TypeWallpaperSet}) {
		t.Errorf("filter should block %s", TypeWallpaperSet)
	}
}

func TestNewFilter_Exclude(t *testing.T) {
	f := NewFilter(nil, []string{TypeRequestCancelled})
	if f(Event{Type: TypeRequestCancelled}) {
		t.Errorf("filter should block %s", TypeRequestCancelled)
	}
	if !f(Event{Type: TypeScreenshotTaken}) {
		t.Errorf("filter should pass %s", TypeScreenshotTaken)
	}
}

func TestCapabilityTypes(t *testing.T) {
	for name, types := range CapabilityTypes {
		if len(types) == 0 {
			t.Errorf("capability %s has no event types", name)
		}
	}
	if got := CapabilityTypes["screenshot"]; len(got) != 2 {
		t.Errorf("screenshot types = %v, want 2 entries", got)
	}
}

type scoped string

func (s scoped) EventCapability() string { return string(s) }

func TestScopeFilter(t *testing.T) {
	if ScopeFilter(nil, nil) != nil {
		t.Error("ScopeFilter without capabilities should keep the pass-all filter")
	}

	f := ScopeFilter([]string{"camera"}, NewFilter(nil, []string{TypeWallpaperSet}))
	tests := []struct {
		name string
		e    Event
		want bool
	}{
		{"matching capability", Event{Type: TypeRequestFailed, Data: scoped("camera")}, true},
		{"other capability", Event{Type: TypeRequestFailed, Data: scoped("wallpaper")}, false},
		{"unscoped payload", Event{Type: TypeCameraState, Data: "idle"}, true},
		{"rejected by next", Event{Type: TypeWallpaperSet, Data: scoped("camera")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f(tt.e); got != tt.want {
				t.Errorf("filter(%+v) = %v, want %v", tt.e, got, tt.want)
			}
		})
	}
}
