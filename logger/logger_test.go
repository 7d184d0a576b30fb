package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		name         string
		level        Level
		messageLevel Level
		shouldLog    bool
	}{
		{"DEBUG logs at DEBUG level", DEBUG, DEBUG, true},
		{"INFO logs at DEBUG level", DEBUG, INFO, true},
		{"DEBUG doesn't log at INFO level", INFO, DEBUG, false},
		{"ERROR logs at INFO level", INFO, ERROR, true},
		{"WARN doesn't log at ERROR level", ERROR, WARN, false},
		{"ERROR logs at ERROR level", ERROR, ERROR, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.level)
			if got := l.shouldLog(tt.messageLevel, "plain message"); got != tt.shouldLog {
				t.Errorf("shouldLog(%v) = %v, want %v", tt.messageLevel, got, tt.shouldLog)
			}
		})
	}
}

func TestPackageLevelOverride(t *testing.T) {
	l := New(WARN)
	l.packageLevels = map[string]Level{"portal": DEBUG}

	if !l.shouldLog(DEBUG, "[portal] watching request") {
		t.Error("portal override should let DEBUG through")
	}
	if l.shouldLog(DEBUG, "[camera] starting") {
		t.Error("camera has no override, DEBUG should be filtered at WARN")
	}
}

func TestExtractComponent(t *testing.T) {
	tests := map[string]string{
		"[portal] hello": "portal",
		"[api] x":        "api",
		"no prefix":      "",
		"[unterminated":  "",
		"[]":             "",
	}
	for msg, want := range tests {
		if got := extractComponent(msg); got != want {
			t.Errorf("extractComponent(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{"Info", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"ERROR", ERROR},
		{"fatal", FATAL},
		{"unknown", WARN},
		{"", WARN},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoggerFormat(t *testing.T) {
	l := New(INFO)
	formatted := l.format(INFO, "test message")

	if !strings.Contains(formatted, "[INFO ]") {
		t.Errorf("formatted message should contain '[INFO ]', got: %s", formatted)
	}
	if !strings.Contains(formatted, "test message") {
		t.Errorf("formatted message should contain 'test message', got: %s", formatted)
	}
}

func TestSetOutputCapturesMessages(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(INFO)
	defer func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	}()

	Info("[portal] request %s resolved", "abc")
	Debug("[portal] hidden")

	out := buf.String()
	if !strings.Contains(out, "request abc resolved") {
		t.Errorf("output = %q, want the info message", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("output = %q, debug message should be filtered", out)
	}
}
