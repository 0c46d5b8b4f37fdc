package logx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("hello", "component", "test")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"component":"test"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	l := New(&buf, "warn", "")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestLevelName(t *testing.T) {
	if LevelName(slog.LevelWarn) != "warn" || LevelName(slog.LevelError+4) != "error" || LevelName(slog.LevelDebug) != "debug" {
		t.Error("unexpected level names")
	}
}
