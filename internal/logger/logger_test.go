package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ValidLevel("loud") || !ValidLevel("Debug") {
		t.Error("ValidLevel mismatch")
	}
}

func TestHandlerFormatsAndFilters(t *testing.T) {
	defer SetLevel(GetLevel())
	SetLevel("info")

	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf)).With("component", "test")

	log.Debug("[Call] hidden")
	log.Info("[Call] Dialing", "channel", "outgoing1")

	re := regexp.MustCompile(`^\[\d\d:\d\d:\d\d\] \[INFO\] \[Call\] Dialing component=test channel=outgoing1\n$`)
	if !re.Match(buf.Bytes()) {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Fatalf("GetLevel = %s", GetLevel())
	}
	log.WithGroup("req").Debug("shown", "id", 7)
	if want := "component=test req.id=7\n"; !bytes.HasSuffix(buf.Bytes(), []byte(want)) {
		t.Errorf("output %q does not end with %q", buf.String(), want)
	}
}
