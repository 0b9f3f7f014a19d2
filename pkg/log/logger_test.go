package log

import (
	"bytes"
	"context"
	"encoding/json"
	stdlog "log"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(WarnLevel), WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be gated: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn missing: %q", out)
	}

	l.SetLevel(DebugLevel)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("debug missing after SetLevel")
	}
}

func TestJSONFormatterCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(NewWriterOutput(&buf)))
	l.With(Component("eventhub")).Info("subscribed", Str("event", "foo"), Int("listeners", 2))

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if m["msg"] != "subscribed" || m["level"] != "INFO" {
		t.Fatalf("unexpected record: %v", m)
	}
	if m["component"] != "eventhub" || m["event"] != "foo" {
		t.Fatalf("fields missing: %v", m)
	}
	if m["listeners"].(float64) != 2 {
		t.Fatalf("listeners: %v", m["listeners"])
	}
}

func TestTextFormatterQuotesValues(t *testing.T) {
	f := &TextFormatter{}
	b, err := f.Format(&Entry{Level: InfoLevel, Message: "m", Fields: Fields{"a": "x y", "b": 1}})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `a="x y"`) || !strings.Contains(s, "b=1") {
		t.Fatalf("unexpected text: %q", s)
	}
}

func TestApplyConfig(t *testing.T) {
	if _, err := ApplyConfig(&Config{Level: "info", Format: "yaml"}); err == nil {
		t.Fatalf("expected format error")
	}
	l, err := ApplyConfig(&Config{Level: "debug", Format: "json", Output: "null"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.GetLevel() != DebugLevel {
		t.Fatalf("level not applied")
	}
}

func TestRedirectStdLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(&buf)))
	prev := stdlog.Writer()
	RedirectStdLog(l)
	t.Cleanup(func() { stdlog.SetOutput(prev) })

	stdlog.Printf("from stdlib")
	if !strings.Contains(buf.String(), "from stdlib") || !strings.Contains(buf.String(), "source=stdlog") {
		t.Fatalf("stdlib log not redirected: %q", buf.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	l := NewNopLogger()
	l.Error("nothing")
	if l.Slog().Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("nop logger should not be enabled")
	}
}
