package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2024, 5, 1, 9, 30, 15, 250_000_000, time.UTC)

func newTestLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Options{Level: level, Format: format, Output: &buf})
	l.sink.now = func() time.Time { return fixedTime }
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{" info ", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"Warning", LevelWarn, false},
		{"error", LevelError, false},
		{"none", LevelNone, false},
		{"off", LevelNone, false},
		{"verbose", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevel_StringRoundTrip(t *testing.T) {
	for l := LevelDebug; l <= LevelNone; l++ {
		got, err := ParseLevel(l.String())
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
	if got := Level(42).String(); got != "unknown" {
		t.Errorf("Level(42).String() = %q", got)
	}
}

func TestLevelFromEnv(t *testing.T) {
	const key = "OLLAMA_CTL_TEST_LEVEL"
	tests := []struct {
		value string
		want  Level
	}{
		{"debug", LevelDebug},
		{"off", LevelNone},
		{"", LevelWarn},
		{"chatty", LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(key, tt.value)
			if got := LevelFromEnv(key, LevelWarn); got != tt.want {
				t.Errorf("LevelFromEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{
		"json":   FormatJSON,
		" JSON ": FormatJSON,
		"text":   FormatText,
		"yaml":   FormatText,
		"":       FormatText,
	} {
		if got := ParseFormat(input); got != want {
			t.Errorf("ParseFormat(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLogger_Text(t *testing.T) {
	l, buf := newTestLogger(LevelDebug, FormatText)

	l.Debug("Resolved backend", Fields{"url": "http://gpu-box:11434", "tier": "environment", "alias": ""})
	l.Error("Request failed", errors.New("connection refused"), Fields{"attempt": 2, "note": "two words"})

	want := `09:30:15.250 DBG Resolved backend alias="" tier=environment url=http://gpu-box:11434
09:30:15.250 ERR Request failed error="connection refused" attempt=2 note="two words"
`
	if buf.String() != want {
		t.Errorf("text output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestLogger_TextNestedValues(t *testing.T) {
	l, buf := newTestLogger(LevelDebug, FormatText)

	l.Debug("HTTP Request", Fields{"headers": map[string]string{"Accept": "application/json"}})

	if !strings.Contains(buf.String(), `headers={"Accept":"application/json"}`) {
		t.Errorf("expected headers rendered as JSON, got %q", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	l, buf := newTestLogger(LevelDebug, FormatJSON)

	l.Warn("Skipping MCP config", Fields{"path": "/tmp/mcp.json", "msg": "shadowed", "cause": errors.New("bad json")})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["level"] != "warn" || rec["msg"] != "Skipping MCP config" {
		t.Errorf("level/msg = %v/%v", rec["level"], rec["msg"])
	}
	if rec["time"] != "2024-05-01T09:30:15.25Z" {
		t.Errorf("time = %v", rec["time"])
	}
	if rec["path"] != "/tmp/mcp.json" {
		t.Errorf("path = %v, want flattened field", rec["path"])
	}
	if rec["cause"] != "bad json" {
		t.Errorf("cause = %v, want error text", rec["cause"])
	}
	nested, _ := rec["fields"].(map[string]any)
	if nested["msg"] != "shadowed" {
		t.Errorf("colliding field should be nested, got %v", rec["fields"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		want  []string
	}{
		{LevelDebug, []string{"DBG", "INF", "WRN", "ERR"}},
		{LevelWarn, []string{"WRN", "ERR"}},
		{LevelError, []string{"ERR"}},
		{LevelNone, nil},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			l, buf := newTestLogger(tt.level, FormatText)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e", nil)

			out := strings.TrimSpace(buf.String())
			var lines []string
			if out != "" {
				lines = strings.Split(out, "\n")
			}
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d: %q", len(lines), len(tt.want), out)
			}
			for i, tag := range tt.want {
				if !strings.Contains(lines[i], " "+tag+" ") {
					t.Errorf("line %d = %q, want tag %s", i, lines[i], tag)
				}
			}
		})
	}
}

func TestLogger_Enabled(t *testing.T) {
	l, _ := newTestLogger(LevelWarn, FormatText)
	if l.Enabled(LevelDebug) || !l.Enabled(LevelError) {
		t.Error("Enabled disagrees with Warn level")
	}
	l.SetLevel(LevelNone)
	if l.Enabled(LevelError) {
		t.Error("Enabled(Error) = true at None level")
	}
}

func TestLogger_WithSharesSink(t *testing.T) {
	l, buf := newTestLogger(LevelWarn, FormatText)
	child := l.With(Fields{"component": "mcp", "source": "preset"})

	child.Debug("hidden")
	l.SetLevel(LevelDebug)
	child.Debug("shown", Fields{"source": "call"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("child ignored parent level: %q", out)
	}
	if !strings.Contains(out, "component=mcp source=call") {
		t.Errorf("expected preset and call-site fields, call site winning: %q", out)
	}

	grandchild := child.With(Fields{"path": "a.json"})
	grandchild.Debug("nested")
	if !strings.Contains(buf.String(), "component=mcp path=a.json source=preset") {
		t.Errorf("expected inherited fields: %q", buf.String())
	}
}

func TestConfigure(t *testing.T) {
	prev := DefaultLogger
	t.Cleanup(func() { DefaultLogger = prev })
	DefaultLogger = New(Options{Level: LevelWarn})

	var buf bytes.Buffer
	Configure(Options{Level: LevelDebug, Format: FormatJSON, Output: &buf})
	WithFields(Fields{"component": "test"}).Debug("configured")
	Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], `"component":"test"`) || !strings.Contains(lines[1], `"msg":"plain"`) {
		t.Errorf("unexpected output %q", buf.String())
	}

	Configure(Options{Level: LevelNone})
	Error("dropped", errors.New("x"))
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("nil Output should keep the writer and LevelNone should drop, got %q", buf.String())
	}
}
