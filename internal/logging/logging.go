// Package logging provides structured logging for ollama-ctl.
//
// Log output always goes to stderr so that stdout stays usable for model
// output and --json results. The default level is Warn; --verbose lowers it
// to Debug and OLLAMA_CTL_LOG_LEVEL overrides both.
//
// # Usage
//
//	logging.Configure(logging.Options{Level: logging.LevelDebug, Format: logging.FormatJSON})
//
//	logging.Debug("Resolved host", logging.Fields{
//	    "tier": "environment",
//	    "url":  "http://gpu-box:11434",
//	})
//
//	log := logging.WithFields(logging.Fields{"component": "mcp"})
//	log.Warn("Skipping malformed config", logging.Fields{"path": path})
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Level represents a logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelNone disables all logging
	LevelNone
)

var levelNames = [...]string{"debug", "info", "warn", "error", "none"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelNone {
		return "unknown"
	}
	return levelNames[l]
}

// tag is the fixed-width marker used by the text format
func (l Level) tag() string {
	switch l {
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarn:
		return "WRN"
	default:
		return "ERR"
	}
}

// ParseLevel accepts the level names case-insensitively, plus "warning"
// and "off".
func ParseLevel(s string) (Level, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "warning":
		return LevelWarn, nil
	case "off":
		return LevelNone, nil
	default:
		if i := slices.Index(levelNames[:], name); i >= 0 {
			return Level(i), nil
		}
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// LevelFromEnv returns the level named by the environment variable key, or
// fallback when it is unset or not a level name.
func LevelFromEnv(key string, fallback Level) Level {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	level, err := ParseLevel(v)
	if err != nil {
		return fallback
	}
	return level
}

// Format represents the output format
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses "json" or "text"; anything else is text
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Fields is a map of structured log fields
type Fields map[string]any

// Options configures the logger
type Options struct {
	Level  Level
	Format Format
	Output io.Writer
}

var tagStyles = map[Level]lipgloss.Style{
	LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
	LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
}

// sink is the destination shared by a logger and all loggers derived
// from it with With.
type sink struct {
	mu     sync.Mutex
	level  Level
	format Format
	out    io.Writer
	color  bool
	now    func() time.Time
}

func (s *sink) setOutput(w io.Writer) {
	s.out = w
	f, ok := w.(*os.File)
	s.color = ok && term.IsTerminal(int(f.Fd()))
}

// Logger writes leveled records carrying structured fields. Loggers
// returned by With share level, format and output with their parent.
type Logger struct {
	sink   *sink
	fields Fields
}

// DefaultLogger is a package-level logger for convenience
var DefaultLogger = New(Options{Level: LevelWarn, Output: os.Stderr})

// New creates a Logger. A nil Output means stderr.
func New(opts Options) *Logger {
	s := &sink{level: opts.Level, format: opts.Format, now: time.Now}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	s.setOutput(opts.Output)
	return &Logger{sink: s}
}

// Configure applies opts to DefaultLogger. A nil Output keeps the current writer.
func Configure(opts Options) {
	s := DefaultLogger.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = opts.Level
	s.format = opts.Format
	if opts.Output != nil {
		s.setOutput(opts.Output)
	}
}

func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

func (l *Logger) SetFormat(format Format) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.format = format
}

func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.setOutput(w)
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level Level) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.enabled(level)
}

func (s *sink) enabled(level Level) bool {
	return s.level != LevelNone && level >= s.level
}

// With returns a logger that adds fields to every record. Fields given at
// the call site win over preset ones.
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	maps.Copy(merged, l.fields)
	maps.Copy(merged, fields)
	return &Logger{sink: l.sink, fields: merged}
}

// WithFields is an alias for With
func (l *Logger) WithFields(fields Fields) *Logger {
	return l.With(fields)
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.log(LevelDebug, msg, nil, fields) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.log(LevelInfo, msg, nil, fields) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(LevelWarn, msg, nil, fields) }

func (l *Logger) Error(msg string, err error, fields ...Fields) {
	l.log(LevelError, msg, err, fields)
}

type record struct {
	time   time.Time
	level  Level
	msg    string
	err    error
	fields Fields
}

func (l *Logger) log(level Level, msg string, err error, extra []Fields) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled(level) {
		return
	}

	r := record{time: s.now(), level: level, msg: msg, err: err, fields: l.fields}
	if len(extra) > 0 {
		r.fields = maps.Clone(l.fields)
		if r.fields == nil {
			r.fields = make(Fields)
		}
		for _, f := range extra {
			maps.Copy(r.fields, f)
		}
	}

	var line string
	if s.format == FormatJSON {
		line = r.json()
	} else {
		line = r.text(s.color)
	}
	io.WriteString(s.out, line+"\n")
}

// text renders `15:04:05.000 WRN message error="..." key=value`, keys sorted.
func (r record) text(color bool) string {
	tag := r.level.tag()
	if color {
		tag = tagStyles[r.level].Render(tag)
	}

	var sb strings.Builder
	sb.WriteString(r.time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(tag)
	sb.WriteByte(' ')
	sb.WriteString(r.msg)
	if r.err != nil {
		fmt.Fprintf(&sb, " error=%q", r.err.Error())
	}
	for _, k := range slices.Sorted(maps.Keys(r.fields)) {
		fmt.Fprintf(&sb, " %s=%s", k, textValue(r.fields[k]))
	}
	return sb.String()
}

func textValue(v any) string {
	switch v := v.(type) {
	case string:
		if v == "" || strings.ContainsAny(v, " \t\n\"=") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case error:
		return fmt.Sprintf("%q", v.Error())
	case map[string]any, map[string]string, []any:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}

// json renders a flat object. Fields that collide with time, level, msg or
// error are nested under "fields".
func (r record) json() string {
	obj := make(map[string]any, len(r.fields)+4)
	var clashes Fields
	for k, v := range r.fields {
		switch k {
		case "time", "level", "msg", "error", "fields":
			if clashes == nil {
				clashes = make(Fields)
			}
			clashes[k] = v
		default:
			if e, ok := v.(error); ok {
				v = e.Error()
			}
			obj[k] = v
		}
	}
	if clashes != nil {
		obj["fields"] = clashes
	}
	obj["time"] = r.time.Format(time.RFC3339Nano)
	obj["level"] = r.level.String()
	obj["msg"] = r.msg
	if r.err != nil {
		obj["error"] = r.err.Error()
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Sprintf(`{"level":"error","msg":"unencodable log record","error":%q}`, err.Error())
	}
	return string(data)
}

// Package-level functions use DefaultLogger

func Debug(msg string, fields ...Fields) { DefaultLogger.log(LevelDebug, msg, nil, fields) }
func Info(msg string, fields ...Fields)  { DefaultLogger.log(LevelInfo, msg, nil, fields) }
func Warn(msg string, fields ...Fields)  { DefaultLogger.log(LevelWarn, msg, nil, fields) }

func Error(msg string, err error, fields ...Fields) {
	DefaultLogger.log(LevelError, msg, err, fields)
}

// WithFields returns a child of the default logger with preset fields
func WithFields(fields Fields) *Logger {
	return DefaultLogger.With(fields)
}
