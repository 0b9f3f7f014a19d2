package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// Fields is a map of field names to values.
type Fields map[string]any

// ComponentKey is the field name used by Component and WithComponent.
const ComponentKey = "component"

// Entry represents a single formatted log record.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger is the leveled, structured logging interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that always carries fields.
	With(fields ...Field) Logger
	// WithComponent tags logs with a component name.
	WithComponent(component string) Logger
	// WithContext is kept for call sites that thread a context; the
	// context is currently only used to pick up a component value.
	WithContext(ctx context.Context) Logger

	SetLevel(level Level)
	GetLevel() Level

	// Slog exposes the underlying *slog.Logger for libraries that want one.
	Slog() *slog.Logger
}

// Formatter turns an Entry into bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output receives formatted entries.
type Output interface {
	Write(entry *Entry, formatted []byte) error
	Close() error
}

// LoggerOption configures a BaseLogger.
type LoggerOption func(*BaseLogger)

// BaseLogger implements Logger. Children created by With share the level,
// formatter and outputs of their parent.
type BaseLogger struct {
	core       *core
	slogLogger *slog.Logger
}

type core struct {
	level     atomic.Int32
	formatter Formatter
	outputs   []Output
}

// NewLogger creates a new logger with the given options. Defaults are
// InfoLevel, JSON formatting and a console output.
func NewLogger(options ...LoggerOption) Logger {
	l := &BaseLogger{core: &core{formatter: &JSONFormatter{}}}
	l.core.level.Store(int32(InfoLevel))
	for _, option := range options {
		option(l)
	}
	if len(l.core.outputs) == 0 {
		l.core.outputs = append(l.core.outputs, NewConsoleOutput())
	}
	l.slogLogger = slog.New(newBridgeHandler(l.core))
	return l
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return NewLogger(WithLevel(ErrorLevel+1), WithOutput(NewNullOutput()))
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) { l.core.level.Store(int32(level)) }
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) { l.core.formatter = formatter }
}

// WithOutput adds an output to the logger.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) { l.core.outputs = append(l.core.outputs, output) }
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *BaseLogger) log(level slog.Level, msg string, fields []Field) {
	if !l.slogLogger.Enabled(context.Background(), level) {
		return
	}
	l.slogLogger.LogAttrs(context.Background(), level, msg, attrsFromFields(fields)...)
}

// With returns a child logger carrying fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &BaseLogger{core: l.core, slogLogger: l.slogLogger.With(attrsToAny(attrsFromFields(fields))...)}
}

// WithComponent tags logs with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

type componentCtxKey struct{}

// ContextWithComponent stores a component name in ctx for WithContext.
func ContextWithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentCtxKey{}, component)
}

// WithContext adds context-carried fields to the logger.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	if v, ok := ctx.Value(componentCtxKey{}).(string); ok && v != "" {
		return l.WithComponent(v)
	}
	return l
}

// SetLevel sets the minimum log level for this logger and its children.
func (l *BaseLogger) SetLevel(level Level) { l.core.level.Store(int32(level)) }

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level { return Level(l.core.level.Load()) }

// Slog returns the bridged *slog.Logger.
func (l *BaseLogger) Slog() *slog.Logger { return l.slogLogger }

// consoleFallback is used when formatting fails so the record is not lost.
func consoleFallback(entry *Entry, err error) {
	fmt.Fprintf(os.Stderr, "%s %s %s (format error: %v)\n",
		entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message, err)
}
