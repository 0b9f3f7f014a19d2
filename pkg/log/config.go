package log

import (
	"fmt"
	"io"
	stdlog "log"
	"strings"
)

// Config declares how to build a process logger.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	// Output is "console" (default), "null", or a file path.
	Output string `json:"output" yaml:"output"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}
	var out Output
	switch cfg.Output {
	case "", "console", "stderr":
		out = NewConsoleOutput()
	case "null":
		out = NewNullOutput()
	default:
		fo, err := NewFileOutput(cfg.Output)
		if err != nil {
			return nil, err
		}
		out = fo
	}
	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(out)), nil
}

// stdWriter adapts Logger to io.Writer for the standard library logger.
type stdWriter struct {
	l Logger
}

func (w stdWriter) Write(p []byte) (int, error) {
	w.l.Info(strings.TrimRight(string(p), "\n"), Str("source", "stdlog"))
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that writes through l at info level.
func ToStdLogger(l Logger) *stdlog.Logger {
	return stdlog.New(stdWriter{l: l}, "", 0)
}

// RedirectStdLog routes the standard library's default logger through l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(io.Writer(stdWriter{l: l}))
}
