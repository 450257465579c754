// Package observability provides structured logging for pipeline runs.
// Every line carries the service name; run, document, page and stage
// fields are attached by the pipeline as work moves through it.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger wraps zerolog with pipeline specific context helpers.
type Logger struct {
	zl zerolog.Logger
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string
	Format      string // json or console
	Output      io.Writer
	ServiceName string
	NoColor     bool // console format only
}

// NewLogger creates a new Logger with the given configuration. Unknown
// levels fall back to info; Validate the config first to reject them.
func NewLogger(cfg LogConfig) *Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	// Progress output owns stdout
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: cfg.NoColor}
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.ServiceName != "" {
		zl = zl.Str("service", cfg.ServiceName)
	}
	return &Logger{zl: zl.Logger()}
}

// DefaultLogger returns a console logger at info level.
func DefaultLogger() *Logger {
	return NewLogger(LogConfig{Level: "info", Format: "console", ServiceName: "ocr-pipeline"})
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) Debug() *LogEvent { return &LogEvent{evt: l.zl.Debug()} }
func (l *Logger) Info() *LogEvent  { return &LogEvent{evt: l.zl.Info()} }
func (l *Logger) Warn() *LogEvent  { return &LogEvent{evt: l.zl.Warn()} }
func (l *Logger) Error() *LogEvent { return &LogEvent{evt: l.zl.Error()} }

func (l *Logger) with(key, val string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, val).Logger()}
}

// WithRun tags every line with the run id.
func (l *Logger) WithRun(runID string) *Logger { return l.with("run_id", runID) }

// WithOperation tags every line with the component emitting it.
func (l *Logger) WithOperation(op string) *Logger { return l.with("operation", op) }

// WithDocument tags every line with the document being processed.
func (l *Logger) WithDocument(name string) *Logger { return l.with("document", name) }

// LogEvent is a log line being built. A nil zerolog event (level filtered
// out) is safe to chain on.
type LogEvent struct {
	evt *zerolog.Event
}

func (e *LogEvent) Str(key, val string) *LogEvent {
	e.evt = e.evt.Str(key, val)
	return e
}

func (e *LogEvent) Int(key string, val int) *LogEvent {
	e.evt = e.evt.Int(key, val)
	return e
}

func (e *LogEvent) Float64(key string, val float64) *LogEvent {
	e.evt = e.evt.Float64(key, val)
	return e
}

func (e *LogEvent) Bool(key string, val bool) *LogEvent {
	e.evt = e.evt.Bool(key, val)
	return e
}

func (e *LogEvent) Dur(key string, val time.Duration) *LogEvent {
	e.evt = e.evt.Dur(key, val)
	return e
}

func (e *LogEvent) Err(err error) *LogEvent {
	e.evt = e.evt.Err(err)
	return e
}

// Page sets the 1-based page number.
func (e *LogEvent) Page(n int) *LogEvent { return e.Int("page", n) }

// Stage sets the pipeline stage the line belongs to.
func (e *LogEvent) Stage(name string) *LogEvent { return e.Str("stage", name) }

func (e *LogEvent) Msg(msg string) { e.evt.Msg(msg) }

func (e *LogEvent) Msgf(format string, args ...interface{}) { e.evt.Msgf(format, args...) }

// ParseLevel resolves a level name, ignoring case. An empty name is info
// and "warning" is accepted for warn.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	return zerolog.ParseLevel(level)
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	lvl, err := ParseLevel(level)
	return err == nil && lvl != zerolog.NoLevel && lvl != zerolog.Disabled
}
