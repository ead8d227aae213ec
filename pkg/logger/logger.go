package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Logger is a thin structured wrapper around zerolog. Warnings and errors
// are additionally fed into an optional Collector.
type Logger struct {
	zl        zerolog.Logger
	collector *Collector
	bound     []Field
}

type Config struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json"`   // json or console
	Output     string `yaml:"output" default:"stdout"` // stdout, stderr or a file path
	TimeFormat string `yaml:"time_format"`
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	zl := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()

	return &Logger{zl: zl}, nil
}

// NewWriter builds a JSON logger on an arbitrary writer. Used by tests that
// inspect output.
func NewWriter(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.context(ctx)
	}
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &Logger{zl: ctx.Logger(), collector: l.collector, bound: bound}
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.write(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.write(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.write(l.zl.Warn(), msg, fields)
	l.collect("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.write(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) write(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		f.event(ev)
	}
	ev.Msg(msg)
}

// AttachCollector starts forwarding warnings and errors to a Collector.
// A previously attached collector is closed first.
func (l *Logger) AttachCollector(cfg *CollectorConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewCollector(cfg)
}

// DetachCollector flushes and stops the collector, if any.
func (l *Logger) DetachCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.Index(file, "/internal/"); i >= 0 {
			file = file[i+1:]
		} else if i := strings.Index(file, "/pkg/"); i >= 0 {
			file = file[i+1:]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	values := make(map[string]any, len(l.bound)+len(fields))
	for _, f := range l.bound {
		values[f.Key] = f.Value
	}
	for _, f := range fields {
		values[f.Key] = f.Value
	}
	l.collector.Add(level, msg, values, caller)
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value any
	kind  fieldKind
}

type fieldKind uint8

const (
	kindAny fieldKind = iota
	kindString
	kindInt
	kindInt64
	kindBool
	kindError
	kindDuration
	kindTime
	kindDecimal
)

func (f Field) event(ev *zerolog.Event) {
	switch f.kind {
	case kindString:
		ev.Str(f.Key, f.Value.(string))
	case kindInt:
		ev.Int(f.Key, f.Value.(int))
	case kindInt64:
		ev.Int64(f.Key, f.Value.(int64))
	case kindBool:
		ev.Bool(f.Key, f.Value.(bool))
	case kindError:
		ev.Str(f.Key, f.Value.(string))
	case kindDuration:
		ev.Int64(f.Key, f.Value.(int64))
	case kindTime:
		ev.Str(f.Key, f.Value.(string))
	case kindDecimal:
		ev.Str(f.Key, f.Value.(string))
	default:
		ev.Interface(f.Key, f.Value)
	}
}

func (f Field) context(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString, kindError, kindTime, kindDecimal:
		return c.Str(f.Key, f.Value.(string))
	case kindInt:
		return c.Int(f.Key, f.Value.(int))
	case kindInt64, kindDuration:
		return c.Int64(f.Key, f.Value.(int64))
	case kindBool:
		return c.Bool(f.Key, f.Value.(bool))
	default:
		return c.Interface(f.Key, f.Value)
	}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value, kind: kindString}
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ","))
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value, kind: kindInt}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value, kind: kindInt64}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value, kind: kindBool}
}

func Error(err error) Field {
	msg := "<nil>"
	if err != nil {
		msg = err.Error()
	}
	return Field{Key: "error", Value: msg, kind: kindError}
}

// Duration is logged in milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.Milliseconds(), kind: kindDuration}
}

func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339), kind: kindTime}
}

// Decimal logs money values as exact strings.
func Decimal(key string, value decimal.Decimal) Field {
	return Field{Key: key, Value: value.String(), kind: kindDecimal}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value, kind: kindAny}
}

// Account and User are the identifiers attached to nearly every entry of
// the aggregation pipeline.
func Account(id string) Field {
	return String("account_id", id)
}

func User(id int64) Field {
	return Int64("user_id", id)
}
