// Package logger wraps zerolog for sqlstream. Statement text is logged
// through Logger.SQL so a multi-megabyte script statement never lands in
// a log line whole.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// DefaultMaxSQL is the statement length kept in log fields when the
// config does not say otherwise.
const DefaultMaxSQL = 512

// Logger wraps zerolog with the handful of helpers sqlstream needs.
// A nil *Logger is not valid; use Nop() when logging is not wanted.
type Logger struct {
	zlog   zerolog.Logger
	maxSQL int
}

// Config holds logger configuration
type Config struct {
	Level      string    `yaml:"level"`       // debug, info, warn, error, off
	Format     string    `yaml:"format"`      // json, console
	TimeFormat string    `yaml:"time_format"` // rfc3339, unix, unixms, unixmicro
	MaxSQL     int       `yaml:"max_sql"`     // statement bytes kept per log field, 0 = DefaultMaxSQL, < 0 = unlimited
	Output     io.Writer `yaml:"-"`
}

// DefaultConfig returns production-ready defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: "rfc3339",
		MaxSQL:     DefaultMaxSQL,
		Output:     os.Stderr,
	}
}

// New creates a logger from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = getTimeFormat(cfg.TimeFormat)

	var zlog zerolog.Logger
	if cfg.Format == "console" {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		zlog = zerolog.New(out)
	}
	zlog = zlog.With().Timestamp().Logger().Level(parseLevel(cfg.Level))

	maxSQL := cfg.MaxSQL
	if maxSQL == 0 {
		maxSQL = DefaultMaxSQL
	}
	return &Logger{zlog: zlog, maxSQL: maxSQL}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), maxSQL: DefaultMaxSQL}
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying l.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger stored by WithContext, or a Nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Nop()
}

// With creates a child logger with additional fields
func (l *Logger) With() *Context {
	return &Context{ctx: l.zlog.With(), maxSQL: l.maxSQL}
}

// Context wraps zerolog.Context for field chaining
type Context struct {
	ctx    zerolog.Context
	maxSQL int
}

func (c *Context) Str(key, val string) *Context {
	c.ctx = c.ctx.Str(key, val)
	return c
}

func (c *Context) Int(key string, val int) *Context {
	c.ctx = c.ctx.Int(key, val)
	return c
}

func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.ctx.Logger(), maxSQL: c.maxSQL}
}

// SQL shortens sql for a log field. Cuts land on a rune boundary and the
// dropped length is appended, e.g. "INSERT INTO t VALUES ... (+48210 bytes)".
func (l *Logger) SQL(sql string) string {
	if l.maxSQL < 0 || len(sql) <= l.maxSQL {
		return sql
	}
	cut := l.maxSQL
	for cut > 0 && !utf8.RuneStart(sql[cut]) {
		cut--
	}
	return fmt.Sprintf("%s... (+%d bytes)", sql[:cut], len(sql)-cut)
}

func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// Structured logging with fields
func (l *Logger) DebugWith(msg string, fields map[string]any) {
	withFields(l.zlog.Debug(), fields).Msg(msg)
}

func (l *Logger) InfoWith(msg string, fields map[string]any) {
	withFields(l.zlog.Info(), fields).Msg(msg)
}

func (l *Logger) WarnWith(msg string, fields map[string]any) {
	withFields(l.zlog.Warn(), fields).Msg(msg)
}

func (l *Logger) ErrorWith(msg string, err error, fields map[string]any) {
	withFields(l.zlog.Error().Err(err), fields).Msg(msg)
}

func withFields(event *zerolog.Event, fields map[string]any) *zerolog.Event {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	return event
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func getTimeFormat(format string) string {
	switch format {
	case "unix":
		return zerolog.TimeFormatUnix
	case "unixms":
		return zerolog.TimeFormatUnixMs
	case "unixmicro":
		return zerolog.TimeFormatUnixMicro
	default:
		return time.RFC3339
	}
}
