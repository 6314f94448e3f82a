package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: io.Discard}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
		{name: "nil output falls back to stderr", config: &Config{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	l.Info("statement sink completed")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "statement sink completed", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	child := l.With().
		Str("component", "sqlstream").
		Int("parallelism", 4).
		Logger()

	child.Info("flow started")

	entry := decode(t, buf)
	assert.Equal(t, "sqlstream", entry["component"])
	assert.Equal(t, float64(4), entry["parallelism"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "error", Format: "json", Output: buf})

	l.ErrorWith("statement failed", errors.New("relation does not exist"), map[string]any{
		"index": 3,
	})

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "relation does not exist", entry["error"])
	assert.Equal(t, float64(3), entry["index"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := l.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestLogger_ContextKeepsMaxSQL(t *testing.T) {
	l := New(&Config{MaxSQL: 6, Output: io.Discard}).With().Str("request_id", "r1").Logger()

	got := FromContext(l.WithContext(context.Background()))
	assert.Same(t, l, got)
	assert.Equal(t, "SELECT... (+6 bytes)", got.SQL("SELECT 12345"))
}

func TestFromContext_EmptyIsNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info("dropped")
}

func TestNop_WritesNothing(t *testing.T) {
	l := Nop()
	l.Error("dropped")
	l.DebugWith("dropped", map[string]any{"k": "v"})
	assert.Equal(t, "SELECT 1", l.SQL("SELECT 1"))
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{name: "debug level logs debug", level: "debug", logFunc: func(l *Logger) { l.Debug("x") }, expected: true},
		{name: "info level skips debug", level: "info", logFunc: func(l *Logger) { l.DebugWith("x", nil) }, expected: false},
		{name: "error level logs error", level: "error", logFunc: func(l *Logger) { l.ErrorWith("x", errors.New("boom"), nil) }, expected: true},
		{name: "error level skips info", level: "error", logFunc: func(l *Logger) { l.Info("x") }, expected: false},
		{name: "warn level logs warn", level: "warn", logFunc: func(l *Logger) { l.WarnWith("x", nil) }, expected: true},
		{name: "off skips error", level: "off", logFunc: func(l *Logger) { l.Error("x") }, expected: false},
		{name: "disabled skips error", level: "disabled", logFunc: func(l *Logger) { l.Error("x") }, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestLogger_SQL(t *testing.T) {
	tests := []struct {
		name   string
		maxSQL int
		sql    string
		want   string
	}{
		{name: "short statement kept", maxSQL: 16, sql: "SELECT 1", want: "SELECT 1"},
		{name: "exact length kept", maxSQL: 8, sql: "SELECT 1", want: "SELECT 1"},
		{name: "long statement cut", maxSQL: 6, sql: "SELECT 12345", want: "SELECT... (+6 bytes)"},
		{name: "cut on rune boundary", maxSQL: 9, sql: "SELECT 'ü'", want: "SELECT '... (+3 bytes)"},
		{name: "negative is unlimited", maxSQL: -1, sql: "SELECT 12345", want: "SELECT 12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&Config{MaxSQL: tt.maxSQL, Output: io.Discard})
			assert.Equal(t, tt.want, l.SQL(tt.sql))
		})
	}
}

func TestLogger_SQLDefaultAndChild(t *testing.T) {
	long := make([]byte, DefaultMaxSQL+10)
	for i := range long {
		long[i] = 'x'
	}

	l := New(&Config{Output: io.Discard})
	got := l.With().Str("component", "copier").Logger().SQL(string(long))
	assert.Equal(t, string(long[:DefaultMaxSQL])+"... (+10 bytes)", got)
}

func BenchmarkLogger_WithFields(b *testing.B) {
	l := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.With().
			Str("component", "sqlstream").
			Int("index", i).
			Logger().
			Info("statement executed")
	}
}
