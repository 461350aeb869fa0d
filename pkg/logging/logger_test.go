package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewStructuredLogger("rescue-map", "test", WarnLevel)
	l.SetOutput(&buf)

	ctx := context.Background()
	l.Debug(ctx, "[DEBUG] dropped", nil)
	l.Info(ctx, "[INFO] dropped", nil)
	l.Warn(ctx, "[WARN] kept", Fields{"floor": 2})

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "rescue-map", entries[0].Service)
	assert.EqualValues(t, 2, entries[0].Fields["floor"])
}

func TestStructuredLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewStructuredLogger("rescue-map", "test", DebugLevel)
	l.SetOutput(&buf)

	ctx := WithMapPath(WithRequestID(context.Background(), "req-1"), "data/saved_map.txt")
	l.Error(ctx, "[PARSE_ERROR] load failed", Fields{}, errors.New("boom"))

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, "data/saved_map.txt", entries[0].MapPath)
	assert.Equal(t, "boom", entries[0].Error)
	assert.NotEmpty(t, entries[0].File)
	assert.Contains(t, entries[0].Function, "TestStructuredLogger_ContextValues")
}

func TestStructuredLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := NewStructuredLogger("rescue-map", "test", InfoLevel)
	l.SetOutput(&buf)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal(context.Background(), "[FATAL] stop", nil, errors.New("bad"))

	assert.Equal(t, 1, code)
	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].StackTrace)
}

func TestContextLogger_MergeFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewStructuredLogger("rescue-map", "test", DebugLevel)
	l.SetOutput(&buf)

	cl := l.WithFields(Fields{"component": "parser", "stage": "init"})
	cl.Info(context.Background(), "[MSG] merged", Fields{"stage": "complete"})

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "parser", entries[0].Fields["component"])
	assert.Equal(t, "complete", entries[0].Fields["stage"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}
