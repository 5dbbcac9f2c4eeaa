package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type logLine struct {
	Level  string `json:"level"`
	Logger string `json:"logger"`
	Msg    string `json:"msg"`
	RunID  string `json:"run_id"`
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()
	var out []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &l), raw)
		out = append(out, l)
	}
	return out
}

func TestGet_NoopBeforeInitialize(t *testing.T) {
	CloseAll()
	// Must not panic and must not write anywhere.
	Get(CategoryStore).Info("nothing %d", 1)
	StartTimer(CategoryStore, "noop").Stop()
}

func TestInitialize_CategoriesAreNamedLoggers(t *testing.T) {
	defer CloseAll()

	var buf bytes.Buffer
	require.NoError(t, Initialize(Options{Level: "debug", Format: "json", Output: &buf}))

	Get(CategoryStore).Info("loaded %d records", 3)
	Get(CategoryPipeline).Warn("record %s failed", "push_knee")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "store", lines[0].Logger)
	assert.Equal(t, "loaded 3 records", lines[0].Msg)
	assert.Equal(t, "info", lines[0].Level)
	assert.Equal(t, "pipeline", lines[1].Logger)
	assert.Equal(t, "warn", lines[1].Level)
}

func TestInitialize_LevelFilters(t *testing.T) {
	defer CloseAll()

	var buf bytes.Buffer
	require.NoError(t, Initialize(Options{Level: "warn", Output: &buf}))

	Get(CategoryGraph).Debug("hidden")
	Get(CategoryGraph).Info("hidden")
	Get(CategoryGraph).Error("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0].Msg)
}

func TestInitialize_RejectsUnknownSettings(t *testing.T) {
	assert.Error(t, Initialize(Options{Level: "loud"}))
	assert.Error(t, Initialize(Options{Format: "xml"}))
}

func TestWithRunID(t *testing.T) {
	defer CloseAll()

	var buf bytes.Buffer
	require.NoError(t, Initialize(Options{Level: "info", Output: &buf}))

	WithRunID(CategoryPipeline, "run-42").Info("starting")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run-42", lines[0].RunID)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestTimer_StopWithThreshold(t *testing.T) {
	defer CloseAll()

	var buf bytes.Buffer
	require.NoError(t, Initialize(Options{Level: "info", Output: &buf}))

	timer := StartTimer(CategoryImageGen, "generate")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)

	assert.Greater(t, elapsed, time.Duration(0))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0].Msg, "generate took")
}
