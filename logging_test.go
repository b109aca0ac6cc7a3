package lockfree

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelWarn, &buf)

	LogDebug(l, "stack", "ignored", nil)
	require.Empty(t, buf.String())

	LogWarn(l, "stack", "heads up", map[string]interface{}{"k": "v"})
	require.Contains(t, buf.String(), "heads up")
	require.Contains(t, buf.String(), "k=v")
}

func TestWriterLoggerIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelError, &buf)
	LogError(l, "blockqueue", "allocation failed", errors.New("oom"), nil)
	require.Contains(t, buf.String(), "oom")
}

func TestNoOpLoggerNeverEnabled(t *testing.T) {
	l := NewNoOpLogger()
	require.False(t, l.IsEnabled(LevelDebug))
	require.False(t, l.IsEnabled(LevelError))
}

func TestGlobalLoggerDefaultsToNoOp(t *testing.T) {
	SetStructuredLogger(nil)
	l := getGlobalLogger()
	require.False(t, l.IsEnabled(LevelDebug))
}

func TestSetStructuredLoggerRoutesConvenienceFuncs(t *testing.T) {
	var buf bytes.Buffer
	SetStructuredLogger(NewWriterLogger(LevelDebug, &buf))
	defer SetStructuredLogger(nil)

	SInfo("ring", "enqueued")
	require.Contains(t, buf.String(), "enqueued")
}

func TestLogEntryBuilder(t *testing.T) {
	entry := NewLogEntry(LevelInfo, "notify", "fired").
		ContainerID(1).
		BlockID(2).
		Field("kind", "OnAlmostFull").
		Build()

	require.Equal(t, int64(1), entry.ContainerID)
	require.Equal(t, int64(2), entry.BlockID)
	require.Equal(t, "OnAlmostFull", entry.Context["kind"])
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "OnAllInserts", OnAllInserts.String())
	require.Equal(t, "OnAlmostFull", OnAlmostFull.String())
}

func TestLogLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", LevelDebug.String())
	require.True(t, strings.HasPrefix(LogLevel(99).String(), "UNKNOWN"))
}
