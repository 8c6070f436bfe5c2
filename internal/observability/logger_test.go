package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := logger
	t.Cleanup(func() { logger = prev })

	var buf bytes.Buffer
	require.NoError(t, Init("debug", "json", &buf))
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestWithFieldsAddsFields(t *testing.T) {
	buf := captureLogs(t)

	WithFields(map[string]any{"component": "backup", "mode": "async"}).Warn().Msg("results backup failed")

	entry := lastEntry(t, buf)
	assert.Equal(t, "backup", entry["component"])
	assert.Equal(t, "async", entry["mode"])
	assert.Equal(t, "warn", entry["level"])
}

func TestLoggerFromContextCarriesRequestID(t *testing.T) {
	buf := captureLogs(t)

	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
	LoggerFromContext(ctx).Info().Msg("hello")
	assert.Equal(t, "req-42", lastEntry(t, buf)["request_id"])

	LoggerFromContext(context.Background()).Info().Msg("plain")
	assert.NotContains(t, lastEntry(t, buf), "request_id")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	captureLogs(t)
	assert.Error(t, Init("chatty", "json", nil))
}
