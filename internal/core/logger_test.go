package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level, format string) (*ProductionLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := &ProductionLogger{level: level, format: format, output: buf, service: "decant", component: "test"}
	return l, buf
}

func TestNoOpLogger_DiscardsEverything(t *testing.T) {
	var l ComponentAwareLogger = NoOpLogger{}
	l.Info("msg", map[string]interface{}{"a": 1})
	l.ErrorWithContext(context.Background(), "msg", nil)
	assert.Equal(t, NoOpLogger{}, l.WithComponent("x"))
}

func TestProductionLogger_JSONFormatIncludesFields(t *testing.T) {
	l, buf := newTestLogger("INFO", "json")

	l.Info("hello", map[string]interface{}{"key": "value"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "value", entry["key"])
}

func TestProductionLogger_TextFormatIncludesFields(t *testing.T) {
	l, buf := newTestLogger("INFO", "text")

	l.Warn("careful", map[string]interface{}{"n": 5})

	out := buf.String()
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[test]")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "n=5")
}

func TestProductionLogger_RespectsLevelThreshold(t *testing.T) {
	l, buf := newTestLogger("WARN", "text")

	l.Debug("should be dropped", nil)
	l.Info("also dropped", nil)
	assert.Empty(t, buf.String())

	l.Warn("kept", nil)
	assert.Contains(t, buf.String(), "kept")
}

func TestProductionLogger_WithContextIncludesRequestID(t *testing.T) {
	l, buf := newTestLogger("INFO", "json")
	ctx := WithRequestID(context.Background(), "req-123")

	l.InfoWithContext(ctx, "handled", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
}

func TestProductionLogger_WithoutRequestIDOmitsField(t *testing.T) {
	l, buf := newTestLogger("INFO", "json")

	l.InfoWithContext(context.Background(), "handled", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, present := entry["request_id"]
	assert.False(t, present)
}

func TestProductionLogger_WithComponentPreservesConfigButChangesTag(t *testing.T) {
	l, buf := newTestLogger("INFO", "text")

	child := l.WithComponent("storage")
	child.Info("child log", nil)

	assert.Contains(t, buf.String(), "[storage]")
}

func TestNewProductionLogger_DefaultsToInfoAndText(t *testing.T) {
	l := NewProductionLogger("decant")
	assert.Equal(t, "INFO", l.level)
	assert.Equal(t, "text", l.format)
}

func TestProductionLogger_SetOutputRedirects(t *testing.T) {
	l := NewProductionLogger("decant")
	buf := &bytes.Buffer{}
	l.SetOutput(buf)

	l.Info("redirected", nil)

	assert.True(t, strings.Contains(buf.String(), "redirected"))
}
