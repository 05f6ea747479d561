package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "vidnotes-test"})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = SetJobID(ctx, "job-1")
	ctx = SetStage(ctx, "transcribe")

	CtxInfo(ctx, "progress %d%%", 42)

	line := decodeLine(t, &buf)
	assert.Equal(t, "progress 42%", line["message"])
	assert.Equal(t, "job-1", line[FieldJobID])
	assert.Equal(t, "transcribe", line[FieldStage])
	assert.Equal(t, "vidnotes-test", line["service"])
	assert.Equal(t, "job-1", GetJobID(ctx))
	assert.Equal(t, "transcribe", GetStage(ctx))
}

func TestEntryMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	With(Fields{FieldModel: "t5-small"}).WithCount(3).WithDuration(time.Now()).Info(ctx, "summarized")

	line := decodeLine(t, &buf)
	assert.Equal(t, "t5-small", line[FieldModel])
	assert.EqualValues(t, 3, line[FieldCount])
	assert.Contains(t, line, FieldDurationMs)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Same(t, GetDefault(), FromContext(nil)) //nolint:staticcheck
}

func TestNewFormatterAutoOnBuffer(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Format: "auto", Output: &buf})
	l.Info("hello")

	line := decodeLine(t, &buf)
	assert.Equal(t, "hello", line["message"])
}
