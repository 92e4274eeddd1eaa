package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseLevel(tc.in), tc.in)
	}
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := With(WithLogger(context.Background(), base), "deposit_id", "abc")
	FromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), "deposit_id=abc")
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestNew_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "pix-ledger-api", "info", "production")

	logger.Info("withdraw requested", "pix_key", "ana@example.com", "document", "12345678909", "amount", 1500)

	out := buf.String()
	assert.NotContains(t, out, "ana@example.com")
	assert.NotContains(t, out, "12345678909")
	assert.Contains(t, out, `"pix_key":"[REDACTED]"`)
	assert.Contains(t, out, `"amount":1500`)
	assert.Contains(t, out, `"service":"pix-ledger-api"`)
	assert.Contains(t, out, `"env":"production"`)
}

func TestNew_TextInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "svc", "debug", "development").Debug("visible", "deposit_id", "d1")

	assert.Contains(t, buf.String(), "deposit_id=d1")
	assert.Contains(t, buf.String(), "source=")
}
