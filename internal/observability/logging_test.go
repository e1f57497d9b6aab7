package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultLogConfig()},
		{name: "debug console", cfg: LogConfig{Level: "debug", Format: "console", Output: "stderr"}},
		{name: "warn json", cfg: LogConfig{Level: "warn", Format: "json", Output: "stdout"}},
		{name: "invalid level", cfg: LogConfig{Level: "shout"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("test message", String("key", "value"))
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := NopLogger()
	child := logger.With(String("component", "test"))
	require.NotNil(t, child)
	child.Info("does not panic")
}

func TestRequestIDContext_RoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestWithContext(t *testing.T) {
	logger := NopLogger()

	withID := logger.WithContext(ContextWithRequestID(context.Background(), "req-123"))
	require.NotNil(t, withID)

	// Without a request ID the same logger comes back.
	assert.Equal(t, logger, logger.WithContext(context.Background()))
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	nop := NopLogger()
	SetGlobalLogger(nop)
	assert.Equal(t, nop, GetGlobalLogger())
}
