package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront-ledger/internal/config"
)

func TestSetup_WithoutEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}

	tp, shutdownTracing, err := SetupTracingSDK(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, tp)

	shutdownLogging, err := SetupLoggingSDK(ctx, cfg)
	require.NoError(t, err)

	assert.NoError(t, JoinShutdown(shutdownTracing, shutdownLogging)(ctx))
}

func TestJoinShutdown_CollectsErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	calls := 0

	shutdown := JoinShutdown(
		func(context.Context) error { calls++; return first },
		nil,
		func(context.Context) error { calls++; return second },
	)

	err := shutdown(context.Background())
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(false)
	require.NotNil(t, logger)
	logger.Info("logger ready")
}
