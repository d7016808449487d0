package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/config"
)

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), &config.Config{}, "lifequest-test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSetup_WithEndpoint(t *testing.T) {
	// Non-routable address: nothing is exported, shutdown still flushes.
	cfg := &config.Config{OTelEndpoint: "http://192.0.2.1:4318", Environment: "test"}
	shutdown, err := Setup(context.Background(), cfg, "lifequest-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
