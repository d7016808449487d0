package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/storage/memory"
	"github.com/jwebster45206/lifequest/pkg/game"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TEST_MODE", "true")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestOpenStore_FallsBackToMemory(t *testing.T) {
	cfg := testConfig(t)
	store, err := OpenStore(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	_, ok := store.(*memory.Store)
	assert.True(t, ok)
}

func TestBuild_OfflineTurn(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, memory.New(), logger.Discard())
	require.NoError(t, err)
	require.NotNil(t, a.Orchestrator)
	require.NotNil(t, a.Sweeper)

	res, err := a.Orchestrator.HandleEvent(context.Background(), game.InboundEvent{
		PlayerID:    "U1",
		DisplayName: "Ann",
		Kind:        game.EventFollow,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)

	_, err = a.Store.GetPlayer(context.Background(), "U1")
	assert.NoError(t, err)
}

func TestBuild_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMProvider = "carrier-pigeon"
	_, err := Build(context.Background(), cfg, memory.New(), logger.Discard())
	assert.Error(t, err)
}
