package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/services/queue"
	"github.com/jwebster45206/lifequest/pkg/game"
	queuePkg "github.com/jwebster45206/lifequest/pkg/queue"
)

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TEST_MODE", "true")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateContent_Embedded(t *testing.T) {
	out, err := run(t, "validate-content")
	require.NoError(t, err)
	assert.Contains(t, out, "Content is valid")
}

func TestValidateContent_BadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keywords.yaml"), []byte("nonsense: ["), 0o644))
	_, err := run(t, "validate-content", "--dir", dir)
	assert.ErrorContains(t, err, "content is invalid")
}

func TestTurn_InMemory(t *testing.T) {
	setEnv(t)
	out, err := run(t, "turn", "--player", "U1", "--json", "hello")
	require.NoError(t, err)

	var res game.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.Text)
	assert.NotEmpty(t, res.Intent)
}

func TestTurn_NeedsInput(t *testing.T) {
	setEnv(t)
	_, err := run(t, "turn", "--player", "U1")
	assert.ErrorContains(t, err, "give some text")

	_, err = run(t, "turn", "hello")
	assert.Error(t, err)
}

func TestEnqueue(t *testing.T) {
	setEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	out, err := run(t, "enqueue", "--player", "U1", "ran", "5k")
	require.NoError(t, err)
	assert.Contains(t, out, "queue depth 1")

	out, err = run(t, "enqueue", "--player", "U1", "--sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "queue depth 2")

	client, err := queue.NewClient(context.Background(), "redis://"+mr.Addr(), logger.Discard())
	require.NoError(t, err)
	defer client.Close()
	q := queue.NewTurnQueue(client)

	first, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first.Event)
	assert.Equal(t, "ran 5k", first.Event.Text)

	second, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queuePkg.RequestTypeSweep, second.Type)
}

func TestSweep_InMemory(t *testing.T) {
	setEnv(t)
	out, err := run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Swept 0 player(s).")

	_, err = run(t, "sweep", "--player", "ghost")
	assert.Error(t, err)
}

func TestMigrate_NeedsDatabase(t *testing.T) {
	setEnv(t)
	_, err := run(t, "migrate")
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}
