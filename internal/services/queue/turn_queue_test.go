package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/queue"
)

func setupTestRedis(t *testing.T) (*TurnQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), "redis://"+mr.Addr(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewTurnQueue(client), mr
}

func textRequest(player, text string) *queue.Request {
	return queue.NewEventRequest(game.InboundEvent{PlayerID: player, Kind: game.EventText, Text: text})
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://nope", logger.Discard())
	assert.Error(t, err)
}

func TestTurnQueue_FIFO(t *testing.T) {
	q, _ := setupTestRedis(t)
	ctx := context.Background()

	first := textRequest("U1", "gym 1 hour")
	second := textRequest("U2", "看書30分鐘")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.RequestID, got.RequestID)

	got, err = q.BlockingDequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, second.RequestID, got.RequestID)
	assert.Equal(t, "看書30分鐘", got.Event.Text)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTurnQueue_BlockingDequeueTimesOut(t *testing.T) {
	q, _ := setupTestRedis(t)
	got, err := q.BlockingDequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTurnQueue_EnqueueRejectsInvalid(t *testing.T) {
	q, mr := setupTestRedis(t)
	err := q.Enqueue(context.Background(), &queue.Request{Type: queue.RequestTypeSweep})
	assert.ErrorContains(t, err, "player_id is required")
	assert.False(t, mr.Exists(RequestsKey))
}

func TestTurnQueue_Requeue(t *testing.T) {
	q, mr := setupTestRedis(t)
	ctx := context.Background()

	req := textRequest("U1", "gym")
	ok, err := q.Requeue(ctx, req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, req.Attempts)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	req.Attempts = MaxRequeues
	ok, err = q.Requeue(ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
	dead, err := mr.List(DeadLetterKey)
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestTurnQueue_BadPayloadIsParked(t *testing.T) {
	q, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := mr.Push(RequestsKey, `{"type":"event"}`)
	require.NoError(t, err)

	_, err = q.Dequeue(ctx)
	assert.ErrorContains(t, err, "failed to parse request")

	dead, err := q.DeadLetters(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"type":"event"}`}, dead)
}
