package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/pkg/game"
)

func setup(t *testing.T) (*Broadcaster, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewBroadcaster(rdb, logger.Discard()), mr
}

func TestBroadcaster_RoundTrip(t *testing.T) {
	b, _ := setup(t)
	ctx := context.Background()

	sub := b.Subscribe(ctx, "U1")
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	res := game.SystemResult("log_action", "STR +250 XP")
	require.NoError(t, b.PublishRequestCompleted(ctx, "U1", "req-1", res, 42))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "player-events:U1", msg.Channel)
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, EventTypeRequestCompleted, ev.Type)
		assert.Equal(t, "req-1", ev.RequestID)
		require.NotNil(t, ev.Result)
		assert.Equal(t, res, *ev.Result)
		assert.Equal(t, int64(42), ev.DurationMS)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestBroadcaster_EventTypes(t *testing.T) {
	b, _ := setup(t)
	ctx := context.Background()

	sub := b.Subscribe(ctx, "U2")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	tests := []struct {
		name    string
		publish func() error
		want    EventType
	}{
		{"queued", func() error { return b.PublishRequestQueued(ctx, "U2", "r", "TEXT") }, EventTypeRequestQueued},
		{"processing", func() error { return b.PublishRequestProcessing(ctx, "U2", "r", "TEXT") }, EventTypeRequestProcessing},
		{"failed", func() error {
			return b.PublishRequestFailed(ctx, "U2", "r", game.SystemResult("error", "oops"), "boom")
		}, EventTypeRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.publish())
			select {
			case msg := <-sub.Channel():
				var ev Event
				require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
				assert.Equal(t, tt.want, ev.Type)
				assert.Equal(t, "U2", ev.PlayerID)
			case <-time.After(2 * time.Second):
				t.Fatal("no event received")
			}
		})
	}
}

func TestBroadcaster_PublishFailsWhenRedisDown(t *testing.T) {
	b, mr := setup(t)
	mr.Close()
	err := b.PublishRequestQueued(context.Background(), "U1", "r", "TEXT")
	assert.ErrorContains(t, err, "failed to publish event")
}
