package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/services/events"
	"github.com/jwebster45206/lifequest/internal/services/queue"
	"github.com/jwebster45206/lifequest/pkg/game"
	queuePkg "github.com/jwebster45206/lifequest/pkg/queue"
)

type mockTurns struct {
	mu    sync.Mutex
	calls []game.InboundEvent

	HandleEventFunc func(ctx context.Context, ev game.InboundEvent) (game.Result, error)
}

func (m *mockTurns) HandleEvent(ctx context.Context, ev game.InboundEvent) (game.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ev)
	m.mu.Unlock()
	if m.HandleEventFunc != nil {
		return m.HandleEventFunc(ctx, ev)
	}
	return game.SystemResult("log_action", "ok: "+ev.Text), nil
}

func (m *mockTurns) Calls() []game.InboundEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]game.InboundEvent(nil), m.calls...)
}

type mockSweeper struct {
	runs       atomic.Int32
	playerRuns atomic.Int32

	RunPlayerFunc func(ctx context.Context, playerID string, now time.Time) (bool, error)
}

func (m *mockSweeper) Run(ctx context.Context, now time.Time) (int, error) {
	m.runs.Add(1)
	return 0, nil
}

func (m *mockSweeper) RunPlayer(ctx context.Context, playerID string, now time.Time) (bool, error) {
	m.playerRuns.Add(1)
	if m.RunPlayerFunc != nil {
		return m.RunPlayerFunc(ctx, playerID, now)
	}
	return true, nil
}

type harness struct {
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	queue   *queue.TurnQueue
	turns   *mockTurns
	sweeper *mockSweeper
	worker  *Worker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := queue.NewClient(context.Background(), "redis://"+mr.Addr(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		mr:      mr,
		rdb:     client.Redis(),
		queue:   queue.NewTurnQueue(client),
		turns:   &mockTurns{},
		sweeper: &mockSweeper{},
	}
	h.worker = New(h.queue, h.turns, h.sweeper, h.rdb, logger.Discard(), "worker-test")
	return h
}

func (h *harness) enqueueText(t *testing.T, player, text string) *queuePkg.Request {
	t.Helper()
	req := queuePkg.NewEventRequest(game.InboundEvent{PlayerID: player, Kind: game.EventText, Text: text})
	require.NoError(t, h.queue.Enqueue(context.Background(), req))
	return req
}

func TestWorker_ProcessesTurnAndPublishesResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sub := h.rdb.Subscribe(ctx, events.Channel("U1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	req := h.enqueueText(t, "U1", "gym 1 hour")
	took, err := h.worker.ProcessNext(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, took)

	require.Len(t, h.turns.Calls(), 1)
	assert.Equal(t, "gym 1 hour", h.turns.Calls()[0].Text)

	var got []events.Event
	for len(got) < 2 {
		select {
		case msg := <-ch:
			var ev events.Event
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d events received", len(got))
		}
	}
	assert.Equal(t, events.EventTypeRequestProcessing, got[0].Type)
	assert.Equal(t, events.EventTypeRequestCompleted, got[1].Type)
	assert.Equal(t, req.RequestID, got[1].RequestID)
	require.NotNil(t, got[1].Result)
	assert.Equal(t, "ok: gym 1 hour", got[1].Result.Text)

	assert.False(t, h.mr.Exists(lockKey("U1")), "lock released")
}

func TestWorker_FailedTurnPublishesErrorReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.turns.HandleEventFunc = func(context.Context, game.InboundEvent) (game.Result, error) {
		return game.SystemResult("invalid_state", "不行"), game.NewError(game.ErrInvalidState, "test", "nope")
	}

	sub := h.rdb.Subscribe(ctx, events.Channel("U1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	h.enqueueText(t, "U1", "use potion")
	_, err = h.worker.ProcessNext(ctx, 100*time.Millisecond)
	require.NoError(t, err, "domain errors are not worker errors")

	for {
		select {
		case msg := <-ch:
			var ev events.Event
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
			if ev.Type != events.EventTypeRequestFailed {
				continue
			}
			require.NotNil(t, ev.Result)
			assert.Equal(t, "invalid_state", ev.Result.Intent)
			assert.Contains(t, ev.Error, "INVALID_STATE")
			return
		case <-time.After(2 * time.Second):
			t.Fatal("no failure event")
		}
	}
}

func TestWorker_LockedPlayerIsRequeued(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mr.Set(lockKey("U1"), "other-worker"))

	h.enqueueText(t, "U1", "gym")
	took, err := h.worker.ProcessNext(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, took)
	assert.Empty(t, h.turns.Calls())

	depth, err := h.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	owner, err := h.mr.Get(lockKey("U1"))
	require.NoError(t, err)
	assert.Equal(t, "other-worker", owner, "foreign lock untouched")

	h.mr.Del(lockKey("U1"))
	_, err = h.worker.ProcessNext(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, h.turns.Calls(), 1)
}

func TestWorker_LockHasTTL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ok, err := h.worker.acquirePlayerLock(ctx, "U9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lockTTL, h.mr.TTL(lockKey("U9")))

	ok, err = h.worker.acquirePlayerLock(ctx, "U9")
	require.NoError(t, err)
	assert.False(t, ok)

	h.worker.releasePlayerLock("U9")
	assert.False(t, h.mr.Exists(lockKey("U9")))
}

func TestWorker_LongTurnKeepsLock(t *testing.T) {
	h := newHarness(t)
	h.worker.lockRefresh = 10 * time.Millisecond
	key := lockKey("U1")

	h.turns.HandleEventFunc = func(ctx context.Context, ev game.InboundEvent) (game.Result, error) {
		// Most of the TTL passes inside one slow turn.
		h.mr.FastForward(lockTTL - time.Second)
		assert.Eventually(t, func() bool { return h.mr.TTL(key) == lockTTL }, time.Second, 5*time.Millisecond)

		h.mr.FastForward(lockTTL - time.Second)
		assert.True(t, h.mr.Exists(key), "lock outlives its original TTL")
		return game.SystemResult("log_action", "ok"), nil
	}

	h.enqueueText(t, "U1", "gym")
	took, err := h.worker.ProcessNext(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, took)
	assert.False(t, h.mr.Exists(key), "released after the turn")
}

func TestWorker_LockRefreshStopsWhenLost(t *testing.T) {
	h := newHarness(t)
	h.worker.lockRefresh = 5 * time.Millisecond
	ctx := context.Background()

	ok, err := h.worker.acquirePlayerLock(ctx, "U2")
	require.NoError(t, err)
	require.True(t, ok)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	stop := h.worker.holdPlayerLock(ctx, "U2")

	require.NoError(t, h.mr.Set(lockKey("U2"), "other-worker"))
	time.Sleep(30 * time.Millisecond)
	stop()

	owner, err := h.mr.Get(lockKey("U2"))
	require.NoError(t, err)
	assert.Equal(t, "other-worker", owner)
	assert.False(t, h.mr.TTL(lockKey("U2")) > 0, "a foreign lock is not extended")
}

func TestWorker_SweepRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.queue.Enqueue(ctx, queuePkg.NewSweepRequest("U1")))

	_, err := h.worker.ProcessNext(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.sweeper.playerRuns.Load())

	h.sweeper.RunPlayerFunc = func(context.Context, string, time.Time) (bool, error) {
		return false, errors.New("db down")
	}
	require.NoError(t, h.queue.Enqueue(ctx, queuePkg.NewSweepRequest("U1")))
	_, err = h.worker.ProcessNext(ctx, 100*time.Millisecond)
	assert.ErrorContains(t, err, "db down")
}

func TestWorker_EmptyQueue(t *testing.T) {
	h := newHarness(t)
	took, err := h.worker.ProcessNext(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, took)
}

func TestPool_RunsUntilCancelled(t *testing.T) {
	h := newHarness(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	second := New(h.queue, h.turns, h.sweeper, h.rdb, logger.Discard(), "worker-2")
	pool := NewPool([]*Worker{h.worker, second}, h.sweeper, 20*time.Millisecond, logger.Discard())

	for _, text := range []string{"a", "b", "c"} {
		h.enqueueText(t, "U1", text)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.turns.Calls()) == 3 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.sweeper.runs.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop")
	}

	var texts []string
	for _, ev := range h.turns.Calls() {
		texts = append(texts, ev.Text)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, texts)

	// Close the connections now so their server side goroutines are gone
	// before the leak check.
	_ = h.rdb.Close()
}
