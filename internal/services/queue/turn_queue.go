package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/lifequest/pkg/queue"
)

const (
	// RequestsKey is the list every api instance pushes turn requests to.
	RequestsKey = "turn-requests"
	// DeadLetterKey holds requests that could not be parsed or were
	// re-queued too often.
	DeadLetterKey = "turn-requests:dead"

	// MaxRequeues bounds how often a request waits on a locked player.
	MaxRequeues = 50
)

// TurnQueue is the FIFO of pending turns shared by api and workers.
type TurnQueue struct {
	client *Client
}

func NewTurnQueue(client *Client) *TurnQueue {
	return &TurnQueue{client: client}
}

// Enqueue appends req to the end of the queue.
func (q *TurnQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, RequestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	return nil
}

// Requeue puts req back at the end of the queue because its player is
// busy. It returns false when the request has waited too long and went to
// the dead letter list instead.
func (q *TurnQueue) Requeue(ctx context.Context, req *queue.Request) (bool, error) {
	req.Attempts++
	data, err := req.ToJSON()
	if err != nil {
		return false, fmt.Errorf("failed to serialize request: %w", err)
	}
	key := RequestsKey
	if req.Attempts > MaxRequeues {
		key = DeadLetterKey
	}
	if err := q.client.rdb.RPush(ctx, key, data).Err(); err != nil {
		return false, fmt.Errorf("failed to re-queue request: %w", err)
	}
	return key == RequestsKey, nil
}

// Dequeue pops the next request without blocking. It returns nil when the
// queue is empty.
func (q *TurnQueue) Dequeue(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return q.parse(ctx, result)
}

// BlockingDequeue waits up to timeout for a request. It returns nil when
// the wait timed out.
func (q *TurnQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return q.parse(ctx, result[1])
}

// parse decodes a payload, parking it in the dead letter list when it is
// unusable so the worker can move on.
func (q *TurnQueue) parse(ctx context.Context, payload string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(payload))
	if err != nil {
		if dlErr := q.client.rdb.RPush(ctx, DeadLetterKey, payload).Err(); dlErr != nil {
			q.client.logger.Error("Failed to park bad request", "error", dlErr)
		}
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// Depth returns the number of queued requests.
func (q *TurnQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, RequestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}

// DeadLetters returns up to limit parked payloads, oldest first.
func (q *TurnQueue) DeadLetters(ctx context.Context, limit int) ([]string, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	items, err := q.client.rdb.LRange(ctx, DeadLetterKey, 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	return items, nil
}
