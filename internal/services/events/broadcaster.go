package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/lifequest/pkg/game"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued     EventType = "request.queued"
	EventTypeRequestProcessing EventType = "request.processing"
	EventTypeRequestCompleted  EventType = "request.completed"
	EventTypeRequestFailed     EventType = "request.failed"
)

// Event is one message on a player's channel.
type Event struct {
	Type      EventType    `json:"type"`
	RequestID string       `json:"request_id,omitempty"`
	PlayerID  string       `json:"player_id"`
	Kind      string       `json:"kind,omitempty"`
	Result    *game.Result `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	// DurationMS is set on completion.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// Channel is the pub/sub channel for a player's events.
func Channel(playerID string) string {
	return fmt.Sprintf("player-events:%s", playerID)
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, playerID, requestID, kind string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeRequestQueued,
		RequestID: requestID,
		PlayerID:  playerID,
		Kind:      kind,
	})
}

// PublishRequestProcessing publishes a request.processing event
func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, playerID, requestID, kind string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeRequestProcessing,
		RequestID: requestID,
		PlayerID:  playerID,
		Kind:      kind,
	})
}

// PublishRequestCompleted publishes the turn's Result.
func (b *Broadcaster) PublishRequestCompleted(ctx context.Context, playerID, requestID string, res game.Result, durationMS int64) error {
	return b.publish(ctx, Event{
		Type:       EventTypeRequestCompleted,
		RequestID:  requestID,
		PlayerID:   playerID,
		Result:     &res,
		DurationMS: durationMS,
	})
}

// PublishRequestFailed publishes a failed turn. res is the error reply the
// player should still see.
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, playerID, requestID string, res game.Result, errorMsg string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeRequestFailed,
		RequestID: requestID,
		PlayerID:  playerID,
		Result:    &res,
		Error:     errorMsg,
	})
}

// Subscribe opens the player's channel. The caller closes the PubSub.
func (b *Broadcaster) Subscribe(ctx context.Context, playerID string) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(playerID))
}

func (b *Broadcaster) publish(ctx context.Context, event Event) error {
	channel := Channel(event.PlayerID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}
