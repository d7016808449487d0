package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeEvent is an inbound event from the messaging adapter
	RequestTypeEvent RequestType = "event"

	// RequestTypeSweep asks a worker to run the daily sweep for one player
	RequestTypeSweep RequestType = "sweep"
)

// Request represents a unit of work for the turn workers
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	PlayerID  string      `json:"player_id"`

	// Event-specific fields
	Event *game.InboundEvent `json:"event,omitempty"`

	// Attempts counts how many times the request was re-queued because
	// the player was locked.
	Attempts   int       `json:"attempts,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewEventRequest wraps an inbound event for the queue.
func NewEventRequest(ev game.InboundEvent) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       RequestTypeEvent,
		PlayerID:   ev.PlayerID,
		Event:      &ev,
		EnqueuedAt: time.Now(),
	}
}

// NewSweepRequest schedules the daily sweep for a player.
func NewSweepRequest(playerID string) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       RequestTypeSweep,
		PlayerID:   playerID,
		EnqueuedAt: time.Now(),
	}
}

// Validate checks the request carries what its type needs.
func (r *Request) Validate() error {
	if r.PlayerID == "" {
		return fmt.Errorf("player_id is required")
	}
	switch r.Type {
	case RequestTypeEvent:
		if r.Event == nil {
			return fmt.Errorf("event request has no event")
		}
		if r.Event.PlayerID != r.PlayerID {
			return fmt.Errorf("event player %q does not match request player %q", r.Event.PlayerID, r.PlayerID)
		}
	case RequestTypeSweep:
	default:
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
