package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/queue"
)

// maxEventBytes caps an inbound event body; images arrive base64 encoded.
const maxEventBytes = 10 << 20

// Enqueuer accepts turn requests for the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *queue.Request) error
}

// QueuedNotifier tells subscribers a request was accepted.
type QueuedNotifier interface {
	PublishRequestQueued(ctx context.Context, playerID, requestID, kind string) error
}

type IngestResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// IngestHandler accepts messaging adapter events and acknowledges them
// before any game work happens.
// POST /v1/events
type IngestHandler struct {
	queue    Enqueuer
	notifier QueuedNotifier
	logger   *slog.Logger
}

func NewIngestHandler(q Enqueuer, notifier QueuedNotifier, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{queue: q, notifier: notifier, logger: logger}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	var ev game.InboundEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&ev); err != nil {
		h.logger.Warn("Invalid event body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected an inbound event.")
		return
	}

	req := queue.NewEventRequest(ev)
	req.RequestID = requestIDOf(r)
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if ev.Kind == "" {
		writeError(w, h.logger, http.StatusBadRequest, "kind is required")
		return
	}

	if err := h.queue.Enqueue(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue event", "error", err, "player_id", ev.PlayerID)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Event could not be queued.")
		return
	}
	if h.notifier != nil {
		if err := h.notifier.PublishRequestQueued(r.Context(), ev.PlayerID, req.RequestID, string(ev.Kind)); err != nil {
			h.logger.Warn("Failed to publish queued event", "error", err)
		}
	}

	h.logger.Info("Event queued",
		"request_id", req.RequestID,
		"player_id", ev.PlayerID,
		"kind", ev.Kind)
	writeJSON(w, h.logger, http.StatusAccepted, IngestResponse{RequestID: req.RequestID, Status: "queued"})
}
