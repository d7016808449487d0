package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// TurnProcessor runs a turn in-process.
type TurnProcessor interface {
	HandleEvent(ctx context.Context, ev game.InboundEvent) (game.Result, error)
}

// TurnHandler runs a TEXT or POSTBACK turn synchronously and returns the Result. The
// console uses it; chat platforms go through /v1/events.
// POST /v1/turns
type TurnHandler struct {
	turns  TurnProcessor
	logger *slog.Logger
}

func NewTurnHandler(turns TurnProcessor, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{turns: turns, logger: logger}
}

func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	var request chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'player_id' and 'message' fields.")
		return
	}
	if err := request.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	requestID := requestIDOf(r)
	ev := game.InboundEvent{
		PlayerID:    request.PlayerID,
		DisplayName: request.DisplayName,
		Kind:        game.EventText,
		Text:        request.Message,
	}
	if request.Postback != "" {
		ev.Kind = game.EventPostback
		ev.Text = ""
		ev.Postback = request.Postback
	}
	res, err := h.turns.HandleEvent(r.Context(), ev)
	status := statusFor(err)
	if err != nil {
		h.logger.Info("Turn returned an error reply",
			"request_id", requestID,
			"player_id", request.PlayerID,
			"error", err,
			"status", status)
	}
	writeJSON(w, h.logger, status, chat.TurnResponse{RequestID: requestID, Result: res})
}
