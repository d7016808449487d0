package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/game"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err, "status", status)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, logger *slog.Logger, allowed string) {
	logger.Warn("Method not allowed",
		"method", r.Method,
		"path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed. Only "+allowed+" is supported.")
}

// statusFor maps a turn error to an HTTP status. Refusals the player can
// act on still carry a rendered Result, so they are 200.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	switch game.KindOf(err) {
	case game.ErrInvalidArgument:
		return http.StatusBadRequest
	case game.ErrPlayerNotFound:
		return http.StatusNotFound
	case game.ErrIntegrityViolation:
		return http.StatusConflict
	case game.ErrInvalidState, game.ErrInsufficientFunds,
		game.ErrVerificationRejected, game.ErrVerificationUncertain,
		game.ErrAIOffline, game.ErrAITimeout, game.ErrJSONParseFailed:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
