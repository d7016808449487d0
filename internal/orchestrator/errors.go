package orchestrator

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// renderError is the only place a failure becomes player-facing text.
// Unknown failures get an opaque code that is logged with the error.
func (o *Orchestrator) renderError(log *slog.Logger, err error) game.Result {
	if res, ok := o.renderVerdict(err); ok {
		return res
	}

	var ge *game.Error
	if errors.As(err, &ge) {
		var res game.Result
		switch ge.Kind {
		case game.ErrAIOffline, game.ErrAITimeout, game.ErrJSONParseFailed:
			log.Warn("Turn degraded", "error", err)
			res = game.SystemResult("degraded", o.content.Text(content.MsgDegraded))
		case game.ErrInvalidState:
			log.Info("Turn refused", "error", err)
			res = game.SystemResult("invalid_state", o.content.Text(content.MsgInvalidState, "reason", reason(ge)))
		case game.ErrInsufficientFunds:
			log.Info("Turn refused", "error", err)
			res = game.SystemResult("insufficient_funds", ge.Msg)
		case game.ErrInvalidArgument:
			log.Info("Turn refused", "error", err)
			res = game.SystemResult("invalid_argument", o.content.Text(content.MsgInvalidArgument, "reason", reason(ge)))
		}
		if res.Intent != "" {
			res.Metadata.ErrorCode = string(ge.Kind)
			return res
		}
	}

	code := uuid.New().String()[:8]
	log.Error("Turn failed", "error", err, "error_code", code)
	res := game.SystemResult("error", o.content.Text(content.MsgInternalError, "code", code))
	res.Metadata.ErrorCode = code
	return res
}

func reason(ge *game.Error) string {
	if ge.Msg != "" {
		return ge.Msg
	}
	if ge.Err != nil {
		return ge.Err.Error()
	}
	return string(ge.Kind)
}
