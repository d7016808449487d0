package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jwebster45206/lifequest/internal/tools"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// Postback actions carried in quick reply action_data, e.g.
// "action=accept&quest=<id>".
const (
	ActionAccept    = "accept"
	ActionComplete  = "complete"
	ActionAbandon   = "abandon"
	ActionReroll    = "reroll"
	ActionBuy       = "buy"
	ActionStatus    = "status"
	ActionQuests    = "quests"
	ActionInventory = "inventory"
	ActionUse       = "use"
)

// postback runs a button press directly, without the router.
func (o *Orchestrator) postback(ctx context.Context, s *tools.Session, data string) (game.Result, error) {
	const op = "orchestrator.postback"
	values, err := url.ParseQuery(strings.TrimSpace(data))
	if err != nil {
		return game.Result{}, game.WrapError(game.ErrInvalidArgument, op, err)
	}
	action := values.Get("action")

	need := func(key string) (string, error) {
		v := strings.TrimSpace(values.Get(key))
		if v == "" {
			return "", game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("%s needs %s", action, key))
		}
		return v, nil
	}

	switch action {
	case ActionAccept:
		id, err := need("quest")
		if err != nil {
			return game.Result{}, err
		}
		q, err := o.quests.Accept(ctx, s.Player, id)
		if err != nil {
			return game.Result{}, err
		}
		res := game.SystemResult("quest_accept", fmt.Sprintf("已接受任務：%s", q.Title))
		res.QuickReplies = []game.QuickReply{{
			Label:      "完成",
			ActionData: fmt.Sprintf("action=%s&quest=%s", ActionComplete, q.ID),
		}}
		return res, nil

	case ActionComplete:
		id, err := need("quest")
		if err != nil {
			return game.Result{}, err
		}
		c, err := o.quests.SelfReport(ctx, s.Player, id, s.Now)
		if err != nil {
			return game.Result{}, err
		}
		return o.completionResult(c), nil

	case ActionAbandon:
		id, err := need("quest")
		if err != nil {
			return game.Result{}, err
		}
		q, err := o.quests.Abandon(ctx, s.Player, id)
		if err != nil {
			return game.Result{}, err
		}
		return game.SystemResult("quest_abandon", fmt.Sprintf("已放棄任務：%s", q.Title)), nil

	case ActionReroll:
		return o.reroll(ctx, s)

	case ActionBuy:
		id, err := need("item")
		if err != nil {
			return game.Result{}, err
		}
		purchase, err := o.shop.Charge(ctx, s.Player, id)
		if err != nil {
			return game.Result{}, err
		}
		res := game.SystemResult("purchase", purchase.Text)
		res.Metadata.GoldDelta = -purchase.Item.Price
		return res, nil

	case ActionStatus:
		return o.tool(ctx, s, tools.StatusArgs{})
	case ActionQuests:
		return o.tool(ctx, s, tools.QuestsArgs{})
	case ActionInventory:
		return o.tool(ctx, s, tools.InventoryArgs{})
	case ActionUse:
		id, err := need("item")
		if err != nil {
			return game.Result{}, err
		}
		return o.tool(ctx, s, tools.UseItemArgs{ItemName: id})
	}
	return game.Result{}, game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("unknown action %q", action))
}

// reroll discards today's open quests and shows the new batch. The
// rival's taunt leads the reply in his voice.
func (o *Orchestrator) reroll(ctx context.Context, s *tools.Session) (game.Result, error) {
	rr, err := o.quests.Reroll(ctx, s.Player, s.Now)
	if err != nil {
		return game.Result{}, err
	}
	res, err := o.tool(ctx, s, tools.QuestsArgs{})
	if err != nil {
		return game.Result{}, err
	}
	res.Intent = "reroll"
	if rr.Taunt != "" {
		res.Text = rr.Taunt + "\n\n" + res.Text
		res.Metadata.Sender = game.PersonaViper
	}
	return res, nil
}

// tool runs one registry call as a whole result.
func (o *Orchestrator) tool(ctx context.Context, s *tools.Session, args tools.Args) (game.Result, error) {
	call := tools.NewCall(args)
	out, err := o.registry.Execute(ctx, s, call)
	if err != nil {
		return game.Result{}, err
	}
	meta := out.Meta
	if meta.Sender == "" {
		meta.Sender = tools.Persona(call.Name)
	}
	return game.Result{
		Text:         out.Text,
		QuickReplies: out.QuickReplies,
		Intent:       out.Intent,
		Metadata:     meta,
	}, nil
}
