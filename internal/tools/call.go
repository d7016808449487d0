// Package tools is the closed registry of actions a turn can take. The
// router turns an utterance into typed Calls; Registry.Execute runs them
// against the store inside the turn's transaction.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwebster45206/lifequest/pkg/game"
)

type Name string

const (
	GetStatus    Name = "get_status"
	GetInventory Name = "get_inventory"
	GetQuests    Name = "get_quests"
	UseItem      Name = "use_item"
	SetGoal      Name = "set_goal"
	LogAction    Name = "log_action"
)

// Names lists the registry in the order it is shown to the model.
var Names = []Name{GetStatus, GetInventory, GetQuests, UseItem, SetGoal, LogAction}

// Args is implemented by the per-tool argument types.
type Args interface {
	tool() Name
	validate() error
}

type StatusArgs struct{}

type InventoryArgs struct{}

type QuestsArgs struct{}

type UseItemArgs struct {
	ItemName string `json:"item_name"`
}

type SetGoalArgs struct {
	GoalText string `json:"goal_text"`
}

// LogActionArgs carries the raw report. The router's fast path fills the
// inferred fields; the slow path usually sends Text only.
type LogActionArgs struct {
	Text      string `json:"text"`
	Attribute string `json:"attribute,omitempty"`
	Tier      string `json:"difficulty_tier,omitempty"`
	NoLoot    bool   `json:"no_loot,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

func (StatusArgs) tool() Name    { return GetStatus }
func (InventoryArgs) tool() Name { return GetInventory }
func (QuestsArgs) tool() Name    { return GetQuests }
func (UseItemArgs) tool() Name   { return UseItem }
func (SetGoalArgs) tool() Name   { return SetGoal }
func (LogActionArgs) tool() Name { return LogAction }

func (StatusArgs) validate() error    { return nil }
func (InventoryArgs) validate() error { return nil }
func (QuestsArgs) validate() error    { return nil }

func (a UseItemArgs) validate() error {
	if strings.TrimSpace(a.ItemName) == "" {
		return fmt.Errorf("item_name is required")
	}
	return nil
}

func (a SetGoalArgs) validate() error {
	if strings.TrimSpace(a.GoalText) == "" {
		return fmt.Errorf("goal_text is required")
	}
	return nil
}

func (a LogActionArgs) validate() error {
	if strings.TrimSpace(a.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if a.Attribute != "" {
		if _, ok := game.ParseAttribute(a.Attribute); !ok {
			return fmt.Errorf("unknown attribute %q", a.Attribute)
		}
	}
	if a.Tier != "" {
		if _, ok := game.ParseTier(a.Tier); !ok {
			return fmt.Errorf("unknown difficulty_tier %q", a.Tier)
		}
	}
	return nil
}

// Call is one validated tool invocation.
type Call struct {
	Name Name
	Args Args
}

// NewCall wraps typed args.
func NewCall(args Args) Call {
	return Call{Name: args.tool(), Args: args}
}

// ParseCall decodes and validates the arguments for a named tool. Unknown
// names and bad arguments are INVALID_ARGUMENT errors.
func ParseCall(name string, raw json.RawMessage) (Call, error) {
	const op = "tools.parse"
	var args Args
	switch Name(strings.TrimSpace(name)) {
	case GetStatus:
		args = &StatusArgs{}
	case GetInventory:
		args = &InventoryArgs{}
	case GetQuests:
		args = &QuestsArgs{}
	case UseItem:
		args = &UseItemArgs{}
	case SetGoal:
		args = &SetGoalArgs{}
	case LogAction:
		args = &LogActionArgs{}
	default:
		return Call{}, game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("unknown tool %q", name))
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, args); err != nil {
			return Call{}, game.WrapError(game.ErrInvalidArgument, op, fmt.Errorf("%s arguments: %w", name, err))
		}
	}
	if err := args.validate(); err != nil {
		return Call{}, game.WrapError(game.ErrInvalidArgument, op, fmt.Errorf("%s: %w", name, err))
	}
	return Call{Name: args.tool(), Args: deref(args)}, nil
}

func deref(a Args) Args {
	switch v := a.(type) {
	case *StatusArgs:
		return *v
	case *InventoryArgs:
		return *v
	case *QuestsArgs:
		return *v
	case *UseItemArgs:
		return *v
	case *SetGoalArgs:
		return *v
	case *LogActionArgs:
		return *v
	}
	return a
}
