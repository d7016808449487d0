package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/internal/tools"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// maxPlanSteps bounds how many tools one utterance may trigger.
const maxPlanSteps = 4

// Plan is a parsed tool plan.
type Plan struct {
	Thought    string
	Voice      game.Persona
	Confidence float64
	Calls      []tools.Call
	FastPath   bool
}

type planStep struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// planReply accepts all three plan shapes: a single tool, an ordered plan
// and the extended tool_calls form with a voice hint.
type planReply struct {
	Thought       string          `json:"thought"`
	Tool          string          `json:"tool"`
	Arguments     json.RawMessage `json:"arguments"`
	Plan          []planStep      `json:"plan"`
	ResponseVoice string          `json:"response_voice"`
	Confidence    float64         `json:"confidence"`
	ToolCalls     []planStep      `json:"tool_calls"`
}

var planSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"thought":        map[string]interface{}{"type": "string"},
		"tool":           map[string]interface{}{"type": "string"},
		"arguments":      map[string]interface{}{"type": "object"},
		"response_voice": map[string]interface{}{"type": "string"},
		"confidence":     map[string]interface{}{"type": "number"},
		"plan": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "object"},
		},
		"tool_calls": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "object"},
		},
	},
}

// ParsePlan validates a model reply into typed calls. A log_action step
// without text gets the player's utterance.
func ParsePlan(raw json.RawMessage, utterance string) (Plan, error) {
	var reply planReply
	if err := llm.Decode(raw, &reply); err != nil {
		return Plan{}, err
	}

	steps := reply.ToolCalls
	if len(steps) == 0 {
		steps = reply.Plan
	}
	if len(steps) == 0 && reply.Tool != "" {
		steps = []planStep{{Tool: reply.Tool, Arguments: reply.Arguments}}
	}
	if len(steps) == 0 {
		return Plan{}, game.NewError(game.ErrInvalidArgument, "router.parse_plan", "plan has no tool")
	}
	if len(steps) > maxPlanSteps {
		steps = steps[:maxPlanSteps]
	}

	plan := Plan{Thought: reply.Thought, Confidence: reply.Confidence}
	switch v := game.Persona(strings.ToUpper(strings.TrimSpace(reply.ResponseVoice))); v {
	case game.PersonaSystem, game.PersonaMentor, game.PersonaViper:
		plan.Voice = v
	}

	for _, step := range steps {
		args := step.Arguments
		if tools.Name(strings.TrimSpace(step.Tool)) == tools.LogAction {
			args = withText(args, utterance)
		}
		call, err := tools.ParseCall(step.Tool, args)
		if err != nil {
			return Plan{}, err
		}
		plan.Calls = append(plan.Calls, call)
	}
	return plan, nil
}

func withText(raw json.RawMessage, text string) json.RawMessage {
	args := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return raw
		}
	}
	if s, _ := args["text"].(string); strings.TrimSpace(s) != "" {
		return raw
	}
	args["text"] = text
	out, err := json.Marshal(args)
	if err != nil {
		return raw
	}
	return out
}

// fallbackPlan is what the router does when it cannot understand the
// utterance: record it as an action.
func fallbackPlan(utterance string) Plan {
	return Plan{Calls: []tools.Call{tools.NewCall(tools.LogActionArgs{Text: utterance})}}
}

func (p Plan) String() string {
	names := make([]string, 0, len(p.Calls))
	for _, c := range p.Calls {
		names = append(names, string(c.Name))
	}
	return fmt.Sprintf("[%s]", strings.Join(names, ","))
}
