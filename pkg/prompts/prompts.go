package prompts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/lifequest/pkg/game"
)

// Prompt is a system/user pair ready for the LLM gateway.
type Prompt struct {
	System string
	User   string
}

// RouterSystemPrompt is the base prompt for turning an utterance into a tool plan.
const RouterSystemPrompt = `You are the game master of LifeQuest, a role-playing game layered over the player's real life. Real actions earn XP in five attributes: STR (body), INT (mind), VIT (rest and food), WIS (reflection and order), CHA (people).

Your job is to decide what the player meant and which tools to call. You never invent rewards; the tools compute them.

### Output
Reply with ONE JSON object and nothing else, in one of these forms:
- {"thought": "...", "tool": "<name>", "arguments": {...}}
- {"thought": "...", "plan": [{"tool": "<name>", "arguments": {...}}, ...]}
- {"thought": "...", "response_voice": "SYSTEM|MENTOR|VIPER", "confidence": 0.0-1.0, "tool_calls": [{"tool": "<name>", "arguments": {...}}]}

### Tools
%s

### Rules
- When the player reports something they did, call log_action with their words.
- When unsure, call log_action.
- Use only the tools listed above, with the arguments they declare.
- Narrative tone for this player right now: %s.
`

// StatePromptTemplate carries the player snapshot into the system prompt.
const StatePromptTemplate = "Player State:\n```json\n%s\n```"

// HistoryPromptTemplate carries the recent conversation.
const HistoryPromptTemplate = "Recent conversation (oldest first):\n%s"

// RouterPlanExample is the expected plan shape, used for repair prompts.
const RouterPlanExample = `{"thought": "player went running", "tool": "log_action", "arguments": {"text": "ran 5km"}}`

// QuestSystemPrompt asks for a batch of daily quests.
const QuestSystemPrompt = `You design today's quests for a LifeQuest player. Quests are small real-life tasks that fit in 10 to 20 minutes.

Reply with a JSON array of exactly %d objects:
[{"title": "...", "description": "...", "difficulty_tier": "F|E|D|C|B|A|S", "attribute": "STR|INT|VIT|WIS|CHA", "verification_type": "TEXT|IMAGE|NONE", "keywords": ["..."]}]

Rules:
- Titles and descriptions are written in Traditional Chinese.
- Use difficulty_tier %s for every quest.
- Spread quests across different attributes.
- keywords are words a player would use when reporting the task done.`

// RecoveryInstructions is appended when the player missed yesterday.
const RecoveryInstructions = `The player missed yesterday. Frame every quest as a gentle recovery step: tiny, friendly, impossible to fail. Do not mention the missed day.`

// SerendipityInstructions is appended when one quest should be rare.
const SerendipityInstructions = `Make the quest at index %d a rare encounter: mark it in the title with "✨" and make it feel special.`

// QuestBatchExample is the expected batch shape, used for repair prompts.
const QuestBatchExample = `[{"title": "散步十分鐘", "description": "短任務（10-20 分鐘）", "difficulty_tier": "E", "attribute": "STR", "verification_type": "TEXT", "keywords": ["walk"]}]`

// GoalSystemPrompt asks for a goal decomposition.
const GoalSystemPrompt = `You are a mentor breaking a player's long-term goal into a first week of action.

Reply with ONE JSON object:
{"goal_title": "...", "quests": [{"title": "...", "description": "...", "difficulty_tier": "E|D|C", "attribute": "STR|INT|VIT|WIS|CHA", "verification_type": "TEXT|IMAGE|NONE", "keywords": ["..."]}], "habits": [{"tag": "snake_case_id", "name": "...", "attribute": "STR|INT|VIT|WIS|CHA"}]}

Rules:
- Exactly %d quests and %d habits.
- Titles and names are written in Traditional Chinese.
- Quests are the first concrete steps, not the whole goal.`

// GoalPlanExample is the expected decomposition shape.
const GoalPlanExample = `{"goal_title": "跑完半馬", "quests": [{"title": "慢跑二十分鐘", "description": "輕鬆配速", "difficulty_tier": "D", "attribute": "STR", "verification_type": "TEXT", "keywords": ["run"]}], "habits": [{"tag": "run", "name": "每日跑步", "attribute": "STR"}]}`

// TauntSystemPrompt gives the rival its voice.
const TauntSystemPrompt = `You are Viper, the player's arrogant rival in LifeQuest. The player just threw away their quests and asked for new ones. Mock them in one short line of Traditional Chinese. Never use slurs or threats of real harm.

Reply with ONE JSON object: {"taunt": "..."}`

// TauntExample is the expected taunt shape.
const TauntExample = `{"taunt": "又重抽了？你這廢物。"}`

// QuestRequest describes the batch the quest engine needs.
type QuestRequest struct {
	Count     int
	Tier      game.Tier
	Recovery  bool
	RareIndex int // -1 when no quest is rare
	GoalTitle string
	State     *PromptState
	Avoid     []string // titles already assigned today
}

// QuestBatch builds the daily generation prompt.
func QuestBatch(req QuestRequest) (Prompt, error) {
	if req.Count <= 0 {
		return Prompt{}, fmt.Errorf("quest count must be positive")
	}
	if req.Tier.Rank() < 0 {
		return Prompt{}, fmt.Errorf("unknown tier %q", req.Tier)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(QuestSystemPrompt, req.Count, req.Tier))
	if req.Recovery {
		sb.WriteString("\n\n" + RecoveryInstructions)
	}
	if req.RareIndex >= 0 && req.RareIndex < req.Count {
		sb.WriteString("\n\n" + fmt.Sprintf(SerendipityInstructions, req.RareIndex))
	}

	user, err := stateBlock(req.State)
	if err != nil {
		return Prompt{}, err
	}
	if req.GoalTitle != "" {
		user += "\n\nCurrent goal: " + req.GoalTitle
	}
	if len(req.Avoid) > 0 {
		user += "\n\nDo not repeat these quests: " + strings.Join(req.Avoid, "、")
	}
	return Prompt{System: sb.String(), User: user}, nil
}

// GoalDecomposition builds the set_goal prompt.
func GoalDecomposition(goal string, quests, habits int, ps *PromptState) (Prompt, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return Prompt{}, fmt.Errorf("goal text is required")
	}
	user, err := stateBlock(ps)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		System: fmt.Sprintf(GoalSystemPrompt, quests, habits),
		User:   user + "\n\nGoal: " + goal,
	}, nil
}

// RivalTaunt builds the reroll taunt prompt.
func RivalTaunt(discarded []string, ps *PromptState) (Prompt, error) {
	user, err := stateBlock(ps)
	if err != nil {
		return Prompt{}, err
	}
	if len(discarded) > 0 {
		user += "\n\nQuests they threw away: " + strings.Join(discarded, "、")
	}
	return Prompt{System: TauntSystemPrompt, User: user}, nil
}

func stateBlock(ps *PromptState) (string, error) {
	if ps == nil {
		return "", fmt.Errorf("player state is required")
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt state: %w", err)
	}
	return fmt.Sprintf(StatePromptTemplate, data), nil
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
