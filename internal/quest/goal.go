package quest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/prompts"
	"github.com/jwebster45206/lifequest/pkg/textfilter"
)

const (
	goalQuestCount = 3
	goalHabitCount = 2
)

var habitTagPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// GoalSeed is the result of decomposing a goal.
type GoalSeed struct {
	Goal     *game.Goal
	Quests   []*game.Quest
	Habits   []string
	Degraded bool
}

type goalPlan struct {
	GoalTitle string  `json:"goal_title"`
	Quests    []draft `json:"quests"`
	Habits    []struct {
		Tag       string `json:"tag"`
		Name      string `json:"name"`
		Attribute string `json:"attribute"`
	} `json:"habits"`
}

// SeedGoal records a goal, asks the LLM to break it into first quests and
// habits, and pads from the fallback table when the plan comes up short.
func (e *Engine) SeedGoal(ctx context.Context, p *game.Player, goalText string, now time.Time) (*GoalSeed, error) {
	const op = "quest.seed_goal"
	goalText = strings.TrimSpace(goalText)
	if goalText == "" {
		return nil, game.NewError(game.ErrInvalidArgument, op, "goal text is required")
	}

	st, err := e.FlowState(ctx, p, now)
	if err != nil {
		return nil, err
	}

	seed := &GoalSeed{}
	plan, raw := e.planGoal(ctx, p, goalText, &st, now)
	if plan == nil {
		seed.Degraded = e.gateway.Available()
		plan = &goalPlan{}
	}

	title := strings.TrimSpace(plan.GoalTitle)
	if title == "" {
		title = goalText
	}
	goal := &game.Goal{
		ID:            uuid.New().String(),
		PlayerID:      p.ID,
		Title:         textfilter.Truncate(title, 80),
		Status:        game.GoalActive,
		Decomposition: raw,
		CreatedAt:     now,
	}
	if err := e.store.AddGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	seed.Goal = goal

	today := game.DateOf(now)
	var quests []*game.Quest
	for _, d := range plan.Quests {
		tier, ok := game.ParseTier(d.Tier)
		if !ok {
			tier = st.Tier
		}
		q, ok := e.validate(p, d, tier, today, now)
		if !ok {
			continue
		}
		quests = append(quests, q)
		if len(quests) == goalQuestCount {
			break
		}
	}

	existing, err := e.TodaysQuests(ctx, p.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	avoid := make([]string, 0, len(existing))
	for _, q := range existing {
		avoid = append(avoid, q.Title)
	}
	quests = e.padTo(p, quests, goalQuestCount, avoid, today, now)

	for _, q := range quests {
		q.GoalID = goal.ID
		q.Type = game.QuestMain
		if err := e.store.AddQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	seed.Quests = quests

	for _, h := range plan.Habits {
		if len(seed.Habits) == goalHabitCount {
			break
		}
		tag := strings.ToLower(strings.TrimSpace(h.Tag))
		name := strings.TrimSpace(h.Name)
		attr, ok := game.ParseAttribute(h.Attribute)
		if !habitTagPattern.MatchString(tag) || name == "" || !ok {
			continue
		}
		if _, err := e.store.GetHabit(ctx, p.ID, tag); err == nil {
			continue
		}
		habit := flow.NewHabit(p.ID, tag, name, attr)
		if err := e.store.SaveHabit(ctx, &habit); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		seed.Habits = append(seed.Habits, tag)
	}
	seeded, err := e.SeedHabits(ctx, p)
	if err != nil {
		return nil, err
	}
	seed.Habits = append(seed.Habits, seeded...)

	e.logger.Info("Goal seeded",
		"player_id", p.ID,
		"goal_id", goal.ID,
		"quests", len(seed.Quests),
		"habits", len(seed.Habits),
		"degraded", seed.Degraded)
	return seed, nil
}

func (e *Engine) planGoal(ctx context.Context, p *game.Player, goalText string, st *flow.State, now time.Time) (*goalPlan, string) {
	if !e.gateway.Available() {
		return nil, ""
	}
	ps, err := e.PromptState(ctx, p, st, now)
	if err != nil {
		e.logger.Warn("Failed to build prompt state", "player_id", p.ID, "error", err)
		return nil, ""
	}
	prompt, err := prompts.GoalDecomposition(goalText, goalQuestCount, goalHabitCount, ps)
	if err != nil {
		return nil, ""
	}
	raw, err := e.gateway.GenerateJSON(ctx, prompt.System, prompt.User, llm.SchemaHint{
		Name:    "goal_plan",
		Example: prompts.GoalPlanExample,
		Budget:  llm.BudgetDefault,
	})
	if err != nil {
		e.logger.Warn("Goal decomposition fell back to templates",
			"player_id", p.ID,
			"error_kind", game.KindOf(err))
		return nil, ""
	}
	var plan goalPlan
	if err := llm.Decode(raw, &plan); err != nil {
		return nil, ""
	}
	return &plan, string(raw)
}
