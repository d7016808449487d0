package quest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/prompts"
	"github.com/jwebster45206/lifequest/pkg/textfilter"
)

// Mode says which branch produced a daily batch.
type Mode string

const (
	ModeNormal   Mode = "NORMAL"
	ModeRecovery Mode = "RECOVERY"
	ModeHollowed Mode = "HOLLOWED"
	ModeBoss     Mode = "BOSS"
)

var softener = textfilter.NewSoftener()

const rarePrefix = "✨稀有："

// Batch is today's quest list.
type Batch struct {
	Quests []*game.Quest
	Mode   Mode
	// Existing is set when the quests were already generated earlier today.
	Existing bool
	// Degraded is set when the LLM failed and templates filled the batch.
	Degraded    bool
	Boss        *game.Boss
	SeededHabit []string
}

// draft is one LLM-proposed quest before validation.
type draft struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tier         string   `json:"difficulty_tier"`
	Attribute    string   `json:"attribute"`
	Verification string   `json:"verification_type"`
	Keywords     []string `json:"keywords"`
}

var batchSchema = map[string]interface{}{
	"type": "array",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title":             map[string]interface{}{"type": "string"},
			"description":       map[string]interface{}{"type": "string"},
			"difficulty_tier":   map[string]interface{}{"type": "string"},
			"attribute":         map[string]interface{}{"type": "string"},
			"verification_type": map[string]interface{}{"type": "string"},
			"keywords":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
		"required": []string{"title"},
	},
}

// GenerateDaily returns today's quests, generating them on the first
// request of the day. Existing quests for today (other than abandoned
// ones) are returned as they are.
func (e *Engine) GenerateDaily(ctx context.Context, p *game.Player, now time.Time) (*Batch, error) {
	existing, err := e.TodaysQuests(ctx, p.ID, now,
		game.QuestPending, game.QuestActive, game.QuestDone, game.QuestPaused)
	if err != nil {
		return nil, fmt.Errorf("quest.generate_daily: %w", err)
	}
	if len(existing) > 0 {
		return &Batch{Quests: existing, Mode: modeOf(existing), Existing: true}, nil
	}
	return e.generate(ctx, p, now, nil)
}

func modeOf(quests []*game.Quest) Mode {
	for _, q := range quests {
		switch {
		case q.Type == game.QuestRedemption:
			return ModeHollowed
		case q.Tier == game.TierS && q.Type == game.QuestMain && q.GoalID == "":
			return ModeBoss
		}
	}
	return ModeNormal
}

func (e *Engine) generate(ctx context.Context, p *game.Player, now time.Time, avoid []string) (batch *Batch, err error) {
	const op = "quest.generate_daily"
	ctx, span := e.tracer.Start(ctx, op)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("quest.mode", string(batch.Mode)),
				attribute.Int("quest.count", len(batch.Quests)),
				attribute.Bool("quest.degraded", batch.Degraded))
		}
		span.End()
	}()

	today := game.DateOf(now)

	// Hollowed players get one trivial redemption quest and nothing else.
	if p.IsHollowed() {
		q := e.fromTemplate(p, e.content.Quests.Redemption, today, now)
		q.Type = game.QuestRedemption
		q.XPReward = 0
		if err := e.store.AddQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &Batch{Quests: []*game.Quest{q}, Mode: ModeHollowed}, nil
	}

	rival, err := e.store.GetRival(ctx, p.ID)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rival != nil && rival.Level >= p.Level+bossLevelGap {
		return e.bossBatch(ctx, p, rival, today, now)
	}

	st, err := e.FlowState(ctx, p, now)
	if err != nil {
		return nil, err
	}
	tier := st.Tier
	mode := ModeNormal

	yesterday, err := e.store.GetOutcome(ctx, p.ID, today.AddDate(0, 0, -1), "")
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if yesterday != nil && !yesterday.Done {
		tier = game.TierE
		mode = ModeRecovery
	}

	n := e.cfg.QuestsPerDay
	rareIndex, rare := e.serendipity(n)
	if !rare {
		rareIndex = -1
	}

	batch = &Batch{Mode: mode}
	quests, degraded := e.draftQuests(ctx, p, st, tier, mode == ModeRecovery, rareIndex, avoid, now)
	batch.Degraded = degraded

	table := e.content.Quests.Fallback
	if mode == ModeRecovery {
		table = e.content.Quests.Recovery
	}
	quests = e.padFrom(p, quests, table, n, avoid, today, now)

	if rare && rareIndex < len(quests) {
		markRare(quests[rareIndex])
	}

	for _, q := range quests {
		if err := e.store.AddQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	batch.Quests = quests

	seeded, err := e.SeedHabits(ctx, p)
	if err != nil {
		return nil, err
	}
	batch.SeededHabit = seeded

	e.logger.Debug("Generated daily quests",
		"player_id", p.ID,
		"mode", mode,
		"tier", tier,
		"count", len(quests),
		"degraded", degraded,
		"rare_index", rareIndex)
	return batch, nil
}

func (e *Engine) bossBatch(ctx context.Context, p *game.Player, rival *game.Rival, today, now time.Time) (*Batch, error) {
	boss, err := e.store.GetActiveBoss(ctx, p.ID)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("quest.generate_daily: %w", err)
	}
	if boss == nil {
		boss = &game.Boss{
			ID:        uuid.New().String(),
			PlayerID:  p.ID,
			Name:      game.RivalName,
			HP:        BossMaxHP,
			MaxHP:     BossMaxHP,
			Level:     rival.Level,
			Status:    game.BossActive,
			CreatedAt: now,
		}
		if err := e.store.SaveBoss(ctx, boss); err != nil {
			return nil, fmt.Errorf("quest.generate_daily: save boss: %w", err)
		}
		e.logger.Info("Boss battle started", "player_id", p.ID, "rival_level", rival.Level, "player_level", p.Level)
	}

	q := e.fromTemplate(p, e.content.Quests.Boss, today, now)
	q.Type = game.QuestMain
	if err := e.store.AddQuest(ctx, q); err != nil {
		return nil, fmt.Errorf("quest.generate_daily: %w", err)
	}
	return &Batch{Quests: []*game.Quest{q}, Mode: ModeBoss, Boss: boss}, nil
}

// draftQuests asks the LLM for the batch and keeps the valid entries. Any
// gateway failure yields no drafts and degraded=true.
func (e *Engine) draftQuests(ctx context.Context, p *game.Player, st flow.State, tier game.Tier, recovery bool, rareIndex int, avoid []string, now time.Time) ([]*game.Quest, bool) {
	if !e.gateway.Available() {
		return nil, false
	}

	ps, err := e.PromptState(ctx, p, &st, now)
	if err != nil {
		e.logger.Warn("Failed to build prompt state", "player_id", p.ID, "error", err)
		return nil, true
	}
	prompt, err := prompts.QuestBatch(prompts.QuestRequest{
		Count:     e.cfg.QuestsPerDay,
		Tier:      tier,
		Recovery:  recovery,
		RareIndex: rareIndex,
		State:     ps,
		Avoid:     avoid,
	})
	if err != nil {
		e.logger.Warn("Failed to build quest prompt", "player_id", p.ID, "error", err)
		return nil, true
	}

	raw, err := e.gateway.GenerateJSON(ctx, prompt.System, prompt.User, llm.SchemaHint{
		Name:    "daily_quests",
		Schema:  batchSchema,
		Example: prompts.QuestBatchExample,
		Budget:  llm.BudgetQuest,
	})
	if err != nil {
		e.logger.Warn("Quest generation fell back to templates",
			"player_id", p.ID,
			"error_kind", game.KindOf(err),
			"error", err)
		return nil, true
	}

	drafts, err := decodeDrafts(raw)
	if err != nil {
		e.logger.Warn("Quest batch had the wrong shape", "player_id", p.ID, "error", err)
		return nil, true
	}

	today := game.DateOf(now)
	var out []*game.Quest
	for _, d := range drafts {
		q, ok := e.validate(p, d, tier, today, now)
		if !ok {
			continue
		}
		out = append(out, q)
		if len(out) == e.cfg.QuestsPerDay {
			break
		}
	}
	return out, false
}

// decodeDrafts accepts a bare array or an object wrapping one under
// "quests".
func decodeDrafts(raw json.RawMessage) ([]draft, error) {
	var drafts []draft
	if err := llm.Decode(raw, &drafts); err == nil {
		return drafts, nil
	}
	var wrapped struct {
		Quests []draft `json:"quests"`
	}
	if err := llm.Decode(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Quests, nil
}

// validate applies the content rules to a draft: a non-empty title with
// CJK text, a default description, and the batch tier.
func (e *Engine) validate(p *game.Player, d draft, tier game.Tier, today, now time.Time) (*game.Quest, bool) {
	title := strings.TrimSpace(d.Title)
	if title == "" || !textfilter.HasCJK(title) {
		return nil, false
	}
	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		desc = e.content.Quests.DefaultDescription
	}
	attr, ok := game.ParseAttribute(d.Attribute)
	if !ok {
		attr = e.inferAttribute(title)
	}
	verification := game.VerificationType(strings.ToUpper(strings.TrimSpace(d.Verification)))
	switch verification {
	case game.VerifyText, game.VerifyImage, game.VerifyNone:
	default:
		verification = game.VerifyText
	}

	return &game.Quest{
		ID:            uuid.New().String(),
		PlayerID:      p.ID,
		Title:         textfilter.Truncate(title, 60),
		Description:   desc,
		Tier:          tier,
		Attribute:     attr,
		XPReward:      e.accountant.CalculateXP(attr, tier),
		Type:          game.QuestSide,
		Status:        game.QuestPending,
		ScheduledDate: today,
		Verification:  verification,
		Keywords:      d.Keywords,
		CreatedAt:     now,
	}, true
}

func (e *Engine) inferAttribute(text string) game.Attribute {
	if label, ok := e.content.KeywordMatcher().Match(text); ok {
		if a, ok := game.ParseAttribute(label); ok {
			return a
		}
	}
	return game.WIS
}

// padTo fills quests up to n from the fallback table.
func (e *Engine) padTo(p *game.Player, quests []*game.Quest, n int, avoid []string, today, now time.Time) []*game.Quest {
	return e.padFrom(p, quests, e.content.Quests.Fallback, n, avoid, today, now)
}

// padFrom fills quests up to n from a template table in declaration
// order, skipping titles already present or to be avoided.
func (e *Engine) padFrom(p *game.Player, quests []*game.Quest, table []content.QuestTemplate, n int, avoid []string, today, now time.Time) []*game.Quest {
	seen := make(map[string]bool)
	for _, q := range quests {
		seen[q.Title] = true
	}
	for _, t := range avoid {
		seen[t] = true
	}
	for _, t := range table {
		if len(quests) >= n {
			break
		}
		if seen[t.Title] {
			continue
		}
		seen[t.Title] = true
		quests = append(quests, e.fromTemplate(p, t, today, now))
	}
	// A reroll may have avoided every template; repeat rather than come up short.
	for len(table) > 0 && len(quests) < n {
		for _, t := range table {
			if len(quests) >= n {
				break
			}
			quests = append(quests, e.fromTemplate(p, t, today, now))
		}
	}
	return quests
}

func (e *Engine) fromTemplate(p *game.Player, t content.QuestTemplate, today, now time.Time) *game.Quest {
	desc := t.Description
	if desc == "" {
		desc = e.content.Quests.DefaultDescription
	}
	xp := t.XPReward
	if xp == 0 {
		xp = e.accountant.CalculateXP(t.Attribute, t.Tier)
	}
	return &game.Quest{
		ID:            uuid.New().String(),
		PlayerID:      p.ID,
		Title:         t.Title,
		Description:   desc,
		Tier:          t.Tier,
		Attribute:     t.Attribute,
		XPReward:      xp,
		Type:          game.QuestSide,
		Status:        game.QuestPending,
		ScheduledDate: today,
		Verification:  t.Verification,
		Keywords:      append([]string(nil), t.Keywords...),
		CreatedAt:     now,
	}
}

func markRare(q *game.Quest) {
	q.Rare = true
	bonus := q.XPReward
	if bonus < rareXPBonus {
		bonus = rareXPBonus
	}
	q.XPReward += bonus
	if !strings.Contains(q.Title, "✨") {
		q.Title = rarePrefix + q.Title
	}
}

// SeedHabits adds default habits until the player has the minimum number
// of active ones. It returns the tags it added.
func (e *Engine) SeedHabits(ctx context.Context, p *game.Player) ([]string, error) {
	habits, err := e.store.ListHabits(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("quest.seed_habits: %w", err)
	}
	active := 0
	have := make(map[string]bool)
	for _, h := range habits {
		have[h.Tag] = true
		if h.Active {
			active++
		}
	}

	var added []string
	for _, t := range e.content.Habits {
		if active >= e.cfg.MinHabits {
			break
		}
		if have[t.Tag] {
			continue
		}
		h := flow.NewHabit(p.ID, t.Tag, t.Name, t.Attribute)
		if err := e.store.SaveHabit(ctx, &h); err != nil {
			return nil, fmt.Errorf("quest.seed_habits: %w", err)
		}
		added = append(added, t.Tag)
		active++
	}
	return added, nil
}

// RerollResult carries the new batch and the rival's jab, if any quests
// were thrown away.
type RerollResult struct {
	Batch     *Batch
	Discarded []string
	Taunt     string
}

// Reroll abandons today's unfinished quests and generates a fresh batch.
func (e *Engine) Reroll(ctx context.Context, p *game.Player, now time.Time) (*RerollResult, error) {
	open, err := e.TodaysQuests(ctx, p.ID, now, game.QuestPending, game.QuestActive)
	if err != nil {
		return nil, fmt.Errorf("quest.reroll: %w", err)
	}

	res := &RerollResult{}
	for _, q := range open {
		if q.Type == game.QuestRedemption {
			continue
		}
		if err := q.Transition(game.QuestAbandoned); err != nil {
			return nil, err
		}
		if err := e.store.SaveQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("quest.reroll: %w", err)
		}
		res.Discarded = append(res.Discarded, q.Title)
	}

	if len(res.Discarded) > 0 {
		res.Taunt = e.taunt(ctx, p, res.Discarded, now)
	}

	batch, err := e.generate(ctx, p, now, res.Discarded)
	if err != nil {
		return nil, err
	}
	res.Batch = batch
	return res, nil
}

// taunt asks the LLM for a one-line jab, falling back to the content table.
func (e *Engine) taunt(ctx context.Context, p *game.Player, discarded []string, now time.Time) string {
	fallback := e.content.Taunts[e.accountant.Pick(len(e.content.Taunts))]
	if !e.gateway.Available() {
		return fallback
	}

	ps, err := e.PromptState(ctx, p, nil, now)
	if err != nil {
		return fallback
	}
	prompt, err := prompts.RivalTaunt(discarded, ps)
	if err != nil {
		return fallback
	}
	raw, err := e.gateway.GenerateJSON(ctx, prompt.System, prompt.User, llm.SchemaHint{
		Name:    "rival_taunt",
		Example: prompts.TauntExample,
		Budget:  llm.BudgetQuest,
	})
	if err != nil {
		e.logger.Debug("Taunt fell back to template", "player_id", p.ID, "error", err)
		return fallback
	}
	var out struct {
		Taunt string `json:"taunt"`
	}
	if err := llm.Decode(raw, &out); err != nil || strings.TrimSpace(out.Taunt) == "" {
		return fallback
	}
	return textfilter.Truncate(softener.Soften(strings.TrimSpace(out.Taunt)), 80)
}

// PromptState snapshots the player for a model prompt.
func (e *Engine) PromptState(ctx context.Context, p *game.Player, st *flow.State, now time.Time) (*prompts.PromptState, error) {
	rival, err := e.store.GetRival(ctx, p.ID)
	if err != nil && !storage.IsNotFound(err) {
		return nil, err
	}
	buffs, err := e.store.ListActiveBuffs(ctx, p.ID, now)
	if err != nil {
		return nil, err
	}
	habits, err := e.store.ListHabits(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return prompts.ToPromptState(p, rival, buffs, derefHabits(habits), st, now), nil
}
