package quest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/reward"
	"github.com/jwebster45206/lifequest/pkg/textfilter"
)

// Completion is the outcome of finishing one quest.
type Completion struct {
	Quest      *game.Quest
	Award      *Award
	HPRestored int

	Boss         *game.Boss
	BossDamage   int
	BossDefeated bool
	BossAward    *Award
}

// Metadata folds the quest and boss awards into one delta.
func (c *Completion) Metadata() game.Metadata {
	var m game.Metadata
	if c.Award != nil {
		m.Merge(c.Award.Metadata())
	}
	if c.BossAward != nil {
		m.Merge(c.BossAward.Metadata())
	}
	if c.Quest != nil {
		m.Tier = c.Quest.Tier
	}
	return m
}

// Submission is the evidence a player sent for a quest.
type Submission struct {
	Text      string
	Image     []byte
	ImageMIME string
}

// Accept moves a PENDING quest to ACTIVE.
func (e *Engine) Accept(ctx context.Context, p *game.Player, questID string) (*game.Quest, error) {
	q, err := e.ownedQuest(ctx, p, questID)
	if err != nil {
		return nil, err
	}
	if err := q.Transition(game.QuestActive); err != nil {
		return nil, err
	}
	if err := e.store.SaveQuest(ctx, q); err != nil {
		return nil, fmt.Errorf("quest.accept: %w", err)
	}
	return q, nil
}

// Abandon gives up on an open or paused quest.
func (e *Engine) Abandon(ctx context.Context, p *game.Player, questID string) (*game.Quest, error) {
	q, err := e.ownedQuest(ctx, p, questID)
	if err != nil {
		return nil, err
	}
	if err := q.Transition(game.QuestAbandoned); err != nil {
		return nil, err
	}
	if err := e.store.SaveQuest(ctx, q); err != nil {
		return nil, fmt.Errorf("quest.abandon: %w", err)
	}
	return q, nil
}

// CompleteByID loads a quest owned by p and verifies the submission
// against it.
func (e *Engine) CompleteByID(ctx context.Context, p *game.Player, questID string, sub Submission, now time.Time) (*Completion, error) {
	q, err := e.ownedQuest(ctx, p, questID)
	if err != nil {
		return nil, err
	}
	return e.Verify(ctx, p, q, sub, now)
}

// SelfReport completes a quest on the player's word, as a "done" button
// does. Quests that need a photo or a location cannot be self-reported.
func (e *Engine) SelfReport(ctx context.Context, p *game.Player, questID string, now time.Time) (*Completion, error) {
	const op = "quest.self_report"
	q, err := e.ownedQuest(ctx, p, questID)
	if err != nil {
		return nil, err
	}
	if !q.IsOpen() {
		return nil, game.NewError(game.ErrInvalidState, op,
			fmt.Sprintf("quest %q is %s", q.Title, q.Status))
	}
	switch q.Verification {
	case game.VerifyImage:
		return nil, game.NewError(game.ErrInvalidState, op, "this quest needs a photo")
	case game.VerifyLocation:
		return nil, game.NewError(game.ErrInvalidState, op, "location quests are verified by the location service")
	}
	return e.Complete(ctx, p, q, now)
}

// Verify judges the submission according to the quest's verification
// type and completes the quest on approval. Rejected and uncertain
// verdicts come back as VERIFICATION_* errors and leave the quest ACTIVE.
func (e *Engine) Verify(ctx context.Context, p *game.Player, q *game.Quest, sub Submission, now time.Time) (*Completion, error) {
	const op = "quest.verify"
	if !q.IsOpen() {
		return nil, game.NewError(game.ErrInvalidState, op,
			fmt.Sprintf("quest %q is %s", q.Title, q.Status))
	}
	if err := e.activate(ctx, q); err != nil {
		return nil, err
	}

	switch q.Verification {
	case game.VerifyNone, "":
		return e.Complete(ctx, p, q, now)
	case game.VerifyLocation:
		return nil, game.NewError(game.ErrInvalidState, op, "location quests are verified by the location service")
	case game.VerifyImage:
		if len(sub.Image) == 0 {
			return nil, game.NewError(game.ErrInvalidState, op, "this quest needs a photo")
		}
	}

	v, err := e.judge(ctx, q, sub)
	if err != nil {
		return nil, err
	}
	switch v.Verdict {
	case llm.VerdictApproved:
		return e.Complete(ctx, p, q, now)
	case llm.VerdictRejected:
		return nil, game.NewError(game.ErrVerificationRejected, op, v.Reason)
	default:
		question := v.FollowUp
		if question == "" {
			question = v.Reason
		}
		return nil, game.NewError(game.ErrVerificationUncertain, op, question)
	}
}

// judge asks the verifier. TEXT quests fall back to keyword matching when
// the model is unavailable; IMAGE quests fall back to UNCERTAIN.
func (e *Engine) judge(ctx context.Context, q *game.Quest, sub Submission) (*llm.Verification, error) {
	if e.gateway.Available() {
		v, err := e.gateway.VerifyMultimodal(ctx, llm.Evidence{
			Mode:       q.Verification,
			QuestTitle: q.Title,
			Text:       sub.Text,
			Image:      sub.Image,
			ImageMIME:  sub.ImageMIME,
			Keywords:   q.Keywords,
		})
		if err == nil {
			return v, nil
		}
		if !game.IsAIFailure(err) {
			return nil, err
		}
		e.logger.Warn("Verifier unavailable, using fallback",
			"quest_id", q.ID,
			"mode", q.Verification,
			"error_kind", game.KindOf(err))
	}

	if q.Verification == game.VerifyImage {
		return &llm.Verification{
			Verdict:  llm.VerdictUncertain,
			Reason:   "verifier offline",
			FollowUp: "照片暫時無法確認，可以用文字描述你完成了什麼嗎？",
		}, nil
	}
	if len(q.Keywords) == 0 || textfilter.ContainsAny(sub.Text, q.Keywords) {
		return &llm.Verification{Verdict: llm.VerdictApproved, Reason: "keyword match"}, nil
	}
	return &llm.Verification{
		Verdict:  llm.VerdictUncertain,
		Reason:   "no keyword match",
		FollowUp: fmt.Sprintf("你完成「%s」了嗎？多說一點細節吧。", q.Title),
	}, nil
}

func (e *Engine) activate(ctx context.Context, q *game.Quest) error {
	if q.Status != game.QuestPending {
		return nil
	}
	if err := q.Transition(game.QuestActive); err != nil {
		return err
	}
	if err := e.store.SaveQuest(ctx, q); err != nil {
		return fmt.Errorf("quest.activate: %w", err)
	}
	return nil
}

// Complete marks an open quest DONE and pays out: XP, gold and loot through
// Award, HP recovery by tier, and damage to the active boss.
func (e *Engine) Complete(ctx context.Context, p *game.Player, q *game.Quest, now time.Time) (*Completion, error) {
	const op = "quest.complete"
	if err := e.activate(ctx, q); err != nil {
		return nil, err
	}
	if err := q.Transition(game.QuestDone); err != nil {
		return nil, err
	}
	at := now
	q.CompletedAt = &at
	if err := e.store.SaveQuest(ctx, q); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	award, err := e.Award(ctx, p, AwardInput{
		Attribute: q.Attribute,
		Tier:      q.Tier,
		Source:    game.SourceQuest,
		QuestID:   q.ID,
		HabitTag:  q.HabitTag,
		BaseXP:    q.XPReward,
		Fixed:     true,
		NoLoot:    q.Type == game.QuestRedemption,
	}, now)
	if err != nil {
		return nil, err
	}
	c := &Completion{Quest: q, Award: award}

	// Hollowed players climb out through the rescue dungeon only.
	if !p.IsHollowed() {
		before := p.Vitals.HP
		p.Vitals.SetHP(before+HPRecovery(q.Tier), now)
		c.HPRestored = p.Vitals.HP - before
	}

	if err := e.damageBoss(ctx, p, c, now); err != nil {
		return nil, err
	}

	e.logger.Info("Quest completed",
		"player_id", p.ID,
		"quest_id", q.ID,
		"tier", q.Tier,
		"xp", award.XP,
		"hp_restored", c.HPRestored,
		"boss_defeated", c.BossDefeated)
	return c, nil
}

func (e *Engine) damageBoss(ctx context.Context, p *game.Player, c *Completion, now time.Time) error {
	if e.cfg.BossDamage <= 0 {
		return nil
	}
	boss, err := e.store.GetActiveBoss(ctx, p.ID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("quest.damage_boss: %w", err)
	}

	c.Boss = boss
	c.BossDamage = e.cfg.BossDamage
	c.BossDefeated = boss.Damage(e.cfg.BossDamage)
	if err := e.store.SaveBoss(ctx, boss); err != nil {
		return fmt.Errorf("quest.damage_boss: %w", err)
	}
	if !c.BossDefeated {
		return nil
	}

	award, err := e.bossReward(ctx, p, now)
	if err != nil {
		return err
	}
	c.BossAward = award
	e.logger.Info("Boss defeated", "player_id", p.ID, "boss_id", boss.ID, "xp", award.XP)
	return nil
}

// bossReward pays the fixed defeat bounty on CHA plus a forced loot roll.
// Buffs do not apply.
func (e *Engine) bossReward(ctx context.Context, p *game.Player, now time.Time) (*Award, error) {
	out := &Award{XP: BossDefeatXP}
	out.Change = reward.ApplyXP(p, game.CHA, BossDefeatXP)

	if err := e.store.AppendCompletion(ctx, &game.CompletionLog{
		ID:          uuid.New().String(),
		PlayerID:    p.ID,
		TierUsed:    game.TierS,
		Source:      game.SourceQuest,
		XPGained:    BossDefeatXP,
		CompletedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("quest.boss_reward: %w", err)
	}

	roll := e.accountant.RollLoot(game.TierS, true)
	if roll.Dropped {
		if err := e.store.AddItem(ctx, p.ID, roll.Item.ID, 1); err != nil {
			return nil, fmt.Errorf("quest.boss_reward: add loot: %w", err)
		}
		out.Loot = roll.Item
	}
	return out, nil
}

// MatchQuest finds today's open TEXT or NONE quest whose keywords or
// title appear in text. It returns nil when nothing matches.
func (e *Engine) MatchQuest(ctx context.Context, p *game.Player, text string, now time.Time) (*game.Quest, error) {
	open, err := e.TodaysQuests(ctx, p.ID, now, game.QuestPending, game.QuestActive)
	if err != nil {
		return nil, fmt.Errorf("quest.match: %w", err)
	}
	norm := textfilter.Normalize(text)
	for _, q := range open {
		switch q.Verification {
		case game.VerifyText, game.VerifyNone:
		default:
			continue
		}
		if textfilter.ContainsAny(text, q.Keywords) {
			return q, nil
		}
		title := textfilter.Normalize(strings.TrimPrefix(q.Title, rarePrefix))
		if title != "" && strings.Contains(norm, title) {
			return q, nil
		}
	}
	return nil, nil
}

// FirstImageQuest returns today's first open IMAGE quest, preferring
// ACTIVE ones, or nil.
func (e *Engine) FirstImageQuest(ctx context.Context, p *game.Player, now time.Time) (*game.Quest, error) {
	open, err := e.TodaysQuests(ctx, p.ID, now, game.QuestPending, game.QuestActive)
	if err != nil {
		return nil, fmt.Errorf("quest.first_image: %w", err)
	}
	var pending *game.Quest
	for _, q := range open {
		if q.Verification != game.VerifyImage {
			continue
		}
		if q.Status == game.QuestActive {
			return q, nil
		}
		if pending == nil {
			pending = q
		}
	}
	return pending, nil
}
