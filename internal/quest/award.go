package quest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/reward"
)

// AwardInput describes one completion to reward.
type AwardInput struct {
	Attribute game.Attribute
	Tier      game.Tier
	Source    game.CompletionSource
	QuestID   string
	HabitTag  string

	// BaseXP replaces the tier calculation when Fixed is set. Buffs still
	// apply.
	BaseXP int
	Fixed  bool

	NoLoot    bool
	ForceLoot bool
	LootScale float64
}

// Award is what a completion produced.
type Award struct {
	XP     int
	Gold   int
	Change reward.XPChange
	Loot   *game.Item
	Habit  *flow.Transition
}

// Metadata expresses the award as a result metadata delta.
func (a Award) Metadata() game.Metadata {
	m := game.Metadata{
		Attribute: a.Change.Attribute,
		XPGained:  a.XP,
		GoldDelta: a.Gold,
		LevelUp:   a.Change.LevelUp(),
	}
	if a.Loot != nil {
		m.LootName = a.Loot.Name
	}
	return m
}

// Award computes and applies the reward for one completion: buffed XP,
// gold, the completion log, the habit estimate, today's outcome and an
// optional loot roll.
func (e *Engine) Award(ctx context.Context, p *game.Player, in AwardInput, now time.Time) (*Award, error) {
	buffs, err := e.store.ListActiveBuffs(ctx, p.ID, now)
	if err != nil {
		return nil, fmt.Errorf("quest.award: %w", err)
	}

	base := in.BaseXP
	if !in.Fixed {
		base = e.accountant.CalculateXP(in.Attribute, in.Tier)
	}
	xp := reward.ComposeBuffs(base, buffs, in.Attribute)

	out := &Award{XP: xp, Gold: xp / goldPerXP}
	out.Change = reward.ApplyXP(p, in.Attribute, xp)
	p.Gold += out.Gold

	if err := e.store.AppendCompletion(ctx, &game.CompletionLog{
		ID:          uuid.New().String(),
		PlayerID:    p.ID,
		QuestID:     in.QuestID,
		HabitTag:    in.HabitTag,
		TierUsed:    in.Tier,
		Source:      in.Source,
		XPGained:    xp,
		CompletedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("quest.award: append completion: %w", err)
	}

	tr, tag, err := e.checkInHabit(ctx, p, in.HabitTag, in.Attribute, now)
	if err != nil {
		return nil, err
	}
	out.Habit = tr

	if err := e.MarkDayDone(ctx, p, tag, now); err != nil {
		return nil, err
	}

	if !in.NoLoot {
		roll := e.accountant.RollLootScaled(in.Tier, in.ForceLoot, in.LootScale)
		if roll.Dropped {
			if err := e.store.AddItem(ctx, p.ID, roll.Item.ID, 1); err != nil {
				return nil, fmt.Errorf("quest.award: add loot: %w", err)
			}
			out.Loot = roll.Item
		}
	}

	return out, nil
}

// checkInHabit feeds a completion into the matching habit: the tagged one
// when given, else the first active habit training the same attribute.
func (e *Engine) checkInHabit(ctx context.Context, p *game.Player, tag string, attr game.Attribute, now time.Time) (*flow.Transition, string, error) {
	var habit *game.HabitState
	if tag != "" {
		h, err := e.store.GetHabit(ctx, p.ID, tag)
		if err != nil && !storage.IsNotFound(err) {
			return nil, "", fmt.Errorf("quest.check_in: %w", err)
		}
		habit = h
	} else {
		habits, err := e.store.ListHabits(ctx, p.ID)
		if err != nil {
			return nil, "", fmt.Errorf("quest.check_in: %w", err)
		}
		for _, h := range habits {
			if h.Active && h.Attribute == attr {
				habit = h
				break
			}
		}
	}
	if habit == nil || !habit.Active {
		return nil, "", nil
	}

	tr := e.flow.RecordCompletion(habit, now)
	if err := e.store.SaveHabit(ctx, habit); err != nil {
		return nil, "", fmt.Errorf("quest.check_in: save habit: %w", err)
	}
	if tr.Shifted() {
		e.logger.Info("Habit tier shifted",
			"player_id", p.ID,
			"habit_tag", habit.Tag,
			"from", tr.FromTier.String(),
			"to", tr.ToTier.String())
	}
	return &tr, habit.Tag, nil
}

// MarkDayDone records today's global outcome, and the habit outcome when
// tag is set, as done. The first completion of a day extends the streak
// when yesterday was done too.
func (e *Engine) MarkDayDone(ctx context.Context, p *game.Player, tag string, now time.Time) error {
	today := game.DateOf(now)

	global, err := e.store.GetOutcome(ctx, p.ID, today, "")
	if err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("quest.mark_day_done: %w", err)
	}
	if global == nil || !global.Done {
		yesterday, err := e.store.GetOutcome(ctx, p.ID, today.AddDate(0, 0, -1), "")
		if err != nil && !storage.IsNotFound(err) {
			return fmt.Errorf("quest.mark_day_done: %w", err)
		}
		if yesterday != nil && yesterday.Done {
			p.StreakCount++
		} else {
			p.StreakCount = 1
		}

		o := &game.DailyOutcome{PlayerID: p.ID, Date: today, IsGlobal: true, Done: true}
		if global != nil {
			o.RescueUsed = global.RescueUsed
		}
		if err := e.store.SaveOutcome(ctx, o); err != nil {
			return fmt.Errorf("quest.mark_day_done: %w", err)
		}
	}

	if tag != "" {
		if err := e.store.SaveOutcome(ctx, &game.DailyOutcome{PlayerID: p.ID, Date: today, HabitTag: tag, Done: true}); err != nil {
			return fmt.Errorf("quest.mark_day_done: %w", err)
		}
	}
	return nil
}

// RecordMissedDays closes yesterday for a player who did nothing: it
// writes a not-done global outcome when none exists and pulls every active
// habit toward RED. A habit whose last outcome is more than a day old gets
// the missed-day sweep instead of a single miss. Safe to call repeatedly.
func (e *Engine) RecordMissedDays(ctx context.Context, p *game.Player, now time.Time) (bool, error) {
	today := game.DateOf(now)
	yesterday := today.AddDate(0, 0, -1)

	if !game.DateOf(p.CreatedAt).Before(today) {
		return false, nil
	}

	existing, err := e.store.GetOutcome(ctx, p.ID, yesterday, "")
	if err != nil && !storage.IsNotFound(err) {
		return false, fmt.Errorf("quest.record_missed: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	if err := e.store.SaveOutcome(ctx, &game.DailyOutcome{PlayerID: p.ID, Date: yesterday, IsGlobal: true, Done: false}); err != nil {
		return false, fmt.Errorf("quest.record_missed: %w", err)
	}

	habits, err := e.store.ListHabits(ctx, p.ID)
	if err != nil {
		return false, fmt.Errorf("quest.record_missed: %w", err)
	}
	for _, h := range habits {
		if !h.Active {
			continue
		}
		tr, swept := e.flow.Sweep(h, now)
		if !swept && (h.LastOutcomeDate == nil || yesterday.After(*h.LastOutcomeDate)) {
			tr = e.flow.RecordMiss(h, yesterday)
		}
		if err := e.store.SaveHabit(ctx, h); err != nil {
			return false, fmt.Errorf("quest.record_missed: save habit: %w", err)
		}
		if tr.Shifted() {
			e.logger.Info("Habit tier dropped after missed day",
				"player_id", p.ID,
				"habit_tag", h.Tag,
				"to", tr.ToTier.String(),
				"swept", swept)
		}
	}
	return true, nil
}
