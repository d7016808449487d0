package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/internal/tools"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/rival"
)

// rivalPrepass settles the days since the player was last seen: it closes
// yesterday, lets the rival steal and level, and decays HP. It leaves
// LastActiveDate alone; the turn marks the player active when it commits.
// It returns the rival's narrative lines.
func (o *Orchestrator) rivalPrepass(ctx context.Context, p *game.Player, now time.Time) ([]string, error) {
	const op = "orchestrator.rival_prepass"
	today := game.DateOf(now)
	if !p.LastActiveDate.Before(today) {
		return nil, nil
	}

	if _, err := o.quests.RecordMissedDays(ctx, p, now); err != nil {
		return nil, err
	}

	rv, err := o.store.GetRival(ctx, p.ID)
	switch {
	case storage.IsNotFound(err):
		fresh := game.NewRival(p.ID, now)
		rv = &fresh
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	eff := rival.Evaluate(rival.Inputs{
		LastActive: p.LastActiveDate,
		Now:        now,
		UserXP:     p.XP,
		UserGold:   p.Gold,
		UserLevel:  p.Level,
		RivalLevel: rv.Level,
		RivalXP:    rv.XP,
	})
	if eff.Silent() {
		return nil, nil
	}

	rival.Apply(rv, eff, now)
	if err := o.store.SaveRival(ctx, rv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.XP -= eff.TheftXP
	p.Gold -= eff.TheftGold
	lines := []string{o.content.Text(content.MsgRivalSiphon,
		"days", fmt.Sprint(eff.MissedDays),
		"xp", fmt.Sprint(eff.TheftXP),
		"gold", fmt.Sprint(eff.TheftGold))}
	if eff.RivalLevelUp {
		lines = append(lines, o.content.Text(content.MsgRivalLevelUp, "level", fmt.Sprint(eff.NewRivalLevel)))
	}
	if eff.ShouldDebuff {
		b := rival.Debuff(p.ID, now, o.accountant.Pick)
		b.ID = uuid.New().String()
		if err := o.store.AddBuff(ctx, &b); err != nil {
			return nil, fmt.Errorf("%s: debuff: %w", op, err)
		}
		lines = append(lines, o.content.Text(content.MsgRivalDebuff, "attribute", string(b.Target)))
	}

	if decay := o.cfg.HPDecayPerMissedDay * eff.MissedDays; decay > 0 {
		before := p.Vitals.HP
		p.Vitals.SetHP(before-decay, now)
		if lost := before - p.Vitals.HP; lost > 0 {
			lines = append(lines, o.content.Text(content.MsgHPDecay, "hp", fmt.Sprint(lost)))
		}
	}

	o.logger.Info("Rival acted on missed days",
		"player_id", p.ID,
		"missed_days", eff.MissedDays,
		"theft_xp", eff.TheftXP,
		"theft_gold", eff.TheftGold,
		"rival_level", rv.Level,
		"debuff", eff.ShouldDebuff,
		"hp", p.Vitals.HP,
		"hp_status", p.Vitals.Status)
	return lines, nil
}

// rescue is the vitals gate. A hollowed player cannot use the router:
// the first turn opens a rescue dungeon and each later turn is a check-in.
func (o *Orchestrator) rescue(ctx context.Context, s *tools.Session) (game.Result, error) {
	p := s.Player
	d, err := o.store.GetActiveDungeon(ctx, p.ID)
	if err != nil && !storage.IsNotFound(err) {
		return game.Result{}, fmt.Errorf("orchestrator.rescue: %w", err)
	}
	if d == nil || d.Type != game.DungeonRescue {
		start, err := o.quests.StartRescue(ctx, p, s.Now)
		if err != nil {
			return game.Result{}, err
		}
		return o.hollowedResult(start.Dungeon), nil
	}

	progress, err := o.quests.RescueCheckIn(ctx, p, d, s.Now)
	if err != nil {
		return game.Result{}, err
	}
	switch {
	case progress.Restarted != nil:
		return o.hollowedResult(progress.Restarted.Dungeon), nil
	case progress.Cleared:
		res := game.SystemResult("rescue_cleared", o.content.Text(content.MsgRescueCleared, "hp", fmt.Sprint(p.Vitals.HP)))
		return res, nil
	}

	done := len(progress.Dungeon.Stages) - countOpen(progress.Dungeon)
	text := o.content.Text(content.MsgRescueStage,
		"done", fmt.Sprint(done),
		"total", fmt.Sprint(len(progress.Dungeon.Stages)),
		"stage", progress.Stage.Title)
	if next := progress.Dungeon.NextStage(); next >= 0 {
		text += "\n下一步：" + progress.Dungeon.Stages[next].Title
	}
	return game.SystemResult("rescue_progress", text), nil
}

func (o *Orchestrator) hollowedResult(d *game.Dungeon) game.Result {
	lines := []string{o.content.Text(content.MsgHollowed)}
	for i, st := range d.Stages {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, st.Title))
	}
	return game.SystemResult("hollowed", strings.Join(lines, "\n"))
}

func countOpen(d *game.Dungeon) int {
	n := 0
	for _, st := range d.Stages {
		if !st.Complete {
			n++
		}
	}
	return n
}
