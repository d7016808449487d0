package quest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/game"
)

const rescueWindow = 24 * time.Hour

// RescueStart is what StartRescue set up.
type RescueStart struct {
	Dungeon    *game.Dungeon
	Redemption *game.Quest
	Paused     int
}

// RescueProgress is the result of one rescue check-in.
type RescueProgress struct {
	Dungeon *game.Dungeon
	Stage   game.Stage
	Cleared bool
	Resumed int
	// Restarted is set when the previous dungeon expired and a new one
	// was opened instead of progressing.
	Restarted *RescueStart
}

// StartRescue pauses every open quest and opens a rescue dungeon with
// today's redemption quest.
func (e *Engine) StartRescue(ctx context.Context, p *game.Player, now time.Time) (*RescueStart, error) {
	const op = "quest.start_rescue"
	open, err := e.store.ListQuests(ctx, p.ID, storage.QuestFilter{
		Statuses: []game.QuestStatus{game.QuestPending, game.QuestActive},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := &RescueStart{}
	for _, q := range open {
		if q.Type == game.QuestRedemption {
			start.Redemption = q
			continue
		}
		if err := q.Transition(game.QuestPaused); err != nil {
			return nil, err
		}
		if err := e.store.SaveQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		start.Paused++
	}

	stages := make([]game.Stage, 0, len(e.content.Quests.RescueStages))
	for i, title := range e.content.Quests.RescueStages {
		stages = append(stages, game.Stage{Index: i, Title: title})
	}
	d := &game.Dungeon{
		ID:        uuid.New().String(),
		PlayerID:  p.ID,
		Type:      game.DungeonRescue,
		Status:    game.DungeonActive,
		Deadline:  now.Add(rescueWindow),
		Stages:    stages,
		CreatedAt: now,
	}
	if err := e.store.SaveDungeon(ctx, d); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	start.Dungeon = d

	if start.Redemption == nil {
		q := e.fromTemplate(p, e.content.Quests.Redemption, game.DateOf(now), now)
		q.Type = game.QuestRedemption
		q.XPReward = 0
		if err := e.store.AddQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		start.Redemption = q
	}

	e.logger.Info("Rescue started",
		"player_id", p.ID,
		"dungeon_id", d.ID,
		"paused_quests", start.Paused)
	return start, nil
}

// RescueCheckIn advances the active rescue dungeon by one stage. Clearing
// the last stage revives the player at RescueRestoreHP, resumes paused
// quests and marks the day as rescued.
func (e *Engine) RescueCheckIn(ctx context.Context, p *game.Player, d *game.Dungeon, now time.Time) (*RescueProgress, error) {
	const op = "quest.rescue_check_in"
	if d.Type != game.DungeonRescue || d.Status != game.DungeonActive {
		return nil, game.NewError(game.ErrInvalidState, op, "no rescue in progress")
	}

	if now.After(d.Deadline) {
		d.Status = game.DungeonFailed
		if err := e.store.SaveDungeon(ctx, d); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.logger.Info("Rescue expired", "player_id", p.ID, "dungeon_id", d.ID)
		start, err := e.StartRescue(ctx, p, now)
		if err != nil {
			return nil, err
		}
		return &RescueProgress{Dungeon: start.Dungeon, Restarted: start}, nil
	}

	stage, cleared := d.CompleteNextStage()
	if err := e.store.SaveDungeon(ctx, d); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	progress := &RescueProgress{Dungeon: d, Stage: stage, Cleared: cleared}
	if !cleared {
		return progress, nil
	}

	p.Vitals.SetHP(game.RescueRestoreHP, now)

	if err := e.store.AppendCompletion(ctx, &game.CompletionLog{
		ID:          uuid.New().String(),
		PlayerID:    p.ID,
		TierUsed:    game.TierF,
		Source:      game.SourceRescue,
		CompletedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	quests, err := e.store.ListQuests(ctx, p.ID, storage.QuestFilter{
		Statuses: []game.QuestStatus{game.QuestPaused, game.QuestPending, game.QuestActive},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, q := range quests {
		switch {
		case q.Type == game.QuestRedemption && q.IsOpen():
			if err := e.activate(ctx, q); err != nil {
				return nil, err
			}
			if err := q.Transition(game.QuestDone); err != nil {
				return nil, err
			}
			at := now
			q.CompletedAt = &at
		case q.Status == game.QuestPaused:
			if err := q.Transition(game.QuestActive); err != nil {
				return nil, err
			}
			progress.Resumed++
		default:
			continue
		}
		if err := e.store.SaveQuest(ctx, q); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := e.MarkDayDone(ctx, p, "", now); err != nil {
		return nil, err
	}
	if err := e.store.SaveOutcome(ctx, &game.DailyOutcome{
		PlayerID:   p.ID,
		Date:       game.DateOf(now),
		IsGlobal:   true,
		Done:       true,
		RescueUsed: true,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.logger.Info("Rescue cleared",
		"player_id", p.ID,
		"dungeon_id", d.ID,
		"hp", p.Vitals.HP,
		"resumed_quests", progress.Resumed)
	return progress, nil
}
