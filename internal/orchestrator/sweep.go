package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/lifequest/internal/quest"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// Sweeper closes out yesterday for players who have not been seen today,
// so habit difficulty keeps moving for people who stop talking.
type Sweeper struct {
	store    storage.Store
	quests   *quest.Engine
	location *time.Location
	logger   *slog.Logger
}

func NewSweeper(store storage.Store, quests *quest.Engine, location *time.Location, logger *slog.Logger) *Sweeper {
	if location == nil {
		location = time.UTC
	}
	return &Sweeper{store: store, quests: quests, location: location, logger: logger}
}

// Run sweeps every inactive player, one transaction each. A failing player
// does not stop the rest. It returns how many players had a day closed.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int, error) {
	now = now.In(s.location)
	today := game.DateOf(now)

	players, err := s.store.ListPlayersInactiveSince(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("sweep: list players: %w", err)
	}

	var (
		swept int
		errs  []error
	)
	for _, candidate := range players {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		closed, err := s.RunPlayer(ctx, candidate.ID, now)
		if err != nil {
			s.logger.Error("Sweep failed for player", "player_id", candidate.ID, "error", err)
			errs = append(errs, fmt.Errorf("player %s: %w", candidate.ID, err))
			continue
		}
		if closed {
			swept++
		}
	}

	s.logger.Info("Daily sweep finished",
		"candidates", len(players),
		"swept", swept,
		"failed", len(errs))
	return swept, errors.Join(errs...)
}

// RunPlayer closes yesterday for one player in its own transaction. It
// reports whether a day was closed; an active player is left alone.
func (s *Sweeper) RunPlayer(ctx context.Context, playerID string, now time.Time) (bool, error) {
	now = now.In(s.location)
	var closed bool
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.store.GetPlayerForUpdate(ctx, playerID)
		if err != nil {
			if storage.IsNotFound(err) {
				return game.NewError(game.ErrPlayerNotFound, "sweep.player", playerID)
			}
			return err
		}
		if !p.LastActiveDate.Before(game.DateOf(now)) {
			return nil
		}
		closed, err = s.quests.RecordMissedDays(ctx, p, now)
		return err
	})
	return closed, err
}
