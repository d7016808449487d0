package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// TxManager runs fn inside one unit of work. Repository calls made with
// the ctx passed to fn join the transaction; a returned error rolls back
// every write. A nested call runs in a savepoint of the outer transaction:
// its error rolls back only the nested writes, and the caller decides
// whether the outer unit of work goes on.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PlayerRepository interface {
	GetPlayer(ctx context.Context, id string) (*game.Player, error)
	// GetPlayerForUpdate locks the player row until the transaction ends.
	GetPlayerForUpdate(ctx context.Context, id string) (*game.Player, error)
	CreatePlayer(ctx context.Context, p *game.Player) error
	SavePlayer(ctx context.Context, p *game.Player) error
	// ListPlayersInactiveSince returns players whose last active date is
	// before the given date.
	ListPlayersInactiveSince(ctx context.Context, before time.Time) ([]*game.Player, error)
}

type RivalRepository interface {
	GetRival(ctx context.Context, playerID string) (*game.Rival, error)
	SaveRival(ctx context.Context, r *game.Rival) error
}

type HabitRepository interface {
	ListHabits(ctx context.Context, playerID string) ([]*game.HabitState, error)
	GetHabit(ctx context.Context, playerID, tag string) (*game.HabitState, error)
	SaveHabit(ctx context.Context, h *game.HabitState) error
}

type OutcomeRepository interface {
	// GetOutcome returns the outcome for (player, date, tag); an empty tag
	// selects the global outcome.
	GetOutcome(ctx context.Context, playerID string, date time.Time, habitTag string) (*game.DailyOutcome, error)
	// SaveOutcome upserts on (player, date, tag).
	SaveOutcome(ctx context.Context, o *game.DailyOutcome) error
}

type CompletionRepository interface {
	AppendCompletion(ctx context.Context, c *game.CompletionLog) error
	ListCompletions(ctx context.Context, playerID string, since time.Time) ([]*game.CompletionLog, error)
}

// QuestFilter narrows ListQuests. Zero fields match everything.
type QuestFilter struct {
	Date     *time.Time
	Statuses []game.QuestStatus
}

// Matches reports whether q passes the filter.
func (f QuestFilter) Matches(q *game.Quest) bool {
	if f.Date != nil && !game.DateOf(q.ScheduledDate).Equal(game.DateOf(*f.Date)) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if q.Status == s {
			return true
		}
	}
	return false
}

type QuestRepository interface {
	GetQuest(ctx context.Context, id string) (*game.Quest, error)
	AddQuest(ctx context.Context, q *game.Quest) error
	SaveQuest(ctx context.Context, q *game.Quest) error
	DeleteQuest(ctx context.Context, id string) error
	// ListQuests returns quests ordered by creation time.
	ListQuests(ctx context.Context, playerID string, f QuestFilter) ([]*game.Quest, error)
}

type GoalRepository interface {
	AddGoal(ctx context.Context, g *game.Goal) error
	ListGoals(ctx context.Context, playerID string) ([]*game.Goal, error)
}

type BuffRepository interface {
	AddBuff(ctx context.Context, b *game.Buff) error
	ListActiveBuffs(ctx context.Context, playerID string, now time.Time) ([]game.Buff, error)
}

type BossRepository interface {
	GetActiveBoss(ctx context.Context, playerID string) (*game.Boss, error)
	SaveBoss(ctx context.Context, b *game.Boss) error
}

type DungeonRepository interface {
	GetActiveDungeon(ctx context.Context, playerID string) (*game.Dungeon, error)
	SaveDungeon(ctx context.Context, d *game.Dungeon) error
}

type InventoryRepository interface {
	ListInventory(ctx context.Context, playerID string) ([]game.InventoryItem, error)
	AddItem(ctx context.Context, playerID, itemID string, qty int) error
	// ConsumeItem removes one unit, or returns ErrNotFound when none is held.
	ConsumeItem(ctx context.Context, playerID, itemID string) error
}

type ConversationRepository interface {
	AppendLog(ctx context.Context, e *chat.LogEntry) error
	// RecentLogs returns up to limit entries, oldest first.
	RecentLogs(ctx context.Context, playerID string, limit int) ([]chat.LogEntry, error)
}

// Store is the full persistence surface used by the game services.
type Store interface {
	TxManager
	PlayerRepository
	RivalRepository
	HabitRepository
	OutcomeRepository
	CompletionRepository
	QuestRepository
	GoalRepository
	BuffRepository
	BossRepository
	DungeonRepository
	InventoryRepository
	ConversationRepository

	Ping(ctx context.Context) error
	Close() error
}
