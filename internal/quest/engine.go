// Package quest generates, rerolls and verifies daily quests and habit
// check-ins. It owns the override modes (hollowed rescue and boss battle)
// and the reward path every completion goes through.
//
// Engine methods take the turn's player by pointer and mutate it in
// memory; the caller persists the player when the turn commits.
package quest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/reward"
)

const (
	DefaultQuestsPerDay = 3
	DefaultMinHabits    = 2

	// BossMaxHP and BossDefeatXP describe the Viper boss battle.
	BossMaxHP    = 500
	BossDefeatXP = 200

	// bossLevelGap is how far the rival must outlevel the player before
	// the daily batch turns into a boss fight.
	bossLevelGap = 2

	// rareXPBonus is the minimum extra XP on a serendipity quest.
	rareXPBonus = 50

	// goldPerXP converts earned XP into gold, one coin per ten XP.
	goldPerXP = 10
)

// hpRecovery is the HP restored by completing a quest of each tier.
var hpRecovery = map[game.Tier]int{
	game.TierS: 25,
	game.TierA: 20,
	game.TierB: 18,
	game.TierC: 20,
	game.TierD: 10,
	game.TierE: 6,
	game.TierF: 3,
}

// HPRecovery returns the HP restored by a completion at tier.
func HPRecovery(tier game.Tier) int {
	return hpRecovery[tier]
}

type Config struct {
	QuestsPerDay    int
	MinHabits       int
	SerendipityRate float64
	// TestMode disables every random serendipity roll.
	TestMode   bool
	BossDamage int
}

func DefaultConfig() Config {
	return Config{
		QuestsPerDay:    DefaultQuestsPerDay,
		MinHabits:       DefaultMinHabits,
		SerendipityRate: 0.20,
		BossDamage:      50,
	}
}

// ConfigFrom copies the quest settings out of the app config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.SerendipityRate = cfg.SerendipityRate
	c.TestMode = cfg.TestMode
	c.BossDamage = cfg.BossDamage
	return c
}

// SerendipityFunc decides which quest of a batch of n is rare. It returns
// false when none is.
type SerendipityFunc func(n int) (int, bool)

type Engine struct {
	store      storage.Store
	gateway    *llm.Gateway
	accountant *reward.Accountant
	flow       *flow.Controller
	content    *content.Content
	cfg        Config
	logger     *slog.Logger
	tracer     trace.Tracer

	serendipity SerendipityFunc
}

type Option func(*Engine)

// WithSerendipity replaces the random rare-quest roll. Tests use it to
// force or suppress a rare quest deterministically.
func WithSerendipity(fn SerendipityFunc) Option {
	return func(e *Engine) { e.serendipity = fn }
}

func New(store storage.Store, gateway *llm.Gateway, accountant *reward.Accountant, fc *flow.Controller, c *content.Content, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.QuestsPerDay <= 0 {
		cfg.QuestsPerDay = DefaultQuestsPerDay
	}
	if cfg.MinHabits <= 0 {
		cfg.MinHabits = DefaultMinHabits
	}
	e := &Engine{
		store:      store,
		gateway:    gateway,
		accountant: accountant,
		flow:       fc,
		content:    c,
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer("github.com/jwebster45206/lifequest/internal/quest"),
	}
	e.serendipity = e.rollSerendipity
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Content() *content.Content { return e.content }

func (e *Engine) Accountant() *reward.Accountant { return e.accountant }

func (e *Engine) rollSerendipity(n int) (int, bool) {
	if e.cfg.TestMode || n <= 0 {
		return 0, false
	}
	if !e.accountant.Chance(e.cfg.SerendipityRate) {
		return 0, false
	}
	return e.accountant.Pick(n), true
}

// FlowState summarises the player's habits into the current difficulty
// recommendation. The engagement override is recorded on the active span.
func (e *Engine) FlowState(ctx context.Context, p *game.Player, now time.Time) (flow.State, error) {
	habits, err := e.store.ListHabits(ctx, p.ID)
	if err != nil {
		return flow.State{}, fmt.Errorf("quest.flow_state: %w", err)
	}
	st := e.flow.NextFlowState(derefHabits(habits), p.LastActiveDate, now)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool("flow.engagement_override", st.EngagementOverride))
	if st.EngagementOverride {
		e.logger.Info("Engagement override active",
			"player_id", p.ID,
			"loot_multiplier", st.LootMultiplier,
			"tone", st.Tone)
	}
	return st, nil
}

// TodaysQuests lists the player's quests scheduled for now's date.
func (e *Engine) TodaysQuests(ctx context.Context, playerID string, now time.Time, statuses ...game.QuestStatus) ([]*game.Quest, error) {
	today := game.DateOf(now)
	return e.store.ListQuests(ctx, playerID, storage.QuestFilter{Date: &today, Statuses: statuses})
}

// ownedQuest loads a quest and checks it belongs to p.
func (e *Engine) ownedQuest(ctx context.Context, p *game.Player, questID string) (*game.Quest, error) {
	q, err := e.store.GetQuest(ctx, questID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, game.NewError(game.ErrInvalidArgument, "quest.get", "unknown quest "+questID)
		}
		return nil, fmt.Errorf("quest.get: %w", err)
	}
	if q.PlayerID != p.ID {
		return nil, game.NewError(game.ErrInvalidArgument, "quest.get", "unknown quest "+questID)
	}
	return q, nil
}

func derefHabits(in []*game.HabitState) []game.HabitState {
	out := make([]game.HabitState, 0, len(in))
	for _, h := range in {
		out = append(out, *h)
	}
	return out
}
