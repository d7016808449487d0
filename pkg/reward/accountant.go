// Package reward holds the deterministic XP, level and loot arithmetic.
// Nothing here touches storage; callers persist the mutated player.
package reward

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jwebster45206/lifequest/pkg/game"
)

const (
	// DefaultBaseXP is the XP of an E tier action.
	DefaultBaseXP = 50

	// DefaultSMultiplier applies to S tier; it must not be below the A tier value.
	DefaultSMultiplier = 100.0

	// DefaultBaseDropRate is the loot chance before tier scaling.
	DefaultBaseDropRate = 0.20

	// floatSlack absorbs representation error before flooring, so that
	// 3 * 0.1 style products do not lose a whole point.
	floatSlack = 1e-9
)

var tierXPMultipliers = map[game.Tier]float64{
	game.TierF: 0.5,
	game.TierE: 1.0,
	game.TierD: 2.0,
	game.TierC: 5.0,
	game.TierB: 10.0,
	game.TierA: 50.0,
}

var tierDropMultipliers = map[game.Tier]float64{
	game.TierF: 0.5,
	game.TierE: 0.75,
	game.TierD: 1.0,
	game.TierC: 1.5,
	game.TierB: 2.0,
	game.TierA: 3.0,
	game.TierS: 5.0,
}

type Config struct {
	BaseXP       int
	SMultiplier  float64
	BaseDropRate float64
}

func DefaultConfig() Config {
	return Config{
		BaseXP:       DefaultBaseXP,
		SMultiplier:  DefaultSMultiplier,
		BaseDropRate: DefaultBaseDropRate,
	}
}

// Accountant computes rewards. The only mutable state is the random
// source used for loot, guarded by mu.
type Accountant struct {
	cfg       Config
	catalogue map[game.Rarity][]game.Item

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an accountant over the item catalogue. A nil rng seeds one
// from the clock.
func New(cfg Config, items []game.Item, rng *rand.Rand) *Accountant {
	if cfg.BaseXP <= 0 {
		cfg.BaseXP = DefaultBaseXP
	}
	if cfg.SMultiplier < tierXPMultipliers[game.TierA] {
		cfg.SMultiplier = tierXPMultipliers[game.TierA]
	}
	if cfg.BaseDropRate < 0 {
		cfg.BaseDropRate = 0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	catalogue := make(map[game.Rarity][]game.Item)
	for _, item := range items {
		catalogue[item.Rarity] = append(catalogue[item.Rarity], item)
	}

	return &Accountant{cfg: cfg, catalogue: catalogue, rng: rng}
}

// TierMultiplier returns the XP multiplier for tier, 0 when unknown.
func (a *Accountant) TierMultiplier(tier game.Tier) float64 {
	if tier == game.TierS {
		return a.cfg.SMultiplier
	}
	return tierXPMultipliers[tier]
}

// CalculateXP returns floor(base_xp * tier multiplier). The attribute does
// not change the amount today but is part of the contract so that
// per-attribute tuning stays local to this package.
func (a *Accountant) CalculateXP(_ game.Attribute, tier game.Tier) int {
	return floor(float64(a.cfg.BaseXP) * a.TierMultiplier(tier))
}

// ComposeBuffs multiplies xp by every buff that targets attr or ALL.
func ComposeBuffs(xp int, buffs []game.Buff, attr game.Attribute) int {
	product := 1.0
	for _, b := range buffs {
		if b.Target == attr || b.Target == game.ALL {
			product *= b.Multiplier
		}
	}
	return floor(float64(xp) * product)
}

// XPChange describes what ApplyXP did to a player.
type XPChange struct {
	Attribute     game.Attribute
	Amount        int
	AttrLevelFrom int
	AttrLevelTo   int
	LevelFrom     int
	LevelTo       int
}

// LevelUp reports whether the global level rose.
func (c XPChange) LevelUp() bool {
	return c.LevelTo > c.LevelFrom
}

// ApplyXP adds amount to the attribute's XP counter and to global XP, then
// recomputes the attribute level and the global level.
func ApplyXP(p *game.Player, attr game.Attribute, amount int) XPChange {
	change := XPChange{
		Attribute:     attr,
		Amount:        amount,
		AttrLevelFrom: p.Attrs.Get(attr),
		LevelFrom:     p.Level,
	}

	xp := p.AttrXP.Get(attr) + amount
	if xp < 0 {
		xp = 0
	}
	p.AttrXP.Set(attr, xp)
	p.Attrs.Set(attr, game.AttributeLevel(xp))

	p.XP += amount
	if p.XP < 0 {
		p.XP = 0
	}
	p.Level = game.GlobalLevel(p.Attrs)

	change.AttrLevelTo = p.Attrs.Get(attr)
	change.LevelTo = p.Level
	return change
}

func floor(v float64) int {
	return int(math.Floor(v + floatSlack))
}
