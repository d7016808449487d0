package reward

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/stretchr/testify/assert"
)

func newTestAccountant(seed int64) *Accountant {
	return New(DefaultConfig(), testCatalogue(), rand.New(rand.NewSource(seed)))
}

func TestCalculateXP(t *testing.T) {
	a := newTestAccountant(1)
	tests := []struct {
		tier game.Tier
		want int
	}{
		{game.TierF, 25},
		{game.TierE, 50},
		{game.TierD, 100},
		{game.TierC, 250},
		{game.TierB, 500},
		{game.TierA, 2500},
		{game.TierS, 5000},
		{game.Tier("Z"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, a.CalculateXP(game.STR, tt.tier))
		})
	}
}

func TestCalculateXP_SNeverBelowA(t *testing.T) {
	a := New(Config{BaseXP: 50, SMultiplier: 3}, nil, rand.New(rand.NewSource(1)))
	assert.GreaterOrEqual(t, a.CalculateXP(game.INT, game.TierS), a.CalculateXP(game.INT, game.TierA))
}

func TestComposeBuffs(t *testing.T) {
	now := time.Now()
	buffs := []game.Buff{
		{Target: game.INT, Multiplier: 2.0, ExpiresAt: now.Add(time.Hour)},
		{Target: game.ALL, Multiplier: 1.5, ExpiresAt: now.Add(time.Hour)},
		{Target: game.STR, Multiplier: 0.8, ExpiresAt: now.Add(time.Hour)},
	}

	assert.Equal(t, 300, ComposeBuffs(100, buffs, game.INT))
	assert.Equal(t, 120, ComposeBuffs(100, buffs, game.STR))
	assert.Equal(t, 150, ComposeBuffs(100, buffs, game.WIS))
	assert.Equal(t, 100, ComposeBuffs(100, nil, game.WIS))
	assert.Equal(t, 200, ComposeBuffs(250, buffs[2:], game.STR))
}

func TestApplyXP_FastPathScenario(t *testing.T) {
	p := game.NewPlayer("U1", "Ari", time.Now())

	change := ApplyXP(&p, game.STR, 250)

	assert.Equal(t, 250, p.AttrXP.STR)
	assert.Equal(t, 3, p.Attrs.STR)
	assert.Equal(t, 1, change.AttrLevelFrom)
	assert.Equal(t, 3, change.AttrLevelTo)
	assert.Equal(t, 1, p.Level, "(3+1+1+1+1)/5")
	assert.False(t, change.LevelUp())
	assert.Equal(t, 250, p.XP)
}

func TestApplyXP_ZeroIsIdempotent(t *testing.T) {
	for _, xp := range []int{0, 42, 100, 999, 4321} {
		p := game.NewPlayer("U1", "Ari", time.Now())
		ApplyXP(&p, game.VIT, xp)
		first := p.Attrs.VIT
		level := p.Level

		ApplyXP(&p, game.VIT, 0)
		assert.Equal(t, first, p.Attrs.VIT, "xp=%d", xp)
		assert.Equal(t, level, p.Level, "xp=%d", xp)
	}
}

func TestApplyXP_LevelUp(t *testing.T) {
	p := game.NewPlayer("U1", "Ari", time.Now())
	change := ApplyXP(&p, game.INT, 500)
	assert.Equal(t, 6, p.Attrs.INT)
	assert.Equal(t, 2, p.Level)
	assert.True(t, change.LevelUp())
}

func TestApplyXP_NegativeClamps(t *testing.T) {
	p := game.NewPlayer("U1", "Ari", time.Now())
	ApplyXP(&p, game.CHA, 50)
	ApplyXP(&p, game.CHA, -500)
	assert.Equal(t, 0, p.AttrXP.CHA)
	assert.Equal(t, 1, p.Attrs.CHA)
	assert.Equal(t, 0, p.XP)
}
