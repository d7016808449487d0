package rival

import (
	"testing"
	"time"

	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestMissedDays(t *testing.T) {
	assert.Equal(t, 0, MissedDays(now, now))
	assert.Equal(t, 0, MissedDays(now.AddDate(0, 0, -1), now), "one day late is free")
	assert.Equal(t, 1, MissedDays(now.AddDate(0, 0, -2), now))
	assert.Equal(t, 3, MissedDays(now.AddDate(0, 0, -4), now))
	assert.Equal(t, 0, MissedDays(time.Time{}, now))
	assert.Equal(t, 0, MissedDays(now.AddDate(0, 0, 2), now))
}

func TestEvaluate_InactivityScenario(t *testing.T) {
	e := Evaluate(Inputs{
		LastActive: now.AddDate(0, 0, -4),
		Now:        now,
		UserXP:     1000,
		UserGold:   1000,
		UserLevel:  5,
		RivalLevel: 1,
		RivalXP:    0,
	})

	assert.Equal(t, 3, e.MissedDays)
	assert.Equal(t, 300, e.RivalXPGain)
	assert.False(t, e.RivalLevelUp)
	assert.Equal(t, 150, e.TheftXP)
	assert.Equal(t, 150, e.TheftGold)
	assert.False(t, e.ShouldDebuff)
}

func TestEvaluate_SilentWhenActive(t *testing.T) {
	for _, last := range []time.Time{now, now.AddDate(0, 0, -1)} {
		e := Evaluate(Inputs{LastActive: last, Now: now, UserXP: 5000, UserGold: 900, UserLevel: 1, RivalLevel: 9})
		assert.Equal(t, Effects{}, e)
		assert.True(t, e.Silent())
	}
}

func TestEvaluate_TheftFormula(t *testing.T) {
	for k := 1; k <= 25; k++ {
		for _, amount := range []int{0, 1, 19, 20, 333, 1000, 98765} {
			e := Evaluate(Inputs{
				LastActive: now.AddDate(0, 0, -(k + 1)),
				Now:        now,
				UserXP:     amount,
				UserGold:   amount,
				UserLevel:  1,
				RivalLevel: 1,
			})
			want := amount * k * 5 / 100
			if want > amount {
				want = amount
			}
			assert.Equal(t, k, e.MissedDays)
			assert.Equal(t, want, e.TheftXP, "k=%d amount=%d", k, amount)
			assert.Equal(t, want, e.TheftGold, "k=%d amount=%d", k, amount)
			assert.GreaterOrEqual(t, amount-e.TheftGold, 0)
		}
	}
}

func TestEvaluate_LevelUpAndDebuff(t *testing.T) {
	e := Evaluate(Inputs{
		LastActive: now.AddDate(0, 0, -3),
		Now:        now,
		UserLevel:  1,
		RivalLevel: 1,
		RivalXP:    900,
	})
	assert.Equal(t, 2, e.MissedDays)
	assert.Equal(t, 1100, e.NewRivalXP)
	assert.Equal(t, 2, e.NewRivalLevel)
	assert.True(t, e.RivalLevelUp)
	assert.True(t, e.ShouldDebuff)
}

func TestApply(t *testing.T) {
	r := game.NewRival("U1", now)
	r.XP = 950
	e := Evaluate(Inputs{LastActive: now.AddDate(0, 0, -2), Now: now, UserLevel: 3, RivalLevel: r.Level, RivalXP: r.XP})

	Apply(&r, e, now)
	assert.Equal(t, 1050, r.XP)
	assert.Equal(t, 2, r.Level)

	Apply(&r, Effects{}, now.Add(time.Hour))
	assert.Equal(t, 1050, r.XP, "silent effects do not touch the rival")
}

func TestDebuff(t *testing.T) {
	b := Debuff("U1", now, func(n int) int { return 2 })
	assert.Equal(t, game.INT, b.Target)
	assert.Equal(t, 0.8, b.Multiplier)
	assert.Equal(t, now.Add(24*time.Hour), b.ExpiresAt)

	b = Debuff("U1", now, nil)
	assert.Equal(t, game.STR, b.Target)
}
