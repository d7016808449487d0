package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSheet(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewPlayer("U1", "Ari", now)
	p.Attrs.STR = 3
	p.Vitals.SetHP(60, now)

	buffs := []Buff{
		{Target: STR, Multiplier: 0.8, Source: "viper", ExpiresAt: now.Add(time.Hour)},
		{Target: INT, Multiplier: 2.0, ExpiresAt: now.Add(-time.Hour)},
	}

	sheet, err := NewSheet(p, buffs, now)
	require.NoError(t, err)

	assert.Equal(t, 60, sheet.HP())
	assert.Equal(t, 3, sheet.Attribute(STR))
	assert.Equal(t, 1, sheet.Attribute(CHA))
	mods := sheet.Modifiers()
	require.Len(t, mods, 1, "expired buffs are not listed")
	assert.Contains(t, mods[0], "viper STR x0.80")
	assert.Contains(t, mods[0], "-20%")
}

func TestNewSheet_Hollowed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewPlayer("U1", "Ari", now)
	p.Vitals.SetHP(0, now)

	sheet, err := NewSheet(p, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 0, sheet.HP())
}

func TestSheet_ModifiersAreSorted(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewPlayer("U1", "Ari", now)
	buffs := []Buff{
		{Target: VIT, Multiplier: 1.5, Source: "potion", ExpiresAt: now.Add(time.Hour)},
		{Target: STR, Multiplier: 0.8, Source: "viper", ExpiresAt: now.Add(time.Hour)},
		{Target: INT, Multiplier: 1.2, Source: "coffee", ExpiresAt: now.Add(time.Hour)},
		{Target: CHA, Multiplier: 1.1, Source: "ally", ExpiresAt: now.Add(time.Hour)},
	}
	want := []string{
		"ally CHA x1.10 (+10%)",
		"coffee INT x1.20 (+20%)",
		"potion VIT x1.50 (+50%)",
		"viper STR x0.80 (-20%)",
	}

	for i := 0; i < 20; i++ {
		sheet, err := NewSheet(p, buffs, now)
		require.NoError(t, err)
		assert.Equal(t, want, sheet.Modifiers())
	}
}
