// Package rival computes what the rival does to an inactive player. It is
// pure: callers apply the returned Effects to storage.
package rival

import (
	"time"

	"github.com/jwebster45206/lifequest/pkg/game"
)

const (
	// XPPerMissedDay is the rival XP gained for every missed day.
	XPPerMissedDay = 100

	// XPPerLevel is the rival XP needed per level.
	XPPerLevel = 1000

	// TheftPercent is the share of XP and gold stolen per missed day.
	TheftPercent = 5

	// DebuffMultiplier and DebuffDuration describe the buff materialised
	// when the rival outlevels the player.
	DebuffMultiplier = 0.8
	DebuffDuration   = 24 * time.Hour
)

// DebuffTargets are the attributes a rival debuff can hit.
var DebuffTargets = []game.Attribute{game.STR, game.VIT, game.INT}

// Inputs is the snapshot the adversary reads.
type Inputs struct {
	LastActive time.Time
	Now        time.Time
	UserXP     int
	UserGold   int
	UserLevel  int
	RivalLevel int
	RivalXP    int
}

// Effects is the adversary's verdict. The zero value is "silent".
type Effects struct {
	MissedDays    int  `json:"missed_days"`
	RivalXPGain   int  `json:"rival_xp_gain"`
	RivalLevelUp  bool `json:"rival_level_up"`
	NewRivalXP    int  `json:"new_rival_xp"`
	NewRivalLevel int  `json:"new_rival_level"`
	TheftXP       int  `json:"theft_xp"`
	TheftGold     int  `json:"theft_gold"`
	ShouldDebuff  bool `json:"should_debuff"`
}

// Silent reports whether the adversary did nothing.
func (e Effects) Silent() bool { return e.MissedDays == 0 }

// MissedDays counts full days skipped: being one day late is free.
func MissedDays(lastActive, now time.Time) int {
	if lastActive.IsZero() {
		return 0
	}
	missed := game.DaysBetween(lastActive, now) - 1
	if missed < 0 {
		return 0
	}
	return missed
}

// LevelForXP is 1 + floor(xp/1000).
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/XPPerLevel
}

// Evaluate applies the inactivity rules.
func Evaluate(in Inputs) Effects {
	missed := MissedDays(in.LastActive, in.Now)
	if missed == 0 {
		return Effects{}
	}

	gain := XPPerMissedDay * missed
	newXP := in.RivalXP + gain
	newLevel := LevelForXP(newXP)
	if newLevel < in.RivalLevel {
		newLevel = in.RivalLevel
	}

	return Effects{
		MissedDays:    missed,
		RivalXPGain:   gain,
		NewRivalXP:    newXP,
		NewRivalLevel: newLevel,
		RivalLevelUp:  newLevel > in.RivalLevel,
		TheftXP:       steal(in.UserXP, missed),
		TheftGold:     steal(in.UserGold, missed),
		ShouldDebuff:  newLevel > in.UserLevel,
	}
}

// steal takes floor(5% * days * amount) without going below zero.
func steal(amount, days int) int {
	if amount <= 0 {
		return 0
	}
	n := amount * days * TheftPercent / 100
	if n > amount {
		return amount
	}
	return n
}

// Apply mutates the rival with the effects' new level and XP.
func Apply(r *game.Rival, e Effects, now time.Time) {
	if e.Silent() {
		return
	}
	r.XP = e.NewRivalXP
	r.Level = e.NewRivalLevel
	r.UpdatedAt = now
}

// Debuff builds the buff materialised when ShouldDebuff is set. pick
// chooses an index into DebuffTargets.
func Debuff(playerID string, now time.Time, pick func(n int) int) game.Buff {
	target := DebuffTargets[0]
	if pick != nil {
		if i := pick(len(DebuffTargets)); i >= 0 && i < len(DebuffTargets) {
			target = DebuffTargets[i]
		}
	}
	return game.Buff{
		PlayerID:   playerID,
		Target:     target,
		Multiplier: DebuffMultiplier,
		Source:     game.RivalName,
		ExpiresAt:  now.Add(DebuffDuration),
	}
}
