package game

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jwebster45206/d20"
)

// baseArmorClass is the armour class of an unbuffed level 1 player.
const baseArmorClass = 10

// Sheet is a player's character sheet backed by a d20 actor. Attribute
// levels become actor attributes and active buffs become combat modifiers.
type Sheet struct {
	Actor  *d20.Actor
	Status HPStatus
}

// NewSheet builds a sheet for p with the given buffs applied.
func NewSheet(p Player, buffs []Buff, now time.Time) (*Sheet, error) {
	maxHP := p.Vitals.MaxHP
	if maxHP <= 0 {
		maxHP = DefaultMaxHP
	}

	actor, err := d20.NewActor(p.ID).
		WithHP(maxHP).
		WithAC(baseArmorClass + p.Level/2).
		WithAttributes(p.Attrs.ToMap()).
		WithCombatModifiers(buffModifiers(buffs, now)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	if p.Vitals.HP != maxHP && p.Vitals.HP > 0 {
		if err := actor.SetHP(p.Vitals.HP); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}

	return &Sheet{Actor: actor, Status: p.Vitals.Status}, nil
}

// buffModifiers expresses each active buff as a percentage modifier keyed
// by its source, e.g. "STR x0.80" -> -20.
func buffModifiers(buffs []Buff, now time.Time) map[string]int {
	mods := make(map[string]int)
	for _, b := range ActiveBuffs(buffs, now) {
		key := fmt.Sprintf("%s x%.2f", b.Target, b.Multiplier)
		if b.Source != "" {
			key = b.Source + " " + key
		}
		mods[key] += int(math.Round((b.Multiplier - 1) * 100))
	}
	return mods
}

// HP reports the sheet's current hit points. A hollowed player has none
// even though the actor cannot represent zero.
func (s *Sheet) HP() int {
	if s.Status == HPHollowed {
		return 0
	}
	return s.Actor.HP()
}

// Attribute returns the level of a for display.
func (s *Sheet) Attribute(a Attribute) int {
	if v, ok := s.Actor.Attribute(strings.ToLower(string(a))); ok {
		return v
	}
	return 0
}

// Modifiers lists the active buff modifiers as "reason (+n%)" strings,
// sorted by reason.
func (s *Sheet) Modifiers() []string {
	mods := s.Actor.GetCombatModifiers()
	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Reason < mods[j].Reason })
	out := make([]string, 0, len(mods))
	for _, mod := range mods {
		out = append(out, fmt.Sprintf("%s (%+d%%)", mod.Reason, mod.Value))
	}
	return out
}
