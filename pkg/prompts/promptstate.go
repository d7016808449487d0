package prompts

import (
	"time"

	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// PromptState is a reduced player snapshot for LLM prompts. It carries
// what a narrator needs to pitch the next reply and nothing that would let
// the model invent rewards.
type PromptState struct {
	Name          string            `json:"name,omitempty"`
	Level         int               `json:"level"`
	Streak        int               `json:"streak_days"`
	HP            int               `json:"hp"`
	HPStatus      game.HPStatus     `json:"hp_status"`
	Gold          int               `json:"gold"`
	Attributes    map[string]int    `json:"attributes"`
	Rival         *RivalState       `json:"rival,omitempty"`
	Buffs         []string          `json:"active_buffs,omitempty"`
	Habits        []HabitPromptView `json:"habits,omitempty"`
	SuggestedTier game.Tier         `json:"suggested_tier,omitempty"`
	Tone          flow.Tone         `json:"tone,omitempty"`
}

type RivalState struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type HabitPromptView struct {
	Tag  string    `json:"tag"`
	Name string    `json:"name"`
	Tier string    `json:"tier"`
	Zone game.Zone `json:"zone"`
}

// ToPromptState builds the snapshot. rival and fs may be nil.
func ToPromptState(p *game.Player, rival *game.Rival, buffs []game.Buff, habits []game.HabitState, fs *flow.State, now time.Time) *PromptState {
	ps := &PromptState{
		Name:       p.DisplayName,
		Level:      p.Level,
		Streak:     p.StreakCount,
		HP:         p.Vitals.HP,
		HPStatus:   p.Vitals.Status,
		Gold:       p.Gold,
		Attributes: p.Attrs.ToMap(),
		Habits:     filterHabits(habits),
	}
	if rival != nil {
		ps.Rival = &RivalState{Name: rival.Name, Level: rival.Level}
	}
	for _, b := range game.ActiveBuffs(buffs, now) {
		ps.Buffs = append(ps.Buffs, buffLabel(b))
	}
	if fs != nil {
		ps.SuggestedTier = fs.Tier
		ps.Tone = fs.Tone
	}
	return ps
}

// filterHabits keeps active habits only.
func filterHabits(habits []game.HabitState) []HabitPromptView {
	var out []HabitPromptView
	for _, h := range habits {
		if !h.Active {
			continue
		}
		out = append(out, HabitPromptView{Tag: h.Tag, Name: h.Name, Tier: h.Tier.String(), Zone: h.LastZone})
	}
	return out
}

func buffLabel(b game.Buff) string {
	label := string(b.Target) + " x" + trimFloat(b.Multiplier)
	if b.Source != "" {
		label = b.Source + ": " + label
	}
	return label
}
