// Package flow keeps each habit inside its difficulty band. It tracks an
// exponential moving average of success per habit, buckets it into
// zones, and nudges a discrete tier after a zone has held for two days.
package flow

import (
	"time"

	"github.com/jwebster45206/lifequest/pkg/game"
)

const (
	DefaultAlpha          = 0.25
	DefaultGreenThreshold = 0.85
	DefaultRedThreshold   = 0.60

	// InitialEMA places a new habit in the YELLOW zone.
	InitialEMA = 0.70

	// zoneStreakToShift is the number of consecutive days a zone must
	// hold before the tier moves.
	zoneStreakToShift = 2

	churnEMAThreshold = 0.4
	churnInactiveDays = 2

	minLootMultiplier = 0.5
	maxLootMultiplier = 2.0
)

type Tone string

const (
	ToneEncouraging Tone = "encouraging"
	ToneNeutral     Tone = "neutral"
	ToneChallenging Tone = "challenging"
	ToneHarsh       Tone = "harsh"
)

type ChurnRisk string

const (
	ChurnLow  ChurnRisk = "LOW"
	ChurnHigh ChurnRisk = "HIGH"
)

type Config struct {
	Alpha          float64
	GreenThreshold float64
	RedThreshold   float64

	// EngagementOverride boosts loot and softens tone when churn risk is
	// high, regardless of performance.
	EngagementOverride       bool
	EngagementLootMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		Alpha:                    DefaultAlpha,
		GreenThreshold:           DefaultGreenThreshold,
		RedThreshold:             DefaultRedThreshold,
		EngagementOverride:       true,
		EngagementLootMultiplier: 1.5,
	}
}

// Controller is stateless apart from its configuration; habit state is
// passed in and mutated in place.
type Controller struct {
	cfg Config
}

func New(cfg Config) *Controller {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.GreenThreshold <= 0 {
		cfg.GreenThreshold = DefaultGreenThreshold
	}
	if cfg.RedThreshold <= 0 {
		cfg.RedThreshold = DefaultRedThreshold
	}
	return &Controller{cfg: cfg}
}

func (c *Controller) Config() Config { return c.cfg }

// NewHabit seeds a habit at T0 in the YELLOW zone.
func NewHabit(playerID, tag, name string, attr game.Attribute) game.HabitState {
	return game.HabitState{
		PlayerID:  playerID,
		Tag:       tag,
		Name:      name,
		Attribute: attr,
		Tier:      game.T0,
		EMA:       InitialEMA,
		LastZone:  game.ZoneYellow,
		Active:    true,
	}
}

// Zone buckets an EMA value.
func (c *Controller) Zone(ema float64) game.Zone {
	switch {
	case ema >= c.cfg.GreenThreshold:
		return game.ZoneGreen
	case ema < c.cfg.RedThreshold:
		return game.ZoneRed
	default:
		return game.ZoneYellow
	}
}

// Transition reports what an update did to a habit.
type Transition struct {
	Zone     game.Zone
	FromTier game.HabitTier
	ToTier   game.HabitTier
	EMA      float64
}

func (t Transition) Shifted() bool { return t.FromTier != t.ToTier }

// RecordCompletion pulls the EMA toward 1.
func (c *Controller) RecordCompletion(h *game.HabitState, at time.Time) Transition {
	return c.record(h, 1, at)
}

// RecordMiss pulls the EMA toward 0 for a day that ended without the habit.
func (c *Controller) RecordMiss(h *game.HabitState, day time.Time) Transition {
	return c.record(h, 0, day)
}

func (c *Controller) record(h *game.HabitState, target float64, at time.Time) Transition {
	day := game.DateOf(at)
	tr := Transition{FromTier: h.Tier}

	h.EMA = clamp01(c.cfg.Alpha*target + (1-c.cfg.Alpha)*h.EMA)
	zone := c.Zone(h.EMA)

	newDay := h.LastOutcomeDate == nil || day.After(*h.LastOutcomeDate)
	switch {
	case zone != h.LastZone:
		h.ZoneStreakDays = 1
	case newDay:
		h.ZoneStreakDays++
	}
	h.LastZone = zone

	// At most one step per calendar day: repeats within the day and days
	// already stepped by a sweep only move the estimate.
	sweptToday := h.LastSweepDate != nil && h.LastSweepDate.Equal(day)
	if newDay && !sweptToday && h.ZoneStreakDays >= zoneStreakToShift {
		c.shift(h, zone)
	}
	if newDay {
		h.LastOutcomeDate = &day
	}

	tr.Zone = zone
	tr.ToTier = h.Tier
	tr.EMA = h.EMA
	return tr
}

func (c *Controller) shift(h *game.HabitState, zone game.Zone) {
	switch {
	case zone == game.ZoneGreen && h.Tier < game.T3:
		h.Tier++
		h.ZoneStreakDays = 0
	case zone == game.ZoneRed && h.Tier > game.T0:
		h.Tier--
		h.ZoneStreakDays = 0
	}
}

// Sweep handles a gap of more than one day since the last outcome by
// forcing the habit into RED and dropping one tier. It applies at most
// once per day and reports whether it did anything.
func (c *Controller) Sweep(h *game.HabitState, now time.Time) (Transition, bool) {
	today := game.DateOf(now)
	tr := Transition{FromTier: h.Tier, ToTier: h.Tier, Zone: h.LastZone, EMA: h.EMA}

	if h.LastOutcomeDate == nil || game.DaysBetween(*h.LastOutcomeDate, today) <= 1 {
		return tr, false
	}
	if h.LastSweepDate != nil && h.LastSweepDate.Equal(today) {
		return tr, false
	}

	if h.LastZone == game.ZoneRed {
		h.ZoneStreakDays++
	} else {
		h.ZoneStreakDays = 1
	}
	h.LastZone = game.ZoneRed
	if h.Tier > game.T0 {
		h.Tier--
	}
	h.LastSweepDate = &today

	tr.Zone = game.ZoneRed
	tr.ToTier = h.Tier
	return tr, true
}

// State is the recommendation handed to the router and quest engine.
type State struct {
	Tier               game.Tier `json:"difficulty_tier"`
	Tone               Tone      `json:"narrative_tone"`
	LootMultiplier     float64   `json:"loot_multiplier"`
	Zone               game.Zone `json:"zone"`
	ChurnRisk          ChurnRisk `json:"churn_risk"`
	EngagementOverride bool      `json:"engagement_override"`
}

var tierSuggestions = map[game.HabitTier]game.Tier{
	game.T0: game.TierE,
	game.T1: game.TierD,
	game.T2: game.TierC,
	game.T3: game.TierB,
}

// NextFlowState summarises the player's active habits into a single
// recommendation. With no habits the player is treated as YELLOW at T0.
func (c *Controller) NextFlowState(habits []game.HabitState, lastActive, now time.Time) State {
	var (
		sumEMA  float64
		sumTier int
		count   int
	)
	for _, h := range habits {
		if !h.Active {
			continue
		}
		sumEMA += h.EMA
		sumTier += int(h.Tier)
		count++
	}

	meanEMA := InitialEMA
	tier := game.T0
	if count > 0 {
		meanEMA = sumEMA / float64(count)
		tier = game.HabitTier(sumTier / count)
	}

	zone := c.Zone(meanEMA)
	st := State{
		Tier:           tierSuggestions[tier],
		Zone:           zone,
		LootMultiplier: 1.0,
		ChurnRisk:      ChurnLow,
	}

	switch zone {
	case game.ZoneGreen:
		st.Tone = ToneChallenging
		if tier == game.T3 {
			st.Tone = ToneHarsh
		}
	case game.ZoneRed:
		st.Tone = ToneEncouraging
		st.LootMultiplier = 1.2
	default:
		st.Tone = ToneNeutral
	}

	inactive := !lastActive.IsZero() && game.DaysBetween(lastActive, now) > churnInactiveDays
	if (count > 0 && meanEMA < churnEMAThreshold) || inactive {
		st.ChurnRisk = ChurnHigh
	}

	if st.ChurnRisk == ChurnHigh && c.cfg.EngagementOverride {
		st.EngagementOverride = true
		st.Tone = ToneEncouraging
		if c.cfg.EngagementLootMultiplier > st.LootMultiplier {
			st.LootMultiplier = c.cfg.EngagementLootMultiplier
		}
	}

	st.LootMultiplier = clamp(st.LootMultiplier, minLootMultiplier, maxLootMultiplier)
	return st
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
