package game

import "time"

// HabitTier is the discrete difficulty step T0..T3 of a habit.
type HabitTier int

const (
	T0 HabitTier = iota
	T1
	T2
	T3
)

func (t HabitTier) String() string {
	switch t {
	case T0:
		return "T0"
	case T1:
		return "T1"
	case T2:
		return "T2"
	case T3:
		return "T3"
	}
	return "T?"
}

// Zone buckets a habit's success estimate.
type Zone string

const (
	ZoneGreen  Zone = "GREEN"
	ZoneYellow Zone = "YELLOW"
	ZoneRed    Zone = "RED"
)

type HabitState struct {
	PlayerID        string     `json:"player_id"`
	Tag             string     `json:"habit_tag"`
	Name            string     `json:"name"`
	Attribute       Attribute  `json:"attribute"`
	Tier            HabitTier  `json:"tier"`
	EMA             float64    `json:"ema_p"`
	LastZone        Zone       `json:"last_zone"`
	ZoneStreakDays  int        `json:"zone_streak_days"`
	LastOutcomeDate *time.Time `json:"last_outcome_date,omitempty"`
	LastSweepDate   *time.Time `json:"last_sweep_date,omitempty"`
	Active          bool       `json:"active"`
}

// DailyOutcome with an empty HabitTag is the global outcome for the day.
type DailyOutcome struct {
	PlayerID   string    `json:"player_id"`
	Date       time.Time `json:"date"`
	HabitTag   string    `json:"habit_tag,omitempty"`
	IsGlobal   bool      `json:"is_global"`
	Done       bool      `json:"done"`
	RescueUsed bool      `json:"rescue_used"`
}

type CompletionSource string

const (
	SourceFastPath CompletionSource = "FAST_PATH"
	SourceRouter   CompletionSource = "ROUTER"
	SourceQuest    CompletionSource = "QUEST"
	SourcePassive  CompletionSource = "PASSIVE"
	SourceRescue   CompletionSource = "RESCUE"
)

// CompletionLog is write-once.
type CompletionLog struct {
	ID              string           `json:"id"`
	PlayerID        string           `json:"player_id"`
	QuestID         string           `json:"quest_id,omitempty"`
	HabitTag        string           `json:"habit_tag,omitempty"`
	TierUsed        Tier             `json:"tier_used"`
	Source          CompletionSource `json:"source"`
	XPGained        int              `json:"xp_gained"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
	CompletedAt     time.Time        `json:"completed_at"`
}
