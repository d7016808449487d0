package game

import "time"

// HPStatus is derived from hit points; RECOVERING is the transitional
// state after a player leaves HOLLOWED.
type HPStatus string

const (
	HPHealthy    HPStatus = "HEALTHY"
	HPCritical   HPStatus = "CRITICAL"
	HPHollowed   HPStatus = "HOLLOWED"
	HPRecovering HPStatus = "RECOVERING"
)

const (
	DefaultMaxHP    = 100
	CriticalHPLimit = 30
	RescueRestoreHP = 20
)

type Vitals struct {
	HP         int        `json:"hp"`
	MaxHP      int        `json:"max_hp"`
	Status     HPStatus   `json:"hp_status"`
	HollowedAt *time.Time `json:"hollowed_at,omitempty"`
}

// DeriveHPStatus computes the status for hp given the previous status.
func DeriveHPStatus(hp int, previous HPStatus) HPStatus {
	switch {
	case hp <= 0:
		return HPHollowed
	case hp >= CriticalHPLimit:
		return HPHealthy
	case previous == HPHollowed || previous == HPRecovering:
		return HPRecovering
	default:
		return HPCritical
	}
}

// SetHP clamps hp into [0, MaxHP] and refreshes the derived status.
func (v *Vitals) SetHP(hp int, now time.Time) {
	if hp < 0 {
		hp = 0
	}
	if hp > v.MaxHP {
		hp = v.MaxHP
	}
	previous := v.Status
	v.HP = hp
	v.Status = DeriveHPStatus(hp, previous)
	switch {
	case v.Status == HPHollowed && previous != HPHollowed:
		at := now
		v.HollowedAt = &at
	case v.Status != HPHollowed:
		v.HollowedAt = nil
	}
}

// Player is the aggregate root for everything a user owns.
type Player struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	Level          int       `json:"level"`
	Attrs          Stats     `json:"attributes"`
	AttrXP         Stats     `json:"attribute_xp"`
	XP             int       `json:"xp"`
	Gold           int       `json:"gold"`
	Vitals         Vitals    `json:"vitals"`
	StreakCount    int       `json:"streak_count"`
	LastActiveDate time.Time `json:"last_active_date"`
	TalentPoints   int       `json:"talent_points"`
	PushEnabled    bool      `json:"push_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewPlayer returns a level 1 player with full health.
func NewPlayer(id, name string, now time.Time) Player {
	p := Player{
		ID:             id,
		DisplayName:    name,
		Attrs:          Stats{STR: 1, INT: 1, VIT: 1, WIS: 1, CHA: 1},
		Vitals:         Vitals{HP: DefaultMaxHP, MaxHP: DefaultMaxHP, Status: HPHealthy},
		LastActiveDate: DateOf(now),
		PushEnabled:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.Level = GlobalLevel(p.Attrs)
	return p
}

// AttributeLevel is 1 + floor(xp/100).
func AttributeLevel(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/100
}

// GlobalLevel is the floored mean of the five attribute levels, never below 1.
func GlobalLevel(levels Stats) int {
	lvl := levels.Sum() / len(Attributes)
	if lvl < 1 {
		return 1
	}
	return lvl
}

func (p Player) IsHollowed() bool {
	return p.Vitals.Status == HPHollowed || p.Vitals.HP <= 0
}

// DateOf truncates t to midnight of its calendar day, expressed in UTC so
// that subtraction between dates yields whole days.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
