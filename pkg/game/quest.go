package game

import (
	"fmt"
	"time"
)

type QuestType string

const (
	QuestMain       QuestType = "MAIN"
	QuestSide       QuestType = "SIDE"
	QuestRedemption QuestType = "REDEMPTION"
)

type QuestStatus string

const (
	QuestPending   QuestStatus = "PENDING"
	QuestActive    QuestStatus = "ACTIVE"
	QuestDone      QuestStatus = "DONE"
	QuestPaused    QuestStatus = "PAUSED"
	QuestAbandoned QuestStatus = "ABANDONED"
)

type VerificationType string

const (
	VerifyText     VerificationType = "TEXT"
	VerifyImage    VerificationType = "IMAGE"
	VerifyLocation VerificationType = "LOCATION"
	VerifyNone     VerificationType = "NONE"
)

type Quest struct {
	ID            string           `json:"id"`
	PlayerID      string           `json:"player_id"`
	GoalID        string           `json:"goal_id,omitempty"`
	HabitTag      string           `json:"habit_tag,omitempty"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Tier          Tier             `json:"difficulty_tier"`
	Attribute     Attribute        `json:"attribute"`
	XPReward      int              `json:"xp_reward"`
	Type          QuestType        `json:"quest_type"`
	Status        QuestStatus      `json:"status"`
	ScheduledDate time.Time        `json:"scheduled_date"`
	Verification  VerificationType `json:"verification_type"`
	Keywords      []string         `json:"keywords,omitempty"`
	Rare          bool             `json:"rare,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

var questTransitions = map[QuestStatus][]QuestStatus{
	QuestPending: {QuestActive, QuestPaused, QuestAbandoned},
	QuestActive:  {QuestDone, QuestPaused, QuestAbandoned},
	QuestPaused:  {QuestActive, QuestAbandoned},
}

// CanTransition reports whether the quest state machine allows from -> to.
// DONE and ABANDONED are terminal.
func CanTransition(from, to QuestStatus) bool {
	for _, next := range questTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the quest to status or returns an InvalidState error.
func (q *Quest) Transition(to QuestStatus) error {
	if !CanTransition(q.Status, to) {
		return NewError(ErrInvalidState, "quest.transition",
			fmt.Sprintf("quest %q cannot move from %s to %s", q.Title, q.Status, to))
	}
	q.Status = to
	return nil
}

// IsOpen reports whether the quest can still be worked on.
func (q Quest) IsOpen() bool {
	return q.Status == QuestPending || q.Status == QuestActive
}

type GoalStatus string

const (
	GoalActive   GoalStatus = "ACTIVE"
	GoalArchived GoalStatus = "ARCHIVED"
)

// Goal owns quests created from an LLM decomposition. Decomposition keeps
// the raw plan JSON for later review.
type Goal struct {
	ID            string     `json:"id"`
	PlayerID      string     `json:"player_id"`
	Title         string     `json:"title"`
	Status        GoalStatus `json:"status"`
	Decomposition string     `json:"decomposition,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
