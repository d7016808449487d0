package game

import "time"

const RivalName = "Viper"

// Rival is the per-player antagonist. Level and XP only grow.
type Rival struct {
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	XP        int       `json:"xp"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewRival(playerID string, now time.Time) Rival {
	return Rival{PlayerID: playerID, Name: RivalName, Level: 1, UpdatedAt: now}
}

type BossStatus string

const (
	BossActive   BossStatus = "ACTIVE"
	BossDefeated BossStatus = "DEFEATED"
	BossEscaped  BossStatus = "ESCAPED"
)

type Boss struct {
	ID        string     `json:"id"`
	PlayerID  string     `json:"player_id"`
	Name      string     `json:"name"`
	HP        int        `json:"hp"`
	MaxHP     int        `json:"max_hp"`
	Level     int        `json:"level"`
	Status    BossStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Damage reduces boss HP and returns true when the hit defeats it.
func (b *Boss) Damage(amount int) bool {
	if b.Status != BossActive || amount <= 0 {
		return false
	}
	b.HP -= amount
	if b.HP <= 0 {
		b.HP = 0
		b.Status = BossDefeated
		return true
	}
	return false
}

type DungeonType string

const (
	DungeonRescue    DungeonType = "RESCUE"
	DungeonChallenge DungeonType = "CHALLENGE"
)

type DungeonStatus string

const (
	DungeonActive DungeonStatus = "ACTIVE"
	DungeonDone   DungeonStatus = "DONE"
	DungeonFailed DungeonStatus = "FAILED"
)

type Stage struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Complete bool   `json:"is_complete"`
}

type Dungeon struct {
	ID        string        `json:"id"`
	PlayerID  string        `json:"player_id"`
	Type      DungeonType   `json:"type"`
	Status    DungeonStatus `json:"status"`
	Deadline  time.Time     `json:"deadline"`
	XPReward  int           `json:"xp_reward"`
	Stages    []Stage       `json:"stages"`
	CreatedAt time.Time     `json:"created_at"`
}

// NextStage returns the index into Stages of the first incomplete stage, or -1.
func (d Dungeon) NextStage() int {
	for i, s := range d.Stages {
		if !s.Complete {
			return i
		}
	}
	return -1
}

// CompleteNextStage marks the next stage complete and reports whether the
// dungeon is now cleared.
func (d *Dungeon) CompleteNextStage() (Stage, bool) {
	i := d.NextStage()
	if i < 0 {
		return Stage{}, true
	}
	stages := make([]Stage, len(d.Stages))
	copy(stages, d.Stages)
	stages[i].Complete = true
	d.Stages = stages
	cleared := d.NextStage() < 0
	if cleared {
		d.Status = DungeonDone
	}
	return stages[i], cleared
}
