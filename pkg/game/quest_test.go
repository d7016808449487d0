package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuest_Transition(t *testing.T) {
	tests := []struct {
		from    QuestStatus
		to      QuestStatus
		allowed bool
	}{
		{QuestPending, QuestActive, true},
		{QuestPending, QuestDone, false},
		{QuestActive, QuestDone, true},
		{QuestActive, QuestPaused, true},
		{QuestPaused, QuestActive, true},
		{QuestActive, QuestAbandoned, true},
		{QuestDone, QuestActive, false},
		{QuestDone, QuestDone, false},
		{QuestAbandoned, QuestActive, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			q := Quest{Title: "晨跑", Status: tt.from}
			err := q.Transition(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, q.Status)
				return
			}
			require.Error(t, err)
			assert.True(t, IsKind(err, ErrInvalidState))
			assert.Equal(t, tt.from, q.Status)
		})
	}
}

func TestDungeon_CompleteNextStage(t *testing.T) {
	d := Dungeon{Status: DungeonActive, Stages: []Stage{{Index: 0}, {Index: 1}}}
	original := d.Stages

	stage, cleared := d.CompleteNextStage()
	assert.Equal(t, 0, stage.Index)
	assert.False(t, cleared)
	assert.False(t, original[0].Complete, "stages are copied on write")

	_, cleared = d.CompleteNextStage()
	assert.True(t, cleared)
	assert.Equal(t, DungeonDone, d.Status)
	assert.Equal(t, -1, d.NextStage())
}

func TestBoss_Damage(t *testing.T) {
	b := Boss{HP: 120, MaxHP: 500, Status: BossActive}
	assert.False(t, b.Damage(50))
	assert.Equal(t, 70, b.HP)
	assert.True(t, b.Damage(100))
	assert.Equal(t, 0, b.HP)
	assert.Equal(t, BossDefeated, b.Status)
	assert.False(t, b.Damage(50), "defeated boss takes no damage")
}
