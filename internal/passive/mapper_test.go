package passive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/pkg/game"
)

func TestMap(t *testing.T) {
	m := NewMapper(content.MustLoad())

	tests := []struct {
		name       string
		ev         game.PassiveEvent
		wantText   string
		wantImpact Impact
		wantReward bool
	}{
		{
			name:       "sleep",
			ev:         game.PassiveEvent{EventType: "sleep_detected", State: "8h"},
			wantText:   "sleep 8h",
			wantImpact: ImpactPositive,
			wantReward: true,
		},
		{
			name:       "event type is case folded",
			ev:         game.PassiveEvent{EventType: " Workout_Completed ", State: "45min"},
			wantText:   "workout 45min",
			wantImpact: ImpactPositive,
			wantReward: true,
		},
		{
			name:       "negative",
			ev:         game.PassiveEvent{EventType: "screen_time_exceeded", State: "5h"},
			wantText:   "我今天滑手機太久了（5h）",
			wantImpact: ImpactNegative,
		},
		{
			name:       "entity substitution",
			ev:         game.PassiveEvent{EventType: "door_opened", EntityID: "front_door"},
			wantText:   "front_door 打開了",
			wantImpact: ImpactNeutral,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := m.Map(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, rec.Text)
			assert.Equal(t, tt.wantImpact, rec.Impact)
			assert.Equal(t, tt.wantReward, rec.Rewardable())
			assert.NotEmpty(t, rec.Category)
		})
	}
}

func TestMap_Unknown(t *testing.T) {
	m := NewMapper(content.MustLoad())

	_, err := m.Map(game.PassiveEvent{EventType: "toaster_popped"})
	assert.Equal(t, game.ErrInvalidArgument, game.KindOf(err))

	_, err = m.Map(game.PassiveEvent{})
	assert.Equal(t, game.ErrInvalidArgument, game.KindOf(err))
}

func TestEventTypes(t *testing.T) {
	types := NewMapper(content.MustLoad()).EventTypes()
	assert.Contains(t, types, "sleep_detected")
	assert.IsIncreasing(t, types)
}
