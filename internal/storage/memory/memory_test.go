package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func seedPlayer(t *testing.T, s *Store, id string) *game.Player {
	t.Helper()
	p := game.NewPlayer(id, "Tester", now)
	require.NoError(t, s.CreatePlayer(context.Background(), &p))
	return &p
}

func TestStore_PlayerCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetPlayer(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	p := seedPlayer(t, s, "p1")
	assert.ErrorIs(t, s.CreatePlayer(ctx, p), storage.ErrConflict)

	p.Gold = 40
	require.NoError(t, s.SavePlayer(ctx, p))

	got, err := s.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Gold)

	got.Gold = 999
	again, _ := s.GetPlayer(ctx, "p1")
	assert.Equal(t, 40, again.Gold, "reads must return copies")

	ghost := game.NewPlayer("ghost", "", now)
	assert.ErrorIs(t, s.SavePlayer(ctx, &ghost), storage.ErrNotFound)
}

func TestStore_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedPlayer(t, s, "p1")

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.GetPlayerForUpdate(ctx, "p1")
		require.NoError(t, err)
		p.Gold = 500
		require.NoError(t, s.SavePlayer(ctx, p))
		require.NoError(t, s.AddQuest(ctx, &game.Quest{ID: "q1", PlayerID: "p1", Keywords: []string{"run"}}))
		require.NoError(t, s.AddItem(ctx, "p1", "potion", 1))

		// a nested failure returned by the outer call rolls back everything
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	p, _ := s.GetPlayer(ctx, "p1")
	assert.Equal(t, 0, p.Gold)
	_, err = s.GetQuest(ctx, "q1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	inv, _ := s.ListInventory(ctx, "p1")
	assert.Empty(t, inv)
}

func TestStore_NestedRunInTxIsASavepoint(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedPlayer(t, s, "p1")
	rv := game.NewRival("p1", now)
	require.NoError(t, s.SaveRival(ctx, &rv))

	boom := errors.New("boom")
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context) error {
		nested := s.RunInTx(ctx, func(ctx context.Context) error {
			got, err := s.GetRival(ctx, "p1")
			require.NoError(t, err)
			got.XP += 400
			require.NoError(t, s.SaveRival(ctx, got))
			return boom
		})
		require.ErrorIs(t, nested, boom)

		p, err := s.GetPlayerForUpdate(ctx, "p1")
		require.NoError(t, err)
		p.Gold = 25
		return s.SavePlayer(ctx, p)
	}))

	got, err := s.GetRival(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, rv.XP, got.XP, "nested writes are rolled back")
	p, _ := s.GetPlayer(ctx, "p1")
	assert.Equal(t, 25, p.Gold, "outer writes commit")
}

func TestStore_RunInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedPlayer(t, s, "p1")

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.GetPlayer(ctx, "p1")
		if err != nil {
			return err
		}
		p.XP = 10
		return s.SavePlayer(ctx, p)
	}))

	p, _ := s.GetPlayer(ctx, "p1")
	assert.Equal(t, 10, p.XP)
}

func TestStore_QuestsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	today := game.DateOf(now)
	yesterday := today.AddDate(0, 0, -1)

	require.NoError(t, s.AddQuest(ctx, &game.Quest{ID: "b", PlayerID: "p1", Status: game.QuestPending, ScheduledDate: today}))
	require.NoError(t, s.AddQuest(ctx, &game.Quest{ID: "a", PlayerID: "p1", Status: game.QuestDone, ScheduledDate: today}))
	require.NoError(t, s.AddQuest(ctx, &game.Quest{ID: "c", PlayerID: "p1", Status: game.QuestActive, ScheduledDate: yesterday}))
	require.NoError(t, s.AddQuest(ctx, &game.Quest{ID: "d", PlayerID: "p2", Status: game.QuestActive, ScheduledDate: today}))

	all, err := s.ListQuests(ctx, "p1", storage.QuestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	open, _ := s.ListQuests(ctx, "p1", storage.QuestFilter{
		Date:     &today,
		Statuses: []game.QuestStatus{game.QuestPending, game.QuestActive},
	})
	require.Len(t, open, 1)
	assert.Equal(t, "b", open[0].ID)

	require.NoError(t, s.DeleteQuest(ctx, "b"))
	assert.ErrorIs(t, s.DeleteQuest(ctx, "b"), storage.ErrNotFound)
}

func TestStore_OneActiveBossAndDungeon(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveBoss(ctx, &game.Boss{ID: "b1", PlayerID: "p1", Status: game.BossActive, HP: 500}))
	assert.ErrorIs(t, s.SaveBoss(ctx, &game.Boss{ID: "b2", PlayerID: "p1", Status: game.BossActive}), storage.ErrConflict)

	boss, err := s.GetActiveBoss(ctx, "p1")
	require.NoError(t, err)
	boss.Damage(500)
	require.NoError(t, s.SaveBoss(ctx, boss))
	_, err = s.GetActiveBoss(ctx, "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	d := &game.Dungeon{ID: "d1", PlayerID: "p1", Status: game.DungeonActive, Stages: []game.Stage{{Index: 0}}}
	require.NoError(t, s.SaveDungeon(ctx, d))
	d.Stages[0].Complete = true
	got, _ := s.GetActiveDungeon(ctx, "p1")
	assert.False(t, got.Stages[0].Complete, "stored stages are copied")
	assert.ErrorIs(t, s.SaveDungeon(ctx, &game.Dungeon{ID: "d2", PlayerID: "p1", Status: game.DungeonActive}), storage.ErrConflict)
}

func TestStore_Inventory(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.ConsumeItem(ctx, "p1", "potion"), storage.ErrNotFound)
	require.NoError(t, s.AddItem(ctx, "p1", "potion", 2))
	require.NoError(t, s.AddItem(ctx, "p1", "scroll", 1))
	require.NoError(t, s.ConsumeItem(ctx, "p1", "scroll"))

	inv, _ := s.ListInventory(ctx, "p1")
	assert.Equal(t, []game.InventoryItem{{PlayerID: "p1", ItemID: "potion", Quantity: 2}}, inv)
	assert.Error(t, s.AddItem(ctx, "p1", "potion", 0))
}

func TestStore_OutcomesAreKeyedByDate(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveOutcome(ctx, &game.DailyOutcome{PlayerID: "p1", Date: now, Done: true}))
	require.NoError(t, s.SaveOutcome(ctx, &game.DailyOutcome{PlayerID: "p1", Date: now.Add(3 * time.Hour), Done: false}))
	require.NoError(t, s.SaveOutcome(ctx, &game.DailyOutcome{PlayerID: "p1", Date: now, HabitTag: "sleep", Done: true}))

	global, err := s.GetOutcome(ctx, "p1", game.DateOf(now), "")
	require.NoError(t, err)
	assert.False(t, global.Done, "same day saves overwrite")
	assert.True(t, global.IsGlobal)

	habit, err := s.GetOutcome(ctx, "p1", now, "sleep")
	require.NoError(t, err)
	assert.False(t, habit.IsGlobal)

	_, err = s.GetOutcome(ctx, "p1", now.AddDate(0, 0, -1), "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_BuffsAndLogs(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.AddBuff(ctx, &game.Buff{ID: "1", PlayerID: "p1", Target: game.STR, Multiplier: 0.8, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.AddBuff(ctx, &game.Buff{ID: "2", PlayerID: "p1", Target: game.ALL, Multiplier: 2, ExpiresAt: now.Add(-time.Hour)}))
	buffs, _ := s.ListActiveBuffs(ctx, "p1", now)
	require.Len(t, buffs, 1)
	assert.Equal(t, "1", buffs[0].ID)

	for i, msg := range []string{"a", "b", "c"} {
		require.NoError(t, s.AppendLog(ctx, &chat.LogEntry{ID: msg, PlayerID: "p1", Content: msg, CreatedAt: now.Add(time.Duration(i) * time.Minute)}))
	}
	logs, _ := s.RecentLogs(ctx, "p1", 2)
	require.Len(t, logs, 2)
	assert.Equal(t, "b", logs[0].Content)
	assert.Equal(t, "c", logs[1].Content)
}

func TestStore_InactivePlayers(t *testing.T) {
	ctx := context.Background()
	s := New()
	p1 := seedPlayer(t, s, "p1")
	p1.LastActiveDate = game.DateOf(now).AddDate(0, 0, -3)
	require.NoError(t, s.SavePlayer(ctx, p1))
	seedPlayer(t, s, "p2")

	out, err := s.ListPlayersInactiveSince(ctx, game.DateOf(now))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].ID)
}
