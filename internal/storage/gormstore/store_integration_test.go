package gormstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/game"
)

func requireStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LIFEQUEST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LIFEQUEST_TEST_DATABASE_URL is required for integration test")
	}
	s, err := Open(dsn, logger.Discard())
	require.NoError(t, err)
	_, err = ApplyMigrations(context.Background(), s.DB(), Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPlayer(t *testing.T, s *Store) *game.Player {
	t.Helper()
	p := game.NewPlayer("it-"+uuid.NewString(), "Integration", time.Now())
	require.NoError(t, s.CreatePlayer(context.Background(), &p))
	return &p
}

func TestStore_PlayerRoundTrip(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	p := newPlayer(t, s)

	p.AttrXP.STR = 250
	p.Attrs.STR = 3
	p.Gold = 120
	p.Vitals.SetHP(0, time.Now())
	require.NoError(t, s.SavePlayer(ctx, p))

	got, err := s.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 250, got.AttrXP.STR)
	assert.Equal(t, 120, got.Gold)
	assert.Equal(t, game.HPHollowed, got.Vitals.Status)
	assert.NotNil(t, got.Vitals.HollowedAt)

	_, err = s.GetPlayer(ctx, "it-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_TxRollbackAndLocking(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	p := newPlayer(t, s)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.GetPlayerForUpdate(ctx, p.ID)
		require.NoError(t, err)
		locked.Gold = 999
		require.NoError(t, s.SavePlayer(ctx, locked))
		require.NoError(t, s.AddItem(ctx, p.ID, "potion_small", 1))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, _ := s.GetPlayer(ctx, p.ID)
	assert.Equal(t, 0, got.Gold)
	inv, _ := s.ListInventory(ctx, p.ID)
	assert.Empty(t, inv)
}

func TestStore_QuestsAndInventory(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	p := newPlayer(t, s)
	today := game.DateOf(time.Now())

	q := &game.Quest{
		ID: uuid.NewString(), PlayerID: p.ID, Title: "晨跑", Tier: game.TierD,
		Type: game.QuestSide, Status: game.QuestPending, ScheduledDate: today,
		Verification: game.VerifyText, Keywords: []string{"run"}, CreatedAt: time.Now(),
	}
	require.NoError(t, s.AddQuest(ctx, q))
	q.Status = game.QuestActive
	require.NoError(t, s.SaveQuest(ctx, q))

	list, err := s.ListQuests(ctx, p.ID, storage.QuestFilter{Date: &today, Statuses: []game.QuestStatus{game.QuestActive}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"run"}, list[0].Keywords)

	require.NoError(t, s.AddItem(ctx, p.ID, "potion_small", 2))
	require.NoError(t, s.AddItem(ctx, p.ID, "potion_small", 1))
	require.NoError(t, s.ConsumeItem(ctx, p.ID, "potion_small"))
	inv, _ := s.ListInventory(ctx, p.ID)
	require.Len(t, inv, 1)
	assert.Equal(t, 2, inv[0].Quantity)
	assert.ErrorIs(t, s.ConsumeItem(ctx, p.ID, "nothing"), storage.ErrNotFound)
}

func TestStore_OneActiveBoss(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	p := newPlayer(t, s)

	b1 := &game.Boss{ID: uuid.NewString(), PlayerID: p.ID, Name: game.RivalName, HP: 500, MaxHP: 500, Level: 3, Status: game.BossActive, CreatedAt: time.Now()}
	require.NoError(t, s.SaveBoss(ctx, b1))
	b2 := *b1
	b2.ID = uuid.NewString()
	assert.ErrorIs(t, s.SaveBoss(ctx, &b2), storage.ErrConflict)
}

func TestStore_NestedTxRollsBackToSavepoint(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	p := newPlayer(t, s)
	b1 := &game.Boss{ID: uuid.NewString(), PlayerID: p.ID, Name: game.RivalName, HP: 500, MaxHP: 500, Level: 1, Status: game.BossActive, CreatedAt: time.Now()}
	require.NoError(t, s.SaveBoss(ctx, b1))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context) error {
		nested := s.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, s.AddItem(ctx, p.ID, "potion_small", 1))
			b2 := *b1
			b2.ID = uuid.NewString()
			// the failed statement must not poison the outer transaction
			return s.SaveBoss(ctx, &b2)
		})
		require.ErrorIs(t, nested, storage.ErrConflict)

		locked, err := s.GetPlayerForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		locked.Gold = 77
		return s.SavePlayer(ctx, locked)
	}))

	got, _ := s.GetPlayer(ctx, p.ID)
	assert.Equal(t, 77, got.Gold)
	inv, _ := s.ListInventory(ctx, p.ID)
	assert.Empty(t, inv)
}
