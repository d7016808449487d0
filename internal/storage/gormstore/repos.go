package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// Players

func (s *Store) GetPlayer(ctx context.Context, id string) (*game.Player, error) {
	var m playerModel
	if err := s.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// GetPlayerForUpdate issues SELECT ... FOR UPDATE. Outside a transaction
// the lock is released immediately.
func (s *Store) GetPlayerForUpdate(ctx context.Context, id string) (*game.Player, error) {
	var m playerModel
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func (s *Store) CreatePlayer(ctx context.Context, p *game.Player) error {
	m := toPlayerModel(p)
	return translate(s.conn(ctx).Create(&m).Error)
}

func (s *Store) SavePlayer(ctx context.Context, p *game.Player) error {
	m := toPlayerModel(p)
	res := s.conn(ctx).Model(&playerModel{}).
		Where("id = ?", p.ID).
		Select("*").Omit("id", "created_at").
		Updates(&m)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListPlayersInactiveSince(ctx context.Context, before time.Time) ([]*game.Player, error) {
	var rows []playerModel
	if err := s.conn(ctx).Where("last_active_date < ?", game.DateOf(before)).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*game.Player, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

// Rivals

func (s *Store) GetRival(ctx context.Context, playerID string) (*game.Rival, error) {
	var m rivalModel
	if err := s.conn(ctx).Where("player_id = ?", playerID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &game.Rival{PlayerID: m.PlayerID, Name: m.Name, Level: m.Level, XP: m.XP, UpdatedAt: m.UpdatedAt}, nil
}

func (s *Store) SaveRival(ctx context.Context, r *game.Rival) error {
	m := rivalModel{PlayerID: r.PlayerID, Name: r.Name, Level: r.Level, XP: r.XP, UpdatedAt: r.UpdatedAt}
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		UpdateAll: true,
	}).Create(&m).Error)
}

// Habits

func (s *Store) ListHabits(ctx context.Context, playerID string) ([]*game.HabitState, error) {
	var rows []habitModel
	if err := s.conn(ctx).Where("player_id = ?", playerID).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*game.HabitState, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (s *Store) GetHabit(ctx context.Context, playerID, tag string) (*game.HabitState, error) {
	var m habitModel
	if err := s.conn(ctx).Where("player_id = ? AND habit_tag = ?", playerID, tag).Take(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func (s *Store) SaveHabit(ctx context.Context, h *game.HabitState) error {
	m := toHabitModel(h)
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "habit_tag"}},
		UpdateAll: true,
	}).Create(&m).Error)
}

// Outcomes

func (s *Store) GetOutcome(ctx context.Context, playerID string, date time.Time, habitTag string) (*game.DailyOutcome, error) {
	var m outcomeModel
	err := s.conn(ctx).
		Where("player_id = ? AND date = ? AND habit_tag = ?", playerID, game.DateOf(date), habitTag).
		Take(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &game.DailyOutcome{
		PlayerID:   m.PlayerID,
		Date:       game.DateOf(m.Date),
		HabitTag:   m.HabitTag,
		IsGlobal:   m.IsGlobal,
		Done:       m.Done,
		RescueUsed: m.RescueUsed,
	}, nil
}

func (s *Store) SaveOutcome(ctx context.Context, o *game.DailyOutcome) error {
	m := outcomeModel{
		PlayerID:   o.PlayerID,
		Date:       game.DateOf(o.Date),
		HabitTag:   o.HabitTag,
		IsGlobal:   o.HabitTag == "",
		Done:       o.Done,
		RescueUsed: o.RescueUsed,
	}
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "date"}, {Name: "habit_tag"}},
		DoUpdates: clause.AssignmentColumns([]string{"done", "rescue_used"}),
	}).Create(&m).Error)
}

// Completions

func (s *Store) AppendCompletion(ctx context.Context, c *game.CompletionLog) error {
	m := completionModel{
		ID:              c.ID,
		PlayerID:        c.PlayerID,
		QuestID:         c.QuestID,
		HabitTag:        c.HabitTag,
		TierUsed:        string(c.TierUsed),
		Source:          string(c.Source),
		XPGained:        c.XPGained,
		DurationMinutes: c.DurationMinutes,
		CompletedAt:     c.CompletedAt,
	}
	return translate(s.conn(ctx).Create(&m).Error)
}

func (s *Store) ListCompletions(ctx context.Context, playerID string, since time.Time) ([]*game.CompletionLog, error) {
	var rows []completionModel
	err := s.conn(ctx).
		Where("player_id = ? AND completed_at >= ?", playerID, since).
		Order("completed_at").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]*game.CompletionLog, len(rows))
	for i, m := range rows {
		out[i] = &game.CompletionLog{
			ID:              m.ID,
			PlayerID:        m.PlayerID,
			QuestID:         m.QuestID,
			HabitTag:        m.HabitTag,
			TierUsed:        game.Tier(m.TierUsed),
			Source:          game.CompletionSource(m.Source),
			XPGained:        m.XPGained,
			DurationMinutes: m.DurationMinutes,
			CompletedAt:     m.CompletedAt,
		}
	}
	return out, nil
}

// Quests

func (s *Store) GetQuest(ctx context.Context, id string) (*game.Quest, error) {
	var m questModel
	if err := s.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func (s *Store) AddQuest(ctx context.Context, q *game.Quest) error {
	m := toQuestModel(q)
	return translate(s.conn(ctx).Create(&m).Error)
}

func (s *Store) SaveQuest(ctx context.Context, q *game.Quest) error {
	m := toQuestModel(q)
	res := s.conn(ctx).Model(&questModel{}).
		Where("id = ?", q.ID).
		Select("*").Omit("id", "created_at").
		Updates(&m)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteQuest(ctx context.Context, id string) error {
	res := s.conn(ctx).Where("id = ?", id).Delete(&questModel{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListQuests(ctx context.Context, playerID string, f storage.QuestFilter) ([]*game.Quest, error) {
	q := s.conn(ctx).Where("player_id = ?", playerID)
	if f.Date != nil {
		q = q.Where("scheduled_date = ?", game.DateOf(*f.Date))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}

	var rows []questModel
	if err := q.Order("seq").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*game.Quest, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

// Goals

func (s *Store) AddGoal(ctx context.Context, g *game.Goal) error {
	m := goalModel{
		ID:            g.ID,
		PlayerID:      g.PlayerID,
		Title:         g.Title,
		Status:        string(g.Status),
		Decomposition: g.Decomposition,
		CreatedAt:     g.CreatedAt,
	}
	return translate(s.conn(ctx).Create(&m).Error)
}

func (s *Store) ListGoals(ctx context.Context, playerID string) ([]*game.Goal, error) {
	var rows []goalModel
	if err := s.conn(ctx).Where("player_id = ?", playerID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*game.Goal, len(rows))
	for i, m := range rows {
		out[i] = &game.Goal{
			ID:            m.ID,
			PlayerID:      m.PlayerID,
			Title:         m.Title,
			Status:        game.GoalStatus(m.Status),
			Decomposition: m.Decomposition,
			CreatedAt:     m.CreatedAt,
		}
	}
	return out, nil
}

// Buffs

func (s *Store) AddBuff(ctx context.Context, b *game.Buff) error {
	m := buffModel{
		ID:              b.ID,
		PlayerID:        b.PlayerID,
		TargetAttribute: string(b.Target),
		Multiplier:      b.Multiplier,
		Source:          b.Source,
		ExpiresAt:       b.ExpiresAt,
	}
	return translate(s.conn(ctx).Create(&m).Error)
}

func (s *Store) ListActiveBuffs(ctx context.Context, playerID string, now time.Time) ([]game.Buff, error) {
	var rows []buffModel
	err := s.conn(ctx).
		Where("player_id = ? AND expires_at > ?", playerID, now).
		Order("expires_at").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]game.Buff, len(rows))
	for i, m := range rows {
		out[i] = game.Buff{
			ID:         m.ID,
			PlayerID:   m.PlayerID,
			Target:     game.Attribute(m.TargetAttribute),
			Multiplier: m.Multiplier,
			Source:     m.Source,
			ExpiresAt:  m.ExpiresAt,
		}
	}
	return out, nil
}

// Bosses

func (s *Store) GetActiveBoss(ctx context.Context, playerID string) (*game.Boss, error) {
	var m bossModel
	err := s.conn(ctx).Where("player_id = ? AND status = ?", playerID, string(game.BossActive)).Take(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &game.Boss{
		ID:        m.ID,
		PlayerID:  m.PlayerID,
		Name:      m.Name,
		HP:        m.HP,
		MaxHP:     m.MaxHP,
		Level:     m.Level,
		Status:    game.BossStatus(m.Status),
		CreatedAt: m.CreatedAt,
	}, nil
}

// SaveBoss upserts by id; the partial unique index rejects a second
// ACTIVE boss with ErrConflict.
func (s *Store) SaveBoss(ctx context.Context, b *game.Boss) error {
	m := bossModel{
		ID:        b.ID,
		PlayerID:  b.PlayerID,
		Name:      b.Name,
		HP:        b.HP,
		MaxHP:     b.MaxHP,
		Level:     b.Level,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
	}
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hp", "level", "status"}),
	}).Create(&m).Error)
}

// Dungeons

func (s *Store) GetActiveDungeon(ctx context.Context, playerID string) (*game.Dungeon, error) {
	var m dungeonModel
	err := s.conn(ctx).Where("player_id = ? AND status = ?", playerID, string(game.DungeonActive)).Take(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &game.Dungeon{
		ID:        m.ID,
		PlayerID:  m.PlayerID,
		Type:      game.DungeonType(m.Type),
		Status:    game.DungeonStatus(m.Status),
		Deadline:  m.Deadline,
		XPReward:  m.XPReward,
		Stages:    m.Stages,
		CreatedAt: m.CreatedAt,
	}, nil
}

func (s *Store) SaveDungeon(ctx context.Context, d *game.Dungeon) error {
	stages := d.Stages
	if stages == nil {
		stages = []game.Stage{}
	}
	m := dungeonModel{
		ID:        d.ID,
		PlayerID:  d.PlayerID,
		Type:      string(d.Type),
		Status:    string(d.Status),
		Deadline:  d.Deadline,
		XPReward:  d.XPReward,
		Stages:    stages,
		CreatedAt: d.CreatedAt,
	}
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "deadline", "stages"}),
	}).Create(&m).Error)
}

// Inventory

func (s *Store) ListInventory(ctx context.Context, playerID string) ([]game.InventoryItem, error) {
	var rows []inventoryModel
	err := s.conn(ctx).Where("player_id = ? AND quantity > 0", playerID).Order("seq").Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]game.InventoryItem, len(rows))
	for i, m := range rows {
		out[i] = game.InventoryItem{PlayerID: m.PlayerID, ItemID: m.ItemID, Quantity: m.Quantity}
	}
	return out, nil
}

func (s *Store) AddItem(ctx context.Context, playerID, itemID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("add item: quantity must be positive, got %d", qty)
	}
	m := inventoryModel{PlayerID: playerID, ItemID: itemID, Quantity: qty}
	return translate(s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "player_id"}, {Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("inventory_items.quantity + EXCLUDED.quantity"),
		}),
	}).Create(&m).Error)
}

func (s *Store) ConsumeItem(ctx context.Context, playerID, itemID string) error {
	res := s.conn(ctx).Model(&inventoryModel{}).
		Where("player_id = ? AND item_id = ? AND quantity > 0", playerID, itemID).
		Update("quantity", gorm.Expr("quantity - 1"))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Conversation

func (s *Store) AppendLog(ctx context.Context, e *chat.LogEntry) error {
	m := conversationModel{ID: e.ID, PlayerID: e.PlayerID, Role: e.Role, Content: e.Content, CreatedAt: e.CreatedAt}
	return translate(s.conn(ctx).Create(&m).Error)
}

func (s *Store) RecentLogs(ctx context.Context, playerID string, limit int) ([]chat.LogEntry, error) {
	q := s.conn(ctx).Where("player_id = ?", playerID).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []conversationModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]chat.LogEntry, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = m.toDomain()
	}
	return out, nil
}
