package gormstore

import (
	"time"

	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// Row types mirror the tables in migrations/. Domain structs never reach
// gorm directly.

type playerModel struct {
	ID             string `gorm:"primaryKey"`
	DisplayName    string
	Level          int
	AttrStr        int
	AttrInt        int
	AttrVit        int
	AttrWis        int
	AttrCha        int
	XPStr          int `gorm:"column:xp_str"`
	XPInt          int `gorm:"column:xp_int"`
	XPVit          int `gorm:"column:xp_vit"`
	XPWis          int `gorm:"column:xp_wis"`
	XPCha          int `gorm:"column:xp_cha"`
	XP             int `gorm:"column:xp"`
	Gold           int
	HP             int    `gorm:"column:hp"`
	MaxHP          int    `gorm:"column:max_hp"`
	HPStatus       string `gorm:"column:hp_status"`
	HollowedAt     *time.Time
	StreakCount    int
	LastActiveDate time.Time
	TalentPoints   int
	PushEnabled    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (playerModel) TableName() string { return "players" }

func toPlayerModel(p *game.Player) playerModel {
	return playerModel{
		ID:             p.ID,
		DisplayName:    p.DisplayName,
		Level:          p.Level,
		AttrStr:        p.Attrs.STR,
		AttrInt:        p.Attrs.INT,
		AttrVit:        p.Attrs.VIT,
		AttrWis:        p.Attrs.WIS,
		AttrCha:        p.Attrs.CHA,
		XPStr:          p.AttrXP.STR,
		XPInt:          p.AttrXP.INT,
		XPVit:          p.AttrXP.VIT,
		XPWis:          p.AttrXP.WIS,
		XPCha:          p.AttrXP.CHA,
		XP:             p.XP,
		Gold:           p.Gold,
		HP:             p.Vitals.HP,
		MaxHP:          p.Vitals.MaxHP,
		HPStatus:       string(p.Vitals.Status),
		HollowedAt:     p.Vitals.HollowedAt,
		StreakCount:    p.StreakCount,
		LastActiveDate: game.DateOf(p.LastActiveDate),
		TalentPoints:   p.TalentPoints,
		PushEnabled:    p.PushEnabled,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (m playerModel) toDomain() *game.Player {
	return &game.Player{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Level:       m.Level,
		Attrs:       game.Stats{STR: m.AttrStr, INT: m.AttrInt, VIT: m.AttrVit, WIS: m.AttrWis, CHA: m.AttrCha},
		AttrXP:      game.Stats{STR: m.XPStr, INT: m.XPInt, VIT: m.XPVit, WIS: m.XPWis, CHA: m.XPCha},
		XP:          m.XP,
		Gold:        m.Gold,
		Vitals: game.Vitals{
			HP:         m.HP,
			MaxHP:      m.MaxHP,
			Status:     game.HPStatus(m.HPStatus),
			HollowedAt: m.HollowedAt,
		},
		StreakCount:    m.StreakCount,
		LastActiveDate: game.DateOf(m.LastActiveDate),
		TalentPoints:   m.TalentPoints,
		PushEnabled:    m.PushEnabled,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type rivalModel struct {
	PlayerID  string `gorm:"primaryKey"`
	Name      string
	Level     int
	XP        int `gorm:"column:xp"`
	UpdatedAt time.Time
}

func (rivalModel) TableName() string { return "rivals" }

type habitModel struct {
	PlayerID        string
	HabitTag        string
	Name            string
	Attribute       string
	Tier            int
	EmaP            float64 `gorm:"column:ema_p"`
	LastZone        string
	ZoneStreakDays  int
	LastOutcomeDate *time.Time
	LastSweepDate   *time.Time
	Active          bool
}

func (habitModel) TableName() string { return "habit_states" }

func toHabitModel(h *game.HabitState) habitModel {
	return habitModel{
		PlayerID:        h.PlayerID,
		HabitTag:        h.Tag,
		Name:            h.Name,
		Attribute:       string(h.Attribute),
		Tier:            int(h.Tier),
		EmaP:            h.EMA,
		LastZone:        string(h.LastZone),
		ZoneStreakDays:  h.ZoneStreakDays,
		LastOutcomeDate: h.LastOutcomeDate,
		LastSweepDate:   h.LastSweepDate,
		Active:          h.Active,
	}
}

func (m habitModel) toDomain() *game.HabitState {
	return &game.HabitState{
		PlayerID:        m.PlayerID,
		Tag:             m.HabitTag,
		Name:            m.Name,
		Attribute:       game.Attribute(m.Attribute),
		Tier:            game.HabitTier(m.Tier),
		EMA:             m.EmaP,
		LastZone:        game.Zone(m.LastZone),
		ZoneStreakDays:  m.ZoneStreakDays,
		LastOutcomeDate: utcDate(m.LastOutcomeDate),
		LastSweepDate:   utcDate(m.LastSweepDate),
		Active:          m.Active,
	}
}

type outcomeModel struct {
	PlayerID   string
	Date       time.Time
	HabitTag   string
	IsGlobal   bool
	Done       bool
	RescueUsed bool
}

func (outcomeModel) TableName() string { return "daily_outcomes" }

type completionModel struct {
	ID              string `gorm:"primaryKey"`
	PlayerID        string
	QuestID         string
	HabitTag        string
	TierUsed        string
	Source          string
	XPGained        int `gorm:"column:xp_gained"`
	DurationMinutes *int
	CompletedAt     time.Time
}

func (completionModel) TableName() string { return "completion_logs" }

type questModel struct {
	ID               string `gorm:"primaryKey"`
	PlayerID         string
	GoalID           string
	HabitTag         string
	Title            string
	Description      string
	DifficultyTier   string
	Attribute        string
	XPReward         int `gorm:"column:xp_reward"`
	QuestType        string
	Status           string
	ScheduledDate    time.Time
	VerificationType string
	Keywords         []string `gorm:"serializer:json"`
	Rare             bool
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

func (questModel) TableName() string { return "quests" }

func toQuestModel(q *game.Quest) questModel {
	keywords := q.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return questModel{
		ID:               q.ID,
		PlayerID:         q.PlayerID,
		GoalID:           q.GoalID,
		HabitTag:         q.HabitTag,
		Title:            q.Title,
		Description:      q.Description,
		DifficultyTier:   string(q.Tier),
		Attribute:        string(q.Attribute),
		XPReward:         q.XPReward,
		QuestType:        string(q.Type),
		Status:           string(q.Status),
		ScheduledDate:    game.DateOf(q.ScheduledDate),
		VerificationType: string(q.Verification),
		Keywords:         keywords,
		Rare:             q.Rare,
		CreatedAt:        q.CreatedAt,
		CompletedAt:      q.CompletedAt,
	}
}

func (m questModel) toDomain() *game.Quest {
	var keywords []string
	if len(m.Keywords) > 0 {
		keywords = m.Keywords
	}
	return &game.Quest{
		ID:            m.ID,
		PlayerID:      m.PlayerID,
		GoalID:        m.GoalID,
		HabitTag:      m.HabitTag,
		Title:         m.Title,
		Description:   m.Description,
		Tier:          game.Tier(m.DifficultyTier),
		Attribute:     game.Attribute(m.Attribute),
		XPReward:      m.XPReward,
		Type:          game.QuestType(m.QuestType),
		Status:        game.QuestStatus(m.Status),
		ScheduledDate: game.DateOf(m.ScheduledDate),
		Verification:  game.VerificationType(m.VerificationType),
		Keywords:      keywords,
		Rare:          m.Rare,
		CreatedAt:     m.CreatedAt,
		CompletedAt:   m.CompletedAt,
	}
}

type goalModel struct {
	ID            string `gorm:"primaryKey"`
	PlayerID      string
	Title         string
	Status        string
	Decomposition string
	CreatedAt     time.Time
}

func (goalModel) TableName() string { return "goals" }

type buffModel struct {
	ID              string `gorm:"primaryKey"`
	PlayerID        string
	TargetAttribute string
	Multiplier      float64
	Source          string
	ExpiresAt       time.Time
}

func (buffModel) TableName() string { return "buffs" }

type bossModel struct {
	ID        string `gorm:"primaryKey"`
	PlayerID  string
	Name      string
	HP        int `gorm:"column:hp"`
	MaxHP     int `gorm:"column:max_hp"`
	Level     int
	Status    string
	CreatedAt time.Time
}

func (bossModel) TableName() string { return "bosses" }

type dungeonModel struct {
	ID        string `gorm:"primaryKey"`
	PlayerID  string
	Type      string
	Status    string
	Deadline  time.Time
	XPReward  int          `gorm:"column:xp_reward"`
	Stages    []game.Stage `gorm:"serializer:json"`
	CreatedAt time.Time
}

func (dungeonModel) TableName() string { return "dungeons" }

type inventoryModel struct {
	PlayerID string `gorm:"primaryKey"`
	ItemID   string `gorm:"primaryKey"`
	Quantity int
}

func (inventoryModel) TableName() string { return "inventory_items" }

type conversationModel struct {
	ID        string `gorm:"primaryKey"`
	PlayerID  string
	Role      string
	Content   string
	CreatedAt time.Time
}

func (conversationModel) TableName() string { return "conversation_logs" }

func (m conversationModel) toDomain() chat.LogEntry {
	return chat.LogEntry{ID: m.ID, PlayerID: m.PlayerID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := game.DateOf(*t)
	return &d
}
