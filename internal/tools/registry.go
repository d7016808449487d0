package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/quest"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/prompts"
	"github.com/jwebster45206/lifequest/pkg/reward"
	"github.com/jwebster45206/lifequest/pkg/textfilter"
)

// Session is the turn context every tool runs in. Player is mutated in
// place; the orchestrator saves it when the turn commits.
type Session struct {
	Player *game.Player
	Now    time.Time
	Flow   flow.State
	// Source tags completion logs written by log_action.
	Source game.CompletionSource
}

// Output is what one tool produced.
type Output struct {
	Text         string
	Meta         game.Metadata
	QuickReplies []game.QuickReply
	Intent       string
}

type Registry struct {
	store      storage.Store
	quests     *quest.Engine
	content    *content.Content
	accountant *reward.Accountant
	matcher    *textfilter.KeywordMatcher
	logger     *slog.Logger
}

func NewRegistry(store storage.Store, quests *quest.Engine, logger *slog.Logger) *Registry {
	c := quests.Content()
	return &Registry{
		store:      store,
		quests:     quests,
		content:    c,
		accountant: quests.Accountant(),
		matcher:    c.KeywordMatcher(),
		logger:     logger,
	}
}

// Specs describes the registry to the model.
func (r *Registry) Specs() []prompts.ToolSpec {
	return []prompts.ToolSpec{
		{Name: string(GetStatus), Description: "Show the player's level, HP, gold, attributes and active effects."},
		{Name: string(GetInventory), Description: "List the items the player holds."},
		{Name: string(GetQuests), Description: "Show today's quests, generating them if needed."},
		{Name: string(UseItem), Description: "Use one item from the inventory.", Arguments: map[string]string{"item_name": "string"}},
		{Name: string(SetGoal), Description: "Set a long-term goal and plan its first quests and habits.", Arguments: map[string]string{"goal_text": "string"}},
		{Name: string(LogAction), Description: "Record something the player did in real life.", Arguments: map[string]string{"text": "string"}},
	}
}

// Persona maps a tool to the voice its output is rendered in.
func Persona(name Name) game.Persona {
	switch name {
	case SetGoal, UseItem:
		return game.PersonaMentor
	default:
		return game.PersonaSystem
	}
}

// Execute runs one call.
func (r *Registry) Execute(ctx context.Context, s *Session, c Call) (*Output, error) {
	start := time.Now()
	var (
		out *Output
		err error
	)
	switch args := c.Args.(type) {
	case StatusArgs:
		out, err = r.status(ctx, s)
	case InventoryArgs:
		out, err = r.inventory(ctx, s)
	case QuestsArgs:
		out, err = r.questList(ctx, s)
	case UseItemArgs:
		out, err = r.useItem(ctx, s, args)
	case SetGoalArgs:
		out, err = r.setGoal(ctx, s, args)
	case LogActionArgs:
		out, err = r.logAction(ctx, s, args)
	default:
		return nil, game.NewError(game.ErrInvalidArgument, "tools.execute", fmt.Sprintf("unknown tool %q", c.Name))
	}
	if err != nil {
		return nil, err
	}
	if out.Intent == "" {
		out.Intent = string(c.Name)
	}
	if out.Meta.LevelUp {
		out.Meta.AudioCue = game.AudioLevelUp
	}
	r.logger.Debug("Tool executed",
		"tool", c.Name,
		"player_id", s.Player.ID,
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (r *Registry) status(ctx context.Context, s *Session) (*Output, error) {
	p := s.Player
	buffs, err := r.store.ListActiveBuffs(ctx, p.ID, s.Now)
	if err != nil {
		return nil, fmt.Errorf("tools.get_status: %w", err)
	}
	sheet, err := game.NewSheet(*p, buffs, s.Now)
	if err != nil {
		return nil, fmt.Errorf("tools.get_status: %w", err)
	}
	rival, err := r.store.GetRival(ctx, p.ID)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("tools.get_status: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Lv.%d\n", p.DisplayName, p.Level)
	fmt.Fprintf(&sb, "HP %d/%d (%s)  金幣 %d  連續 %d 天\n", sheet.HP(), p.Vitals.MaxHP, p.Vitals.Status, p.Gold, p.StreakCount)
	for _, a := range game.Attributes {
		fmt.Fprintf(&sb, "%s Lv.%d (%d XP)\n", a, sheet.Attribute(a), p.AttrXP.Get(a))
	}
	if mods := sheet.Modifiers(); len(mods) > 0 {
		sb.WriteString("狀態效果：" + strings.Join(mods, "、") + "\n")
	}
	if rival != nil {
		fmt.Fprintf(&sb, "宿敵 %s Lv.%d", rival.Name, rival.Level)
	}

	return &Output{
		Text: strings.TrimSpace(sb.String()),
		QuickReplies: []game.QuickReply{
			{Label: "今日任務", ActionData: "action=quests", DisplayText: "今日任務"},
			{Label: "背包", ActionData: "action=inventory", DisplayText: "背包"},
		},
	}, nil
}

func (r *Registry) inventory(ctx context.Context, s *Session) (*Output, error) {
	items, err := r.store.ListInventory(ctx, s.Player.ID)
	if err != nil {
		return nil, fmt.Errorf("tools.get_inventory: %w", err)
	}
	if len(items) == 0 {
		return &Output{Text: "背包是空的。"}, nil
	}

	out := &Output{}
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, fmt.Sprintf("背包（金幣 %d）：", s.Player.Gold))
	for _, inv := range items {
		item, ok := r.content.Item(inv.ItemID)
		if !ok {
			r.logger.Warn("Inventory holds an unknown item", "player_id", s.Player.ID, "item_id", inv.ItemID)
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s x%d（%s）", item.Name, inv.Quantity, item.Rarity))
		out.QuickReplies = append(out.QuickReplies, game.QuickReply{
			Label:       "使用" + item.Name,
			ActionData:  "action=use&item=" + item.ID,
			DisplayText: "使用" + item.Name,
		})
	}
	out.Text = strings.Join(lines, "\n")
	return out, nil
}

func (r *Registry) questList(ctx context.Context, s *Session) (*Output, error) {
	batch, err := r.quests.GenerateDaily(ctx, s.Player, s.Now)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	var lines []string
	if batch.Degraded {
		lines = append(lines, r.content.Text(content.MsgDegraded))
	}
	switch batch.Mode {
	case quest.ModeBoss:
		lines = append(lines, r.content.Text(content.MsgBossAppears))
		out.Meta.Sender = game.PersonaViper
	case quest.ModeHollowed:
		lines = append(lines, r.content.Text(content.MsgHollowed))
	}
	lines = append(lines, "今日任務：")
	for i, q := range batch.Quests {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s（+%d XP）%s", i+1, q.Tier, q.Title, q.XPReward, statusLabel(q.Status)))
		out.QuickReplies = append(out.QuickReplies, questReplies(q)...)
	}
	if batch.Mode == quest.ModeNormal || batch.Mode == quest.ModeRecovery {
		out.QuickReplies = append(out.QuickReplies, game.QuickReply{Label: "重抽", ActionData: "action=reroll", DisplayText: "重抽任務"})
	}
	out.Text = strings.Join(lines, "\n")
	return out, nil
}

func statusLabel(s game.QuestStatus) string {
	switch s {
	case game.QuestActive:
		return "進行中"
	case game.QuestDone:
		return "✔"
	case game.QuestPaused:
		return "暫停"
	}
	return ""
}

// questReplies offers the next step for an open quest.
func questReplies(q *game.Quest) []game.QuickReply {
	switch q.Status {
	case game.QuestPending:
		return []game.QuickReply{{Label: "接受 " + textfilter.Truncate(q.Title, 8), ActionData: "action=accept&quest=" + q.ID}}
	case game.QuestActive:
		return []game.QuickReply{{Label: "完成 " + textfilter.Truncate(q.Title, 8), ActionData: "action=complete&quest=" + q.ID}}
	}
	return nil
}

func (r *Registry) useItem(ctx context.Context, s *Session, args UseItemArgs) (*Output, error) {
	const op = "tools.use_item"
	p := s.Player
	item, ok := r.content.FindItem(args.ItemName)
	if !ok {
		return nil, game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("no item called %q", args.ItemName))
	}
	if err := r.store.ConsumeItem(ctx, p.ID, item.ID); err != nil {
		if storage.IsNotFound(err) {
			return nil, game.NewError(game.ErrInvalidState, op, fmt.Sprintf("你沒有%s", item.Name))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := &Output{}
	eff := item.Effect
	switch eff.Kind {
	case game.EffectBuff:
		b := &game.Buff{
			ID:         uuid.New().String(),
			PlayerID:   p.ID,
			Target:     eff.Attribute,
			Multiplier: eff.Multiplier,
			Source:     item.Name,
			ExpiresAt:  s.Now.Add(time.Duration(eff.DurationHours) * time.Hour),
		}
		if err := r.store.AddBuff(ctx, b); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.Text = fmt.Sprintf("使用了%s：%s 經驗 x%s，持續 %d 小時。", item.Name, eff.Attribute, formatMultiplier(eff.Multiplier), eff.DurationHours)
	case game.EffectHeal:
		before := p.Vitals.HP
		p.Vitals.SetHP(before+eff.Amount, s.Now)
		out.Text = fmt.Sprintf("使用了%s：HP +%d（%d/%d）。", item.Name, p.Vitals.HP-before, p.Vitals.HP, p.Vitals.MaxHP)
	case game.EffectXP:
		change := reward.ApplyXP(p, eff.Attribute, eff.Amount)
		out.Meta.Attribute = eff.Attribute
		out.Meta.XPGained = eff.Amount
		out.Meta.LevelUp = change.LevelUp()
		out.Text = fmt.Sprintf("使用了%s：%s +%d XP。", item.Name, eff.Attribute, eff.Amount)
		if change.LevelUp() {
			out.Text += "\n" + r.content.Text(content.MsgLevelUp, "level", fmt.Sprint(change.LevelTo))
		}
	case game.EffectLore:
		out.Text = fmt.Sprintf("你翻開了%s：\n%s", item.Name, eff.Lore)
	default:
		return nil, game.NewError(game.ErrInternal, op, fmt.Sprintf("item %s has unknown effect %q", item.ID, eff.Kind))
	}

	r.logger.Info("Item used", "player_id", p.ID, "item_id", item.ID, "effect", eff.Kind)
	return out, nil
}

func formatMultiplier(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func (r *Registry) setGoal(ctx context.Context, s *Session, args SetGoalArgs) (*Output, error) {
	seed, err := r.quests.SeedGoal(ctx, s.Player, args.GoalText, s.Now)
	if err != nil {
		return nil, err
	}

	var lines []string
	if seed.Degraded {
		lines = append(lines, r.content.Text(content.MsgDegraded))
	}
	lines = append(lines, fmt.Sprintf("新目標：%s", seed.Goal.Title), "第一步：")
	out := &Output{}
	for i, q := range seed.Quests {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s（+%d XP）", i+1, q.Tier, q.Title, q.XPReward))
		out.QuickReplies = append(out.QuickReplies, questReplies(q)...)
	}
	if len(seed.Habits) > 0 {
		lines = append(lines, "新習慣："+strings.Join(seed.Habits, "、"))
	}
	out.Text = strings.Join(lines, "\n")
	return out, nil
}

// logAction records a real-life action. A report that matches one of
// today's quests completes that quest; anything else is rewarded as a
// free action with an inferred attribute.
func (r *Registry) logAction(ctx context.Context, s *Session, args LogActionArgs) (*Output, error) {
	p := s.Player

	q, err := r.quests.MatchQuest(ctx, p, args.Text, s.Now)
	if err != nil {
		return nil, err
	}
	if q != nil {
		c, err := r.quests.Verify(ctx, p, q, quest.Submission{Text: args.Text}, s.Now)
		if err != nil {
			return nil, err
		}
		return &Output{
			Text:   r.DescribeCompletion(c),
			Meta:   c.Metadata(),
			Intent: "quest_complete",
		}, nil
	}

	attr, ok := game.ParseAttribute(args.Attribute)
	if !ok {
		attr = r.inferAttribute(args.Text)
	}
	tier, ok := game.ParseTier(args.Tier)
	if !ok {
		tier = InferTier(args.Text)
	}

	award, err := r.quests.Award(ctx, p, quest.AwardInput{
		Attribute: attr,
		Tier:      tier,
		Source:    sourceOr(s.Source, game.SourceRouter),
		NoLoot:    args.NoLoot,
		LootScale: s.Flow.LootMultiplier,
	}, s.Now)
	if err != nil {
		return nil, err
	}

	narrative := args.Narrative
	if narrative == "" {
		narrative = r.content.FastPathNarrative(attr, award.XP, r.accountant.Pick)
	}
	lines := []string{narrative}
	lines = append(lines, r.awardLines(award)...)

	out := &Output{Text: strings.Join(lines, "\n"), Meta: award.Metadata()}
	out.Meta.Tier = tier
	return out, nil
}

func (r *Registry) inferAttribute(text string) game.Attribute {
	if label, ok := r.matcher.Match(text); ok {
		if a, ok := game.ParseAttribute(label); ok {
			return a
		}
	}
	return game.WIS
}

// InferTier rates a free report: C when it states a quantity, else D.
func InferTier(text string) game.Tier {
	if textfilter.HasDigit(text) {
		return game.TierC
	}
	return game.TierD
}

func sourceOr(s, def game.CompletionSource) game.CompletionSource {
	if s == "" {
		return def
	}
	return s
}

// awardLines renders the loot and level-up follow-ups of an award.
func (r *Registry) awardLines(a *quest.Award) []string {
	var lines []string
	if a.Loot != nil {
		lines = append(lines, r.content.Text(content.MsgLoot, "item", a.Loot.Name, "rarity", string(a.Loot.Rarity)))
	}
	if a.Change.LevelUp() {
		lines = append(lines, r.content.Text(content.MsgLevelUp, "level", fmt.Sprint(a.Change.LevelTo)))
	}
	return lines
}

// DescribeCompletion renders a finished quest for the player.
func (r *Registry) DescribeCompletion(c *quest.Completion) string {
	lines := []string{fmt.Sprintf("任務完成：%s！+%d XP，+%d 金幣。", c.Quest.Title, c.Award.XP, c.Award.Gold)}
	if c.HPRestored > 0 {
		lines = append(lines, fmt.Sprintf("HP +%d。", c.HPRestored))
	}
	lines = append(lines, r.awardLines(c.Award)...)
	if c.Boss != nil {
		lines = append(lines, r.content.Text(content.MsgBossHit,
			"damage", fmt.Sprint(c.BossDamage),
			"hp", fmt.Sprint(c.Boss.HP),
			"max", fmt.Sprint(c.Boss.MaxHP)))
	}
	if c.BossDefeated && c.BossAward != nil {
		lines = append(lines, r.content.Text(content.MsgBossDefeated, "xp", fmt.Sprint(c.BossAward.XP)))
		lines = append(lines, r.awardLines(c.BossAward)...)
	}
	return strings.Join(lines, "\n")
}
