// Package content holds the static game tables: keyword sets, canned
// narratives, fallback quests, default habits, the item catalogue, rival
// taunts and the passive event map. The tables are YAML files embedded in
// the binary; LoadFS reads an override directory with the same layout.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/textfilter"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// Narrative keys looked up with Text.
const (
	MsgLoot             = "loot"
	MsgLevelUp          = "level_up"
	MsgDegraded         = "degraded"
	MsgInvalidState     = "invalid_state"
	MsgRejected         = "rejected"
	MsgUncertain        = "uncertain"
	MsgInternalError    = "internal_error"
	MsgInsufficientGold = "insufficient_funds"
	MsgLocationHint     = "location_hint"
	MsgWelcome          = "welcome"
	MsgRivalSiphon      = "rival_siphon"
	MsgRivalDebuff      = "rival_debuff"
	MsgRivalLevelUp     = "rival_levelup"
	MsgHPDecay          = "hp_decay"
	MsgHollowed         = "hollowed"
	MsgRescueStage      = "rescue_stage"
	MsgRescueCleared    = "rescue_cleared"
	MsgBossAppears      = "boss_appears"
	MsgBossHit          = "boss_hit"
	MsgBossDefeated     = "boss_defeated"
	MsgInvalidArgument  = "invalid_argument"
	MsgPassiveNoted     = "passive_noted"
	MsgNoImageQuest     = "no_image_quest"
	MsgPurchased        = "purchased"
)

var requiredMessages = []string{
	MsgLoot, MsgLevelUp, MsgDegraded, MsgInvalidState, MsgRejected, MsgUncertain,
	MsgInternalError, MsgInsufficientGold, MsgLocationHint, MsgWelcome,
	MsgRivalSiphon, MsgRivalDebuff, MsgRivalLevelUp, MsgHPDecay, MsgHollowed,
	MsgRescueStage, MsgRescueCleared, MsgBossAppears, MsgBossHit, MsgBossDefeated,
	MsgInvalidArgument, MsgPassiveNoted, MsgNoImageQuest, MsgPurchased,
}

// FallbackQuestCount is the minimum size of the fallback table; a daily
// batch must be paddable from it alone.
const FallbackQuestCount = 3

// RescueStageCount is the number of check-ins a rescue dungeon needs.
const RescueStageCount = 3

type Keywords struct {
	Order []string            `yaml:"order"`
	Sets  map[string][]string `yaml:"sets"`
}

type Narratives struct {
	FastPath map[string][]string `yaml:"fast_path"`
	Generic  []string            `yaml:"generic"`
	Messages map[string]string   `yaml:",inline"`
}

type QuestTemplate struct {
	Title        string                `yaml:"title"`
	Description  string                `yaml:"description"`
	Tier         game.Tier             `yaml:"tier"`
	Attribute    game.Attribute        `yaml:"attribute"`
	Verification game.VerificationType `yaml:"verification"`
	XPReward     int                   `yaml:"xp_reward"`
	Keywords     []string              `yaml:"keywords"`
}

type QuestTables struct {
	Fallback           []QuestTemplate `yaml:"fallback"`
	Recovery           []QuestTemplate `yaml:"recovery"`
	Redemption         QuestTemplate   `yaml:"redemption"`
	Boss               QuestTemplate   `yaml:"boss"`
	RescueStages       []string        `yaml:"rescue_stages"`
	DefaultDescription string          `yaml:"default_description"`
}

type HabitTemplate struct {
	Tag       string         `yaml:"tag"`
	Name      string         `yaml:"name"`
	Attribute game.Attribute `yaml:"attribute"`
}

// PassiveMapping is the semantic record for one sensor event type. Text
// may reference {state} and {entity}.
type PassiveMapping struct {
	Category        string   `yaml:"category"`
	Impact          string   `yaml:"impact"`
	RelatedConcepts []string `yaml:"related_concepts"`
	Text            string   `yaml:"text"`
}

// Content is the full set of tables. It is read-only after Load.
type Content struct {
	Keywords   Keywords
	Narratives Narratives
	Quests     QuestTables
	Habits     []HabitTemplate
	Items      []game.Item
	Taunts     []string
	Passive    map[string]PassiveMapping
}

// Load reads the embedded tables and validates them.
func Load() (*Content, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded content: %w", err)
	}
	return LoadFS(sub)
}

// MustLoad is Load for tests and package initialisation of tools that
// cannot run without content.
func MustLoad() *Content {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFS reads the tables from the root of fsys.
func LoadFS(fsys fs.FS) (*Content, error) {
	c := &Content{}

	var habits struct {
		Defaults []HabitTemplate `yaml:"defaults"`
	}
	var items struct {
		Items []game.Item `yaml:"items"`
	}
	var taunts struct {
		Taunts []string `yaml:"taunts"`
	}
	var passive struct {
		Events map[string]PassiveMapping `yaml:"events"`
	}

	files := []struct {
		name string
		into interface{}
	}{
		{"keywords.yaml", &c.Keywords},
		{"narratives.yaml", &c.Narratives},
		{"quests.yaml", &c.Quests},
		{"habits.yaml", &habits},
		{"items.yaml", &items},
		{"taunts.yaml", &taunts},
		{"passive.yaml", &passive},
	}
	for _, f := range files {
		if err := decodeFile(fsys, f.name, f.into); err != nil {
			return nil, err
		}
	}

	c.Habits = habits.Defaults
	c.Items = items.Items
	c.Taunts = taunts.Taunts
	c.Passive = passive.Events

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeFile(fsys fs.FS, name string, into interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// Validate reports every problem found in the tables at once.
func (c *Content) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(c.Keywords.Order) == 0 {
		add("keywords: order is empty")
	}
	for _, label := range c.Keywords.Order {
		if _, ok := game.ParseAttribute(label); !ok {
			add("keywords: %q is not an attribute", label)
		}
		if len(c.Keywords.Sets[label]) == 0 {
			add("keywords: no words for %s", label)
		}
	}

	for _, key := range requiredMessages {
		if strings.TrimSpace(c.Narratives.Messages[key]) == "" {
			add("narratives: missing %q", key)
		}
	}
	if len(c.Narratives.Generic) == 0 {
		add("narratives: generic is empty")
	}

	if len(c.Quests.Fallback) < FallbackQuestCount {
		add("quests: need at least %d fallback quests, have %d", FallbackQuestCount, len(c.Quests.Fallback))
	}
	for i, q := range c.Quests.Fallback {
		validateQuest(fmt.Sprintf("quests.fallback[%d]", i), q, add)
	}
	if len(c.Quests.Recovery) < FallbackQuestCount {
		add("quests: need at least %d recovery quests, have %d", FallbackQuestCount, len(c.Quests.Recovery))
	}
	for i, q := range c.Quests.Recovery {
		validateQuest(fmt.Sprintf("quests.recovery[%d]", i), q, add)
		if q.Tier != game.TierE {
			add("quests.recovery[%d]: tier must be E, got %s", i, q.Tier)
		}
	}
	validateQuest("quests.redemption", c.Quests.Redemption, add)
	validateQuest("quests.boss", c.Quests.Boss, add)
	if c.Quests.Boss.Tier != game.TierS {
		add("quests.boss: tier must be S, got %s", c.Quests.Boss.Tier)
	}
	if len(c.Quests.RescueStages) != RescueStageCount {
		add("quests: need %d rescue stages, have %d", RescueStageCount, len(c.Quests.RescueStages))
	}
	if strings.TrimSpace(c.Quests.DefaultDescription) == "" {
		add("quests: default_description is empty")
	}

	tags := make(map[string]bool)
	for i, h := range c.Habits {
		if h.Tag == "" || tags[h.Tag] {
			add("habits[%d]: missing or duplicate tag %q", i, h.Tag)
		}
		tags[h.Tag] = true
		if _, ok := game.ParseAttribute(string(h.Attribute)); !ok {
			add("habits[%d]: bad attribute %q", i, h.Attribute)
		}
	}
	if len(tags) < 2 {
		add("habits: need at least 2 defaults")
	}

	ids := make(map[string]bool)
	hasCommon := false
	for i, item := range c.Items {
		if item.ID == "" || ids[item.ID] {
			add("items[%d]: missing or duplicate id %q", i, item.ID)
		}
		ids[item.ID] = true
		if item.Price <= 0 {
			add("items[%d]: price must be positive", i)
		}
		switch item.Rarity {
		case game.RarityCommon:
			hasCommon = true
		case game.RarityUncommon, game.RarityRare, game.RarityEpic, game.RarityLegendary:
		default:
			add("items[%d]: bad rarity %q", i, item.Rarity)
		}
		validateEffect(fmt.Sprintf("items[%d]", i), item.Effect, add)
	}
	if !hasCommon {
		add("items: the catalogue needs at least one COMMON item")
	}

	if len(c.Taunts) == 0 {
		add("taunts: empty")
	}
	for name, m := range c.Passive {
		if strings.TrimSpace(m.Text) == "" {
			add("passive.%s: text is empty", name)
		}
		switch m.Impact {
		case "positive", "neutral", "negative":
		default:
			add("passive.%s: bad impact %q", name, m.Impact)
		}
	}

	return errors.Join(errs...)
}

func validateQuest(where string, q QuestTemplate, add func(string, ...interface{})) {
	if !textfilter.HasCJK(q.Title) {
		add("%s: title %q has no CJK text", where, q.Title)
	}
	if q.Tier.Rank() < 0 {
		add("%s: bad tier %q", where, q.Tier)
	}
	if _, ok := game.ParseAttribute(string(q.Attribute)); !ok {
		add("%s: bad attribute %q", where, q.Attribute)
	}
	switch q.Verification {
	case game.VerifyText, game.VerifyImage, game.VerifyLocation, game.VerifyNone:
	default:
		add("%s: bad verification %q", where, q.Verification)
	}
}

func validateEffect(where string, e game.ItemEffect, add func(string, ...interface{})) {
	switch e.Kind {
	case game.EffectBuff:
		if e.Attribute != game.ALL {
			if _, ok := game.ParseAttribute(string(e.Attribute)); !ok {
				add("%s: buff needs an attribute", where)
			}
		}
		if e.Multiplier <= 0 || e.DurationHours <= 0 {
			add("%s: buff needs a multiplier and duration", where)
		}
	case game.EffectHeal:
		if e.Amount <= 0 {
			add("%s: heal amount must be positive", where)
		}
	case game.EffectXP:
		if _, ok := game.ParseAttribute(string(e.Attribute)); !ok || e.Amount <= 0 {
			add("%s: xp effect needs an attribute and amount", where)
		}
	case game.EffectLore:
		if e.Lore == "" {
			add("%s: lore is empty", where)
		}
	default:
		add("%s: unknown effect %q", where, e.Kind)
	}
}

// Text renders the narrative for key, replacing {name} placeholders with
// the given name/value pairs. Unknown keys return the key itself.
func (c *Content) Text(key string, pairs ...string) string {
	tmpl, ok := c.Narratives.Messages[key]
	if !ok {
		return key
	}
	return fill(tmpl, pairs...)
}

// FastPathNarrative picks a canned line for attr. pick chooses an index.
func (c *Content) FastPathNarrative(attr game.Attribute, xp int, pick func(n int) int) string {
	lines := c.Narratives.FastPath[string(attr)]
	if len(lines) == 0 {
		lines = c.Narratives.Generic
	}
	i := 0
	if pick != nil {
		i = pick(len(lines))
	}
	return fill(lines[i], "attribute", string(attr), "xp", fmt.Sprint(xp))
}

// KeywordMatcher compiles the keyword sets for the fast path.
func (c *Content) KeywordMatcher() *textfilter.KeywordMatcher {
	return textfilter.NewKeywordMatcher(c.Keywords.Order, c.Keywords.Sets)
}

// Item looks up a catalogue entry by id.
func (c *Content) Item(id string) (game.Item, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return game.Item{}, false
}

// FindItem matches an id or a display name, ignoring case and width.
func (c *Content) FindItem(name string) (game.Item, bool) {
	want := textfilter.Normalize(name)
	for _, item := range c.Items {
		if textfilter.Normalize(item.ID) == want || textfilter.Normalize(item.Name) == want {
			return item, true
		}
	}
	return game.Item{}, false
}

// Render fills the mapped text for a sensor event.
func (m PassiveMapping) Render(ev game.PassiveEvent) string {
	return fill(m.Text, "state", ev.State, "entity", ev.EntityID)
}

func fill(tmpl string, pairs ...string) string {
	if len(pairs) == 0 {
		return tmpl
	}
	args := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		args = append(args, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.TrimSpace(strings.NewReplacer(args...).Replace(tmpl))
}
