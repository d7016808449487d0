package content

import (
	"testing"
	"testing/fstest"

	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"STR", "INT", "VIT"}, c.Keywords.Order)
	assert.GreaterOrEqual(t, len(c.Quests.Fallback), FallbackQuestCount)
	assert.Len(t, c.Quests.RescueStages, RescueStageCount)
	assert.GreaterOrEqual(t, len(c.Habits), 2)
	assert.NotEmpty(t, c.Taunts)
	assert.Equal(t, game.TierS, c.Quests.Boss.Tier)
	assert.Equal(t, 500, c.Quests.Boss.XPReward)
}

func TestKeywordMatcher_FastPathWords(t *testing.T) {
	km := MustLoad().KeywordMatcher()

	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"gym 1 hour", "STR", true},
		{"ＧＹＭ", "STR", true},
		{"今天去健身", "STR", true},
		{"study go", "INT", true},
		{"早睡", "VIT", true},
		{"gymnastics", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := km.Match(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText(t *testing.T) {
	c := MustLoad()

	assert.Equal(t, "金幣不足：需要 30，你只有 5。",
		c.Text(MsgInsufficientGold, "price", "30", "gold", "5"))
	assert.Equal(t, "no_such_key", c.Text("no_such_key"))
}

func TestFastPathNarrative(t *testing.T) {
	c := MustLoad()

	got := c.FastPathNarrative(game.STR, 250, func(int) int { return 0 })
	assert.Contains(t, got, "250")

	// attributes without canned lines use the generic table
	got = c.FastPathNarrative(game.CHA, 25, nil)
	assert.Contains(t, got, "CHA")
	assert.Contains(t, got, "25")
}

func TestFindItem(t *testing.T) {
	c := MustLoad()

	item, ok := c.FindItem("小型藥水")
	require.True(t, ok)
	assert.Equal(t, "potion_small", item.ID)

	item, ok = c.FindItem("FOCUS_TEA")
	require.True(t, ok)
	assert.Equal(t, game.EffectBuff, item.Effect.Kind)

	_, ok = c.FindItem("excalibur")
	assert.False(t, ok)
}

func TestPassiveRender(t *testing.T) {
	c := MustLoad()
	m, ok := c.Passive["sleep_detected"]
	require.True(t, ok)
	assert.Equal(t, "sleep 8h", m.Render(game.PassiveEvent{EventType: "sleep_detected", State: "8h"}))
}

func TestLoadFS_ReportsProblems(t *testing.T) {
	fsys := fstest.MapFS{}
	for _, name := range []string{"keywords.yaml", "narratives.yaml", "habits.yaml", "items.yaml", "taunts.yaml", "passive.yaml"} {
		data, err := embedded.ReadFile("data/" + name)
		require.NoError(t, err)
		fsys[name] = &fstest.MapFile{Data: data}
	}
	fsys["quests.yaml"] = &fstest.MapFile{Data: []byte(`
fallback:
  - title: "Drink water"
    tier: E
    attribute: VIT
    verification: TEXT
recovery: []
redemption: {title: "救贖", tier: F, attribute: VIT, verification: NONE}
boss: {title: "擊敗", tier: A, attribute: CHA, verification: TEXT}
rescue_stages: ["一"]
default_description: "短任務"
`)}

	_, err := LoadFS(fsys)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "no CJK text")
	assert.Contains(t, msg, "need at least 3 fallback quests")
	assert.Contains(t, msg, "tier must be S")
	assert.Contains(t, msg, "rescue stages")
}

func TestLoadFS_UnknownField(t *testing.T) {
	fsys := fstest.MapFS{
		"keywords.yaml": &fstest.MapFile{Data: []byte("order: [STR]\nbogus: 1\n")},
	}
	_, err := LoadFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keywords.yaml")
}
