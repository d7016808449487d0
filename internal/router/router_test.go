package router

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/quest"
	"github.com/jwebster45206/lifequest/internal/storage/memory"
	"github.com/jwebster45206/lifequest/internal/tools"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/reward"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	router  *Router
	store   *memory.Store
	session *tools.Session
}

func newFixture(t *testing.T, mock *llm.MockProvider) *fixture {
	t.Helper()
	var p llm.Provider
	if mock != nil {
		p = mock
	}
	gateway := llm.NewGateway(p, nil, llm.GatewayConfig{
		QuestTimeout:   time.Second,
		DefaultTimeout: time.Second,
		RetryMin:       time.Millisecond,
		RetryMax:       time.Millisecond,
		MaxAttempts:    1,
	}, logger.Discard())

	c := content.MustLoad()
	store := memory.New()
	cfg := quest.DefaultConfig()
	cfg.TestMode = true
	engine := quest.New(store, gateway,
		reward.New(reward.DefaultConfig(), c.Items, rand.New(rand.NewSource(5))),
		flow.New(flow.DefaultConfig()), c, cfg, logger.Discard())
	registry := tools.NewRegistry(store, engine, logger.Discard())

	player := game.NewPlayer("p1", "Ann", testNow.AddDate(0, 0, -3))
	require.NoError(t, store.CreatePlayer(context.Background(), &player))
	rival := game.NewRival(player.ID, testNow)
	require.NoError(t, store.SaveRival(context.Background(), &rival))

	return &fixture{
		router: New(store, gateway, registry, engine, logger.Discard()),
		store:  store,
		session: &tools.Session{
			Player: &player,
			Now:    testNow,
			Flow:   flow.State{Tier: game.TierD, Tone: flow.ToneNeutral, LootMultiplier: 1},
		},
	}
}

func TestFastPlan(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		utterance string
		wantOK    bool
		wantAttr  string
		wantTier  string
	}{
		{"gym 1 hour", true, "STR", "C"},
		{"ＧＹＭ", true, "STR", "D"},
		{"健身", true, "STR", "D"},
		{"看書30分鐘", true, "INT", "C"},
		{"早睡", true, "VIT", "D"},
		{"hello", false, "", ""},
		{"I went to the gym for an hour today", false, "", ""},
		{"   ", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			plan, ok := f.router.FastPlan(tt.utterance)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.True(t, plan.FastPath)
			require.Len(t, plan.Calls, 1)
			args, isLog := plan.Calls[0].Args.(tools.LogActionArgs)
			require.True(t, isLog)
			assert.Equal(t, tt.wantAttr, args.Attribute)
			assert.Equal(t, tt.wantTier, args.Tier)
			assert.True(t, args.NoLoot)
		})
	}
}

func TestRoute_FastPathSkipsModel(t *testing.T) {
	mock := llm.NewMockProvider(`{"tool": "get_status"}`)
	f := newFixture(t, mock)
	ctx := context.Background()

	res, err := f.router.Route(ctx, f.session, "gym 1 hour")
	require.NoError(t, err)

	assert.Equal(t, 0, mock.CallCount())
	assert.Equal(t, "log_action", res.Intent)
	assert.Equal(t, 250, res.Metadata.XPGained)
	assert.Equal(t, game.PersonaSystem, res.Metadata.Sender)
	assert.Empty(t, res.Metadata.LootName)
	assert.Equal(t, game.SourceFastPath, f.session.Source)

	logs, err := f.store.ListCompletions(ctx, "p1", time.Time{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, game.SourceFastPath, logs[0].Source)

	history, err := f.store.RecentLogs(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, chat.ChatRoleUser, history[0].Role)
	assert.Equal(t, "gym 1 hour", history[0].Content)
	assert.Equal(t, chat.ChatRoleAgent, history[1].Role)
}

func TestRoute_SlowPathPlans(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		wantIntent string
		wantSender game.Persona
		wantTexts  int
	}{
		{
			name:       "single tool",
			reply:      `{"thought": "wants stats", "tool": "get_status", "arguments": {}}`,
			wantIntent: "get_status",
			wantSender: game.PersonaSystem,
			wantTexts:  1,
		},
		{
			name:       "ordered plan",
			reply:      `{"thought": "log then show", "plan": [{"tool": "log_action", "arguments": {"text": "read a book for an hour"}}, {"tool": "get_inventory"}]}`,
			wantIntent: "get_inventory",
			wantSender: game.PersonaSystem,
			wantTexts:  2,
		},
		{
			name:       "extended form with voice",
			reply:      `{"thought": "encourage", "response_voice": "mentor", "confidence": 0.9, "tool_calls": [{"tool": "get_status"}]}`,
			wantIntent: "get_status",
			wantSender: game.PersonaMentor,
			wantTexts:  1,
		},
		{
			name:       "goal sets mentor voice",
			reply:      "```json\n{\"tool\": \"set_goal\", \"arguments\": {\"goal_text\": \"learn piano\"}}\n```",
			wantIntent: "set_goal",
			wantSender: game.PersonaMentor,
			wantTexts:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockProvider(tt.reply)
			f := newFixture(t, mock)

			res, err := f.router.Route(context.Background(), f.session, "could you please tell me how I am doing")
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, res.Intent)
			assert.Equal(t, tt.wantSender, res.Metadata.Sender)
			assert.Len(t, strings.Split(res.Text, "\n\n"), tt.wantTexts)
			assert.GreaterOrEqual(t, mock.CallCount(), 1)
			assert.Equal(t, game.SourceRouter, f.session.Source)
		})
	}
}

func TestRoute_PromptCarriesHistoryAndTools(t *testing.T) {
	mock := llm.NewMockProvider(`{"tool": "get_status"}`)
	f := newFixture(t, mock)
	ctx := context.Background()

	_, err := f.router.Route(ctx, f.session, "what does my character look like")
	require.NoError(t, err)
	_, err = f.router.Route(ctx, f.session, "and how about my inventory now")
	require.NoError(t, err)

	req := mock.LastCall()
	assert.Contains(t, req.User, "what does my character look like")
	assert.Contains(t, req.User, "and how about my inventory now")
	assert.Contains(t, req.System, "log_action")
	assert.Contains(t, req.System, "use_item")
	assert.Equal(t, "tool_plan", req.SchemaName)
}

func TestRoute_Fallbacks(t *testing.T) {
	const utterance = "I went to the gym for an hour today"
	degraded := content.MustLoad().Text(content.MsgDegraded)

	tests := []struct {
		name         string
		setup        func(m *llm.MockProvider)
		offline      bool
		wantDegraded bool
	}{
		{
			name:  "unknown tool",
			setup: func(m *llm.MockProvider) { m.Responses = []string{`{"tool": "launch_rocket"}`} },
		},
		{
			name:  "plan without tool",
			setup: func(m *llm.MockProvider) { m.Responses = []string{`{"thought": "hmm"}`} },
		},
		{
			name:         "provider down",
			setup:        func(m *llm.MockProvider) { m.SetError(errors.New("connection refused")) },
			wantDegraded: true,
		},
		{
			name:         "prose twice",
			setup:        func(m *llm.MockProvider) { m.Responses = []string{"sure thing!"} },
			wantDegraded: true,
		},
		{
			name:         "no provider",
			offline:      true,
			wantDegraded: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mock *llm.MockProvider
			if !tt.offline {
				mock = llm.NewMockProvider()
				tt.setup(mock)
			}
			f := newFixture(t, mock)

			res, err := f.router.Route(context.Background(), f.session, utterance)
			require.NoError(t, err)
			assert.Equal(t, "log_action", res.Intent)
			assert.Equal(t, game.STR, res.Metadata.Attribute)
			assert.Equal(t, 100, res.Metadata.XPGained)
			assert.Equal(t, tt.wantDegraded, strings.HasPrefix(res.Text, degraded))
		})
	}
}

func TestRoute_ToolErrorPropagates(t *testing.T) {
	mock := llm.NewMockProvider(`{"tool": "use_item", "arguments": {"item_name": "potion_small"}}`)
	f := newFixture(t, mock)

	_, err := f.router.Route(context.Background(), f.session, "please drink my small potion now")
	require.Error(t, err)
	assert.Equal(t, game.ErrInvalidState, game.KindOf(err))

	history, err := f.store.RecentLogs(context.Background(), "p1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRoute_PassiveSourceIsKept(t *testing.T) {
	f := newFixture(t, nil)
	f.session.Source = game.SourcePassive

	_, err := f.router.Route(context.Background(), f.session, "健身")
	require.NoError(t, err)

	logs, err := f.store.ListCompletions(context.Background(), "p1", time.Time{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, game.SourcePassive, logs[0].Source)
}

func TestRoute_EmptyUtterance(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.router.Route(context.Background(), f.session, "  ")
	assert.Equal(t, game.ErrInvalidArgument, game.KindOf(err))
}

func TestParsePlan(t *testing.T) {
	t.Run("log_action gets the utterance", func(t *testing.T) {
		plan, err := ParsePlan(json.RawMessage(`{"tool": "log_action", "arguments": {"attribute": "INT"}}`), "studied go")
		require.NoError(t, err)
		require.Len(t, plan.Calls, 1)
		assert.Equal(t, tools.LogActionArgs{Text: "studied go", Attribute: "INT"}, plan.Calls[0].Args)
	})

	t.Run("tool_calls win over plan", func(t *testing.T) {
		plan, err := ParsePlan(json.RawMessage(`{
			"plan": [{"tool": "get_status"}],
			"tool_calls": [{"tool": "get_inventory"}, {"tool": "get_quests"}]
		}`), "x")
		require.NoError(t, err)
		assert.Equal(t, "[get_inventory,get_quests]", plan.String())
	})

	t.Run("long plans are cut", func(t *testing.T) {
		plan, err := ParsePlan(json.RawMessage(`{"plan": [
			{"tool": "get_status"}, {"tool": "get_status"}, {"tool": "get_status"},
			{"tool": "get_status"}, {"tool": "get_status"}, {"tool": "get_status"}
		]}`), "x")
		require.NoError(t, err)
		assert.Len(t, plan.Calls, maxPlanSteps)
	})

	t.Run("unknown voice is ignored", func(t *testing.T) {
		plan, err := ParsePlan(json.RawMessage(`{"tool": "get_status", "response_voice": "pirate"}`), "x")
		require.NoError(t, err)
		assert.Empty(t, plan.Voice)
	})

	t.Run("empty plan", func(t *testing.T) {
		_, err := ParsePlan(json.RawMessage(`{"thought": "nothing to do"}`), "x")
		assert.Equal(t, game.ErrInvalidArgument, game.KindOf(err))
	})

	t.Run("bad arguments", func(t *testing.T) {
		_, err := ParsePlan(json.RawMessage(`{"tool": "set_goal", "arguments": {"goal_text": ""}}`), "x")
		assert.Equal(t, game.ErrInvalidArgument, game.KindOf(err))
	})
}

func TestIsFallbackError(t *testing.T) {
	assert.True(t, IsFallbackError(game.NewError(game.ErrAIOffline, "op", "down")))
	assert.True(t, IsFallbackError(game.NewError(game.ErrJSONParseFailed, "op", "bad")))
	assert.False(t, IsFallbackError(game.NewError(game.ErrInvalidState, "op", "no")))
	assert.False(t, IsFallbackError(errors.New("disk full")))
}
