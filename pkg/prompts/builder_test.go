package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/game"
)

var testTools = []ToolSpec{
	{Name: "get_status", Description: "show the character sheet"},
	{Name: "log_action", Description: "record a real-life action", Arguments: map[string]string{"text": "string"}},
}

func testState() *PromptState {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := game.NewPlayer("u1", "Ada", now)
	r := game.NewRival("u1", now)
	return ToPromptState(&p, &r, nil, nil, &flow.State{Tier: game.TierD, Tone: flow.ToneChallenging}, now)
}

func TestNew(t *testing.T) {
	builder := New()
	if builder == nil {
		t.Fatal("Expected builder to be created, got nil")
	}
	if builder.historyTurns != 3 {
		t.Errorf("Expected default history of 3 turns, got %d", builder.historyTurns)
	}
}

func TestBuilder_FluentInterface(t *testing.T) {
	ps := testState()
	builder := New().
		WithState(ps).
		WithTools(testTools).
		WithUtterance("hello").
		WithHistoryTurns(5)

	if builder.state != ps {
		t.Error("WithState did not set state")
	}
	if len(builder.tools) != 2 {
		t.Error("WithTools did not set tools")
	}
	if builder.utterance != "hello" {
		t.Error("WithUtterance did not set utterance")
	}
	if builder.historyTurns != 5 {
		t.Error("WithHistoryTurns did not set turns")
	}
}

func TestBuilder_Build_Requirements(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		wantErr string
	}{
		{"no state", New().WithTools(testTools).WithUtterance("hi"), "player state is required"},
		{"no utterance", New().WithState(testState()).WithTools(testTools).WithUtterance("  "), "utterance is required"},
		{"no tools", New().WithState(testState()).WithUtterance("hi"), "at least one tool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuilder_Build(t *testing.T) {
	history := []chat.LogEntry{
		{Role: chat.ChatRoleUser, Content: "turn one"},
		{Role: chat.ChatRoleAgent, Content: "reply one"},
		{Role: chat.ChatRoleUser, Content: "turn two"},
		{Role: chat.ChatRoleAgent, Content: "reply two"},
	}

	p, err := New().
		WithState(testState()).
		WithTools(testTools).
		WithHistory(history).
		WithHistoryTurns(1).
		WithUtterance("I read two chapters").
		Build()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, want := range []string{`- log_action {"text": "string"}: record a real-life action`, "- get_status {}", "challenging", "Suggested difficulty for new tasks: D."} {
		if !strings.Contains(p.System, want) {
			t.Errorf("Expected system prompt to contain %q", want)
		}
	}
	if !strings.Contains(p.User, "Player says: I read two chapters") {
		t.Error("Expected utterance in user prompt")
	}
	if strings.Contains(p.User, "turn one") {
		t.Error("Expected history to be windowed to the last turn")
	}
	if !strings.Contains(p.User, "assistant: reply two") {
		t.Error("Expected last turn in history")
	}
	if !strings.Contains(p.User, `"hp_status":"HEALTHY"`) {
		t.Error("Expected player snapshot in user prompt")
	}
}

func TestBuilder_Build_DefaultTone(t *testing.T) {
	ps := testState()
	ps.Tone = ""
	p, err := New().WithState(ps).WithTools(testTools).WithUtterance("hi").Build()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(p.System, "right now: neutral.") {
		t.Error("Expected neutral tone fallback")
	}
}
