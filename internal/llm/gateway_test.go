package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/pkg/game"
)

func fastConfig() GatewayConfig {
	return GatewayConfig{
		QuestTimeout:   50 * time.Millisecond,
		DefaultTimeout: time.Second,
		RetryMin:       time.Millisecond,
		RetryMax:       5 * time.Millisecond,
		MaxAttempts:    3,
	}
}

func newTestGateway(p Provider) *Gateway {
	return NewGateway(p, nil, fastConfig(), logger.Discard())
}

func TestGateway_Offline(t *testing.T) {
	g := NewGateway(nil, nil, fastConfig(), logger.Discard())
	assert.False(t, g.Available())

	_, err := g.GenerateJSON(context.Background(), "sys", "user", SchemaHint{})
	require.Error(t, err)
	assert.Equal(t, game.ErrAIOffline, game.KindOf(err))
	assert.True(t, game.IsAIFailure(err))
}

func TestGateway_ParsesReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without tag", "```\n[1,2]\n```", `[1,2]`},
		{"prose around object", `Sure! Here it is: {"a": {"b": "}"}} hope this helps`, `{"a": {"b": "}"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.reply)
			out, err := newTestGateway(mock).GenerateJSON(context.Background(), "sys", "user", SchemaHint{Name: "t"})
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
			assert.True(t, json.Valid(out))
			assert.Equal(t, 1, mock.CallCount())
		})
	}
}

func TestGateway_RepairFails(t *testing.T) {
	mock := NewMockProvider("```json {\"title\": \"X\" ```", "still not json")
	_, err := newTestGateway(mock).GenerateJSON(context.Background(), "sys", "user", SchemaHint{Name: "quest"})

	require.Error(t, err)
	assert.Equal(t, game.ErrJSONParseFailed, game.KindOf(err))
	require.Equal(t, 2, mock.CallCount(), "exactly one repair prompt")
	assert.Equal(t, repairSystemPrompt, mock.LastCall().System)
	assert.Contains(t, mock.LastCall().User, `{"title": "X"`)
}

func TestGateway_RepairSucceeds(t *testing.T) {
	mock := NewMockProvider(`{"title": "X"`, `{"title": "X"}`)
	out, err := newTestGateway(mock).GenerateJSON(context.Background(), "sys", "user", SchemaHint{Example: `{"title": "..."}`})

	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "X"}`, string(out))
	assert.Contains(t, mock.LastCall().User, "Expected shape")
}

func TestGateway_TimeoutIsNotRetried(t *testing.T) {
	mock := NewMockProvider()
	mock.CompleteFunc = func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	start := time.Now()
	_, err := newTestGateway(mock).GenerateJSON(context.Background(), "sys", "user", SchemaHint{Budget: BudgetQuest})

	require.Error(t, err)
	assert.Equal(t, game.ErrAITimeout, game.KindOf(err))
	assert.Equal(t, 1, mock.CallCount())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGateway_RetriesTransientErrors(t *testing.T) {
	mock := NewMockProvider()
	calls := 0
	mock.CompleteFunc = func(ctx context.Context, req Request) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{Provider: "mock", StatusCode: http.StatusServiceUnavailable}
		}
		return `{"ok":true}`, nil
	}

	out, err := newTestGateway(mock).GenerateJSON(context.Background(), "sys", "user", SchemaHint{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, 3, mock.CallCount())
}

func TestGateway_RetriesExhausted(t *testing.T) {
	mock := NewMockProvider()
	mock.SetError(&StatusError{Provider: "mock", StatusCode: http.StatusTooManyRequests})

	_, err := newTestGateway(mock).GenerateJSON(context.Background(), "sys", "user", SchemaHint{})
	require.Error(t, err)
	assert.Equal(t, game.ErrAIOffline, game.KindOf(err))
	assert.Equal(t, 3, mock.CallCount())
}

func TestGateway_PermanentErrorStopsImmediately(t *testing.T) {
	mock := NewMockProvider()
	mock.SetError(&StatusError{Provider: "mock", StatusCode: http.StatusUnauthorized})

	_, err := newTestGateway(mock).GenerateJSON(context.Background(), "sys", "user", SchemaHint{})
	require.Error(t, err)
	assert.Equal(t, game.ErrAIOffline, game.KindOf(err))
	assert.Equal(t, 1, mock.CallCount())

	var se *StatusError
	assert.True(t, errors.As(err, &se))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(&StatusError{StatusCode: http.StatusBadRequest}))
	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusBadGateway}))
	assert.True(t, IsTransient(errors.New("unexpected EOF")))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"title": "X"`, StripFences("```json {\"title\": \"X\" ```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))
	assert.Equal(t, `{"a":1}`, StripFences("```{\"a\":1}```"))
}

func TestExtractOutermost(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`noise [1, [2]] tail`, `[1, [2]]`, true},
		{`{"s": "a \" } b"}`, `{"s": "a \" } b"}`, true},
		{`{"title": "X"`, "", false},
		{`{"a": [1}`, "", false},
		{`no json here`, "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractOutermost(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Title string `json:"title"`
	}
	require.NoError(t, Decode(json.RawMessage(`{"title":"X"}`), &v))
	assert.Equal(t, "X", v.Title)

	var n int
	err := Decode(json.RawMessage(`"text"`), &n)
	assert.Equal(t, game.ErrJSONParseFailed, game.KindOf(err))
}
