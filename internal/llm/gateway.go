package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// Budget selects the per-call deadline.
type Budget int

const (
	BudgetDefault Budget = iota
	BudgetQuest
)

// SchemaHint describes the JSON the caller expects. Name and Schema are
// forwarded to providers that support constrained decoding; Example is
// appended to the repair prompt.
type SchemaHint struct {
	Name    string
	Schema  map[string]interface{}
	Example string
	Budget  Budget
}

// GatewayConfig holds the timeout and retry policy.
type GatewayConfig struct {
	QuestTimeout   time.Duration
	DefaultTimeout time.Duration
	RetryMin       time.Duration
	RetryMax       time.Duration
	MaxAttempts    uint
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		QuestTimeout:   3 * time.Second,
		DefaultTimeout: 15 * time.Second,
		RetryMin:       2 * time.Second,
		RetryMax:       10 * time.Second,
		MaxAttempts:    3,
	}
}

// GatewayConfigFrom copies the LLM settings out of the app config.
func GatewayConfigFrom(cfg *config.Config) GatewayConfig {
	return GatewayConfig{
		QuestTimeout:   cfg.LLMQuestTimeout,
		DefaultTimeout: cfg.LLMDefaultTimeout,
		RetryMin:       cfg.LLMRetryMin,
		RetryMax:       cfg.LLMRetryMax,
		MaxAttempts:    cfg.LLMMaxAttempts,
	}
}

// Gateway is the only call site for model providers. A returned
// json.RawMessage is always valid JSON; every failure is a *game.Error of
// kind AI_OFFLINE, AI_TIMEOUT or JSON_PARSE_FAILED.
type Gateway struct {
	provider Provider
	vision   Provider
	cfg      GatewayConfig
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewGateway wires a gateway. provider may be nil, in which case every
// call fails with AI_OFFLINE. vision defaults to provider.
func NewGateway(provider, vision Provider, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if vision == nil {
		vision = provider
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	return &Gateway{
		provider: provider,
		vision:   vision,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("github.com/jwebster45206/lifequest/internal/llm"),
	}
}

// Available reports whether a provider is configured.
func (g *Gateway) Available() bool {
	return g != nil && g.provider != nil
}

// GenerateJSON asks the provider for JSON matching hint.
func (g *Gateway) GenerateJSON(ctx context.Context, system, user string, hint SchemaHint) (json.RawMessage, error) {
	const op = "llm.generate_json"
	ctx, span := g.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("llm.schema", hint.Name)))
	defer span.End()

	if !g.Available() {
		return nil, game.NewError(game.ErrAIOffline, op, "no provider configured")
	}

	out, err := g.generate(ctx, g.provider, Request{
		System:     system,
		User:       user,
		SchemaName: hint.Name,
		Schema:     hint.Schema,
	}, hint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(game.KindOf(err)))
		return nil, err
	}
	return out, nil
}

func (g *Gateway) timeout(b Budget) time.Duration {
	if b == BudgetQuest {
		return g.cfg.QuestTimeout
	}
	return g.cfg.DefaultTimeout
}

// generate runs the retrying call and the parse pipeline under one deadline.
func (g *Gateway) generate(ctx context.Context, p Provider, req Request, hint SchemaHint) (json.RawMessage, error) {
	const op = "llm.generate_json"
	ctx, cancel := context.WithTimeout(ctx, g.timeout(hint.Budget))
	defer cancel()

	start := time.Now()
	text, err := g.complete(ctx, p, req)
	if err != nil {
		return nil, err
	}

	if out, ok := ParseJSON(text); ok {
		g.logger.Debug("llm reply parsed",
			"provider", p.Name(),
			"schema", hint.Name,
			"duration_ms", time.Since(start).Milliseconds())
		return out, nil
	}

	g.logger.Warn("llm reply is not valid JSON, sending repair prompt",
		"provider", p.Name(),
		"schema", hint.Name,
		"reply", truncate(text, 200))

	repaired, err := p.Complete(ctx, Request{
		System:     repairSystemPrompt,
		User:       repairUserPrompt(text, hint.Example),
		SchemaName: req.SchemaName,
		Schema:     req.Schema,
	})
	if err != nil {
		if ctxErr := timeoutError(ctx, err); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, game.WrapError(game.ErrJSONParseFailed, op, fmt.Errorf("repair call failed: %w", err))
	}
	if out, ok := ParseJSON(repaired); ok {
		return out, nil
	}
	return nil, game.NewError(game.ErrJSONParseFailed, op, "reply is not valid JSON after repair")
}

// complete calls the provider with exponential backoff on transient errors.
func (g *Gateway) complete(ctx context.Context, p Provider, req Request) (string, error) {
	const op = "llm.generate_json"
	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		out, err := p.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return "", backoff.Permanent(err)
		}
		g.logger.Warn("llm call failed, retrying",
			"provider", p.Name(),
			"attempt", attempt,
			"error", err)
		return "", err
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     g.cfg.RetryMin,
			RandomizationFactor: backoff.DefaultRandomizationFactor,
			Multiplier:          backoff.DefaultMultiplier,
			MaxInterval:         g.cfg.RetryMax,
		}),
		backoff.WithMaxTries(g.cfg.MaxAttempts),
	)
	if err == nil {
		return text, nil
	}
	if ctxErr := timeoutError(ctx, err); ctxErr != nil {
		return "", ctxErr
	}
	return "", game.WrapError(game.ErrAIOffline, op, err)
}

func timeoutError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return game.WrapError(game.ErrAITimeout, "llm.generate_json", context.DeadlineExceeded)
	}
	return nil
}

const repairSystemPrompt = "You fix malformed JSON. Reply with the corrected JSON value only, no prose and no code fences."

func repairUserPrompt(previous, example string) string {
	var b strings.Builder
	b.WriteString("The following output was supposed to be valid JSON but is not. Return it as valid JSON.\n\n")
	b.WriteString(previous)
	if example != "" {
		b.WriteString("\n\nExpected shape:\n")
		b.WriteString(example)
	}
	return b.String()
}

// ParseJSON runs the tolerant parse steps: strip code fences, parse, then
// extract the outermost object or array and parse again.
func ParseJSON(text string) (json.RawMessage, bool) {
	s := StripFences(text)
	if s != "" && json.Valid([]byte(s)) {
		return json.RawMessage(s), true
	}
	if frag, ok := ExtractOutermost(s); ok && json.Valid([]byte(frag)) {
		return json.RawMessage(frag), true
	}
	return nil, false
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexAny(s, "\n "); nl >= 0 && isFenceTag(s[:nl]) {
		s = s[nl+1:]
	} else if isFenceTag(s) {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// ExtractOutermost returns the first balanced {...} or [...] in s. String
// literals are skipped so braces inside them do not count.
func ExtractOutermost(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Decode unmarshals raw into v, reporting failures as JSON_PARSE_FAILED.
func Decode(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return game.WrapError(game.ErrJSONParseFailed, "llm.decode", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
