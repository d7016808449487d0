// Package router decides what the player meant. Short utterances that hit
// a keyword set take the fast path and never reach a model; everything
// else is planned by the LLM gateway and dispatched to the tool registry.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/internal/quest"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/internal/tools"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/prompts"
	"github.com/jwebster45206/lifequest/pkg/textfilter"
)

const (
	// FastPathMaxRunes is the exclusive upper bound on utterance length
	// for the keyword fast path.
	FastPathMaxRunes = 15

	DefaultHistoryTurns = 3

	// replyLogRunes bounds the assistant entry written to the log.
	replyLogRunes = 200
)

type Router struct {
	store        storage.Store
	gateway      *llm.Gateway
	registry     *tools.Registry
	quests       *quest.Engine
	content      *content.Content
	matcher      *textfilter.KeywordMatcher
	softener     *textfilter.Softener
	historyTurns int
	logger       *slog.Logger
	tracer       trace.Tracer
}

type Option func(*Router)

// WithHistoryTurns sets how many past turns the slow path sees.
func WithHistoryTurns(n int) Option {
	return func(r *Router) { r.historyTurns = n }
}

func New(store storage.Store, gateway *llm.Gateway, registry *tools.Registry, quests *quest.Engine, logger *slog.Logger, opts ...Option) *Router {
	c := quests.Content()
	r := &Router{
		store:        store,
		gateway:      gateway,
		registry:     registry,
		quests:       quests,
		content:      c,
		matcher:      c.KeywordMatcher(),
		softener:     textfilter.NewSoftener(),
		historyTurns: DefaultHistoryTurns,
		logger:       logger,
		tracer:       otel.Tracer("github.com/jwebster45206/lifequest/internal/router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FastPlan returns the keyword plan for a short utterance, or false when
// the slow path must decide.
func (r *Router) FastPlan(utterance string) (Plan, bool) {
	norm := textfilter.Normalize(utterance)
	if norm == "" || textfilter.RuneLen(norm) >= FastPathMaxRunes {
		return Plan{}, false
	}
	label, ok := r.matcher.Match(norm)
	if !ok {
		return Plan{}, false
	}
	attr, ok := game.ParseAttribute(label)
	if !ok {
		return Plan{}, false
	}
	return Plan{
		FastPath: true,
		Calls: []tools.Call{tools.NewCall(tools.LogActionArgs{
			Text:      strings.TrimSpace(utterance),
			Attribute: string(attr),
			Tier:      string(tools.InferTier(norm)),
			NoLoot:    true,
		})},
	}, true
}

// Route plans and executes one utterance. Tool errors are returned
// unchanged so the turn rolls back; model failures never are.
func (r *Router) Route(ctx context.Context, s *tools.Session, utterance string) (game.Result, error) {
	ctx, span := r.tracer.Start(ctx, "router.route", trace.WithAttributes(
		attribute.String("player.id", s.Player.ID),
	))
	defer span.End()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return game.Result{}, game.NewError(game.ErrInvalidArgument, "router.route", "empty utterance")
	}

	plan, degraded, err := r.plan(ctx, s, utterance)
	if err != nil {
		span.RecordError(err)
		return game.Result{}, err
	}
	switch {
	case s.Source == game.SourcePassive:
	case plan.FastPath:
		s.Source = game.SourceFastPath
	default:
		s.Source = game.SourceRouter
	}
	span.SetAttributes(
		attribute.Bool("router.fast_path", plan.FastPath),
		attribute.Bool("router.degraded", degraded),
		attribute.Int("router.tool_count", len(plan.Calls)),
	)

	res, err := r.dispatch(ctx, s, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(game.KindOf(err)))
		return game.Result{}, err
	}
	if degraded {
		res.Text = r.content.Text(content.MsgDegraded) + "\n\n" + res.Text
	}
	if s.Flow.EngagementOverride {
		res.Metadata.Engagement = true
	}
	if res.Metadata.Tone == "" {
		res.Metadata.Tone = string(s.Flow.Tone)
	}

	if err := r.remember(ctx, s, utterance, res.Text); err != nil {
		return game.Result{}, err
	}

	r.logger.Info("Turn routed",
		"player_id", s.Player.ID,
		"plan", plan.String(),
		"fast_path", plan.FastPath,
		"degraded", degraded,
		"intent", res.Intent)
	return res, nil
}

// plan picks the fast path, then the model, then the log_action fallback.
// degraded is true when no model is configured or the model failed.
func (r *Router) plan(ctx context.Context, s *tools.Session, utterance string) (Plan, bool, error) {
	if p, ok := r.FastPlan(utterance); ok {
		return p, false, nil
	}
	if !r.gateway.Available() {
		return fallbackPlan(utterance), true, nil
	}

	p, err := r.slowPlan(ctx, s, utterance)
	if err == nil {
		return p, false, nil
	}
	if !IsFallbackError(err) {
		return Plan{}, false, err
	}
	r.logger.Warn("Router fell back to log_action",
		"player_id", s.Player.ID,
		"error", err,
		"kind", game.KindOf(err))
	// An unknown tool is the model's mistake, not an outage.
	return fallbackPlan(utterance), game.KindOf(err) != game.ErrInvalidArgument, nil
}

func (r *Router) slowPlan(ctx context.Context, s *tools.Session, utterance string) (Plan, error) {
	ps, err := r.quests.PromptState(ctx, s.Player, &s.Flow, s.Now)
	if err != nil {
		return Plan{}, err
	}
	history, err := r.store.RecentLogs(ctx, s.Player.ID, r.historyTurns*2)
	if err != nil {
		return Plan{}, err
	}
	prompt, err := prompts.New().
		WithState(ps).
		WithTools(r.registry.Specs()).
		WithHistory(history).
		WithHistoryTurns(r.historyTurns).
		WithUtterance(utterance).
		Build()
	if err != nil {
		return Plan{}, err
	}

	raw, err := r.gateway.GenerateJSON(ctx, prompt.System, prompt.User, llm.SchemaHint{
		Name:    "tool_plan",
		Schema:  planSchema,
		Example: prompts.RouterPlanExample,
	})
	if err != nil {
		return Plan{}, err
	}
	return ParsePlan(raw, utterance)
}

func (r *Router) dispatch(ctx context.Context, s *tools.Session, plan Plan) (game.Result, error) {
	var (
		res   game.Result
		texts []string
		last  tools.Name
	)
	for _, call := range plan.Calls {
		if args, ok := call.Args.(tools.LogActionArgs); ok && args.Narrative != "" {
			args.Narrative = r.softener.Soften(args.Narrative)
			call.Args = args
		}
		out, err := r.registry.Execute(ctx, s, call)
		if err != nil {
			return game.Result{}, err
		}
		if out.Text != "" {
			texts = append(texts, out.Text)
		}
		res.Metadata.Merge(out.Meta)
		res.QuickReplies = append(res.QuickReplies, out.QuickReplies...)
		res.Intent = out.Intent
		last = call.Name
	}
	res.Text = strings.Join(texts, "\n\n")

	// A tool that speaks as someone else (the boss banner) keeps its voice.
	if res.Metadata.Sender == "" {
		res.Metadata.Sender = tools.Persona(last)
		if plan.Voice != "" {
			res.Metadata.Sender = plan.Voice
		}
	}
	return res, nil
}

func (r *Router) remember(ctx context.Context, s *tools.Session, utterance, reply string) error {
	entries := []chat.LogEntry{
		{Role: chat.ChatRoleUser, Content: utterance},
		{Role: chat.ChatRoleAgent, Content: textfilter.Truncate(reply, replyLogRunes)},
	}
	for i := range entries {
		entries[i].ID = uuid.New().String()
		entries[i].PlayerID = s.Player.ID
		entries[i].CreatedAt = s.Now.Add(time.Duration(i) * time.Millisecond)
		if err := r.store.AppendLog(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// IsFallbackError reports whether err is one the router absorbs by
// falling back to log_action.
func IsFallbackError(err error) bool {
	var ge *game.Error
	if !errors.As(err, &ge) {
		return false
	}
	switch ge.Kind {
	case game.ErrAIOffline, game.ErrAITimeout, game.ErrJSONParseFailed, game.ErrInvalidArgument:
		return true
	}
	return false
}
