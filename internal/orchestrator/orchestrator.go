// Package orchestrator is the turn handler. One inbound event becomes one
// transaction: load the player, let the rival act on missed days, gate on
// vitals, dispatch to the router or a direct action, and commit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/passive"
	"github.com/jwebster45206/lifequest/internal/quest"
	"github.com/jwebster45206/lifequest/internal/router"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/internal/tools"
	"github.com/jwebster45206/lifequest/pkg/game"
	"github.com/jwebster45206/lifequest/pkg/reward"
)

const DefaultHPDecayPerMissedDay = 10

type Config struct {
	// Location decides where calendar days start and end.
	Location            *time.Location
	HPDecayPerMissedDay int
}

func DefaultConfig() Config {
	return Config{Location: time.UTC, HPDecayPerMissedDay: DefaultHPDecayPerMissedDay}
}

// ConfigFrom copies the turn settings out of the app config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{Location: cfg.Location(), HPDecayPerMissedDay: cfg.HPDecayPerMissedDay}
}

type Orchestrator struct {
	store      storage.Store
	quests     *quest.Engine
	router     *router.Router
	registry   *tools.Registry
	passive    *passive.Mapper
	shop       *Shop
	content    *content.Content
	accountant *reward.Accountant
	cfg        Config
	clock      func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = fn }
}

func New(store storage.Store, quests *quest.Engine, rt *router.Router, registry *tools.Registry, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	c := quests.Content()
	o := &Orchestrator{
		store:      store,
		quests:     quests,
		router:     rt,
		registry:   registry,
		passive:    passive.NewMapper(c),
		shop:       NewShop(store, c, logger),
		content:    c,
		accountant: quests.Accountant(),
		cfg:        cfg,
		clock:      time.Now,
		logger:     logger,
		tracer:     otel.Tracer("github.com/jwebster45206/lifequest/internal/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Shop exposes the purchase path for callers outside a turn.
func (o *Orchestrator) Shop() *Shop { return o.shop }

// Now is the orchestrator clock in the game timezone.
func (o *Orchestrator) Now() time.Time { return o.clock().In(o.cfg.Location) }

// ProcessTurn runs a TEXT turn.
func (o *Orchestrator) ProcessTurn(ctx context.Context, playerID, text string) (game.Result, error) {
	return o.HandleEvent(ctx, game.InboundEvent{PlayerID: playerID, Kind: game.EventText, Text: text})
}

// HandleEvent runs one inbound event. The returned Result is always safe
// to show the player: failures are rendered into it. The error is the
// underlying failure, for logging and status codes.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev game.InboundEvent) (game.Result, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.process_turn", trace.WithAttributes(
		attribute.String("player.id", ev.PlayerID),
		attribute.String("event.kind", string(ev.Kind)),
	))
	defer span.End()

	start := time.Now()
	now := o.Now()
	log := o.logger.With("player_id", ev.PlayerID, "kind", ev.Kind)

	var res game.Result
	err := validateEvent(ev)
	if err == nil {
		err = o.store.RunInTx(ctx, func(ctx context.Context) error {
			var txErr error
			res, txErr = o.turn(ctx, ev, now)
			return txErr
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(game.KindOf(err)))
		res = o.renderError(log, err)
		return res, err
	}

	span.SetAttributes(attribute.String("turn.intent", res.Intent))
	log.Info("Turn processed",
		"intent", res.Intent,
		"sender", res.Metadata.Sender,
		"xp", res.Metadata.XPGained,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func validateEvent(ev game.InboundEvent) error {
	const op = "orchestrator.validate"
	if strings.TrimSpace(ev.PlayerID) == "" {
		return game.NewError(game.ErrInvalidArgument, op, "player_id is required")
	}
	switch ev.Kind {
	case game.EventText:
		if strings.TrimSpace(ev.Text) == "" {
			return game.NewError(game.ErrInvalidArgument, op, "text is required")
		}
	case game.EventPostback:
		if strings.TrimSpace(ev.Postback) == "" {
			return game.NewError(game.ErrInvalidArgument, op, "postback is required")
		}
	case game.EventPassiveEvent:
		if ev.Passive == nil {
			return game.NewError(game.ErrInvalidArgument, op, "passive event is required")
		}
	case game.EventImageBytes, game.EventLocation, game.EventFollow:
	default:
		return game.NewError(game.ErrInvalidArgument, op, fmt.Sprintf("unknown event kind %q", ev.Kind))
	}
	return nil
}

// turn is the body of the transaction.
func (o *Orchestrator) turn(ctx context.Context, ev game.InboundEvent, now time.Time) (game.Result, error) {
	p, created, err := o.loadOrCreate(ctx, ev.PlayerID, ev.DisplayName, now)
	if err != nil {
		return game.Result{}, err
	}
	s := &tools.Session{Player: p, Now: now}

	var res game.Result
	if ev.Kind == game.EventFollow {
		res, err = o.welcome(ctx, s, created)
		if err != nil {
			return game.Result{}, err
		}
		return res, o.save(ctx, p, now)
	}

	// The pre-pass is best-effort. It runs in a savepoint so a failure
	// rolls back its writes and leaves the player as loaded; the next turn
	// retries it. The player is marked active only at the end of the turn,
	// so flow state still sees how long they were away.
	snapshot := *p
	var pre []string
	err = o.store.RunInTx(ctx, func(ctx context.Context) error {
		var preErr error
		pre, preErr = o.rivalPrepass(ctx, p, now)
		return preErr
	})
	settled := err == nil
	if !settled {
		*p = snapshot
		pre = nil
		o.logger.Warn("Rival pre-pass failed", "player_id", p.ID, "error", err)
	}

	if p.IsHollowed() {
		res, err = o.rescue(ctx, s)
	} else {
		s.Flow, err = o.quests.FlowState(ctx, p, now)
		if err == nil {
			res, err = o.dispatch(ctx, s, ev)
		}
	}
	if err != nil {
		verdict, ok := o.renderVerdict(err)
		if !ok {
			return game.Result{}, err
		}
		res = verdict
	}

	o.compose(&res, pre)
	if settled {
		p.LastActiveDate = game.DateOf(now)
	}
	return res, o.save(ctx, p, now)
}

func (o *Orchestrator) save(ctx context.Context, p *game.Player, now time.Time) error {
	p.UpdatedAt = now
	if err := o.store.SavePlayer(ctx, p); err != nil {
		return fmt.Errorf("orchestrator.save_player: %w", err)
	}
	return nil
}

// loadOrCreate locks the player row, creating the player with a rival and
// starter habits on first contact.
func (o *Orchestrator) loadOrCreate(ctx context.Context, id, name string, now time.Time) (*game.Player, bool, error) {
	p, err := o.store.GetPlayerForUpdate(ctx, id)
	if err == nil {
		if name != "" && p.DisplayName != name {
			p.DisplayName = name
		}
		return p, false, nil
	}
	if !storage.IsNotFound(err) {
		return nil, false, fmt.Errorf("orchestrator.load_player: %w", err)
	}

	if name == "" {
		name = "Player"
	}
	np := game.NewPlayer(id, name, now)
	if err := o.store.CreatePlayer(ctx, &np); err != nil {
		return nil, false, fmt.Errorf("orchestrator.create_player: %w", err)
	}
	rv := game.NewRival(id, now)
	if err := o.store.SaveRival(ctx, &rv); err != nil {
		return nil, false, fmt.Errorf("orchestrator.create_player: rival: %w", err)
	}
	if _, err := o.quests.SeedHabits(ctx, &np); err != nil {
		return nil, false, err
	}
	o.logger.Info("Player created", "player_id", id)
	return &np, true, nil
}

// dispatch runs the event against the router or a direct handler.
func (o *Orchestrator) dispatch(ctx context.Context, s *tools.Session, ev game.InboundEvent) (game.Result, error) {
	switch ev.Kind {
	case game.EventText:
		return o.router.Route(ctx, s, ev.Text)
	case game.EventPostback:
		return o.postback(ctx, s, ev.Postback)
	case game.EventImageBytes:
		return o.image(ctx, s, ev)
	case game.EventLocation:
		return game.SystemResult("location", o.content.Text(content.MsgLocationHint)), nil
	case game.EventPassiveEvent:
		return o.passiveEvent(ctx, s, *ev.Passive)
	}
	return game.Result{}, game.NewError(game.ErrInvalidArgument, "orchestrator.dispatch", fmt.Sprintf("unknown event kind %q", ev.Kind))
}

func (o *Orchestrator) welcome(ctx context.Context, s *tools.Session, created bool) (game.Result, error) {
	flowState, err := o.quests.FlowState(ctx, s.Player, s.Now)
	if err != nil {
		return game.Result{}, err
	}
	s.Flow = flowState
	out, err := o.registry.Execute(ctx, s, tools.NewCall(tools.QuestsArgs{}))
	if err != nil {
		return game.Result{}, err
	}
	o.logger.Debug("Welcome sent", "player_id", s.Player.ID, "new_player", created)
	return game.Result{
		Text:         o.content.Text(content.MsgWelcome, "name", s.Player.DisplayName) + "\n\n" + out.Text,
		QuickReplies: out.QuickReplies,
		Intent:       "welcome",
		Metadata:     game.Metadata{Sender: game.PersonaMentor},
	}, nil
}

func (o *Orchestrator) image(ctx context.Context, s *tools.Session, ev game.InboundEvent) (game.Result, error) {
	q, err := o.quests.FirstImageQuest(ctx, s.Player, s.Now)
	if err != nil {
		return game.Result{}, err
	}
	if q == nil {
		return game.SystemResult("image_unmatched", o.content.Text(content.MsgNoImageQuest)), nil
	}
	c, err := o.quests.Verify(ctx, s.Player, q, quest.Submission{Image: ev.Image, ImageMIME: ev.ImageMIME, Text: ev.Text}, s.Now)
	if err != nil {
		return game.Result{}, err
	}
	return o.completionResult(c), nil
}

// passiveEvent routes positive sensor events like a report from the
// player and only acknowledges the rest.
func (o *Orchestrator) passiveEvent(ctx context.Context, s *tools.Session, ev game.PassiveEvent) (game.Result, error) {
	rec, err := o.passive.Map(ev)
	if err != nil {
		return game.Result{}, err
	}
	if !rec.Rewardable() {
		res := game.SystemResult("passive_noted", o.content.Text(content.MsgPassiveNoted, "text", rec.Text))
		return res, nil
	}
	s.Source = game.SourcePassive
	res, err := o.router.Route(ctx, s, rec.Text)
	if err != nil {
		return game.Result{}, err
	}
	o.logger.Debug("Passive event routed",
		"player_id", s.Player.ID,
		"event_type", rec.EventType,
		"category", rec.Category)
	return res, nil
}

func (o *Orchestrator) completionResult(c *quest.Completion) game.Result {
	meta := c.Metadata()
	meta.Sender = game.PersonaSystem
	return game.Result{
		Text:     o.registry.DescribeCompletion(c),
		Intent:   "quest_complete",
		Metadata: meta,
	}
}

// compose folds the rival's narrative into the result and fills the
// rendering hints.
func (o *Orchestrator) compose(res *game.Result, pre []string) {
	if len(pre) > 0 {
		narrative := strings.Join(pre, "\n")
		switch {
		case res.ImageURL != "" || len(res.Metadata.FlexPayload) > 0:
			res.Metadata.PreText = narrative
		case res.Text == "":
			res.Text = narrative
		default:
			res.Text = narrative + "\n\n" + res.Text
		}
	}
	if res.Metadata.Sender == "" {
		res.Metadata.Sender = game.PersonaSystem
	}
	if res.Metadata.LevelUp {
		res.Metadata.AudioCue = game.AudioLevelUp
	}
}

// renderVerdict turns a verification outcome into a reply. The turn still
// commits: the quest stays ACTIVE for the next attempt.
func (o *Orchestrator) renderVerdict(err error) (game.Result, bool) {
	var ge *game.Error
	if !errors.As(err, &ge) {
		return game.Result{}, false
	}
	switch ge.Kind {
	case game.ErrVerificationRejected:
		res := game.SystemResult("verification_rejected", o.content.Text(content.MsgRejected, "reason", ge.Msg))
		res.Metadata.ErrorCode = string(ge.Kind)
		return res, true
	case game.ErrVerificationUncertain:
		res := game.SystemResult("verification_uncertain", o.content.Text(content.MsgUncertain, "question", ge.Msg))
		res.Metadata.ErrorCode = string(ge.Kind)
		return res, true
	}
	return game.Result{}, false
}
