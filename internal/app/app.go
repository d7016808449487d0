// Package app assembles the game services from configuration. The api,
// the worker and lifequestctl all build the same graph.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/internal/content"
	"github.com/jwebster45206/lifequest/internal/llm"
	"github.com/jwebster45206/lifequest/internal/orchestrator"
	"github.com/jwebster45206/lifequest/internal/quest"
	"github.com/jwebster45206/lifequest/internal/router"
	"github.com/jwebster45206/lifequest/internal/storage"
	"github.com/jwebster45206/lifequest/internal/storage/gormstore"
	"github.com/jwebster45206/lifequest/internal/storage/memory"
	"github.com/jwebster45206/lifequest/internal/tools"
	"github.com/jwebster45206/lifequest/pkg/flow"
	"github.com/jwebster45206/lifequest/pkg/reward"
)

type App struct {
	Config       *config.Config
	Store        storage.Store
	Content      *content.Content
	Gateway      *llm.Gateway
	Quests       *quest.Engine
	Orchestrator *orchestrator.Orchestrator
	Sweeper      *orchestrator.Sweeper
}

// OpenStore returns a Postgres store when DATABASE_URL is set and an
// in-memory store otherwise.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return memory.New(), nil
	}
	store, err := gormstore.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return store, nil
}

// Build wires the game services over store.
func Build(ctx context.Context, cfg *config.Config, store storage.Store, logger *slog.Logger) (*App, error) {
	c, err := content.Load()
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	gateway, err := llm.NewGatewayFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	accountant := reward.New(reward.Config{
		BaseXP:       cfg.BaseXP,
		SMultiplier:  cfg.STierMultiplier,
		BaseDropRate: cfg.BaseDropRate,
	}, c.Items, nil)

	fc := flow.DefaultConfig()
	fc.Alpha = cfg.FlowAlpha
	fc.EngagementOverride = cfg.EngagementOverride
	fc.EngagementLootMultiplier = cfg.EngagementLootMultiplier

	engine := quest.New(store, gateway, accountant, flow.New(fc), c, quest.ConfigFrom(cfg), logger)
	registry := tools.NewRegistry(store, engine, logger)
	rt := router.New(store, gateway, registry, engine, logger)

	return &App{
		Config:       cfg,
		Store:        store,
		Content:      c,
		Gateway:      gateway,
		Quests:       engine,
		Orchestrator: orchestrator.New(store, engine, rt, registry, orchestrator.ConfigFrom(cfg), logger),
		Sweeper:      orchestrator.NewSweeper(store, engine, cfg.Location(), logger),
	}, nil
}
