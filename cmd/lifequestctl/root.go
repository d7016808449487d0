package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/lifequest/internal/app"
	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/internal/logger"
)

const Version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lifequestctl",
		Short:         "Operate a LifeQuest deployment",
		Long:          "lifequestctl runs migrations, sweeps and one-off turns against the configured store and queue.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	root.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newTurnCmd(),
		newEnqueueCmd(),
		newValidateContentCmd(),
	)
	return root
}

// loadConfig reads the environment; commands log at warn unless
// LOG_LEVEL says otherwise.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Setup(cfg), nil
}

// openApp builds the game services over the configured store.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	a, err := app.Build(ctx, cfg, store, log)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return a, func() { _ = store.Close() }, nil
}
