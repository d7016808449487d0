package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/lifequest/internal/storage/gormstore"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			db, err := gormstore.OpenPostgres(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			applied, err := gormstore.ApplyMigrations(context.Background(), db, gormstore.Migrations())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}
