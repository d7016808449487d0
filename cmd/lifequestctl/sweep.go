package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var playerID string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Close out missed days for inactive players",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			now := a.Orchestrator.Now()
			if playerID != "" {
				swept, err := a.Sweeper.RunPlayer(ctx, playerID, now)
				if err != nil {
					return err
				}
				if swept {
					fmt.Fprintf(cmd.OutOrStdout(), "Swept %s.\n", playerID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s was active today, nothing to do.\n", playerID)
				}
				return nil
			}

			n, err := a.Sweeper.Run(ctx, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Swept %d player(s).\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "", "sweep only this player")
	return cmd
}
