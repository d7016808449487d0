package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/lifequest/internal/services/queue"
	queuePkg "github.com/jwebster45206/lifequest/pkg/queue"
)

func newEnqueueCmd() *cobra.Command {
	var (
		playerID string
		postback string
		sweep    bool
	)
	cmd := &cobra.Command{
		Use:   "enqueue [text]",
		Short: "Push a turn or sweep request onto the redis queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			var req *queuePkg.Request
			if sweep {
				req = queuePkg.NewSweepRequest(playerID)
			} else {
				ev, err := buildEvent(playerID, strings.Join(args, " "), postback)
				if err != nil {
					return err
				}
				req = queuePkg.NewEventRequest(ev)
			}

			client, err := queue.NewClient(ctx, cfg.RedisURL, log)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			q := queue.NewTurnQueue(client)
			if err := q.Enqueue(ctx, req); err != nil {
				return err
			}
			depth, err := q.Depth(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%s), queue depth %d.\n", req.RequestID, req.Type, depth)
			return nil
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "", "player id (required)")
	cmd.Flags().StringVar(&postback, "postback", "", "send quick reply action data instead of text")
	cmd.Flags().BoolVar(&sweep, "sweep", false, "queue a sweep for the player instead of a turn")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}
