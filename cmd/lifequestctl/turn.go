package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/lifequest/pkg/game"
)

func newTurnCmd() *cobra.Command {
	var (
		playerID string
		postback string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "turn [text]",
		Short: "Run one turn in-process and print the result",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ev, err := buildEvent(playerID, strings.Join(args, " "), postback)
			if err != nil {
				return err
			}
			res, turnErr := a.Orchestrator.HandleEvent(ctx, ev)
			if err := printResult(cmd, res, asJSON); err != nil {
				return err
			}
			if turnErr != nil && game.KindOf(turnErr) == game.ErrInternal {
				return turnErr
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&playerID, "player", "", "player id (required)")
	cmd.Flags().StringVar(&postback, "postback", "", "send quick reply action data instead of text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

// buildEvent makes a TEXT event, or a POSTBACK when postback is set.
func buildEvent(playerID, text, postback string) (game.InboundEvent, error) {
	ev := game.InboundEvent{PlayerID: playerID}
	switch {
	case postback != "":
		ev.Kind = game.EventPostback
		ev.Postback = postback
	case strings.TrimSpace(text) != "":
		ev.Kind = game.EventText
		ev.Text = text
	default:
		return ev, fmt.Errorf("give some text or --postback")
	}
	return ev, nil
}

func printResult(cmd *cobra.Command, res game.Result, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	sender := res.Metadata.Sender
	if sender == "" {
		sender = game.PersonaSystem
	}
	if res.Metadata.PreText != "" {
		fmt.Fprintln(out, res.Metadata.PreText)
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "[%s] %s\n", sender, res.Text)
	for _, qr := range res.QuickReplies {
		fmt.Fprintf(out, "  (%s) %s\n", qr.Label, qr.ActionData)
	}
	return nil
}
