package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/lifequest/internal/content"
)

func newValidateContentCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "validate-content",
		Short: "Load and validate the game content tables",
		Long:  "Validates the embedded tables, or a directory of replacement YAML files given with --dir.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				c   *content.Content
				err error
			)
			if dir != "" {
				c, err = content.LoadFS(os.DirFS(dir))
			} else {
				c, err = content.Load()
			}
			if err != nil {
				return fmt.Errorf("content is invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Content is valid: %d items, %d habit templates.\n", len(c.Items), len(c.Habits))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of content YAML files")
	return cmd
}
