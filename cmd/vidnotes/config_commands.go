package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/timmy/vidnotes/internal/domain"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and update saved preferences",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetThemeCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective paths and saved model selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.settings()
			if err != nil {
				return err
			}
			settings, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			rows := [][]string{
				{"data_dir", cfg.Paths.DataDir},
				{"transcripts", cfg.Paths.Transcripts},
				{"notes", cfg.Paths.Notes},
				{"settings_file", store.Path()},
				{"model_type", string(settings.ModelType)},
				{"model_size", settings.ModelSize},
				{"summarizer_model", settings.SummarizerModel},
				{"theme", settings.Theme},
				{"notion_configured", fmt.Sprintf("%t", cfg.Notion.Token != "" && cfg.Notion.ParentPageID != "")},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	}
}

func newConfigSetThemeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-theme <light|dark>",
		Short: "Save the UI theme preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theme := strings.ToLower(strings.TrimSpace(args[0]))
			if theme != "light" && theme != "dark" {
				return fmt.Errorf("unsupported theme %q (expected light or dark)", args[0])
			}
			store, err := ctx.settings()
			if err != nil {
				return err
			}
			if _, err := store.Update(cmd.Context(), func(s *domain.Settings) {
				s.Theme = theme
			}); err != nil {
				return fmt.Errorf("save theme: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme)
			return nil
		},
	}
}
