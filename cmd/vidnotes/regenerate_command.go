package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/vidnotes/internal/engine"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/service"
)

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "regenerate <job-id>",
		Short: "Rebuild the notes of a completed job from its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			artifacts, err := ctx.artifacts()
			if err != nil {
				return err
			}

			runner := engine.ExecRunner{}
			manager := models.NewManager(
				&engine.CLILoader{
					WhisperBinary:       cfg.Tools.Whisper,
					FasterWhisperBinary: cfg.Tools.FasterWhisper,
					ModelDir:            cfg.Paths.Models,
					Runner:              runner,
				},
				engine.NewHTTPLoader(engine.HTTPSummarizerConfig{
					BaseURL: cfg.Summarizer.BaseURL,
					APIKey:  cfg.Summarizer.APIKey,
					Timeout: cfg.Summarizer.Timeout,
				}),
				engine.NewDeviceDetector(cfg.Tools.NvidiaSMI, cfg.Models.Device, runner),
			)
			defer manager.Close()

			notesService := service.NewNotesService(manager, artifacts, &service.NotesConfig{
				LazyModel: cfg.Models.LazySummarizer,
			})
			notes, err := notesService.Regenerate(cmd.Context(), args[0], model)
			if err != nil {
				return fmt.Errorf("regenerate notes: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Regenerated notes for %s (%d key points)\n\n", args[0], len(notes.KeyPoints))
			printNotes(out, notes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Summarization model to load first")
	return cmd
}
