package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/repository"
	"github.com/timmy/vidnotes/internal/service"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var segments bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print the transcript and notes of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifacts, err := ctx.artifacts()
			if err != nil {
				return err
			}
			jobID := args[0]

			transcript, err := artifacts.LoadTranscript(cmd.Context(), jobID)
			if err != nil {
				return fmt.Errorf("load transcript %s: %w", jobID, err)
			}
			notes, err := artifacts.LoadNotes(cmd.Context(), jobID)
			if err != nil && !errors.Is(err, repository.ErrArtifactNotFound) {
				return fmt.Errorf("load notes %s: %w", jobID, err)
			}

			out := cmd.OutOrStdout()
			printTranscript(out, transcript, segments)
			fmt.Fprintln(out)
			printNotes(out, notes)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&segments, "segments", "s", false, "Print timestamped segments instead of the plain text")
	return cmd
}

func printTranscript(out io.Writer, t *domain.Transcript, segments bool) {
	fmt.Fprintf(out, "Title:    %s\n", t.Title)
	fmt.Fprintf(out, "Channel:  %s\n", t.Channel)
	fmt.Fprintf(out, "URL:      %s\n", t.URL)
	if t.Language != "" {
		fmt.Fprintf(out, "Language: %s\n", t.Language)
	}
	fmt.Fprintf(out, "Segments: %s\n\n", humanize.Comma(int64(len(t.Segments))))

	if !segments {
		fmt.Fprintln(out, t.Text)
		return
	}
	for _, seg := range t.Segments {
		fmt.Fprintf(out, "[%s] %s\n", service.FormatClock(seg.Start), seg.Text)
	}
}

func printNotes(out io.Writer, n *domain.Notes) {
	if n == nil {
		fmt.Fprintln(out, "Notes: not generated")
		return
	}
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintln(out, n.Summary)
	if len(n.KeyPoints) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Key points:")
	for _, point := range n.KeyPoints {
		fmt.Fprintf(out, "  - %s\n", point)
	}
}
