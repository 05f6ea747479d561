package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/timmy/vidnotes/internal/domain"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List completed jobs found on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			artifacts, err := ctx.artifacts()
			if err != nil {
				return err
			}
			jobs, err := artifacts.CompletedJobs()
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No completed jobs found")
				return nil
			}

			sort.SliceStable(jobs, func(i, j int) bool {
				return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
			})
			if limit > 0 && len(jobs) > limit {
				jobs = jobs[:limit]
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, jobRow(job))
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Title", "Channel", "Notes", "Size", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many jobs (0 shows all)")
	return cmd
}

func jobRow(job domain.Job) []string {
	notes := "no"
	if job.NotesPath != "" {
		notes = "yes"
	}
	size := "-"
	if info, err := os.Stat(job.TranscriptPath); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	return []string{
		job.ID,
		string(job.Status),
		job.Title,
		job.Channel,
		notes,
		size,
		humanize.Time(job.CreatedAt),
	}
}
