package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/cleanup"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/storage"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [job-id]",
		Short: "List recent transcription jobs, or show one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.NewMetadataDB(a.cfg.Storage.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 1 {
				job, err := db.GetJob(args[0])
				if err != nil {
					return err
				}
				return printJob(cmd.OutOrStdout(), job)
			}

			jobs, err := db.ListJobs(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSTATUS\tCREATED\tCHUNKS\tSOURCE\tRESULT")
			for _, j := range jobs {
				result := j.OutputPath
				if j.Error != "" {
					result = j.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					j.JobID, j.Status, j.CreatedAt.Local().Format("2006-01-02 15:04"), j.Chunks, j.SourcePath, result)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of jobs to list")
	return cmd
}

func printJob(out io.Writer, j *types.JobRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	completed := "-"
	if j.CompletedAt != nil {
		completed = j.CompletedAt.Local().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "job:\t%s\n", j.JobID)
	fmt.Fprintf(w, "status:\t%s\n", j.Status)
	fmt.Fprintf(w, "source:\t%s\n", j.SourcePath)
	fmt.Fprintf(w, "output:\t%s\n", j.OutputPath)
	fmt.Fprintf(w, "format:\t%s\n", j.Format)
	fmt.Fprintf(w, "language:\t%s\n", j.Language)
	fmt.Fprintf(w, "chunks:\t%d\n", j.Chunks)
	fmt.Fprintf(w, "duration:\t%.1fs\n", j.Duration)
	fmt.Fprintf(w, "words:\t%d\n", j.WordCount)
	fmt.Fprintf(w, "diarized:\t%t\n", j.Diarized)
	if j.GDriveURL != "" {
		fmt.Fprintf(w, "gdrive:\t%s\n", j.GDriveURL)
	}
	if j.Error != "" {
		fmt.Fprintf(w, "error:\t%s\n", j.Error)
	}
	fmt.Fprintf(w, "created:\t%s\n", j.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "completed:\t%s\n", completed)
	return w.Flush()
}

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale chunk directories and temporary files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cfg.Cleanup
			stats := cleanup.NewScheduler(a.cfg.Storage.WorkDir, c.IntervalMinutes, c.MaxAgeHours, a.log).Sweep()
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d files and %d directories (%.2f MB)\n",
				stats.Files, stats.Dirs, float64(stats.Bytes)/(1024*1024))
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Dump(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
