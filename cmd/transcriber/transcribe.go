package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/audio"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/cleanup"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/format"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/queue"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/storage"
)

func newTranscribeCmd(a *app) *cobra.Command {
	var noDiarization bool

	cmd := &cobra.Command{
		Use:   "transcribe <file|dir>...",
		Short: "Transcribe audio files; directories expand to the audio files they contain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.transcribe(cmd, args, noDiarization)
		},
	}

	flags := cmd.Flags()
	flags.String("format", "", "output format: txt, srt, vtt, json")
	flags.String("language", "", "spoken language hint, e.g. en")
	flags.String("output", "", "output directory (default: next to each source)")
	flags.Float64("chunk-minutes", 0, "chunk length in minutes")
	flags.Float64("max-size-mb", 0, "split files larger than this size")
	flags.Int("workers", 0, "number of files transcribed concurrently")
	flags.Bool("skip-failed-chunks", false, "leave a gap for failed chunks instead of failing the file")
	flags.BoolVar(&noDiarization, "no-diarization", false, "disable speaker diarization")

	a.bind(flags.Lookup("format"), "output.format")
	a.bind(flags.Lookup("language"), "recognition.language")
	a.bind(flags.Lookup("output"), "output.dir")
	a.bind(flags.Lookup("chunk-minutes"), "segmentation.chunk_minutes")
	a.bind(flags.Lookup("max-size-mb"), "segmentation.max_file_size_mb")
	a.bind(flags.Lookup("workers"), "workers.jobs")
	a.bind(flags.Lookup("skip-failed-chunks"), "pipeline.skip_failed_chunks")
	return cmd
}

func (a *app) transcribe(cmd *cobra.Command, args []string, noDiarization bool) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no supported audio files in %v", args)
	}

	// Ensure directories exist
	if err := cleanup.EnsureWorkDir(cfg.Storage.WorkDir); err != nil {
		return err
	}
	if cfg.Output.Dir != "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize components
	p, err := pipeline.FromConfig(cfg, a.log)
	if err != nil {
		return err
	}
	style, err := format.ParseStyle(cfg.Output.Format)
	if err != nil {
		return err
	}

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	deps := queue.Deps{
		Runner: p,
		Store:  db,
		Local:  storage.NewLocalStorage(cfg.Output.WriteMeta),
		Engine: cfg.Recognition.Engine,
	}
	if exporter := a.driveExporter(ctx); exporter != nil {
		deps.Exporter = exporter
	}

	wp := queue.NewWorkerPool(deps, queue.Options{Workers: cfg.Workers.Jobs}, a.log)
	wp.Start(ctx)

	// Cleanup scheduler
	sweeper := cleanup.NewScheduler(cfg.Storage.WorkDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, a.log)
	sweeper.Start(ctx)

	var diarize *bool
	if noDiarization {
		off := false
		diarize = &off
	}
	jobs := make([]*queue.Job, 0, len(inputs))
	for _, path := range inputs {
		jobs = append(jobs, wp.Submit(pipeline.Request{
			AudioPath: path,
			Style:     style,
			Diarize:   diarize,
		}))
	}

	failed := 0
	for _, job := range jobs {
		res, err := job.Wait(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAILED  %s: %v\n", job.Request.AudioPath, err)
			continue
		}
		line := fmt.Sprintf("OK      %s -> %s", job.Request.AudioPath, res.OutputPath)
		if len(res.Gaps) > 0 {
			line += fmt.Sprintf(" (%d missing chunks)", len(res.Gaps))
		}
		fmt.Fprintln(out, line)
	}
	wp.Stop()
	sweeper.Stop()

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(jobs))
	}
	return nil
}

// driveExporter returns the Drive client when export is enabled and
// available. Failures only disable export.
func (a *app) driveExporter(ctx context.Context) queue.Exporter {
	gd := a.cfg.GoogleDrive
	if !gd.Enabled {
		return nil
	}
	client, err := storage.NewDriveClient(ctx, gd.CredentialsFile, gd.FolderName)
	if err != nil {
		a.log.Warn().Err(err).Msg("Google Drive not available, transcripts will only be saved locally")
		return nil
	}
	a.log.Info().Str("folder", gd.FolderName).Msg("Google Drive export enabled")
	return client
}

// collectInputs expands directories to their supported audio files. Other
// paths are passed through so that missing files fail as their own job.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && audio.IsSupported(e.Name()) {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		inputs = append(inputs, found...)
	}
	return inputs, nil
}
