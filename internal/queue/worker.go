// Package queue runs transcription jobs on a fixed pool of workers and
// records every job in the metadata store.
package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/apperr"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/logger"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/pipeline"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/storage"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Runner executes one transcription request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Store persists job records. *storage.MetadataDB implements it.
type Store interface {
	CreateJob(rec types.JobRecord) error
	UpdateStatus(jobID, status, errMsg string) error
	CompleteJob(rec types.JobRecord) error
	SetDriveURL(jobID, url string) error
}

// Exporter uploads a finished transcript and its metadata and returns a link.
type Exporter interface {
	Upload(ctx context.Context, transcriptPath string, metaJSON []byte) (string, error)
}

// Deps are the collaborators of a WorkerPool. Store and Exporter are optional.
type Deps struct {
	Runner   Runner
	Store    Store
	Local    *storage.LocalStorage
	Exporter Exporter
	// Engine is recorded in the metadata sidecar.
	Engine string
}

// Options size the pool and tune export retries.
type Options struct {
	Workers        int
	ExportAttempts int
	ExportInitial  time.Duration
	QueueSize      int
}

// WorkerPool manages a pool of workers processing transcription jobs
type WorkerPool struct {
	deps     Deps
	opts     Options
	log      zerolog.Logger
	jobQueue chan *Job

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(deps Deps, opts Options, log zerolog.Logger) *WorkerPool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ExportAttempts < 1 {
		opts.ExportAttempts = 3
	}
	if opts.ExportInitial <= 0 {
		opts.ExportInitial = time.Second
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 100
	}
	if deps.Local == nil {
		deps.Local = storage.NewLocalStorage(false)
	}
	return &WorkerPool{
		deps:     deps,
		opts:     opts,
		log:      logger.WithComponent(log, "queue"),
		jobQueue: make(chan *Job, opts.QueueSize),
	}
}

// Start launches the workers. Jobs run with ctx; cancelling it aborts the
// jobs in flight but workers keep draining the queue until Stop.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.Info().Int("workers", wp.opts.Workers).Msg("starting worker pool")
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Submit enqueues req and returns its Job. The job is failed immediately
// when the pool has been stopped.
func (wp *WorkerPool) Submit(req pipeline.Request) *Job {
	id := req.JobID
	if id == "" {
		id = uuid.NewString()
		req.JobID = id
	}
	job := newJob(id, req, wp.persist(id))

	if wp.deps.Store != nil {
		err := wp.deps.Store.CreateJob(types.JobRecord{
			JobID:      id,
			SourcePath: req.AudioPath,
			Status:     types.StatusQueued,
			Format:     string(req.Style),
			CreatedAt:  job.CreatedAt,
		})
		if err != nil {
			wp.log.Error().Err(err).Str(logger.FieldJobID, id).Msg("failed to record job")
		}
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		job.fail(ErrStopped)
		return job
	}
	wp.jobQueue <- job
	wp.log.Info().Str(logger.FieldJobID, id).Str("source", req.AudioPath).Msg("job enqueued")
	return job
}

// Stop closes the queue and waits for queued jobs to finish.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
	wp.log.Info().Msg("worker pool stopped")
}

func (wp *WorkerPool) persist(jobID string) transitionFunc {
	return func(state, errMsg string) {
		if wp.deps.Store == nil {
			return
		}
		if err := wp.deps.Store.UpdateStatus(jobID, state, errMsg); err != nil {
			wp.log.Error().Err(err).Str(logger.FieldJobID, jobID).Str("status", state).Msg("failed to persist job status")
		}
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")

	for job := range wp.jobQueue {
		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str(logger.FieldJobID, job.ID).
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Msg("panic processing job")
					job.fail(fmt.Errorf("worker panic: %v", r))
				}
			}()
			wp.processJob(ctx, log.With().Str(logger.FieldJobID, job.ID).Logger(), job)
		}()
	}
}

// processJob runs the pipeline, then records and exports the result.
func (wp *WorkerPool) processJob(ctx context.Context, log zerolog.Logger, job *Job) {
	if err := job.start(); err != nil {
		log.Error().Err(err).Msg("job cannot start")
		return
	}
	if err := ctx.Err(); err != nil {
		job.fail(err)
		return
	}

	res, err := wp.deps.Runner.Run(ctx, job.Request)
	if err != nil {
		log.Error().Err(err).Msg("job failed")
		job.fail(err)
		return
	}

	meta := storage.Metadata{
		JobID:           job.ID,
		Source:          job.Request.AudioPath,
		Output:          res.OutputPath,
		Format:          string(res.Style),
		Engine:          wp.deps.Engine,
		DurationSeconds: res.Duration,
		WordCount:       len(strings.Fields(res.Text)),
		Language:        res.Language,
		Chunks:          res.Chunks,
		Diarized:        res.Diarized,
		Gaps:            res.Gaps,
		CreatedAt:       job.CreatedAt,
	}
	metaJSON, err := wp.deps.Local.SaveMetadata(meta)
	if err != nil {
		log.Warn().Err(err).Msg("metadata sidecar not written")
	}

	if wp.deps.Store != nil {
		err := wp.deps.Store.CompleteJob(types.JobRecord{
			JobID:      job.ID,
			Format:     meta.Format,
			OutputPath: meta.Output,
			Language:   meta.Language,
			Chunks:     meta.Chunks,
			Duration:   meta.DurationSeconds,
			WordCount:  meta.WordCount,
			Diarized:   meta.Diarized,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to record job outputs")
		}
	}

	if wp.deps.Exporter != nil {
		url, err := wp.export(ctx, log, res.OutputPath, metaJSON)
		if err != nil {
			log.Warn().Err(err).Msg("export failed, transcript kept locally")
		} else {
			meta.GDriveURL = url
			if _, err := wp.deps.Local.SaveMetadata(meta); err != nil {
				log.Warn().Err(err).Msg("metadata sidecar not updated")
			}
			if wp.deps.Store != nil {
				if err := wp.deps.Store.SetDriveURL(job.ID, url); err != nil {
					log.Error().Err(err).Msg("failed to record export link")
				}
			}
		}
	}

	job.complete(res)
	log.Info().
		Str("output", res.OutputPath).
		Int("chunks", res.Chunks).
		Int("gaps", len(res.Gaps)).
		Str("gdrive", meta.GDriveURL).
		Msg("job completed")
}

// export uploads with exponential backoff.
func (wp *WorkerPool) export(ctx context.Context, log zerolog.Logger, path string, metaJSON []byte) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		url, err := wp.deps.Exporter.Upload(ctx, path, metaJSON)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", wp.opts.ExportAttempts).Msg("upload attempt failed")
		}
		return url, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = wp.opts.ExportInitial
	url, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(wp.opts.ExportAttempts)),
	)
	if err != nil {
		return "", apperr.New(apperr.CodeExport, apperr.StageExport, "upload failed").WithCause(err)
	}
	return url, nil
}
