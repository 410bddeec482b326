// Package poll drives the per-job polling loops: fixed-interval status
// checks against the backend, bounded attempt counts, transient-error
// tolerance, and completion/failure classification.
package poll

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/logger"
	"github.com/dreamtide/veod/veo"
)

// StatusFetcher is the slice of the backend client the engine needs.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, operationID string) (*veo.OperationStatus, error)
}

// Config tunes one engine's polling behavior.
type Config struct {
	Interval         time.Duration // Delay between status checks
	MaxAttempts      int           // Attempt budget before forcing a timeout failure
	ProgressInterval time.Duration // Progress estimator tick, faster than polling
	AssumedDuration  time.Duration // Assumed total generation time for estimates
}

// DefaultConfig returns the production polling cadence: 2s ticks, 150
// attempts (~5 minutes), 500ms progress updates against an assumed 120s
// generation.
func DefaultConfig() Config {
	return Config{
		Interval:         2 * time.Second,
		MaxAttempts:      150,
		ProgressInterval: 500 * time.Millisecond,
		AssumedDuration:  120 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = d.ProgressInterval
	}
	if c.AssumedDuration <= 0 {
		c.AssumedDuration = d.AssumedDuration
	}
	return c
}

// Engine runs polling loops. One Run call owns one job's mutations for
// the job's whole lifetime; nothing else writes to that record while the
// loop is live.
type Engine struct {
	client     StatusFetcher
	store      *job.Store
	cfg        Config
	onComplete func(*job.Job)
}

// NewEngine creates a polling engine. onComplete fires once per job that
// reaches Completed, after the store reflects the terminal state; it may
// be nil.
func NewEngine(client StatusFetcher, store *job.Store, cfg Config, onComplete func(*job.Job)) *Engine {
	return &Engine{
		client:     client,
		store:      store,
		cfg:        cfg.withDefaults(),
		onComplete: onComplete,
	}
}

// Run polls one operation until it reaches a terminal state, the attempt
// budget is exhausted, or ctx is cancelled. The job record is updated
// through the store on every transition. Errors never propagate past the
// loop boundary; they land in the job's failure reason.
func (e *Engine) Run(ctx context.Context, j *job.Job) {
	log := logger.Logger.With("job_id", j.ID, "operation_id", j.OperationID)

	// Smoother UI feedback than the network polling cadence
	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go e.runProgress(progressCtx, j.ID, j.CreatedAt)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			e.cancelJob(j.ID)
			log.Infow("Polling loop cancelled", "attempts", attempts)
			return
		case <-ticker.C:
		}

		attempts++
		if attempts > e.cfg.MaxAttempts {
			budget := time.Duration(e.cfg.MaxAttempts) * e.cfg.Interval
			e.failJob(j.ID, fmt.Sprintf("timed out after %s", budget))
			log.Warnw("Polling attempt budget exhausted", "attempts", e.cfg.MaxAttempts)
			return
		}

		status, err := e.client.FetchStatus(ctx, j.OperationID)
		if err != nil {
			if ctx.Err() != nil {
				e.cancelJob(j.ID)
				return
			}
			if IsTransient(err) {
				log.Debugw("Transient poll error, will retry", "attempt", attempts, "error", err)
				continue
			}
			e.failJob(j.ID, err.Error())
			log.Warnw("Polling failed", "attempt", attempts, "error", err)
			return
		}

		if !status.Done {
			e.markRunning(j.ID)
			continue
		}

		e.finish(j.ID, status, log)
		return
	}
}

// finish applies the terminal classification of a done operation:
// explicit error beats artifact beats content filter; an ambiguous
// response with none of the three is always a failure, never a silent
// success. An artifact means a video entry carrying a reference: a
// videos list whose entries resolve to an empty ref is still ambiguous.
func (e *Engine) finish(jobID string, status *veo.OperationStatus, log *zap.SugaredLogger) {
	switch {
	case status.Error != nil && status.Error.Message != "":
		e.failJob(jobID, status.Error.Message)
		log.Warnw("Generation failed", "code", status.Error.Code, "message", status.Error.Message)

	case status.Response != nil && len(status.Response.Videos) > 0 && status.Response.Videos[0].Ref() != "":
		video := status.Response.Videos[0]
		e.completeJob(jobID, video)
		log.Infow("Generation completed", "mime_type", video.MimeType)

	case status.Response != nil && len(status.Response.RAIMediaFilteredReasons) > 0:
		e.failJob(jobID, status.FilteredReasons())
		log.Warnw("Generation filtered by content policy", "reasons", status.FilteredReasons())

	default:
		e.failJob(jobID, "completed with no artifact")
		log.Warnw("Generation reported done with no artifact and no error")
	}
}

// runProgress updates the job's progress on its own faster ticker while
// the job is running.
func (e *Engine) runProgress(ctx context.Context, jobID string, startedAt time.Time) {
	est := NewEstimator(e.cfg.AssumedDuration)

	ticker := time.NewTicker(e.cfg.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		j, err := e.store.Get(jobID)
		if err != nil || j.Status.IsTerminal() {
			return
		}
		if j.Status != job.StatusRunning {
			continue
		}

		j.SetProgress(est.EstimateSince(startedAt))
		if err := e.store.Update(j); err != nil {
			logger.Debugw("Progress update dropped", "job_id", jobID, "error", err)
		}
	}
}

func (e *Engine) markRunning(jobID string) {
	j, err := e.store.Get(jobID)
	if err != nil || j.Status != job.StatusPending {
		return
	}
	j.Start()
	if err := e.store.Update(j); err != nil {
		logger.Warnw("Failed to mark job running", "job_id", jobID, "error", err)
	}
}

func (e *Engine) completeJob(jobID string, video veo.Video) {
	j, err := e.store.Get(jobID)
	if err != nil {
		logger.Warnw("Completed job missing from store", "job_id", jobID, "error", err)
		return
	}
	j.Complete(video.Ref())
	j.MimeType = video.MimeType
	if err := e.store.Update(j); err != nil {
		logger.Errorw("Failed to persist completed job", "job_id", jobID, "error", err)
		return
	}
	if e.onComplete != nil {
		e.onComplete(j)
	}
}

func (e *Engine) failJob(jobID, reason string) {
	j, err := e.store.Get(jobID)
	if err != nil {
		return
	}
	j.Fail(reason)
	if err := e.store.Update(j); err != nil {
		logger.Errorw("Failed to persist failed job", "job_id", jobID, "error", err)
	}
}

func (e *Engine) cancelJob(jobID string) {
	j, err := e.store.Get(jobID)
	if err != nil || j.Status.IsTerminal() {
		return
	}
	j.Cancel()
	if err := e.store.Update(j); err != nil {
		logger.Errorw("Failed to persist cancelled job", "job_id", jobID, "error", err)
	}
}
