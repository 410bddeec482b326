// Package gen is the submission service: it validates and rate-limits
// generation requests, owns the polling loops, and settles completed jobs
// (artifact materialization, thumbnails, credit charges).
package gen

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dreamtide/veod/artifact"
	"github.com/dreamtide/veod/credit"
	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/internal/util"
	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/logger"
	"github.com/dreamtide/veod/poll"
	"github.com/dreamtide/veod/veo"
)

// Backend is the slice of the video client the service depends on.
type Backend interface {
	Submit(ctx context.Context, req veo.GenerateRequest) (string, error)
	FetchStatus(ctx context.Context, operationID string) (*veo.OperationStatus, error)
}

// Thumbnailer produces a still-image preview for a completed video file.
// Failures are logged and never fail the job.
type Thumbnailer func(ctx context.Context, videoPath string) (string, error)

// Options wires a Service's collaborators.
type Options struct {
	Backend      Backend
	Store        *job.Store
	Credits      *credit.Ledger
	Materializer *artifact.Materializer
	Thumbnailer  Thumbnailer // optional
	PollConfig   poll.Config
	CostPerVideo int
	// StorageURI, when set, asks the backend to write artifacts to this
	// bucket instead of returning inline bytes.
	StorageURI string
	// SubmitsPerMinute caps the submission rate; zero disables the limit.
	SubmitsPerMinute int
}

// SubmitRequest is one user-initiated generation.
type SubmitRequest struct {
	Prompt          string
	Category        string
	AspectRatio     veo.AspectRatio
	DurationSeconds int
	GenerateAudio   bool
	EnhancePrompt   bool
}

// Service coordinates submission, polling, and settlement.
type Service struct {
	backend  Backend
	store    *job.Store
	credits  *credit.Ledger
	media    *artifact.Materializer
	thumb    Thumbnailer
	registry *poll.Registry
	limiter  *rate.Limiter
	cost     int
	storage  string
}

// NewService builds the service and its polling registry. Loops descend
// from ctx, so cancelling it stops all polling.
func NewService(ctx context.Context, opts Options) *Service {
	s := &Service{
		backend: opts.Backend,
		store:   opts.Store,
		credits: opts.Credits,
		media:   opts.Materializer,
		thumb:   opts.Thumbnailer,
		cost:    opts.CostPerVideo,
		storage: opts.StorageURI,
	}

	if opts.SubmitsPerMinute > 0 {
		s.limiter = rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(opts.SubmitsPerMinute)),
			opts.SubmitsPerMinute,
		)
	}

	engine := poll.NewEngine(opts.Backend, opts.Store, opts.PollConfig, s.settle)
	s.registry = poll.NewRegistry(ctx, engine)

	return s
}

// Submit dispatches a generation request and returns the tracked job.
// The job record exists in the store before Submit returns; submission
// failures propagate to the caller because no job exists yet to hold them.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*job.Job, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "prompt cannot be empty")
	}
	if req.AspectRatio == "" {
		req.AspectRatio = veo.AspectRatioLandscape
	}
	if req.DurationSeconds <= 0 {
		req.DurationSeconds = 8
	}

	// Duplicate-submission guard: an active job for the same prompt and
	// category wins over a new submission
	if existing := s.findActive(req.Prompt, req.Category); existing != nil {
		logger.Infow("Duplicate submission short-circuited to active job",
			"job_id", existing.ID, "prompt", req.Prompt)
		return existing, nil
	}

	if s.credits != nil && s.cost > 0 {
		ok, err := s.credits.Has(s.cost)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(errors.ErrInsufficientCredits, "need %d credits", s.cost)
		}
	}

	if s.limiter != nil && !s.limiter.Allow() {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "submission rate limit exceeded")
	}

	operationID, err := s.backend.Submit(ctx, veo.GenerateRequest{
		Prompt:          req.Prompt,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
		GenerateAudio:   req.GenerateAudio,
		EnhancePrompt:   req.EnhancePrompt,
		StorageURI:      s.storage,
	})
	if err != nil {
		return nil, err
	}

	j, err := job.New(req.Prompt, req.Category)
	if err != nil {
		return nil, err
	}
	j.OperationID = operationID

	if err := s.store.Add(j); err != nil {
		return nil, err
	}

	s.registry.Start(j)
	logger.Infow("Generation submitted", "job_id", j.ID, "operation_id", operationID)

	return j.Clone(), nil
}

// Cancel stops a job's polling loop and marks the job cancelled.
func (s *Service) Cancel(id string) error {
	j, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if j.Status.IsTerminal() {
		return nil
	}

	if j.OperationID != "" && s.registry.IsActive(j.OperationID) {
		// The loop observes the cancellation at its next tick boundary
		// and persists the Cancelled state itself
		s.registry.Cancel(j.OperationID)
		return nil
	}

	j.Cancel()
	return s.store.Update(j)
}

// Delete removes a job record, stopping its loop first if one is live.
func (s *Service) Delete(id string) error {
	if j, err := s.store.Get(id); err == nil && j.OperationID != "" {
		s.registry.Cancel(j.OperationID)
	}
	return s.store.Remove(id)
}

// Get returns one job.
func (s *Service) Get(id string) (*job.Job, error) {
	return s.store.Get(id)
}

// Jobs lists jobs matching the filter, most recent first.
func (s *Service) Jobs(f job.Filter) []*job.Job {
	return s.store.List(f)
}

// Balance returns the current credit balance.
func (s *Service) Balance() (int, error) {
	if s.credits == nil {
		return 0, nil
	}
	return s.credits.Balance()
}

// Resume restarts polling for jobs persisted as in-flight across a
// restart. Jobs that never got an operation id cannot be reattached and
// are failed as orphaned.
func (s *Service) Resume() {
	recovered, orphaned := 0, 0
	for _, status := range []job.Status{job.StatusPending, job.StatusRunning} {
		for _, j := range s.store.List(job.Filter{Status: util.Ptr(status)}) {
			if j.OperationID == "" {
				j.Fail("orphaned at restart before submission completed")
				if err := s.store.Update(j); err != nil {
					logger.Errorw("Failed to mark orphaned job", "job_id", j.ID, "error", err)
				}
				orphaned++
				continue
			}
			s.registry.Start(j)
			recovered++
		}
	}

	if recovered > 0 || orphaned > 0 {
		logger.Infow("Resumed in-flight jobs", "recovered", recovered, "orphaned", orphaned)
	}
}

// Shutdown stops every polling loop and waits for them to exit.
func (s *Service) Shutdown() {
	s.registry.Shutdown()
}

// settle runs once per job that reaches Completed: materialize the
// artifact locally, attach a thumbnail, and charge credits. Settlement
// failures downgrade gracefully; the completed state is never revoked.
func (s *Service) settle(j *job.Job) {
	ctx := context.Background()

	if s.media != nil && j.ResultRef != "" {
		path, err := s.media.Materialize(ctx, j.ID, j.ResultRef, j.MimeType)
		if err != nil {
			logger.Errorw("Artifact materialization failed", "job_id", j.ID, "error", err)
		} else {
			j.ResultRef = path
			if s.thumb != nil {
				thumbPath, err := s.thumb(ctx, path)
				if err != nil {
					logger.Warnw("Thumbnail extraction failed", "job_id", j.ID, "error", err)
				} else {
					j.ThumbnailPath = thumbPath
				}
			}
			if err := s.store.Update(j); err != nil {
				logger.Errorw("Failed to persist materialized artifact", "job_id", j.ID, "error", err)
			}
		}
	}

	// Credits are charged only after a job completes
	if s.credits != nil && s.cost > 0 {
		if err := s.credits.Use(s.cost, "video completed: "+j.ID); err != nil {
			logger.Errorw("Failed to charge credits", "job_id", j.ID, "error", err)
		}
	}
}

func (s *Service) findActive(prompt, category string) *job.Job {
	for _, status := range []job.Status{job.StatusPending, job.StatusRunning} {
		for _, j := range s.store.List(job.Filter{Status: util.Ptr(status)}) {
			if j.Prompt == prompt && j.Category == category {
				return j
			}
		}
	}
	return nil
}
