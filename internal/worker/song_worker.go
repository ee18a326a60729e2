package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/pipeline"
	"github.com/benam/api/internal/service"
	"github.com/benam/api/internal/store"
)

// Runner processes one invocation. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, inv *model.Invocation) (*model.Job, error)
}

// SongWorker processes song tasks
type SongWorker struct {
	runner Runner
	store  store.JobStore
	hub    pipeline.Reporter
}

// NewSongWorker creates a new song worker. hub may be nil.
func NewSongWorker(runner Runner, jobs store.JobStore, hub pipeline.Reporter) *SongWorker {
	return &SongWorker{runner: runner, store: jobs, hub: hub}
}

// ProcessTask handles song task processing. Failures the job record already
// reflects are not retried; anything else is returned to asynq for a retry.
func (w *SongWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	inv, err := service.ParseSongTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Starting song job: %s (%s)", inv.JobID, inv.DateKey)

	job, err := w.runner.Run(ctx, inv)
	var failure *pipeline.ProcessingFailure
	switch {
	case err == nil:
		log.Printf("Song job %s finished with status %s", inv.JobID, job.Status)
		return nil
	case errors.As(err, &failure):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case errors.Is(err, pipeline.ErrInvalidInvocation):
		w.failJob(ctx, inv, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case errors.Is(err, store.ErrSuperseded), errors.Is(err, store.ErrTerminal):
		log.Printf("Song job %s stopped: %v", inv.JobID, err)
		return nil
	default:
		return err
	}
}

// HandleError records jobs whose retries ran out on infrastructure errors.
// Register it as the asynq server's ErrorHandler.
func (w *SongWorker) HandleError(ctx context.Context, t *asynq.Task, err error) {
	if errors.Is(err, asynq.SkipRetry) {
		return
	}
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried < maxRetry {
		log.Printf("Task %s failed (attempt %d/%d): %v", t.Type(), retried+1, maxRetry+1, err)
		return
	}

	inv, perr := service.ParseSongTask(t)
	if perr != nil {
		return
	}
	w.failJob(ctx, inv, fmt.Sprintf("retries exhausted: %v", err))
}

func (w *SongWorker) failJob(ctx context.Context, inv *model.Invocation, msg string) {
	if inv.JobID == "" || inv.DateKey == "" {
		return
	}
	job, err := w.store.Fail(context.WithoutCancel(ctx), inv.DateKey, inv.JobID, msg)
	if err != nil {
		log.Printf("Failed to record failure of job %s: %v", inv.JobID, err)
		return
	}
	if w.hub != nil {
		w.hub.Failed(job)
	}
}
