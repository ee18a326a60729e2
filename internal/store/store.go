// Package store persists Job records keyed by date.
//
// All writes go through the same conditional rules: a record owned by another
// jobId is never touched, terminal records are final and progress never
// moves backwards. That makes every write safe to repeat.
package store

import (
	"context"
	"errors"

	"github.com/benam/api/internal/model"
)

var (
	// ErrNotFound means no record exists for the date.
	ErrNotFound = errors.New("job not found")
	// ErrExists means the date already holds a live submission.
	ErrExists = errors.New("job already exists for date")
	// ErrSuperseded means the record was deleted or now belongs to another job.
	ErrSuperseded = errors.New("job superseded or cancelled")
	// ErrTerminal means the record already reached completed or failed.
	ErrTerminal = errors.New("job already finished")
)

// JobStore is the persistence contract shared by the API and the pipeline.
//
// Begin, Checkpoint, Complete and Fail return the stored record alongside
// ErrTerminal so callers can report the existing outcome.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, dateKey string) (*model.Job, error)
	Delete(ctx context.Context, dateKey string) error
	// List returns every stored record in no particular order.
	List(ctx context.Context) ([]*model.Job, error)

	Begin(ctx context.Context, inv *model.Invocation) (*model.Job, error)
	Checkpoint(ctx context.Context, dateKey, jobID string, progress int, step string) (*model.Job, error)
	Complete(ctx context.Context, dateKey, jobID string, result *model.JobResult) (*model.Job, error)
	Fail(ctx context.Context, dateKey, jobID, message string) (*model.Job, error)
}
