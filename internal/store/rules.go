package store

import (
	"time"

	"github.com/benam/api/internal/model"
)

// mutation computes the next record from the current one (nil when absent).
// Returning an error leaves the stored record untouched.
type mutation func(current *model.Job, now time.Time) (*model.Job, error)

func createRule(job *model.Job) mutation {
	return func(current *model.Job, now time.Time) (*model.Job, error) {
		if current != nil && current.Status != model.JobStatusFailed {
			return nil, ErrExists
		}
		next := cloneJob(job)
		next.Status = model.JobStatusPending
		next.Progress = 0
		next.Error = nil
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		return next, nil
	}
}

// beginRule moves a submitted record to processing. A missing record was
// cancelled (or never submitted) and is never recreated.
func beginRule(inv *model.Invocation) mutation {
	return func(current *model.Job, now time.Time) (*model.Job, error) {
		next, err := guard(current, inv.JobID)
		if err != nil {
			return nil, err
		}
		next.Status = model.JobStatusProcessing
		next.CurrentStep = "started"
		if next.StartedAt == nil {
			next.StartedAt = &now
		}
		return next, nil
	}
}

func checkpointRule(jobID string, progress int, step string) mutation {
	return func(current *model.Job, now time.Time) (*model.Job, error) {
		next, err := guard(current, jobID)
		if err != nil {
			return nil, err
		}
		next.Status = model.JobStatusProcessing
		next.Progress = maxProgress(next.Progress, progress)
		next.CurrentStep = step
		return next, nil
	}
}

func completeRule(jobID string, result *model.JobResult) mutation {
	return func(current *model.Job, now time.Time) (*model.Job, error) {
		next, err := guard(current, jobID)
		if err != nil {
			return nil, err
		}
		next.Status = model.JobStatusCompleted
		next.Progress = 100
		next.CurrentStep = "completed"
		next.Error = nil
		next.PrimaryArtifactRef = result.PrimaryArtifactRef
		next.CombinedArtifactRef = result.CombinedArtifactRef
		next.ThumbnailArtifactRef = result.ThumbnailArtifactRef
		next.DurationSeconds = result.DurationSeconds
		next.AsciiThumbnail = result.AsciiThumbnail
		next.CompletedAt = &now
		return next, nil
	}
}

func failRule(jobID, message string) mutation {
	return func(current *model.Job, now time.Time) (*model.Job, error) {
		next, err := guard(current, jobID)
		if err != nil {
			return nil, err
		}
		next.Status = model.JobStatusFailed
		next.CurrentStep = "failed"
		next.Error = &message
		next.CompletedAt = &now
		return next, nil
	}
}

// guard enforces ownership and finality, returning a copy to mutate.
func guard(current *model.Job, jobID string) (*model.Job, error) {
	if current == nil || current.JobID != jobID {
		return nil, ErrSuperseded
	}
	if current.Status.IsTerminal() {
		return nil, ErrTerminal
	}
	return cloneJob(current), nil
}

func maxProgress(current, next int) int {
	if next > 100 {
		next = 100
	}
	if next < current {
		return current
	}
	return next
}

func cloneJob(j *model.Job) *model.Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.ClipWindow != nil {
		w := *j.ClipWindow
		if j.ClipWindow.End != nil {
			end := *j.ClipWindow.End
			w.End = &end
		}
		c.ClipWindow = &w
	}
	if j.DJMessage != nil {
		m := *j.DJMessage
		c.DJMessage = &m
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.DurationSeconds != nil {
		d := *j.DurationSeconds
		c.DurationSeconds = &d
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
