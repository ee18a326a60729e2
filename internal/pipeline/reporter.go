package pipeline

import "github.com/benam/api/internal/model"

// Reporter receives job snapshots after each persisted transition.
type Reporter interface {
	Progress(job *model.Job)
	Completed(job *model.Job)
	Failed(job *model.Job)
}

type nopReporter struct{}

func (nopReporter) Progress(*model.Job)  {}
func (nopReporter) Completed(*model.Job) {}
func (nopReporter) Failed(*model.Job)    {}

// Result converts a completed job into its public result view.
func Result(job *model.Job) *model.JobResult {
	if job == nil || job.Status != model.JobStatusCompleted {
		return nil
	}
	return &model.JobResult{
		PrimaryArtifactRef:   job.PrimaryArtifactRef,
		CombinedArtifactRef:  job.CombinedArtifactRef,
		ThumbnailArtifactRef: job.ThumbnailArtifactRef,
		DurationSeconds:      job.DurationSeconds,
		AsciiThumbnail:       job.AsciiThumbnail,
	}
}
