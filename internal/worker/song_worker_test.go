package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/pipeline"
	"github.com/benam/api/internal/service"
	"github.com/benam/api/internal/store"
)

type fakeRunner struct {
	job  *model.Job
	err  error
	seen *model.Invocation
}

func (f *fakeRunner) Run(ctx context.Context, inv *model.Invocation) (*model.Job, error) {
	f.seen = inv
	return f.job, f.err
}

type failRecorder struct {
	failed []*model.Job
}

func (r *failRecorder) Progress(*model.Job)   {}
func (r *failRecorder) Completed(*model.Job)  {}
func (r *failRecorder) Failed(job *model.Job) { r.failed = append(r.failed, job) }

func songTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := service.NewSongTask(&model.Invocation{
		JobID:              "job-1",
		DateKey:            "2025-06-01",
		SourceRef:          "https://youtu.be/dQw4w9WgXcQ",
		MaxDurationSeconds: 600,
	})
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func beginJob(t *testing.T, jobs *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	err := jobs.Create(ctx, &model.Job{JobID: "job-1", DateKey: "2025-06-01", Status: model.JobStatusPending})
	if err != nil {
		t.Fatal(err)
	}
	_, err = jobs.Begin(ctx, &model.Invocation{
		JobID:              "job-1",
		DateKey:            "2025-06-01",
		SourceRef:          "https://youtu.be/dQw4w9WgXcQ",
		MaxDurationSeconds: 600,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestProcessTaskRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{"success", nil, false, false},
		{"recorded failure", &pipeline.ProcessingFailure{JobID: "job-1", DateKey: "2025-06-01", Cause: &pipeline.StageError{Kind: pipeline.KindAcquisition, Stage: "download", Err: errors.New("403")}}, true, true},
		{"invalid invocation", pipeline.ErrInvalidInvocation, true, true},
		{"superseded", store.ErrSuperseded, false, false},
		{"redis unavailable", errors.New("dial tcp: connection refused"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{job: &model.Job{Status: model.JobStatusCompleted}, err: tt.err}
			w := NewSongWorker(runner, store.NewMemoryStore(), nil)

			err := w.ProcessTask(context.Background(), songTask(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, asynq.SkipRetry); got != tt.skipRetry {
				t.Fatalf("SkipRetry = %v, want %v (err %v)", got, tt.skipRetry, err)
			}
			if runner.seen == nil || runner.seen.JobID != "job-1" || runner.seen.MaxDurationSeconds != 600 {
				t.Fatalf("invocation = %+v", runner.seen)
			}
		})
	}
}

func TestProcessTaskRejectsMalformedPayload(t *testing.T) {
	runner := &fakeRunner{}
	w := NewSongWorker(runner, store.NewMemoryStore(), nil)

	err := w.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeSongProcess, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("error = %v, want SkipRetry", err)
	}
	if runner.seen != nil {
		t.Fatal("runner called for malformed payload")
	}
}

func TestInvalidInvocationIsRecorded(t *testing.T) {
	jobs := store.NewMemoryStore()
	beginJob(t, jobs)
	hub := &failRecorder{}
	w := NewSongWorker(&fakeRunner{err: pipeline.ErrInvalidInvocation}, jobs, hub)

	_ = w.ProcessTask(context.Background(), songTask(t))

	job, err := jobs.Get(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if len(hub.failed) != 1 {
		t.Fatalf("failed broadcasts = %d", len(hub.failed))
	}
}

func TestHandleErrorRecordsExhaustedRetries(t *testing.T) {
	jobs := store.NewMemoryStore()
	beginJob(t, jobs)
	w := NewSongWorker(&fakeRunner{}, jobs, nil)

	// without task metadata the retry count and max are both zero
	w.HandleError(context.Background(), songTask(t), errors.New("connection reset"))

	job, err := jobs.Get(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobStatusFailed || job.Error == nil {
		t.Fatalf("job = %+v", job)
	}
}

func TestHandleErrorIgnoresSkipRetry(t *testing.T) {
	jobs := store.NewMemoryStore()
	beginJob(t, jobs)
	w := NewSongWorker(&fakeRunner{}, jobs, nil)

	w.HandleError(context.Background(), songTask(t), asynq.SkipRetry)

	job, _ := jobs.Get(context.Background(), "2025-06-01")
	if job.Status != model.JobStatusProcessing {
		t.Fatalf("status = %s, want processing", job.Status)
	}
}
