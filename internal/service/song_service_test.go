package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/benam/api/internal/media"
	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/store"
)

type fakeEnqueuer struct {
	err   error
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "id", Queue: "media"}, nil
}

type fakeDeleter struct {
	deleted []string
}

func (f *fakeDeleter) DeleteTask(queue, id string) error {
	f.deleted = append(f.deleted, queue+"/"+id)
	return nil
}

type memArtifacts struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memArtifacts) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return m.GetPublicURL(key), nil
}

func (m *memArtifacts) UploadFile(ctx context.Context, key, path, contentType string) (string, error) {
	return "", errors.New("not used")
}

func (m *memArtifacts) Download(ctx context.Context, key, dst string) error {
	return errors.New("not used")
}

func (m *memArtifacts) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memArtifacts) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type serviceHarness struct {
	store     *store.MemoryStore
	artifacts *memArtifacts
	queue     *fakeEnqueuer
	deleter   *fakeDeleter
	svc       *SongService
}

func newServiceHarness() *serviceHarness {
	h := &serviceHarness{
		store:     store.NewMemoryStore(),
		artifacts: newMemArtifacts(),
		queue:     &fakeEnqueuer{},
		deleter:   &fakeDeleter{},
	}
	h.svc = NewSongService(h.store, h.artifacts, h.queue, h.deleter, QueueOptions{Queue: "media", MaxRetry: 3, Timeout: time.Minute}, 600)
	return h
}

func validRequest() *model.SubmitSongRequest {
	return &model.SubmitSongRequest{
		DateKey:    "2025-06-01",
		YoutubeURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		SongTitle:  "Never Gonna Give You Up",
		DJType:     "synthesized",
		DJName:     "Sam",
		DJMessage:  "Rise and shine!",
	}
}

func TestSubmitCreatesPendingJobAndEnqueues(t *testing.T) {
	h := newServiceHarness()
	ctx := context.Background()

	resp, err := h.svc.Submit(ctx, "user-1", validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.Status != model.JobStatusPending || resp.JobID == "" {
		t.Fatalf("resp = %+v", resp)
	}

	job, err := h.store.Get(ctx, "2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if job.JobID != resp.JobID || job.VideoID != "dQw4w9WgXcQ" || job.SubmittedBy != "user-1" {
		t.Fatalf("job = %+v", job)
	}
	if job.DJMessage == nil || job.DJMessage.Kind != model.DJMessageSynthesized || job.DJMessage.Text != "Rise and shine!" {
		t.Fatalf("dj message = %+v", job.DJMessage)
	}

	if len(h.queue.tasks) != 1 || h.queue.tasks[0].Type() != TaskTypeSongProcess {
		t.Fatalf("tasks = %v", h.queue.tasks)
	}
	inv, err := ParseSongTask(h.queue.tasks[0])
	if err != nil {
		t.Fatal(err)
	}
	if inv.JobID != resp.JobID || inv.MaxDurationSeconds != 600 || inv.ClipWindow != nil {
		t.Fatalf("invocation = %+v", inv)
	}
}

func TestSubmitRecordedMessageIsStored(t *testing.T) {
	h := newServiceHarness()
	req := validRequest()
	req.DJType = "recorded"
	req.DJMessage = ""
	req.DJRecordingData = "data:audio/webm;codecs=opus;base64,aGVsbG8="

	resp, err := h.svc.Submit(context.Background(), "user-1", req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	key := "dj-messages/2025-06-01/" + resp.JobID + ".webm"
	if string(h.artifacts.objects[key]) != "hello" || h.artifacts.types[key] != "audio/webm" {
		t.Fatalf("objects = %v", h.artifacts.objects)
	}
	job, _ := h.store.Get(context.Background(), "2025-06-01")
	if job.DJMessage.Kind != model.DJMessageRecorded || job.DJMessage.RecordingKey != key {
		t.Fatalf("dj message = %+v", job.DJMessage)
	}
}

// lostRaceStore loses every Create to a concurrent submission.
type lostRaceStore struct {
	store.JobStore
	err error
}

func (s *lostRaceStore) Create(ctx context.Context, job *model.Job) error {
	return s.err
}

func TestSubmitRemovesRecordingWhenSaveFails(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"date taken concurrently", store.ErrExists, ErrDateTaken},
		{"store unavailable", errors.New("connection refused"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newServiceHarness()
			svc := NewSongService(&lostRaceStore{JobStore: h.store, err: tt.err}, h.artifacts, h.queue, h.deleter, QueueOptions{Queue: "media"}, 600)
			req := validRequest()
			req.DJType = "recorded"
			req.DJMessage = ""
			req.DJRecordingData = "data:audio/webm;base64,aGVsbG8="

			_, err := svc.Submit(context.Background(), "user-1", req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(h.artifacts.objects) != 0 {
				t.Fatalf("orphaned recording left behind: %v", h.artifacts.objects)
			}
			if len(h.queue.tasks) != 0 {
				t.Fatal("task enqueued for an unsaved job")
			}
		})
	}
}

func TestSubmitRejections(t *testing.T) {
	end := 700.0
	tests := []struct {
		name   string
		mutate func(r *model.SubmitSongRequest)
		want   error
	}{
		{"bad url", func(r *model.SubmitSongRequest) { r.YoutubeURL = "https://vimeo.com/1" }, ErrInvalidVideoURL},
		{"window too long", func(r *model.SubmitSongRequest) { r.EndTime = &end }, media.ErrDurationExceedsCap},
		{"bad recording", func(r *model.SubmitSongRequest) { r.DJType = "recorded"; r.DJRecordingData = "%%%" }, ErrInvalidRecording},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newServiceHarness()
			req := validRequest()
			tt.mutate(req)
			if _, err := h.svc.Submit(context.Background(), "user-1", req); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if len(h.queue.tasks) != 0 {
				t.Fatal("task enqueued for rejected submission")
			}
			if _, err := h.store.Get(context.Background(), "2025-06-01"); !errors.Is(err, store.ErrNotFound) {
				t.Fatal("record created for rejected submission")
			}
		})
	}
}

func TestSubmitDateTakenAndDuplicateVideo(t *testing.T) {
	h := newServiceHarness()
	ctx := context.Background()
	if _, err := h.svc.Submit(ctx, "user-1", validRequest()); err != nil {
		t.Fatal(err)
	}

	other := validRequest()
	other.YoutubeURL = "https://youtu.be/9bZkp7q19f0"
	if _, err := h.svc.Submit(ctx, "user-2", other); !errors.Is(err, ErrDateTaken) {
		t.Fatalf("error = %v, want ErrDateTaken", err)
	}

	again := validRequest()
	again.DateKey = "2025-06-02"
	again.YoutubeURL = "https://youtu.be/dQw4w9WgXcQ"
	if _, err := h.svc.Submit(ctx, "user-2", again); !errors.Is(err, ErrDuplicateVideo) {
		t.Fatalf("error = %v, want ErrDuplicateVideo", err)
	}
}

func TestSubmitEnqueueFailureMarksJobFailed(t *testing.T) {
	h := newServiceHarness()
	h.queue.err = errors.New("redis down")

	if _, err := h.svc.Submit(context.Background(), "user-1", validRequest()); !errors.Is(err, ErrQueueUnavailable) {
		t.Fatalf("error = %v, want ErrQueueUnavailable", err)
	}
	job, err := h.store.Get(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobStatusFailed || job.Error == nil {
		t.Fatalf("job = %+v", job)
	}

	// a failed date can be resubmitted
	h.queue.err = nil
	if _, err := h.svc.Submit(context.Background(), "user-1", validRequest()); err != nil {
		t.Fatalf("resubmit error = %v", err)
	}
}

func TestStatusIncludesResultWhenCompleted(t *testing.T) {
	h := newServiceHarness()
	ctx := context.Background()
	resp, err := h.svc.Submit(ctx, "user-1", validRequest())
	if err != nil {
		t.Fatal(err)
	}

	status, err := h.svc.Status(ctx, "2025-06-01")
	if err != nil || status.Status != model.JobStatusPending || status.Result != nil {
		t.Fatalf("status = %+v, err = %v", status, err)
	}

	inv := &model.Invocation{JobID: resp.JobID, DateKey: "2025-06-01"}
	if _, err := h.store.Begin(ctx, inv); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.Complete(ctx, "2025-06-01", resp.JobID, &model.JobResult{
		PrimaryArtifactRef:  "songs/2025-06-01/x.mp3",
		CombinedArtifactRef: "combined/2025-06-01/x.mp3",
	}); err != nil {
		t.Fatal(err)
	}

	status, err = h.svc.Status(ctx, "2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if status.Result == nil || status.PlaybackURL != "https://cdn.test/combined/2025-06-01/x.mp3" {
		t.Fatalf("status = %+v", status)
	}

	if _, err := h.svc.Status(ctx, "2030-01-01"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCancel(t *testing.T) {
	h := newServiceHarness()
	ctx := context.Background()
	req := validRequest()
	req.DJType = "recorded"
	req.DJRecordingData = "aGVsbG8="
	resp, err := h.svc.Submit(ctx, "user-1", req)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.Cancel(ctx, "user-2", "2025-06-01"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("error = %v, want ErrNotOwner", err)
	}

	out, err := h.svc.Cancel(ctx, "user-1", "2025-06-01")
	if err != nil || !out.Success {
		t.Fatalf("Cancel() = %+v, %v", out, err)
	}
	if _, err := h.store.Get(ctx, "2025-06-01"); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("record not deleted")
	}
	if len(h.deleter.deleted) != 1 || h.deleter.deleted[0] != "media/"+resp.JobID {
		t.Fatalf("deleted tasks = %v", h.deleter.deleted)
	}
	if len(h.artifacts.objects) != 0 {
		t.Fatalf("recording not removed: %v", h.artifacts.objects)
	}
}

func TestCancelCompletedIsRejected(t *testing.T) {
	h := newServiceHarness()
	ctx := context.Background()
	resp, err := h.svc.Submit(ctx, "user-1", validRequest())
	if err != nil {
		t.Fatal(err)
	}
	_, _ = h.store.Begin(ctx, &model.Invocation{JobID: resp.JobID, DateKey: "2025-06-01"})
	_, _ = h.store.Complete(ctx, "2025-06-01", resp.JobID, &model.JobResult{PrimaryArtifactRef: "a", CombinedArtifactRef: "a"})

	if _, err := h.svc.Cancel(ctx, "user-1", "2025-06-01"); !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("error = %v, want ErrAlreadyComplete", err)
	}
}
