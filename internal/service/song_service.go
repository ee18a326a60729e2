package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/benam/api/internal/client"
	"github.com/benam/api/internal/media"
	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/pipeline"
	"github.com/benam/api/internal/store"
)

var (
	ErrInvalidVideoURL = errors.New("invalid YouTube URL")
	ErrDuplicateVideo  = errors.New("this song has already been submitted")
	ErrDateTaken       = errors.New("this date already has a song")
	ErrNotOwner        = errors.New("submission belongs to another user")
	ErrAlreadyComplete = errors.New("cannot cancel completed submission")

	// ErrQueueUnavailable means the job record was written but could not be queued.
	ErrQueueUnavailable = errors.New("processing queue unavailable")
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskDeleter is satisfied by *asynq.Inspector.
type TaskDeleter interface {
	DeleteTask(queue, id string) error
}

// SongService handles song submissions and their job records
type SongService struct {
	store       store.JobStore
	artifacts   client.ArtifactStore
	queue       Enqueuer
	tasks       TaskDeleter
	opts        QueueOptions
	maxDuration float64
}

func NewSongService(jobs store.JobStore, artifacts client.ArtifactStore, queue Enqueuer, tasks TaskDeleter, opts QueueOptions, maxDuration float64) *SongService {
	return &SongService{
		store:       jobs,
		artifacts:   artifacts,
		queue:       queue,
		tasks:       tasks,
		opts:        opts,
		maxDuration: maxDuration,
	}
}

// Submit records a pending job for the date and queues its processing
func (s *SongService) Submit(ctx context.Context, userID string, req *model.SubmitSongRequest) (*model.SubmitSongResponse, error) {
	videoID := ExtractYouTubeID(req.YoutubeURL)
	if videoID == "" {
		return nil, ErrInvalidVideoURL
	}

	var window *model.ClipWindow
	if req.StartTime != nil || req.EndTime != nil {
		window = &model.ClipWindow{End: req.EndTime}
		if req.StartTime != nil {
			window.Start = *req.StartTime
		}
	}
	if err := media.ValidateWindow(window, s.maxDuration); err != nil {
		return nil, err
	}

	if existing, err := s.store.Get(ctx, req.DateKey); err == nil && existing.Status != model.JobStatusFailed {
		return nil, ErrDateTaken
	}
	if err := s.checkDuplicate(ctx, videoID); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	job := &model.Job{
		JobID:           jobID,
		DateKey:         req.DateKey,
		SourceRef:       req.YoutubeURL,
		VideoID:         videoID,
		ClipWindow:      window,
		SongTitle:       req.SongTitle,
		DJName:          req.DJName,
		ReviewerContact: req.ReviewerContact,
		SubmittedBy:     userID,
		CreatedAt:       time.Now(),
	}

	switch model.DJMessageKind(req.DJType) {
	case model.DJMessageSynthesized:
		job.DJMessage = &model.DJMessage{Kind: model.DJMessageSynthesized, Text: req.DJMessage}
	case model.DJMessageRecorded:
		key, err := s.storeRecording(ctx, req.DateKey, jobID, req.DJRecordingData)
		if err != nil {
			return nil, err
		}
		job.DJMessage = &model.DJMessage{Kind: model.DJMessageRecorded, RecordingKey: key}
	}

	if err := s.store.Create(ctx, job); err != nil {
		s.discardRecording(ctx, job)
		if errors.Is(err, store.ErrExists) {
			return nil, ErrDateTaken
		}
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := NewSongTask(&model.Invocation{
		JobID:              jobID,
		DateKey:            req.DateKey,
		SourceRef:          req.YoutubeURL,
		ClipWindow:         window,
		MaxDurationSeconds: s.maxDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if _, err := s.queue.Enqueue(task, s.opts.EnqueueOptions(jobID)...); err != nil {
		msg := fmt.Sprintf("failed to queue processing: %v", err)
		if _, ferr := s.store.Fail(ctx, req.DateKey, jobID, msg); ferr != nil {
			log.Printf("Failed to mark job %s failed: %v", jobID, ferr)
		}
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	return &model.SubmitSongResponse{
		JobID:   jobID,
		DateKey: req.DateKey,
		Status:  model.JobStatusPending,
	}, nil
}

func (s *SongService) checkDuplicate(ctx context.Context, videoID string) error {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to check duplicates: %w", err)
	}
	for _, j := range jobs {
		if j.VideoID == videoID && j.Status != model.JobStatusFailed {
			return fmt.Errorf("%w (%s)", ErrDuplicateVideo, j.DateKey)
		}
	}
	return nil
}

// discardRecording removes a recording uploaded for a job that was never saved.
func (s *SongService) discardRecording(ctx context.Context, job *model.Job) {
	if job.DJMessage == nil || job.DJMessage.RecordingKey == "" {
		return
	}
	if err := s.artifacts.Delete(ctx, job.DJMessage.RecordingKey); err != nil {
		log.Printf("Failed to delete orphaned recording %s: %v", job.DJMessage.RecordingKey, err)
	}
}

// storeRecording uploads a browser recording. Browsers produce WebM/Opus,
// so the key always ends in .webm; the normalizer transcodes it.
func (s *SongService) storeRecording(ctx context.Context, dateKey, jobID, data string) (string, error) {
	audio, contentType, err := DecodeRecording(data)
	if err != nil {
		return "", err
	}
	key := model.ArtifactKey(model.ArtifactDJMessages, dateKey, jobID, "webm")
	if _, err := s.artifacts.Upload(ctx, key, bytes.NewReader(audio), contentType); err != nil {
		return "", fmt.Errorf("failed to store recording: %w", err)
	}
	return key, nil
}

// Status returns the job record for a date
func (s *SongService) Status(ctx context.Context, dateKey string) (*model.JobStatusResponse, error) {
	job, err := s.store.Get(ctx, dateKey)
	if err != nil {
		return nil, err
	}

	resp := &model.JobStatusResponse{
		JobID:       job.JobID,
		DateKey:     job.DateKey,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		Result:      pipeline.Result(job),
	}
	if resp.Result != nil && s.artifacts != nil {
		resp.PlaybackURL = s.artifacts.GetPublicURL(resp.Result.CombinedArtifactRef)
	}
	return resp, nil
}

// Cancel deletes a pending, processing or failed submission. A run already in
// flight notices the deletion at its next checkpoint and stops.
func (s *SongService) Cancel(ctx context.Context, userID, dateKey string) (*model.CancelSongResponse, error) {
	job, err := s.store.Get(ctx, dateKey)
	if err != nil {
		return nil, err
	}
	if job.SubmittedBy != "" && job.SubmittedBy != userID {
		return nil, ErrNotOwner
	}
	if job.Status == model.JobStatusCompleted {
		return nil, ErrAlreadyComplete
	}

	if err := s.store.Delete(ctx, dateKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to delete job: %w", err)
	}

	if s.tasks != nil {
		if err := s.tasks.DeleteTask(s.opts.Queue, job.JobID); err != nil &&
			!errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			// active tasks cannot be deleted; the run stops on its own
			log.Printf("Could not remove queued task %s: %v", job.JobID, err)
		}
	}
	if job.DJMessage != nil && job.DJMessage.RecordingKey != "" && s.artifacts != nil {
		if err := s.artifacts.Delete(ctx, job.DJMessage.RecordingKey); err != nil {
			log.Printf("Failed to delete recording %s: %v", job.DJMessage.RecordingKey, err)
		}
	}

	return &model.CancelSongResponse{
		Success: true,
		DateKey: dateKey,
		At:      time.Now(),
	}, nil
}
