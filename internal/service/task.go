package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/benam/api/internal/model"
)

const TaskTypeSongProcess = "song:process"

// QueueOptions controls how song tasks are enqueued.
type QueueOptions struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// NewSongTask wraps an invocation in an asynq task.
func NewSongTask(inv *model.Invocation) (*asynq.Task, error) {
	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invocation: %w", err)
	}
	return asynq.NewTask(TaskTypeSongProcess, data), nil
}

// ParseSongTask decodes the invocation carried by a song task.
func ParseSongTask(t *asynq.Task) (*model.Invocation, error) {
	var inv model.Invocation
	if err := json.Unmarshal(t.Payload(), &inv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invocation: %w", err)
	}
	return &inv, nil
}

// EnqueueOptions returns the asynq options for a job. The task ID is the job
// ID so a double submit cannot queue the same job twice.
func (o QueueOptions) EnqueueOptions(jobID string) []asynq.Option {
	opts := []asynq.Option{
		asynq.TaskID(jobID),
		asynq.MaxRetry(o.MaxRetry),
		asynq.Retention(24 * time.Hour),
	}
	if o.Queue != "" {
		opts = append(opts, asynq.Queue(o.Queue))
	}
	if o.Timeout > 0 {
		opts = append(opts, asynq.Timeout(o.Timeout))
	}
	return opts
}
