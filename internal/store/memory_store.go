package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benam/api/internal/model"
)

// MemoryStore is a process-local JobStore for single-shot runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job), now: time.Now}
}

func (s *MemoryStore) apply(dateKey string, fn mutation) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.jobs[dateKey]
	next, err := fn(cloneJob(current), s.now())
	if err != nil {
		if errors.Is(err, ErrTerminal) {
			return cloneJob(current), err
		}
		return nil, err
	}
	s.jobs[dateKey] = next
	return cloneJob(next), nil
}

func (s *MemoryStore) Create(ctx context.Context, job *model.Job) error {
	_, err := s.apply(job.DateKey, createRule(job))
	return err
}

func (s *MemoryStore) Get(ctx context.Context, dateKey string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[dateKey]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) Delete(ctx context.Context, dateKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[dateKey]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, dateKey)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, cloneJob(job))
	}
	return jobs, nil
}

func (s *MemoryStore) Begin(ctx context.Context, inv *model.Invocation) (*model.Job, error) {
	return s.apply(inv.DateKey, beginRule(inv))
}

func (s *MemoryStore) Checkpoint(ctx context.Context, dateKey, jobID string, progress int, step string) (*model.Job, error) {
	return s.apply(dateKey, checkpointRule(jobID, progress, step))
}

func (s *MemoryStore) Complete(ctx context.Context, dateKey, jobID string, result *model.JobResult) (*model.Job, error) {
	return s.apply(dateKey, completeRule(jobID, result))
}

func (s *MemoryStore) Fail(ctx context.Context, dateKey, jobID, message string) (*model.Job, error) {
	return s.apply(dateKey, failRule(jobID, message))
}
