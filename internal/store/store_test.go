package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benam/api/internal/model"
	"github.com/redis/go-redis/v9"
)

const testDate = "2099-03-14"

func invocation(jobID string) *model.Invocation {
	return &model.Invocation{
		JobID:              jobID,
		DateKey:            testDate,
		SourceRef:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		MaxDurationSeconds: 600,
	}
}

// storeFactories returns every JobStore implementation available in this
// environment. Redis is skipped when no local server answers.
func storeFactories() map[string]func(t *testing.T) JobStore {
	return map[string]func(t *testing.T) JobStore{
		"memory": func(t *testing.T) JobStore { return NewMemoryStore() },
		"redis": func(t *testing.T) JobStore {
			client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := client.Ping(ctx).Err(); err != nil {
				client.Close()
				t.Skipf("redis not available: %v", err)
			}
			client.Del(context.Background(), jobKey(testDate))
			t.Cleanup(func() {
				client.Del(context.Background(), jobKey(testDate))
				client.Close()
			})
			return NewRedisStore(client, time.Hour)
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s JobStore)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

// start submits a pending record for jobID and begins it.
func start(t *testing.T, s JobStore, jobID string) *model.Job {
	t.Helper()
	ctx := context.Background()
	if err := s.Create(ctx, &model.Job{JobID: jobID, DateKey: testDate, Status: model.JobStatusPending}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	job, err := s.Begin(ctx, invocation(jobID))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return job
}

func TestBeginStartsSubmittedRecord(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		job := start(t, s, "job-1")
		if job.Status != model.JobStatusProcessing || job.Progress != 0 || job.StartedAt == nil {
			t.Fatalf("job = %+v", job)
		}
	})
}

func TestBeginRefusesMissingRecord(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		if _, err := s.Begin(ctx, invocation("job-1")); !errors.Is(err, ErrSuperseded) {
			t.Fatalf("Begin() error = %v, want ErrSuperseded", err)
		}
		if _, err := s.Get(ctx, testDate); !errors.Is(err, ErrNotFound) {
			t.Fatalf("record created by Begin: %v", err)
		}
	})
}

func TestBeginAfterDeleteDoesNotResurrect(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		start(t, s, "job-1")
		if err := s.Delete(ctx, testDate); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Begin(ctx, invocation("job-1")); !errors.Is(err, ErrSuperseded) {
			t.Fatalf("Begin() error = %v, want ErrSuperseded", err)
		}
		if _, err := s.Get(ctx, testDate); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	})
}

func TestBeginKeepsSubmittedFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		if err := s.Create(ctx, &model.Job{
			JobID:     "job-1",
			DateKey:   testDate,
			SourceRef: "https://youtu.be/dQw4w9WgXcQ",
			DJName:    "Sam",
			DJMessage: &model.DJMessage{Kind: model.DJMessageSynthesized, Text: "Rise and shine"},
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		job, err := s.Begin(ctx, invocation("job-1"))
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if job.DJName != "Sam" || job.DJMessage == nil || job.DJMessage.Text != "Rise and shine" {
			t.Fatalf("submitted fields lost: %+v", job)
		}
	})
}

func TestCreateRejectsLiveSubmission(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		if err := s.Create(ctx, &model.Job{JobID: "a", DateKey: testDate}); err != nil {
			t.Fatal(err)
		}
		if err := s.Create(ctx, &model.Job{JobID: "b", DateKey: testDate}); !errors.Is(err, ErrExists) {
			t.Fatalf("error = %v, want ErrExists", err)
		}

		if _, err := s.Begin(ctx, &model.Invocation{JobID: "a", DateKey: testDate}); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Fail(ctx, testDate, "a", "boom"); err != nil {
			t.Fatal(err)
		}
		if err := s.Create(ctx, &model.Job{JobID: "b", DateKey: testDate}); err != nil {
			t.Fatalf("resubmit after failure: %v", err)
		}
		got, _ := s.Get(ctx, testDate)
		if got.JobID != "b" || got.Status != model.JobStatusPending || got.Error != nil {
			t.Fatalf("job = %+v", got)
		}
	})
}

func TestProgressNeverDecreases(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		start(t, s, "job-1")
		for _, p := range []int{40, 60, 50, 75, 10, 140} {
			if _, err := s.Checkpoint(ctx, testDate, "job-1", p, "step"); err != nil {
				t.Fatalf("Checkpoint(%d) error = %v", p, err)
			}
		}
		got, _ := s.Get(ctx, testDate)
		if got.Progress != 100 {
			t.Fatalf("progress = %d, want 100", got.Progress)
		}

		// a rerun of Begin must not reset progress either
		job, err := s.Begin(ctx, invocation("job-1"))
		if err != nil {
			t.Fatal(err)
		}
		if job.Progress != 100 {
			t.Fatalf("progress after rerun = %d", job.Progress)
		}
	})
}

func TestTerminalStatesAreFinal(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		start(t, s, "job-1")
		d := 42.0
		if _, err := s.Complete(ctx, testDate, "job-1", &model.JobResult{
			PrimaryArtifactRef:  "songs/x.mp3",
			CombinedArtifactRef: "combined/x.mp3",
			DurationSeconds:     &d,
		}); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}

		job, err := s.Fail(ctx, testDate, "job-1", "late failure")
		if !errors.Is(err, ErrTerminal) {
			t.Fatalf("Fail() error = %v, want ErrTerminal", err)
		}
		if job == nil || job.Status != model.JobStatusCompleted {
			t.Fatalf("stored record not reported: %+v", job)
		}
		if _, err := s.Checkpoint(ctx, testDate, "job-1", 50, "again"); !errors.Is(err, ErrTerminal) {
			t.Fatalf("Checkpoint() error = %v, want ErrTerminal", err)
		}
		job, err = s.Begin(ctx, invocation("job-1"))
		if !errors.Is(err, ErrTerminal) || job.CombinedArtifactRef != "combined/x.mp3" {
			t.Fatalf("Begin() = %+v, %v", job, err)
		}

		got, _ := s.Get(ctx, testDate)
		if got.Status != model.JobStatusCompleted || got.Progress != 100 || got.Error != nil {
			t.Fatalf("job = %+v", got)
		}
	})
}

func TestWritesFromOtherJobAreRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		start(t, s, "new")
		if _, err := s.Begin(ctx, invocation("old")); !errors.Is(err, ErrSuperseded) {
			t.Fatalf("Begin() error = %v", err)
		}
		if _, err := s.Checkpoint(ctx, testDate, "old", 90, "x"); !errors.Is(err, ErrSuperseded) {
			t.Fatalf("Checkpoint() error = %v", err)
		}
		if _, err := s.Fail(ctx, testDate, "old", "x"); !errors.Is(err, ErrSuperseded) {
			t.Fatalf("Fail() error = %v", err)
		}
		got, _ := s.Get(ctx, testDate)
		if got.JobID != "new" || got.Progress != 0 || got.Status != model.JobStatusProcessing {
			t.Fatalf("job = %+v", got)
		}
	})
}

func TestDeletedRecordCancelsWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		start(t, s, "job-1")
		if err := s.Delete(ctx, testDate); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Checkpoint(ctx, testDate, "job-1", 40, "audio"); !errors.Is(err, ErrSuperseded) {
			t.Fatalf("Checkpoint() error = %v, want ErrSuperseded", err)
		}
		if _, err := s.Get(ctx, testDate); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, testDate); !errors.Is(err, ErrNotFound) {
			t.Fatalf("second Delete() error = %v", err)
		}
	})
}

func TestConcurrentCheckpointsKeepMaximum(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		start(t, s, "job-1")

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			best int
		)
		for p := 1; p <= 20; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				if _, err := s.Checkpoint(ctx, testDate, "job-1", p*5, "step"); err == nil {
					mu.Lock()
					if p*5 > best {
						best = p * 5
					}
					mu.Unlock()
				}
			}(p)
		}
		wg.Wait()

		if best == 0 {
			t.Fatal("no checkpoint succeeded")
		}
		got, _ := s.Get(ctx, testDate)
		if got.Progress != best {
			t.Fatalf("progress = %d, want %d", got.Progress, best)
		}
	})
}

func TestListReturnsStoredRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, s JobStore) {
		ctx := context.Background()
		if err := s.Create(ctx, &model.Job{JobID: "job-1", DateKey: testDate, VideoID: "dQw4w9WgXcQ"}); err != nil {
			t.Fatal(err)
		}
		jobs, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		var found bool
		for _, j := range jobs {
			if j.DateKey == testDate && j.VideoID == "dQw4w9WgXcQ" {
				found = true
			}
		}
		if !found {
			t.Fatalf("record missing from %d listed jobs", len(jobs))
		}
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	job := start(t, s, "job-1")
	job.Progress = 99

	got, _ := s.Get(ctx, testDate)
	if got.Progress != 0 {
		t.Fatalf("store mutated through returned pointer: %d", got.Progress)
	}
}
