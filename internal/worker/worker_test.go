package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/elicit/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueue(t *testing.T, store *storage.Store, id, typ string) {
	t.Helper()
	job := storage.Job{ID: id, Type: typ, PayloadJSON: `{"project_id":1}`}
	if err := store.EnqueueJob(context.Background(), job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
}

func TestRunOnceCompletesJob(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-1", "build_priority")

	var got string
	w := New(store, map[string]Handler{
		"build_priority": func(_ context.Context, payload string) error {
			got = payload
			return nil
		},
	}, time.Millisecond, nil)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}
	if got != `{"project_id":1}` {
		t.Errorf("payload = %q", got)
	}

	job, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "completed" {
		t.Errorf("status = %q, want completed", job.Status)
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	store := openTestStore(t)
	w := New(store, map[string]Handler{"build_priority": func(context.Context, string) error { return nil }}, 0, nil)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("no job should have been processed")
	}
}

func TestRunOnceFailureSchedulesRetry(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-1", "build_priority")

	w := New(store, map[string]Handler{
		"build_priority": func(context.Context, string) error { return errors.New("oracle down") },
	}, time.Millisecond, nil)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	job, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "pending" || job.Attempts != 1 {
		t.Errorf("status=%q attempts=%d, want pending/1", job.Status, job.Attempts)
	}
	if job.LastError != "oracle down" {
		t.Errorf("last error = %q", job.LastError)
	}

	// Backoff keeps the job out of reach for now.
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("job in backoff must not be claimed")
	}
}

func TestRunOnceIgnoresOtherTypes(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-1", "something_else")

	w := New(store, map[string]Handler{"build_priority": func(context.Context, string) error { return nil }}, 0, nil)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("job of an unhandled type was claimed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	enqueue(t, store, "job-1", "build_priority")
	enqueue(t, store, "job-2", "build_priority")

	var processed atomic.Int32
	w := New(store, map[string]Handler{
		"build_priority": func(context.Context, string) error {
			processed.Add(1)
			return nil
		},
	}, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for processed.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := processed.Load(); n != 2 {
		t.Errorf("processed %d jobs, want 2", n)
	}
}
