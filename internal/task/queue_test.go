package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitRunsTasks(t *testing.T) {
	q := NewQueue(2, 8, testLogger())
	defer q.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		err := q.Submit("count", func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	wg.Wait()
	if got := ran.Load(); got != 5 {
		t.Errorf("ran %d tasks, want 5", got)
	}
}

func TestSubmitFailsWhenFull(t *testing.T) {
	q := NewQueue(1, 1, testLogger())
	defer q.Close()

	block := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker.
	if err := q.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	// Fill the single queue slot.
	if err := q.Submit("queued", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}

	if err := q.Submit("overflow", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit on full queue = %v, want ErrQueueFull", err)
	}

	close(block)
}

func TestCloseDrainsAndRejects(t *testing.T) {
	q := NewQueue(1, 8, testLogger())

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		if err := q.Submit("work", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	q.Close()
	if got := ran.Load(); got != 3 {
		t.Errorf("Close drained %d tasks, want 3", got)
	}

	if err := q.Submit("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Submit after Close = %v, want ErrQueueClosed", err)
	}

	// Close is idempotent.
	q.Close()
}

func TestFailedTaskDoesNotStopWorkers(t *testing.T) {
	q := NewQueue(1, 8, testLogger())
	defer q.Close()

	done := make(chan struct{})

	if err := q.Submit("failing", func(ctx context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit("following", func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after failure never ran")
	}
}
