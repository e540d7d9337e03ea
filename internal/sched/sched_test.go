package sched

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func newTestScheduler() *Scheduler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunsInSubmissionOrder(t *testing.T) {
	s := newTestScheduler()
	defer s.Close()

	var mu sync.Mutex
	var got []int

	var last <-chan error
	for i := 0; i < 200; i++ {
		i := i
		last = s.Schedule(func(ctx context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		})
	}
	<-last

	if len(got) != 200 {
		t.Fatalf("ran %d tasks, want 200", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestSingleTaskAtATime(t *testing.T) {
	s := newTestScheduler()
	defer s.Close()

	var mu sync.Mutex
	running, maxRunning := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Wait(func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Fatalf("observed %d tasks running concurrently", maxRunning)
	}
}

func TestFailureDoesNotStallQueue(t *testing.T) {
	s := newTestScheduler()
	defer s.Close()

	boom := errors.New("boom")
	if err := s.Wait(func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	ran := false
	if err := s.Wait(func(ctx context.Context) error { ran = true; return nil }); err != nil {
		t.Fatalf("follow-up task failed: %v", err)
	}
	if !ran {
		t.Fatal("queue stalled after failing task")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	s := newTestScheduler()
	defer s.Close()

	err := s.Wait(func(ctx context.Context) error { panic("kaboom") })
	if err == nil {
		t.Fatal("panicking task returned nil error")
	}

	if err := s.Wait(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("queue unusable after panic: %v", err)
	}
}

func TestCloseDrainsPending(t *testing.T) {
	s := newTestScheduler()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 20; i++ {
		s.Schedule(func(ctx context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
	}
	s.Close()

	if ran != 20 {
		t.Fatalf("ran %d pending tasks after Close, want 20", ran)
	}

	if err := s.Wait(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("post-Close submission err = %v, want ErrClosed", err)
	}
}
