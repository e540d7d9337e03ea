// Package sched provides the serialized task queue every state-mutating
// operation funnels through.
//
// The queue runs exactly one task at a time, in submission order, no
// matter how many goroutines submit concurrently. This is the system's
// only concurrency-control primitive: the tracker's "which run is open"
// state is touched exclusively from inside scheduled tasks, so there is
// no locking anywhere else.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is one unit of work. A task either completes or returns an error;
// there is no mid-task cancellation.
type Task func(ctx context.Context) error

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = errors.New("sched: scheduler closed")

// Scheduler is an unbounded FIFO queue with a single consumer goroutine.
type Scheduler struct {
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []item
	closed bool
	done   chan struct{}
}

type item struct {
	task Task
	res  chan error
}

func New(logger *slog.Logger) *Scheduler {
	s := &Scheduler{logger: logger, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Schedule enqueues a task and returns a channel that receives the
// task's result exactly once. Submission order is completion order.
func (s *Scheduler) Schedule(task Task) <-chan error {
	res := make(chan error, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		res <- ErrClosed
		return res
	}
	s.queue = append(s.queue, item{task: task, res: res})
	s.cond.Signal()
	s.mu.Unlock()
	return res
}

// Wait blocks until the task has run and returns its error. Convenience
// for producers that need the outcome inline.
func (s *Scheduler) Wait(task Task) error {
	return <-s.Schedule(task)
}

// Close stops the consumer once the queue drains. Pending tasks still
// run; tasks submitted afterwards fail with ErrClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		it := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		err := s.exec(it.task)
		if err != nil {
			// A failing task never stalls the queue, but it is
			// never silently swallowed either.
			s.logger.Error("scheduled task failed", "error", err)
		}
		it.res <- err
	}
}

func (s *Scheduler) exec(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(context.Background())
}
