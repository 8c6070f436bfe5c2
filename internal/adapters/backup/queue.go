package backup

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Job is a unit of backup work run by the Queue.
type Job func(ctx context.Context) error

// ErrQueueClosed is returned by TrySubmit after Drain has been called.
var ErrQueueClosed = errors.New("backup queue closed")

// ErrQueueFull is returned by TrySubmit when every slot is taken.
var ErrQueueFull = errors.New("backup queue full")

// Queue runs jobs on a fixed number of goroutines with a bounded backlog.
// Submitting never blocks.
type Queue struct {
	jobs    chan Job
	wg      sync.WaitGroup
	workers int
	onError func(error)

	closeMu sync.Mutex
	closed  bool
}

func NewQueue(workers, size int, onError func(error)) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = workers * 2
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Queue{
		jobs:    make(chan Job, size),
		workers: workers,
		onError: onError,
	}
}

// Start launches the workers. Jobs run with ctx; workers exit once the queue
// is drained.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				if err := job(ctx); err != nil {
					q.onError(err)
				}
			}
		}()
	}
}

// TrySubmit enqueues job, or returns ErrQueueFull without waiting.
func (q *Queue) TrySubmit(job Job) error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain stops intake and waits for queued jobs to finish or ctx to expire.
func (q *Queue) Drain(ctx context.Context) error {
	q.closeMu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "draining backup queue")
	}
}
