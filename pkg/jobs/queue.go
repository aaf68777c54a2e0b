package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task. Jobs sharing a non-empty Key run
// one at a time in submission order; jobs with different keys run in parallel.
type Job struct {
	ID       string
	Key      string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
	// OnDiscard is called for every job dropped because the queue stopped
	// before it ran.
	OnDiscard func(Job)
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	bufferSize int
	logger     *zap.Logger
	onDiscard  func(Job)

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	// active holds the keys with a job in flight; lanes the jobs waiting on them.
	active map[string]bool
	lanes  map[string][]Job
	queued int
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		onDiscard:  cfg.OnDiscard,
		jobs:       make(chan Job, cfg.BufferSize),
		active:     make(map[string]bool),
		lanes:      make(map[string][]Job),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit. Jobs that never started
// are handed to OnDiscard.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	q.mu.Lock()
	var dropped []Job
	for key, lane := range q.lanes {
		dropped = append(dropped, lane...)
		delete(q.lanes, key)
	}
	q.queued = 0
	q.mu.Unlock()
drain:
	for {
		select {
		case job := <-q.jobs:
			dropped = append(dropped, job)
		default:
			break drain
		}
	}
	for _, job := range dropped {
		if q.onDiscard != nil {
			q.onDiscard(job)
		}
	}
	q.logger.Sugar().Infow("queue stopped", "queue", q.name, "discarded", len(dropped))
}

// Enqueue pushes a job onto the queue. A job whose key is busy waits in that
// key's lane instead of occupying a worker.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	if !started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	if ctx.Err() != nil {
		q.mu.Unlock()
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	q.queued++
	if job.Key != "" {
		if q.active[job.Key] {
			q.lanes[job.Key] = append(q.lanes[job.Key], job)
			q.mu.Unlock()
			return nil
		}
		q.active[job.Key] = true
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.mu.Lock()
		q.queued--
		q.mu.Unlock()
		q.release(job.Key)
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

// Pending reports the jobs accepted but not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queued
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			for ok := true; ok; job, ok = q.next(job.Key) {
				q.run(workerID, job)
				if q.ctx.Err() != nil {
					q.release(job.Key)
					return
				}
			}
		}
	}
}

// next hands the worker the following job of the lane it just served, or
// frees the key when the lane is empty.
func (q *Queue) next(key string) (Job, bool) {
	if key == "" {
		return Job{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	lane := q.lanes[key]
	if len(lane) == 0 {
		delete(q.active, key)
		delete(q.lanes, key)
		return Job{}, false
	}
	q.lanes[key] = lane[1:]
	return lane[0], true
}

func (q *Queue) release(key string) {
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.active, key)
	q.mu.Unlock()
}

func (q *Queue) run(workerID int, job Job) {
	q.mu.Lock()
	q.queued--
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Sugar().Errorw("job panicked", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := q.handler(q.ctx, job); err != nil {
		q.logger.Sugar().Warnw("job failed", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
	}
}
