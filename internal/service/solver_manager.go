package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/study-planner/internal/scheduler"
	appErrors "github.com/noah-isme/study-planner/pkg/errors"
	"github.com/noah-isme/study-planner/pkg/jobs"
)

const solveJobType = "plan.solve"

// SolveRequest carries one scheduling run. The model is owned by the run
// until its handle completes.
type SolveRequest struct {
	Model    *scheduler.Model
	Strategy scheduler.Strategy
	Config   scheduler.SolverConfig
	// Runs is the number of independently seeded searches; the best wins.
	Runs   int
	Greedy scheduler.GreedyOptions
}

// SolveHandle is the caller's view of one submitted run.
type SolveHandle struct {
	ID        uuid.UUID
	Key       string
	Submitted time.Time

	req  SolveRequest
	done chan struct{}
	once sync.Once
	plan scheduler.Plan
	err  error
}

func newSolveHandle(key string, req SolveRequest) *SolveHandle {
	return &SolveHandle{
		ID:        uuid.New(),
		Key:       key,
		Submitted: time.Now().UTC(),
		req:       req,
		done:      make(chan struct{}),
	}
}

// Done is closed once the run has terminated or was discarded.
func (h *SolveHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run terminates. A cancelled ctx only abandons the
// wait; the run itself continues in the background.
func (h *SolveHandle) Wait(ctx context.Context) (scheduler.Plan, error) {
	select {
	case <-h.done:
		return h.plan, h.err
	case <-ctx.Done():
		return scheduler.Plan{}, appErrors.Wrap(ctx.Err(), appErrors.ErrSolveTimeout.Code, appErrors.ErrSolveTimeout.Status, appErrors.ErrSolveTimeout.Message)
	}
}

func (h *SolveHandle) finish(plan scheduler.Plan, err error) {
	h.once.Do(func() {
		h.plan, h.err = plan, err
		close(h.done)
	})
}

// SolverManagerConfig sizes the solve worker pool.
type SolverManagerConfig struct {
	Workers    int
	BufferSize int
}

// SolverManager runs scheduling jobs on a worker pool. At most one run per
// key is in flight; later runs for the same key wait behind it in order.
type SolverManager struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSolverManager builds a manager. Workers defaults to the number of CPUs.
func NewSolverManager(cfg SolverManagerConfig, metrics *MetricsService, logger *zap.Logger) *SolverManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	m := &SolverManager{metrics: metrics, logger: logger}
	m.queue = jobs.NewQueue("solver", m.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
		OnDiscard:  m.discard,
	})
	return m
}

// Start launches the workers.
func (m *SolverManager) Start(ctx context.Context) {
	m.queue.Start(ctx)
}

// Stop waits for running solves to finish and fails every waiting handle
// with ErrQueueStopped.
func (m *SolverManager) Stop() {
	m.queue.Stop()
	m.metrics.SetQueueDepth(0)
}

// Pending reports runs accepted but not yet started.
func (m *SolverManager) Pending() int {
	return m.queue.Pending()
}

// Submit schedules a run for key and returns its handle immediately.
func (m *SolverManager) Submit(ctx context.Context, key string, req SolveRequest) (*SolveHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Model == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "solve request requires a model")
	}
	if req.Strategy == "" {
		req.Strategy = scheduler.StrategySearch
	}
	if !req.Strategy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnsupported, fmt.Sprintf("unknown strategy %q", req.Strategy))
	}

	h := newSolveHandle(key, req)
	job := jobs.Job{ID: h.ID.String(), Key: key, Type: solveJobType, Payload: h}
	if err := m.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrQueueStopped.Code, appErrors.ErrQueueStopped.Status, appErrors.ErrQueueStopped.Message)
	}
	m.metrics.SetQueueDepth(m.queue.Pending())
	m.logger.Debug("solve submitted", zap.String("solve_id", job.ID), zap.String("key", key), zap.String("strategy", string(req.Strategy)))
	return h, nil
}

func (m *SolverManager) handle(_ context.Context, job jobs.Job) error {
	h, ok := job.Payload.(*SolveHandle)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	m.metrics.SetQueueDepth(m.queue.Pending())

	start := time.Now()
	plan, err := m.solve(h)
	duration := time.Since(start)

	outcome := "feasible"
	switch {
	case err != nil:
		outcome = "error"
	case !plan.Score.Feasible():
		outcome = "infeasible"
	}
	m.metrics.ObserveSolve(string(h.req.Strategy), outcome, duration)
	if err == nil && h.req.Strategy == scheduler.StrategySearch {
		m.metrics.SetHardScore(plan.Score.Hard)
	}

	h.finish(plan, err)
	m.logger.Info("solve finished",
		zap.String("solve_id", job.ID),
		zap.String("key", h.Key),
		zap.String("outcome", outcome),
		zap.Duration("duration", duration),
	)
	return err
}

// solve runs the request, converting a panic into an internal error so the
// handle always completes.
func (m *SolverManager) solve(h *SolveHandle) (plan scheduler.Plan, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("solve panicked", zap.String("solve_id", h.ID.String()), zap.Any("panic", r))
			plan = scheduler.Plan{}
			err = appErrors.Wrap(fmt.Errorf("solve panicked: %v", r), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
		}
	}()

	req := h.req
	if req.Strategy == scheduler.StrategyGreedy {
		return scheduler.PlanGreedy(req.Model, req.Greedy), nil
	}
	cfg := req.Config
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}
	result := scheduler.SolveBest(req.Model, cfg, req.Runs)
	plan = scheduler.BuildPlan(req.Model, result.Assignment)
	plan.Score = result.Score
	plan.Stats = result.Stats
	plan.Seed = result.Seed
	return plan, nil
}

func (m *SolverManager) discard(job jobs.Job) {
	h, ok := job.Payload.(*SolveHandle)
	if !ok {
		return
	}
	h.finish(scheduler.Plan{}, appErrors.ErrQueueStopped)
}
