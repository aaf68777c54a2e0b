package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/study-planner/internal/scheduler"
	appErrors "github.com/noah-isme/study-planner/pkg/errors"
)

var managerStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func managerModel(t *testing.T, days int, tasks ...scheduler.Task) *scheduler.Model {
	t.Helper()
	window, err := scheduler.CustomWindow(managerStart, managerStart.AddDate(0, 0, days-1))
	require.NoError(t, err)
	return scheduler.BuildModel(tasks, window, scheduler.ModelOptions{})
}

func startedManager(t *testing.T, workers int) *SolverManager {
	t.Helper()
	m := NewSolverManager(SolverManagerConfig{Workers: workers}, NewMetricsService(), zap.NewNop())
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func TestSolverManagerSubmitAndWait(t *testing.T) {
	manager := startedManager(t, 2)
	model := managerModel(t, 7, scheduler.Task{ID: 1, Name: "Essay", EstimatedMinutes: 400})

	handle, err := manager.Submit(context.Background(), "42", SolveRequest{
		Model:  model,
		Config: scheduler.SolverConfig{MaxMoves: 500, Seed: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", handle.Key)

	plan, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scheduler.StrategySearch, plan.Strategy)
	assert.True(t, plan.Score.Feasible(), plan.Score.String())
	assert.Equal(t, int64(3), plan.Seed)
	assert.Equal(t, int64(500), plan.Stats.Moves)

	total := 0
	for _, day := range plan.Days {
		total += day.TotalMinutes
	}
	assert.Equal(t, 400, total)

	select {
	case <-handle.Done():
	default:
		t.Fatal("handle not marked done")
	}
}

func TestSolverManagerGreedyStrategy(t *testing.T) {
	manager := startedManager(t, 1)
	model := managerModel(t, 3, scheduler.Task{ID: 1, Name: "Reading", EstimatedMinutes: 200})

	handle, err := manager.Submit(context.Background(), "1", SolveRequest{Model: model, Strategy: scheduler.StrategyGreedy})
	require.NoError(t, err)
	plan, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scheduler.StrategyGreedy, plan.Strategy)
	require.Len(t, plan.Days, 2)
	assert.Equal(t, 180, plan.Days[0].TotalMinutes)
	assert.Equal(t, 20, plan.Days[1].TotalMinutes)
}

func TestSolverManagerRejectsInvalidRequests(t *testing.T) {
	manager := startedManager(t, 1)

	_, err := manager.Submit(context.Background(), "1", SolveRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = manager.Submit(context.Background(), "1", SolveRequest{Model: managerModel(t, 1), Strategy: "random"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupported.Code, appErrors.FromError(err).Code)
}

func TestSolverManagerSubmitBeforeStart(t *testing.T) {
	manager := NewSolverManager(SolverManagerConfig{Workers: 1}, nil, nil)
	_, err := manager.Submit(context.Background(), "1", SolveRequest{Model: managerModel(t, 1)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrQueueStopped.Code, appErrors.FromError(err).Code)
}

func TestSolverManagerWaitTimeoutLeavesRunAlive(t *testing.T) {
	manager := startedManager(t, 1)
	model := managerModel(t, 14,
		scheduler.Task{ID: 1, Name: "Essay", EstimatedMinutes: 400},
		scheduler.Task{ID: 2, Name: "Lab", EstimatedMinutes: 300},
	)

	handle, err := manager.Submit(context.Background(), "7", SolveRequest{
		Model:  model,
		Config: scheduler.SolverConfig{TimeLimit: 300 * time.Millisecond},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSolveTimeout.Code, appErrors.FromError(err).Code)

	plan, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, plan.TotalTasksConsidered)
	assert.Equal(t, scheduler.TerminatedTimeLimit, plan.Stats.Termination)
}

func TestSolverManagerRecoversPanics(t *testing.T) {
	manager := startedManager(t, 1)
	broken := &scheduler.Model{
		Days:  []scheduler.Day{{Index: 0, Date: managerStart}},
		Parts: []scheduler.TaskPart{{ID: 0, DurationMinutes: 30}},
	}

	handle, err := manager.Submit(context.Background(), "9", SolveRequest{Model: broken, Config: scheduler.SolverConfig{MaxMoves: 10}})
	require.NoError(t, err)
	_, err = handle.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	healthy, err := manager.Submit(context.Background(), "9", SolveRequest{Model: managerModel(t, 2), Config: scheduler.SolverConfig{MaxMoves: 10}})
	require.NoError(t, err)
	_, err = healthy.Wait(context.Background())
	assert.NoError(t, err)
}

func TestSolverManagerStopFailsWaitingHandles(t *testing.T) {
	manager := NewSolverManager(SolverManagerConfig{Workers: 1}, nil, nil)
	manager.Start(context.Background())
	model := managerModel(t, 14, scheduler.Task{ID: 1, Name: "Essay", EstimatedMinutes: 400})
	slow := SolveRequest{Model: model, Config: scheduler.SolverConfig{TimeLimit: 200 * time.Millisecond}}

	first, err := manager.Submit(context.Background(), "5", slow)
	require.NoError(t, err)
	second, err := manager.Submit(context.Background(), "5", slow)
	require.NoError(t, err)
	third, err := manager.Submit(context.Background(), "5", slow)
	require.NoError(t, err)

	manager.Stop()

	_, err = third.Wait(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrQueueStopped)
	_, err = second.Wait(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrQueueStopped)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first handle never completed")
	}
	assert.Zero(t, manager.Pending())
}
