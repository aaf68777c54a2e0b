package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/study-planner/internal/dto"
	"github.com/noah-isme/study-planner/internal/scheduler"
)

func TestPlanKeyTracksTaskContent(t *testing.T) {
	window, err := scheduler.CustomWindow(managerStart, managerStart.AddDate(0, 0, 6))
	require.NoError(t, err)
	tasks := []scheduler.Task{{ID: 1, Name: "Essay", EstimatedMinutes: 400}}
	req := SolveRequest{Strategy: scheduler.StrategySearch, Runs: 1, Config: scheduler.SolverConfig{Seed: 1}}
	opts := scheduler.ModelOptions{}

	key := PlanKey(42, window, req, opts, tasks)
	assert.Contains(t, key, "planner:plan:42:20240304:20240310:all_days:search:")
	assert.Equal(t, key, PlanKey(42, window, req, opts, tasks))

	changed := []scheduler.Task{{ID: 1, Name: "Essay", EstimatedMinutes: 450}}
	assert.NotEqual(t, key, PlanKey(42, window, req, opts, changed))

	reseeded := req
	reseeded.Config.Seed = 2
	assert.NotEqual(t, key, PlanKey(42, window, reseeded, opts, tasks))

	greedy := req
	greedy.Strategy = scheduler.StrategyGreedy
	assert.NotEqual(t, key, PlanKey(42, window, greedy, opts, tasks))
	assert.Equal(t, "planner:plan:42:*", OwnerPattern(42))
}

func TestPlanKeyTracksCalendarAndOptions(t *testing.T) {
	window, err := scheduler.CustomWindow(managerStart, managerStart.AddDate(0, 0, 6))
	require.NoError(t, err)
	tasks := []scheduler.Task{{ID: 1, Name: "Essay", EstimatedMinutes: 400}}
	req := SolveRequest{Strategy: scheduler.StrategyGreedy, Runs: 1, Greedy: scheduler.GreedyOptions{DailyMinutes: 120}}
	opts := scheduler.ModelOptions{}
	key := PlanKey(42, window, req, opts, tasks)

	weekdays := window
	weekdays.Mode = scheduler.CalendarWeekdays
	assert.NotEqual(t, key, PlanKey(42, weekdays, req, opts, tasks))

	daily := req
	daily.Greedy.DailyMinutes = 240
	assert.NotEqual(t, key, PlanKey(42, window, daily, opts, tasks))

	limited := req
	limited.Config.TimeLimit = 5 * time.Second
	assert.NotEqual(t, key, PlanKey(42, window, limited, opts, tasks))

	stagnant := req
	stagnant.Config.UnimprovedMoveLimit = 500
	assert.NotEqual(t, key, PlanKey(42, window, stagnant, opts, tasks))

	capped := opts
	capped.Chunk.Cap = 90
	assert.NotEqual(t, key, PlanKey(42, window, req, capped, tasks))

	sized := opts
	sized.Capacity = scheduler.Capacity{SoftMinutes: 120, HardMinutes: 200}
	assert.NotEqual(t, key, PlanKey(42, window, req, sized, tasks))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	require.NoError(t, cache.StorePlan(context.Background(), "k", &dto.SchedulePlan{ID: "p"}))
	assert.Empty(t, repo.store)

	plan, hit, err := cache.GetPlan(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, plan)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}

func TestCacheServiceRoundTripAndInvalidate(t *testing.T) {
	repo := &stubCacheRepo{}
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	_, hit, err := cache.GetPlan(ctx, "planner:plan:1:a")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.StorePlan(ctx, "planner:plan:1:a", &dto.SchedulePlan{ID: "plan-1", OwnerID: 1, Message: "ok"}))
	plan, hit, err := cache.GetPlan(ctx, "planner:plan:1:a")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "plan-1", plan.ID)
	assert.Equal(t, "ok", plan.Message)

	require.NoError(t, cache.InvalidateOwner(ctx, 1))
	_, hit, err = cache.GetPlan(ctx, "planner:plan:1:a")
	require.NoError(t, err)
	assert.False(t, hit)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
}
