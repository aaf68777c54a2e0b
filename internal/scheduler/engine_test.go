package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSolverConfig() SolverConfig {
	return SolverConfig{TimeLimit: time.Minute, MaxMoves: 3000, StagnationLimit: 500}
}

func TestSolveEmptyModel(t *testing.T) {
	m := newTestModel(t, 5)
	solver := NewSolver(testSolverConfig())

	result := solver.Solve(m)
	assert.Equal(t, StateTerminated, solver.State())
	assert.Equal(t, TerminatedNoCandidates, result.Stats.Termination)
	assert.Equal(t, Score{}, result.Score)

	plan := BuildPlan(m, result.Assignment)
	assert.Empty(t, plan.Days)
	assert.Equal(t, "no tasks to plan in this period", plan.Message)
}

func TestSolveSingleTaskWithoutDeadline(t *testing.T) {
	m := newTestModel(t, 5, Task{ID: 1, Name: "Reading", EstimatedMinutes: 90})
	result := NewSolver(testSolverConfig()).Solve(m)

	_, ok := result.Assignment.Day(0)
	require.True(t, ok)
	assert.True(t, result.Score.Feasible())

	plan := BuildPlan(m, result.Assignment)
	require.Len(t, plan.Days, 1)
	assert.Equal(t, 90, plan.Days[0].TotalMinutes)
	assert.Equal(t, 1, plan.PlannedTaskCount)
	assert.Equal(t, 1, plan.TotalTasksConsidered)
	assert.Equal(t, "optimal plan created for all 1 tasks", plan.Message)
}

func TestSolveOversizedTaskUsesAdjacentDays(t *testing.T) {
	m := newTestModel(t, 10, Task{ID: 1, Name: "Project", EstimatedMinutes: 400})
	result := NewSolver(testSolverConfig()).Solve(m)
	require.True(t, result.Score.Feasible(), result.Score.String())

	parts := m.Chains[0].Parts
	require.Len(t, parts, 3)
	for i := 0; i+1 < len(parts); i++ {
		day, _ := result.Assignment.Day(parts[i])
		next, _ := result.Assignment.Day(parts[i+1])
		assert.Equal(t, day+1, next)
	}
}

func TestSolveSameSubjectKeepsTaskIDOrder(t *testing.T) {
	m := newTestModel(t, 10,
		Task{ID: 2, Name: "Lab report", SubjectName: "Chemistry", EstimatedMinutes: 200, Deadline: deadlineIn(9)},
		Task{ID: 1, Name: "Worksheet", SubjectName: "Chemistry", EstimatedMinutes: 200, Deadline: deadlineIn(9)},
	)
	result := NewSolver(testSolverConfig()).Solve(m)
	require.True(t, result.Score.Feasible(), result.Score.String())

	lower, higher := m.Chains[1], m.Chains[0]
	require.Equal(t, int64(1), lower.TaskID)
	for _, p := range lower.Parts {
		for _, q := range higher.Parts {
			dp, _ := result.Assignment.Day(p)
			dq, _ := result.Assignment.Day(q)
			assert.LessOrEqual(t, dp, dq)
		}
	}
}

func TestSolveIsRepeatableForSeed(t *testing.T) {
	tasks := []Task{
		{ID: 1, SubjectName: "Math", EstimatedMinutes: 500, Deadline: deadlineIn(8)},
		{ID: 2, SubjectName: "Physics", EstimatedMinutes: 240, Deadline: deadlineIn(4)},
		{ID: 3, SubjectName: "Art", EstimatedMinutes: 120},
		{ID: 4, SubjectName: "Math", EstimatedMinutes: 75},
	}
	cfg := testSolverConfig()
	cfg.Seed = 99

	first := NewSolver(cfg).Solve(newTestModel(t, 14, tasks...))
	second := NewSolver(cfg).Solve(newTestModel(t, 14, tasks...))
	assert.Equal(t, first.Assignment, second.Assignment)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Stats.Moves, second.Stats.Moves)
	assert.Equal(t, TerminatedMaxMoves, first.Stats.Termination)
}

func TestSolveRespectsCapacityWhenFeasible(t *testing.T) {
	m := newTestModel(t, 10,
		Task{ID: 1, SubjectName: "Math", EstimatedMinutes: 350, Deadline: deadlineIn(6)},
		Task{ID: 2, SubjectName: "Math", EstimatedMinutes: 150, Deadline: deadlineIn(6)},
		Task{ID: 3, SubjectName: "Math", EstimatedMinutes: 100},
	)
	result := NewSolver(testSolverConfig()).Solve(m)
	require.True(t, result.Score.Feasible(), result.Score.String())

	for day, load := range dayLoads(m, result.Assignment) {
		assert.LessOrEqual(t, load.Minutes, m.Days[day].HardCapacityMinutes)
	}
	assert.Equal(t, DefaultCatalog().Score(m, result.Assignment), result.Score)
}

func TestSolveStopsOnUnimprovedLimit(t *testing.T) {
	m := newTestModel(t, 5, Task{ID: 1, EstimatedMinutes: 90})
	cfg := testSolverConfig()
	cfg.MaxMoves = 0
	cfg.UnimprovedMoveLimit = 50

	result := NewSolver(cfg).Solve(m)
	assert.Equal(t, TerminatedUnimproved, result.Stats.Termination)
	assert.Equal(t, int64(50), result.Stats.Moves)
	assert.Zero(t, result.Stats.Improvements)
}

func TestSolveStopsOnTimeLimit(t *testing.T) {
	m := newTestModel(t, 5, Task{ID: 1, EstimatedMinutes: 90})
	result := NewSolver(SolverConfig{TimeLimit: 20 * time.Millisecond}).Solve(m)
	assert.Equal(t, TerminatedTimeLimit, result.Stats.Termination)
}

func TestSolveBestKeepsBestRun(t *testing.T) {
	tasks := []Task{
		{ID: 1, SubjectName: "Math", EstimatedMinutes: 420, Deadline: deadlineIn(5)},
		{ID: 2, SubjectName: "Physics", EstimatedMinutes: 260, Deadline: deadlineIn(3)},
		{ID: 3, EstimatedMinutes: 180},
	}
	m := newTestModel(t, 10, tasks...)
	cfg := testSolverConfig()
	cfg.MaxMoves = 1000

	best := SolveBest(m, cfg, 4)
	for i := 0; i < 4; i++ {
		runCfg := cfg
		runCfg.Seed = int64(i)
		single := NewSolver(runCfg).Solve(m)
		assert.LessOrEqual(t, best.Score.Compare(single.Score), 0, "run %d", i)
	}
}

func TestScoreCompare(t *testing.T) {
	assert.True(t, Score{Hard: 0, Medium: 500}.Better(Score{Hard: 1}))
	assert.True(t, Score{Medium: 1, Soft: 900}.Better(Score{Medium: 2, Soft: -900}))
	assert.True(t, Score{Soft: -40}.Better(Score{}))
	assert.Equal(t, 0, Score{Hard: 3, Medium: 2, Soft: 1}.Compare(Score{Hard: 3, Medium: 2, Soft: 1}))
	assert.Equal(t, "1hard/2medium/-3soft", Score{Hard: 1, Medium: 2, Soft: -3}.String())
}
