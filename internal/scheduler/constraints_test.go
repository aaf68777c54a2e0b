package scheduler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(t *testing.T, name string) Constraint {
	t.Helper()
	for _, c := range DefaultCatalog() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("rule %q not in catalog", name)
	return Constraint{}
}

func assigned(m *Model, days ...int) Assignment {
	a := NewAssignment(m)
	copy(a, days)
	return a
}

func TestDeadlineExceeded(t *testing.T) {
	m := newTestModel(t, 7, Task{ID: 1, EstimatedMinutes: 60, Deadline: deadlineIn(1)})
	deadline := rule(t, "deadline exceeded")

	assert.Zero(t, deadline.Evaluate(m, assigned(m, 1)))
	assert.Equal(t, int64(2000+500*2), deadline.Evaluate(m, assigned(m, 3)))
	assert.Zero(t, deadline.Evaluate(m, NewAssignment(m)))
}

func TestDeadlinePenaltyIsMonotonic(t *testing.T) {
	m := newTestModel(t, 14, Task{ID: 1, EstimatedMinutes: 60, Deadline: deadlineIn(3)})
	deadline := rule(t, "deadline exceeded")

	prev := int64(0)
	for day := range m.Days {
		penalty := deadline.Evaluate(m, assigned(m, day))
		assert.GreaterOrEqual(t, penalty, prev, "day %d", day)
		prev = penalty
	}
}

func TestChainOrderingRules(t *testing.T) {
	m := newTestModel(t, 7, Task{ID: 1, EstimatedMinutes: 400})
	require.Len(t, m.Parts, 3)

	a := assigned(m, 1, 0, 2)
	assert.Equal(t, int64(10000), rule(t, "chain sequence").Evaluate(m, a))
	assert.Equal(t, int64(1000+2000), rule(t, "non-contiguous execution").Evaluate(m, a))
	assert.Equal(t, int64(300), rule(t, "chain parts out of order").Evaluate(m, a))
	assert.Zero(t, rule(t, "same chain same day").Evaluate(m, a))

	same := assigned(m, 0, 0, 1)
	assert.Equal(t, int64(2000), rule(t, "same chain same day").Evaluate(m, same))
	assert.Equal(t, int64(10000), rule(t, "chain sequence").Evaluate(m, same))
	assert.Zero(t, rule(t, "non-contiguous execution").Evaluate(m, same))

	ok := assigned(m, 2, 3, 4)
	assert.Zero(t, DefaultCatalog().Score(m, ok).Hard)
}

func TestDailyCapacityRules(t *testing.T) {
	m := newTestModel(t, 3,
		Task{ID: 1, SubjectName: "Math", EstimatedMinutes: 160},
		Task{ID: 2, SubjectName: "Math", EstimatedMinutes: 150},
	)
	a := assigned(m, 0, 0)

	assert.Equal(t, int64(10*1000), rule(t, "daily hard cap").Evaluate(m, a))
	assert.Equal(t, int64(70*30), rule(t, "daily medium cap").Evaluate(m, a))
	assert.Equal(t, int64(130*130/8), rule(t, "daily target deviation").Evaluate(m, a))
	assert.Equal(t, int64(130*50), rule(t, "daily soft cap").Evaluate(m, a))

	split := assigned(m, 0, 1)
	assert.Zero(t, rule(t, "daily hard cap").Evaluate(m, split))
	assert.Equal(t, int64(20*20/8+30*30/8), rule(t, "daily target deviation").Evaluate(m, split))
}

func TestSubjectRules(t *testing.T) {
	m := newTestModel(t, 5,
		Task{ID: 1, SubjectName: "Math", EstimatedMinutes: 60},
		Task{ID: 2, SubjectName: "Physics", EstimatedMinutes: 60},
		Task{ID: 3, SubjectName: "", EstimatedMinutes: 60},
		Task{ID: 4, SubjectName: "Math", EstimatedMinutes: 60},
	)
	different := rule(t, "different subjects same day")
	assert.Equal(t, int64(1000), different.Evaluate(m, assigned(m, 0, 0, 0, 1)))
	assert.Equal(t, int64(2000), different.Evaluate(m, assigned(m, 0, 0, 0, 0)))
	assert.Zero(t, different.Evaluate(m, assigned(m, 0, 1, 0, 0)))

	order := rule(t, "subject order by task id")
	assert.Equal(t, int64(100), order.Evaluate(m, assigned(m, 3, 0, 0, 1)))
	assert.Zero(t, order.Evaluate(m, assigned(m, 1, 0, 0, 1)))
	assert.Zero(t, order.Evaluate(m, assigned(m, 0, 4, 4, 2)))
}

func TestClustering(t *testing.T) {
	m := newTestModel(t, 2,
		Task{ID: 1, EstimatedMinutes: 30},
		Task{ID: 2, EstimatedMinutes: 30},
		Task{ID: 3, EstimatedMinutes: 30},
		Task{ID: 4, EstimatedMinutes: 30},
	)
	assert.Equal(t, int64(2*120), rule(t, "clustering").Evaluate(m, assigned(m, 0, 0, 0, 0)))
	assert.Zero(t, rule(t, "clustering").Evaluate(m, assigned(m, 0, 0, 1, 1)))
}

func TestEarlyDeadlinePreference(t *testing.T) {
	m := newTestModel(t, 14, Task{ID: 1, EstimatedMinutes: 60, Deadline: deadlineIn(10)})
	early := rule(t, "early deadline preference")
	assert.Equal(t, int64(20), early.Evaluate(m, assigned(m, 0)))
	assert.Equal(t, int64(29), early.Evaluate(m, assigned(m, 9)))

	far := newTestModel(t, 3, Task{ID: 1, EstimatedMinutes: 60, Deadline: deadlineIn(45)})
	assert.Zero(t, early.Evaluate(far, assigned(far, 0)))
}

func TestUnassignedPart(t *testing.T) {
	m := newTestModel(t, 3, Task{ID: 1, EstimatedMinutes: 90}, Task{ID: 2, EstimatedMinutes: 40})
	unassigned := rule(t, "unassigned part")
	assert.Equal(t, int64(1300), unassigned.Evaluate(m, NewAssignment(m)))
	assert.Equal(t, int64(400), unassigned.Evaluate(m, assigned(m, 0)))
}

func TestNoDeadlineSpreading(t *testing.T) {
	m := newTestModel(t, 10,
		Task{ID: 1, EstimatedMinutes: 60},
		Task{ID: 2, EstimatedMinutes: 60},
		Task{ID: 3, EstimatedMinutes: 60, Deadline: deadlineIn(5)},
	)
	spread := rule(t, "no-deadline spreading")
	assert.Equal(t, int64(40), spread.Evaluate(m, assigned(m, 0, 3, 0)))
	assert.Zero(t, spread.Evaluate(m, assigned(m, 0, 4, 0)))
}

func TestFillLowWorkloadReward(t *testing.T) {
	m := newTestModel(t, 3,
		Task{ID: 1, EstimatedMinutes: 90},
		Task{ID: 2, EstimatedMinutes: 60, Deadline: deadlineIn(2)},
		Task{ID: 3, EstimatedMinutes: 110, Deadline: deadlineIn(2)},
	)
	fill := rule(t, "fill low-workload days")
	assert.Equal(t, int64(-40), fill.Evaluate(m, assigned(m, 0, 1, 2)))
	assert.Equal(t, int64(-20), fill.Evaluate(m, assigned(m, 0, 0, 2)))
	assert.Zero(t, fill.Evaluate(m, assigned(m, 0, 1, 0)))
}

func TestExplainListsActiveRules(t *testing.T) {
	m := newTestModel(t, 3, Task{ID: 1, EstimatedMinutes: 90})
	matches := DefaultCatalog().Explain(m, NewAssignment(m))
	require.Len(t, matches, 1)
	assert.Equal(t, ConstraintMatch{Name: "unassigned part", Tier: "soft", Penalty: 900}, matches[0])
}

func TestDirectorMatchesFullScore(t *testing.T) {
	m := newTestModel(t, 12,
		Task{ID: 1, SubjectName: "Math", EstimatedMinutes: 400, Deadline: deadlineIn(5)},
		Task{ID: 2, SubjectName: "Math", EstimatedMinutes: 200, Deadline: deadlineIn(5)},
		Task{ID: 3, SubjectName: "Biology", EstimatedMinutes: 90},
		Task{ID: 4, SubjectName: "", EstimatedMinutes: 620},
		Task{ID: 5, SubjectName: "History", EstimatedMinutes: 45, Deadline: deadlineIn(1)},
		Task{ID: 6, SubjectName: "Biology", EstimatedMinutes: 300},
	)
	catalog := DefaultCatalog()
	d := newDirector(m, catalog, NewAssignment(m))
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		p := PartID(rng.Intn(len(m.Parts)))
		day := rng.Intn(len(m.Days)+1) - 1
		d.assign(p, day)
		require.Equal(t, catalog.Score(m, d.a), d.score, "after move %d", i)
	}
}
