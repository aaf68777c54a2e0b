package scheduler

import (
	"fmt"
	"time"
)

// Task is the caller-supplied record a chain is derived from.
type Task struct {
	ID               int64
	Name             string
	SubjectName      string
	EstimatedMinutes int
	Deadline         *time.Time
}

// ChainID indexes Model.Chains.
type ChainID int

// PartID indexes Model.Parts and Assignment.
type PartID int

// NoPart marks the end of a chain.
const NoPart PartID = -1

// TaskChain is one source task being scheduled.
type TaskChain struct {
	ID              ChainID
	TaskID          int64
	Name            string
	SubjectName     string
	TotalMinutes    int
	Deadline        *time.Time
	MinDailyMinutes int
	MaxDailyMinutes int
	Parts           []PartID

	deadlineOrdinal int
}

// HasDeadline reports whether the chain must finish by a date.
func (c *TaskChain) HasDeadline() bool {
	return c.Deadline != nil
}

// StepKind tags a Predecessor.
type StepKind uint8

const (
	StepChainStart StepKind = iota
	StepPart
)

// Predecessor is the previous step of a part: either the chain start
// sentinel (for part 0) or the preceding part.
type Predecessor struct {
	Kind  StepKind
	Chain ChainID
	Part  PartID
}

// TaskPart is one bounded chunk of a chain.
type TaskPart struct {
	ID              PartID
	Index           int
	DurationMinutes int
	Previous        Predecessor
	Next            PartID
}

// Model holds the problem facts of one scheduling request. It is immutable
// once built; the only mutable state of a search lives in an Assignment.
type Model struct {
	Window Window
	Days   []Day
	Chains []TaskChain
	Parts  []TaskPart

	owner      []ChainID
	ordinals   []int
	bySubject  map[string][]PartID
	noDeadline []PartID
}

// ModelOptions tunes model construction.
type ModelOptions struct {
	Chunk    ChunkOptions
	Capacity Capacity
}

// BuildModel chunks every task, links the chunks into chains and enumerates
// the calendar. Tasks without a positive estimate are skipped.
func BuildModel(tasks []Task, w Window, opts ModelOptions) *Model {
	chunk := opts.Chunk.normalized()
	m := &Model{
		Window:    w,
		Days:      NewCalendar(w, opts.Capacity),
		bySubject: make(map[string][]PartID),
	}
	m.ordinals = make([]int, len(m.Days))
	for i, day := range m.Days {
		m.ordinals[i] = DaysBetween(w.Start, day.Date)
	}

	for _, task := range tasks {
		if task.EstimatedMinutes <= 0 {
			continue
		}
		chain := TaskChain{
			ID:              ChainID(len(m.Chains)),
			TaskID:          task.ID,
			Name:            task.Name,
			SubjectName:     task.SubjectName,
			TotalMinutes:    task.EstimatedMinutes,
			MinDailyMinutes: chunk.MinChunk,
			MaxDailyMinutes: chunk.Cap,
		}
		if task.Deadline != nil {
			deadline := DateOf(*task.Deadline)
			chain.Deadline = &deadline
			chain.deadlineOrdinal = DaysBetween(w.Start, deadline)
		}
		m.Chains = append(m.Chains, chain)
		m.linkChain(chain.ID, Partition(chain.TotalMinutes, chunk))
	}

	m.owner = make([]ChainID, len(m.Parts))
	for i := range m.Parts {
		id := PartID(i)
		c := m.ChainOf(id)
		m.owner[i] = c.ID
		if c.SubjectName != "" {
			m.bySubject[c.SubjectName] = append(m.bySubject[c.SubjectName], id)
		}
		if !c.HasDeadline() {
			m.noDeadline = append(m.noDeadline, id)
		}
	}
	return m
}

// linkChain creates the parts of a chain and wires the precedence links:
// part 0 points at the chain start, part i at part i-1.
func (m *Model) linkChain(id ChainID, sizes []int) {
	chain := &m.Chains[id]
	sum := 0
	for i, size := range sizes {
		part := TaskPart{
			ID:              PartID(len(m.Parts)),
			Index:           i,
			DurationMinutes: size,
			Next:            NoPart,
		}
		if i == 0 {
			part.Previous = Predecessor{Kind: StepChainStart, Chain: id}
		} else {
			prev := chain.Parts[i-1]
			part.Previous = Predecessor{Kind: StepPart, Part: prev}
			m.Parts[prev].Next = part.ID
		}
		m.Parts = append(m.Parts, part)
		chain.Parts = append(chain.Parts, part.ID)
		sum += size
	}
	if sum != chain.TotalMinutes {
		panic(fmt.Sprintf("scheduler: chain %d parts sum to %d, want %d", id, sum, chain.TotalMinutes))
	}
}

// ChainOf resolves the owning chain of a part by walking its predecessor
// links back to the chain start.
func (m *Model) ChainOf(id PartID) *TaskChain {
	step := m.Parts[id].Previous
	for step.Kind != StepChainStart {
		step = m.Parts[step.Part].Previous
	}
	return &m.Chains[step.Chain]
}

func (m *Model) chain(id PartID) *TaskChain {
	return &m.Chains[m.owner[id]]
}

// Empty reports whether there is nothing to schedule.
func (m *Model) Empty() bool {
	return len(m.Parts) == 0
}

// Unassigned marks a part without a day.
const Unassigned = -1

// Assignment maps every part to a day index of the model's calendar, or
// Unassigned. It is the single planning variable of a search.
type Assignment []int

// NewAssignment returns an assignment with every part unassigned.
func NewAssignment(m *Model) Assignment {
	a := make(Assignment, len(m.Parts))
	for i := range a {
		a[i] = Unassigned
	}
	return a
}

// Clone copies the assignment.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	copy(out, a)
	return out
}

// Day returns the day index of a part and whether it is assigned.
func (a Assignment) Day(id PartID) (int, bool) {
	d := a[id]
	return d, d != Unassigned
}
