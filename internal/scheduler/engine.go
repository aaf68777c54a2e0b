package scheduler

import (
	"math/rand"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeLimit         = 300 * time.Second
	DefaultStagnationLimit   = 2000
	DefaultPerturbationMoves = 3

	timeCheckInterval = 64
)

// State is the lifecycle position of a Solver.
type State int32

const (
	StateUnsolved State = iota
	StateImproving
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnsolved:
		return "unsolved"
	case StateImproving:
		return "improving"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Termination reasons reported in Stats.
const (
	TerminatedNoCandidates = "no_candidates"
	TerminatedTimeLimit    = "time_limit"
	TerminatedMaxMoves     = "max_moves"
	TerminatedUnimproved   = "unimproved_limit"
)

// SolverConfig bounds and seeds a search.
type SolverConfig struct {
	// TimeLimit is the wall-clock budget of the local search phase.
	TimeLimit time.Duration
	// MaxMoves stops the search after that many attempted moves when > 0.
	MaxMoves int64
	// UnimprovedMoveLimit stops the search after that many consecutive moves
	// without a new best score when > 0.
	UnimprovedMoveLimit int64
	// StagnationLimit is the number of non-improving moves after which the
	// current solution is perturbed.
	StagnationLimit   int
	PerturbationMoves int
	Seed              int64
	Catalog           Catalog
	Logger            *zap.Logger
}

func (c SolverConfig) normalized() SolverConfig {
	if c.TimeLimit <= 0 {
		c.TimeLimit = DefaultTimeLimit
	}
	if c.StagnationLimit <= 0 {
		c.StagnationLimit = DefaultStagnationLimit
	}
	if c.PerturbationMoves <= 0 {
		c.PerturbationMoves = DefaultPerturbationMoves
	}
	if c.Catalog == nil {
		c.Catalog = DefaultCatalog()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Stats describes a finished search.
type Stats struct {
	Moves         int64         `json:"moves"`
	AcceptedMoves int64         `json:"acceptedMoves"`
	Improvements  int64         `json:"improvements"`
	Perturbations int64         `json:"perturbations"`
	Elapsed       time.Duration `json:"elapsed"`
	Termination   string        `json:"termination"`
}

// Result is the best solution a search observed.
type Result struct {
	Assignment Assignment
	Score      Score
	Stats      Stats
	Seed       int64
}

// Solver runs one single-threaded search over a model.
type Solver struct {
	cfg    SolverConfig
	logger *zap.Logger
	state  atomic.Int32
}

// NewSolver constructs a solver.
func NewSolver(cfg SolverConfig) *Solver {
	cfg = cfg.normalized()
	return &Solver{cfg: cfg, logger: cfg.Logger}
}

// State reports the current lifecycle state. Safe for concurrent use.
func (s *Solver) State() State {
	return State(s.state.Load())
}

func (s *Solver) setState(state State) {
	s.state.Store(int32(state))
	s.logger.Debug("solver state changed", zap.Stringer("state", state))
}

type undo struct {
	part PartID
	day  int
}

// Solve places every part with a construction heuristic and then improves
// the assignment by hill climbing until a termination bound is hit. The
// model is only read, so one model may back several concurrent solvers.
func (s *Solver) Solve(m *Model) Result {
	start := time.Now()
	s.setState(StateUnsolved)
	defer s.setState(StateTerminated)

	a := NewAssignment(m)
	if m.Empty() || len(m.Days) == 0 {
		return Result{
			Assignment: a,
			Score:      s.cfg.Catalog.Score(m, a),
			Stats:      Stats{Elapsed: time.Since(start), Termination: TerminatedNoCandidates},
			Seed:       s.cfg.Seed,
		}
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	d := newDirector(m, s.cfg.Catalog, a)
	s.construct(d)
	s.logger.Debug("construction finished", zap.Stringer("score", d.score))
	s.setState(StateImproving)

	best := a.Clone()
	bestScore := d.score
	var (
		stats      Stats
		unimproved int64
		stagnant   int
		journal    []undo
	)
	deadline := start.Add(s.cfg.TimeLimit)

	for {
		if reason := s.stopReason(stats.Moves, unimproved, deadline); reason != "" {
			stats.Termination = reason
			break
		}
		stats.Moves++
		current := d.score
		journal = s.randomMove(d, rng, journal[:0])

		switch {
		case len(journal) == 0:
			unimproved++
			stagnant++
		case d.score.Compare(current) <= 0:
			stats.AcceptedMoves++
			if d.score.Better(bestScore) {
				copy(best, a)
				bestScore = d.score
				stats.Improvements++
				unimproved, stagnant = 0, 0
				s.logger.Debug("new best score", zap.Stringer("score", bestScore), zap.Int64("move", stats.Moves))
				continue
			}
			unimproved++
			stagnant++
		default:
			revert(d, journal)
			unimproved++
			stagnant++
		}

		if stagnant >= s.cfg.StagnationLimit {
			s.perturb(d, rng)
			stats.Perturbations++
			stagnant = 0
		}
	}

	stats.Elapsed = time.Since(start)
	s.logger.Debug("search finished",
		zap.Stringer("score", bestScore),
		zap.Int64("moves", stats.Moves),
		zap.String("termination", stats.Termination),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return Result{Assignment: best, Score: bestScore, Stats: stats, Seed: s.cfg.Seed}
}

func (s *Solver) stopReason(moves, unimproved int64, deadline time.Time) string {
	switch {
	case s.cfg.MaxMoves > 0 && moves >= s.cfg.MaxMoves:
		return TerminatedMaxMoves
	case s.cfg.UnimprovedMoveLimit > 0 && unimproved >= s.cfg.UnimprovedMoveLimit:
		return TerminatedUnimproved
	case moves%timeCheckInterval == 0 && !time.Now().Before(deadline):
		return TerminatedTimeLimit
	default:
		return ""
	}
}

// construct assigns parts one at a time, chains by urgency and parts in
// chain order, each to the earliest day giving the best score.
func (s *Solver) construct(d *director) {
	for _, c := range chainOrder(d.m) {
		for _, p := range d.m.Chains[c].Parts {
			bestDay := Unassigned
			var bestScore Score
			for day := range d.m.Days {
				d.assign(p, day)
				if bestDay == Unassigned || d.score.Better(bestScore) {
					bestDay, bestScore = day, d.score
				}
			}
			d.assign(p, bestDay)
		}
	}
}

// chainOrder sorts chains by deadline (none last) and then task id.
func chainOrder(m *Model) []ChainID {
	order := make([]ChainID, len(m.Chains))
	for i := range order {
		order[i] = ChainID(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &m.Chains[order[i]], &m.Chains[order[j]]
		if before, decided := compareDeadlines(a.Deadline, b.Deadline); decided {
			return before
		}
		return a.TaskID < b.TaskID
	})
	return order
}

// compareDeadlines orders dated deadlines first and earlier before later.
// decided is false when both are equal or both absent.
func compareDeadlines(a, b *time.Time) (before, decided bool) {
	switch {
	case a == nil && b == nil:
		return false, false
	case a == nil || b == nil:
		return a != nil, true
	case a.Equal(*b):
		return false, false
	default:
		return a.Before(*b), true
	}
}

// randomMove picks a change (50%), swap (30%) or chain shift (20%) and
// applies it, returning the journal needed to undo it.
func (s *Solver) randomMove(d *director, rng *rand.Rand, journal []undo) []undo {
	switch roll := rng.Intn(10); {
	case roll < 5:
		return changeMove(d, rng, journal)
	case roll < 8:
		return swapMove(d, rng, journal)
	default:
		return shiftMove(d, rng, journal)
	}
}

func apply(d *director, p PartID, day int, journal []undo) []undo {
	journal = append(journal, undo{part: p, day: d.a[p]})
	d.assign(p, day)
	return journal
}

func revert(d *director, journal []undo) {
	for i := len(journal) - 1; i >= 0; i-- {
		d.assign(journal[i].part, journal[i].day)
	}
}

func changeMove(d *director, rng *rand.Rand, journal []undo) []undo {
	days := len(d.m.Days)
	p := PartID(rng.Intn(len(d.m.Parts)))
	current := d.a[p]
	if current == Unassigned {
		return apply(d, p, rng.Intn(days), journal)
	}
	if days < 2 {
		return journal
	}
	day := rng.Intn(days - 1)
	if day >= current {
		day++
	}
	return apply(d, p, day, journal)
}

func swapMove(d *director, rng *rand.Rand, journal []undo) []undo {
	n := len(d.m.Parts)
	p, q := PartID(rng.Intn(n)), PartID(rng.Intn(n))
	dp, okP := d.a.Day(p)
	dq, okQ := d.a.Day(q)
	if !okP || !okQ || dp == dq {
		return changeMove(d, rng, journal)
	}
	journal = apply(d, p, dq, journal)
	return apply(d, q, dp, journal)
}

func shiftMove(d *director, rng *rand.Rand, journal []undo) []undo {
	chain := &d.m.Chains[rng.Intn(len(d.m.Chains))]
	offset := 1 + rng.Intn(3)
	if rng.Intn(2) == 0 {
		offset = -offset
	}
	for _, p := range chain.Parts {
		day, ok := d.a.Day(p)
		if !ok || day+offset < 0 || day+offset >= len(d.m.Days) {
			return changeMove(d, rng, journal)
		}
	}
	for _, p := range chain.Parts {
		journal = apply(d, p, d.a[p]+offset, journal)
	}
	return journal
}

// perturb applies random change moves regardless of their score.
func (s *Solver) perturb(d *director, rng *rand.Rand) {
	var scratch []undo
	for i := 0; i < s.cfg.PerturbationMoves; i++ {
		scratch = changeMove(d, rng, scratch[:0])
	}
}

// SolveBest runs independent searches with seeds cfg.Seed+i over the same
// model and keeps the best result, preferring the lowest run on ties.
func SolveBest(m *Model, cfg SolverConfig, runs int) Result {
	if runs <= 1 {
		return NewSolver(cfg).Solve(m)
	}
	results := make([]Result, runs)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < runs; i++ {
		i := i
		g.Go(func() error {
			runCfg := cfg
			runCfg.Seed = cfg.Seed + int64(i)
			results[i] = NewSolver(runCfg).Solve(m)
			return nil
		})
	}
	_ = g.Wait()

	best := results[0]
	for _, r := range results[1:] {
		if r.Score.Better(best.Score) {
			best = r
		}
	}
	return best
}
