package scheduler

// Daily workload targets shared by the medium tier.
const (
	DailyTargetMinutes   = 180
	DailyMediumCap       = 240
	ClusterThreshold     = 2
	LowWorkloadMinutes   = 120
	SpreadWindowDays     = 4
	EarlyPreferenceDays  = 30
	DeadlineBasePenalty  = 2000
	DeadlineDailyPenalty = 500
)

// DayLoad aggregates the parts assigned to one day.
type DayLoad struct {
	Minutes         int
	Parts           int
	NoDeadlineParts int
}

type pairScope uint8

const (
	// scopeAdjacent pairs a part with its chain predecessor and successor.
	scopeAdjacent pairScope = iota
	scopeChain
	scopeSubject
	scopeNoDeadline
	scopeAll
)

type (
	partFunc func(m *Model, p PartID, day int) int64
	dayFunc  func(m *Model, day int, load DayLoad) int64
	// pairFunc receives p < q with both parts assigned.
	pairFunc func(m *Model, p, q PartID, dp, dq int) int64
)

// Constraint is one scoring rule. Exactly one of its evaluators is set: a
// per-part rule, a per-day aggregate rule or a rule over pairs of parts.
type Constraint struct {
	Name string
	Tier Tier

	part  partFunc
	day   dayFunc
	pair  pairFunc
	scope pairScope
}

// Evaluate returns the rule's total penalty over a full assignment.
func (c Constraint) Evaluate(m *Model, a Assignment) int64 {
	var total int64
	switch {
	case c.part != nil:
		for i := range m.Parts {
			total += c.part(m, PartID(i), a[i])
		}
	case c.day != nil:
		for d, load := range dayLoads(m, a) {
			if load.Parts > 0 {
				total += c.day(m, d, load)
			}
		}
	case c.pair != nil:
		for i := range m.Parts {
			p := PartID(i)
			dp, ok := a.Day(p)
			if !ok {
				continue
			}
			m.eachCandidate(c.scope, p, func(q PartID) {
				if q <= p {
					return
				}
				if dq, ok := a.Day(q); ok {
					total += c.pair(m, p, q, dp, dq)
				}
			})
		}
	}
	return total
}

// eachCandidate visits the parts that may form a pair with p under scope.
// p itself may be visited.
func (m *Model) eachCandidate(scope pairScope, p PartID, fn func(q PartID)) {
	switch scope {
	case scopeAdjacent:
		if prev := m.Parts[p].Previous; prev.Kind == StepPart {
			fn(prev.Part)
		}
		if next := m.Parts[p].Next; next != NoPart {
			fn(next)
		}
	case scopeChain:
		for _, q := range m.chain(p).Parts {
			fn(q)
		}
	case scopeSubject:
		if subject := m.chain(p).SubjectName; subject != "" {
			for _, q := range m.bySubject[subject] {
				fn(q)
			}
		}
	case scopeNoDeadline:
		if !m.chain(p).HasDeadline() {
			for _, q := range m.noDeadline {
				fn(q)
			}
		}
	case scopeAll:
		for i := range m.Parts {
			fn(PartID(i))
		}
	}
}

func dayLoads(m *Model, a Assignment) []DayLoad {
	loads := make([]DayLoad, len(m.Days))
	for i, d := range a {
		if d == Unassigned {
			continue
		}
		loads[d] = loads[d].with(m, PartID(i), 1)
	}
	return loads
}

func (l DayLoad) with(m *Model, p PartID, sign int) DayLoad {
	l.Minutes += sign * m.Parts[p].DurationMinutes
	l.Parts += sign
	if !m.chain(p).HasDeadline() {
		l.NoDeadlineParts += sign
	}
	return l
}

// Catalog is the fixed list of rules a score is computed from.
type Catalog []Constraint

// DefaultCatalog returns the complete rule set.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "deadline exceeded", Tier: TierHard, part: deadlineExceeded},
		{Name: "chain sequence", Tier: TierHard, pair: chainSequence, scope: scopeAdjacent},
		{Name: "non-contiguous execution", Tier: TierHard, pair: nonContiguous, scope: scopeAdjacent},
		{Name: "daily hard cap", Tier: TierHard, day: dailyHardCap},
		{Name: "different subjects same day", Tier: TierHard, pair: differentSubjectsSameDay, scope: scopeAll},
		{Name: "same chain same day", Tier: TierHard, pair: sameChainSameDay, scope: scopeChain},
		{Name: "subject order by task id", Tier: TierHard, pair: subjectOrderByTaskID, scope: scopeSubject},
		{Name: "chain parts out of order", Tier: TierHard, pair: chainOutOfOrder, scope: scopeChain},
		{Name: "daily medium cap", Tier: TierMedium, day: dailyMediumCap},
		{Name: "daily target deviation", Tier: TierMedium, day: dailyDeviation},
		{Name: "clustering", Tier: TierMedium, day: clustering},
		{Name: "daily soft cap", Tier: TierSoft, day: dailySoftCap},
		{Name: "early deadline preference", Tier: TierSoft, part: earlyDeadline},
		{Name: "unassigned part", Tier: TierSoft, part: unassignedPart},
		{Name: "no-deadline spreading", Tier: TierSoft, pair: noDeadlineSpread, scope: scopeNoDeadline},
		{Name: "fill low-workload days", Tier: TierSoft, day: fillLowWorkload},
	}
}

// Score evaluates every rule over a full assignment.
func (c Catalog) Score(m *Model, a Assignment) Score {
	var s Score
	for _, rule := range c {
		s = s.Add(tierScore(rule.Tier, rule.Evaluate(m, a)))
	}
	return s
}

// ConstraintMatch is the contribution of one rule to a score.
type ConstraintMatch struct {
	Name    string `json:"name"`
	Tier    string `json:"tier"`
	Penalty int64  `json:"penalty"`
}

// Explain lists the rules with a non-zero contribution.
func (c Catalog) Explain(m *Model, a Assignment) []ConstraintMatch {
	var out []ConstraintMatch
	for _, rule := range c {
		if penalty := rule.Evaluate(m, a); penalty != 0 {
			out = append(out, ConstraintMatch{Name: rule.Name, Tier: rule.Tier.String(), Penalty: penalty})
		}
	}
	return out
}

func deadlineExceeded(m *Model, p PartID, day int) int64 {
	chain := m.chain(p)
	if day == Unassigned || !chain.HasDeadline() {
		return 0
	}
	late := m.ordinals[day] - chain.deadlineOrdinal
	if late <= 0 {
		return 0
	}
	return DeadlineBasePenalty + DeadlineDailyPenalty*int64(late)
}

func earlyDeadline(m *Model, p PartID, day int) int64 {
	chain := m.chain(p)
	if day == Unassigned || !chain.HasDeadline() {
		return 0
	}
	before := chain.deadlineOrdinal - m.ordinals[day]
	return int64(maxInt(0, EarlyPreferenceDays-before))
}

func unassignedPart(m *Model, p PartID, day int) int64 {
	if day != Unassigned {
		return 0
	}
	return int64(m.Parts[p].DurationMinutes) * 10
}

func chainSequence(m *Model, p, q PartID, dp, dq int) int64 {
	if m.Parts[p].Next != q || dp < dq {
		return 0
	}
	return 10000
}

// nonContiguous measures the gap in horizon positions, so in weekday mode
// Friday and the following Monday count as adjacent.
func nonContiguous(m *Model, p, q PartID, dp, dq int) int64 {
	if m.Parts[p].Next != q {
		return 0
	}
	gap := dq - dp
	if gap == 0 || gap == 1 {
		return 0
	}
	return 1000 * int64(absInt(gap))
}

func dailyHardCap(m *Model, day int, load DayLoad) int64 {
	over := load.Minutes - m.Days[day].HardCapacityMinutes
	if over <= 0 {
		return 0
	}
	return int64(over) * 1000
}

func differentSubjectsSameDay(m *Model, p, q PartID, dp, dq int) int64 {
	if dp != dq {
		return 0
	}
	sp, sq := m.chain(p).SubjectName, m.chain(q).SubjectName
	if sp == "" || sq == "" || sp == sq {
		return 0
	}
	return 1000
}

func sameChainSameDay(m *Model, p, q PartID, dp, dq int) int64 {
	if dp != dq {
		return 0
	}
	return 2000
}

func subjectOrderByTaskID(m *Model, p, q PartID, dp, dq int) int64 {
	cp, cq := m.chain(p), m.chain(q)
	if cp.ID == cq.ID || cp.TaskID == cq.TaskID {
		return 0
	}
	if cp.TaskID < cq.TaskID && dp > dq {
		return 100
	}
	if cq.TaskID < cp.TaskID && dq > dp {
		return 100
	}
	return 0
}

// chainOutOfOrder receives parts of one chain; lower part ids carry lower
// indexes because chains are linked in creation order.
func chainOutOfOrder(m *Model, p, q PartID, dp, dq int) int64 {
	if dp > dq {
		return 300
	}
	return 0
}

func noDeadlineSpread(m *Model, p, q PartID, dp, dq int) int64 {
	if m.owner[p] == m.owner[q] {
		return 0
	}
	if absInt(m.ordinals[dp]-m.ordinals[dq]) < SpreadWindowDays {
		return 40
	}
	return 0
}

func dailyMediumCap(m *Model, day int, load DayLoad) int64 {
	over := load.Minutes - DailyMediumCap
	if over <= 0 {
		return 0
	}
	return int64(over) * 30
}

func dailyDeviation(m *Model, day int, load DayLoad) int64 {
	dev := int64(absInt(load.Minutes - DailyTargetMinutes))
	return dev * dev / 8
}

func clustering(m *Model, day int, load DayLoad) int64 {
	if load.Parts <= ClusterThreshold {
		return 0
	}
	return int64(load.Parts-ClusterThreshold) * 120
}

func dailySoftCap(m *Model, day int, load DayLoad) int64 {
	over := load.Minutes - m.Days[day].SoftCapacityMinutes
	if over <= 0 {
		return 0
	}
	return int64(over) * 50
}

func fillLowWorkload(m *Model, day int, load DayLoad) int64 {
	if load.NoDeadlineParts == 0 {
		return 0
	}
	switch {
	case load.Minutes < LowWorkloadMinutes:
		return -40
	case load.Minutes < DailyTargetMinutes:
		return -20
	default:
		return 0
	}
}
