package scheduler

// director keeps the score of an assignment current as single parts move.
// A move only changes the rules touching the moved part and the two days
// it leaves and enters, so only those are re-evaluated.
type director struct {
	m     *Model
	a     Assignment
	loads []DayLoad
	score Score

	partRules []Constraint
	dayRules  []Constraint
	pairRules []Constraint
}

func newDirector(m *Model, catalog Catalog, a Assignment) *director {
	d := &director{m: m, a: a, loads: dayLoads(m, a)}
	for _, rule := range catalog {
		switch {
		case rule.part != nil:
			d.partRules = append(d.partRules, rule)
		case rule.day != nil:
			d.dayRules = append(d.dayRules, rule)
		case rule.pair != nil:
			d.pairRules = append(d.pairRules, rule)
		}
	}
	d.score = catalog.Score(m, a)
	return d
}

// assign moves p to day and updates the score.
func (d *director) assign(p PartID, day int) {
	old := d.a[p]
	if old == day {
		return
	}
	before := d.local(p).Add(d.dayScore(old)).Add(d.dayScore(day))
	if old != Unassigned {
		d.loads[old] = d.loads[old].with(d.m, p, -1)
	}
	d.a[p] = day
	if day != Unassigned {
		d.loads[day] = d.loads[day].with(d.m, p, 1)
	}
	after := d.local(p).Add(d.dayScore(old)).Add(d.dayScore(day))
	d.score = d.score.Add(after.Sub(before))
}

// local sums the per-part rules of p and every pair rule involving p.
func (d *director) local(p PartID) Score {
	var s Score
	dp := d.a[p]
	for _, rule := range d.partRules {
		s = s.Add(tierScore(rule.Tier, rule.part(d.m, p, dp)))
	}
	if dp == Unassigned {
		return s
	}
	for _, rule := range d.pairRules {
		var penalty int64
		d.m.eachCandidate(rule.scope, p, func(q PartID) {
			if q == p {
				return
			}
			dq, ok := d.a.Day(q)
			if !ok {
				return
			}
			if p < q {
				penalty += rule.pair(d.m, p, q, dp, dq)
			} else {
				penalty += rule.pair(d.m, q, p, dq, dp)
			}
		})
		s = s.Add(tierScore(rule.Tier, penalty))
	}
	return s
}

func (d *director) dayScore(day int) Score {
	var s Score
	if day == Unassigned || d.loads[day].Parts == 0 {
		return s
	}
	for _, rule := range d.dayRules {
		s = s.Add(tierScore(rule.Tier, rule.day(d.m, day, d.loads[day])))
	}
	return s
}
