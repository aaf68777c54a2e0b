package scheduler

import "fmt"

// Tier is the priority class of a constraint.
type Tier uint8

const (
	TierHard Tier = iota
	TierMedium
	TierSoft
)

func (t Tier) String() string {
	switch t {
	case TierHard:
		return "hard"
	case TierMedium:
		return "medium"
	case TierSoft:
		return "soft"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Score is a (hard, medium, soft) penalty triple. Lower is better and the
// tiers compare lexicographically. Rewards are negative penalties.
type Score struct {
	Hard   int64 `json:"hard"`
	Medium int64 `json:"medium"`
	Soft   int64 `json:"soft"`
}

func tierScore(t Tier, penalty int64) Score {
	switch t {
	case TierHard:
		return Score{Hard: penalty}
	case TierMedium:
		return Score{Medium: penalty}
	default:
		return Score{Soft: penalty}
	}
}

// Add returns the tier-wise sum.
func (s Score) Add(o Score) Score {
	return Score{Hard: s.Hard + o.Hard, Medium: s.Medium + o.Medium, Soft: s.Soft + o.Soft}
}

// Sub returns the tier-wise difference.
func (s Score) Sub(o Score) Score {
	return Score{Hard: s.Hard - o.Hard, Medium: s.Medium - o.Medium, Soft: s.Soft - o.Soft}
}

// Compare returns -1 when s is better than o, 1 when worse and 0 when equal.
func (s Score) Compare(o Score) int {
	switch {
	case s.Hard != o.Hard:
		return sign(s.Hard - o.Hard)
	case s.Medium != o.Medium:
		return sign(s.Medium - o.Medium)
	default:
		return sign(s.Soft - o.Soft)
	}
}

// Better reports whether s is strictly better than o.
func (s Score) Better(o Score) bool {
	return s.Compare(o) < 0
}

// Feasible reports whether no hard constraint is broken.
func (s Score) Feasible() bool {
	return s.Hard == 0
}

func (s Score) String() string {
	return fmt.Sprintf("%dhard/%dmedium/%dsoft", s.Hard, s.Medium, s.Soft)
}

func sign(v int64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
