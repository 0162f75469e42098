// Package scoring ranks drivers for contested shifts. The score is a
// weighted sum of four normalized sub-scores, each clamped to [0,1] before
// weighting, so the composite is always in [0,1] for any metrics input.
package scoring

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	weightAttendance  = 0.40
	weightFamiliarity = 0.30
	weightCompletion  = 0.20
	weightPreference  = 0.10
)

// Inputs carries everything the engine needs for one (driver, shift) pair.
type Inputs struct {
	DriverID         uuid.UUID
	AttendanceRate   float64
	CompletionRate   float64
	RouteCompletions int
	RoutePreferred   bool
}

// Breakdown records every sub-score for audit transparency.
type Breakdown struct {
	Attendance  float64 `json:"attendance"`
	Familiarity float64 `json:"familiarity"`
	Completion  float64 `json:"completion"`
	Preference  float64 `json:"preference"`
	Total       float64 `json:"total"`
}

// Engine computes composite scores. familiarityCap is the normalization
// denominator for route familiarity; it is injected policy, not a literal.
type Engine struct {
	familiarityCap int
}

// NewEngine builds an Engine. A non-positive cap falls back to 1 so the
// familiarity sub-score degenerates to "any completion saturates".
func NewEngine(familiarityCap int) *Engine {
	if familiarityCap <= 0 {
		familiarityCap = 1
	}
	return &Engine{familiarityCap: familiarityCap}
}

// Score computes the composite score for one candidate.
func (e *Engine) Score(in Inputs) Breakdown {
	attendance := clamp01(in.AttendanceRate)
	familiarity := clamp01(float64(in.RouteCompletions) / float64(e.familiarityCap))
	completion := clamp01(in.CompletionRate)
	preference := 0.0
	if in.RoutePreferred {
		preference = 1.0
	}

	total := weightAttendance*attendance +
		weightFamiliarity*familiarity +
		weightCompletion*completion +
		weightPreference*preference

	return Breakdown{
		Attendance:  attendance,
		Familiarity: familiarity,
		Completion:  completion,
		Preference:  preference,
		Total:       clamp01(total),
	}
}

// Candidate is one scored bidder awaiting ranking.
type Candidate struct {
	DriverID    uuid.UUID
	SubmittedAt time.Time
	Breakdown   Breakdown
}

// Rank orders candidates best-first with a fully deterministic tie-break:
// higher score, then earlier submission, then lexicographically smaller
// driver id. Iteration order of the input never influences the result.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Breakdown.Total != b.Breakdown.Total {
			return a.Breakdown.Total > b.Breakdown.Total
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.DriverID.String() < b.DriverID.String()
	})
	return ranked
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
