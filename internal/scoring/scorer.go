// Package scoring computes multi-dimensional relevance scores for
// memory candidates returned by store searches.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/calebmorse/mnemon/pkg/models"
)

// Weights holds the blend of scoring dimensions. The three weights are
// expected to sum to 1.0; Composite is clamped regardless.
type Weights struct {
	Semantic   float64
	Temporal   float64
	Contextual float64
}

// DefaultWeights favors semantic similarity, with tag overlap second.
// Task-specific tuning (e.g. weighting Temporal higher for debugging)
// happens through configuration, not here.
var DefaultWeights = Weights{
	Semantic:   0.5,
	Temporal:   0.2,
	Contextual: 0.3,
}

// Scorer scores candidates against a decomposition. It is stateless and
// safe for concurrent use.
type Scorer struct {
	weights Weights
	// halfLife controls temporal decay: recency influence halves every
	// halfLife. Default 30 days.
	halfLife time.Duration
	// floor is the minimum temporal score, so old-but-relevant memories
	// are never zeroed out.
	floor float64
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the dimension weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithHalfLife overrides the temporal decay half-life.
func WithHalfLife(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.halfLife = d
		}
	}
}

// WithTemporalFloor overrides the minimum temporal score.
func WithTemporalFloor(f float64) Option {
	return func(s *Scorer) { s.floor = clamp01(f) }
}

// NewScorer creates a Scorer with default weights, a 30-day half-life,
// and a 0.05 temporal floor.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		weights:  DefaultWeights,
		halfLife: 30 * 24 * time.Hour,
		floor:    0.05,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the relevance of a candidate given the decomposition
// that produced it and the current time.
func (s *Scorer) Score(candidate models.CandidateMemory, decomp models.Decomposition, now time.Time) models.RelevanceScore {
	semantic := clamp01(candidate.Similarity)
	temporal := s.temporalScore(candidate.CreatedAt, now)
	contextual := jaccard(candidate.Tags, decomp.TagUnion())

	composite := semantic*s.weights.Semantic +
		temporal*s.weights.Temporal +
		contextual*s.weights.Contextual

	return models.RelevanceScore{
		Semantic:   semantic,
		Temporal:   temporal,
		Contextual: contextual,
		Composite:  clamp01(composite),
	}
}

// ScoreAll scores every candidate and returns them paired with their
// scores, ranked per Rank.
func (s *Scorer) ScoreAll(candidates []models.CandidateMemory, decomp models.Decomposition, now time.Time) []models.ScoredMemory {
	scored := make([]models.ScoredMemory, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, models.ScoredMemory{
			Memory: c,
			Score:  s.Score(c, decomp, now),
		})
	}
	Rank(scored)
	return scored
}

// temporalScore applies exponential decay so that the score halves
// every halfLife, floored so old memories keep a residual weight.
func (s *Scorer) temporalScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		// Missing timestamps get a neutral score rather than the floor.
		return 0.5
	}
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	halfLifeDays := s.halfLife.Hours() / 24
	lambda := math.Ln2 / halfLifeDays
	score := math.Exp(-lambda * age.Hours() / 24)
	if score < s.floor {
		return s.floor
	}
	return score
}

// Rank sorts scored memories by composite descending, ties broken by
// temporal descending, then content hash ascending. The ordering is
// fully deterministic regardless of input order.
func Rank(scored []models.ScoredMemory) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score.Composite != b.Score.Composite {
			return a.Score.Composite > b.Score.Composite
		}
		if a.Score.Temporal != b.Score.Temporal {
			return a.Score.Temporal > b.Score.Temporal
		}
		return a.Memory.ContentHash < b.Memory.ContentHash
	})
}

// jaccard computes the Jaccard overlap between two tag sets,
// case-insensitive. Empty sets score zero.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, tag := range a {
		setA[strings.ToLower(tag)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, tag := range b {
		setB[strings.ToLower(tag)] = true
	}
	intersection := 0
	for tag := range setA {
		if setB[tag] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
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
