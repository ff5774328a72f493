package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/calebmorse/mnemon/pkg/models"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testDecomposition(tags ...string) models.Decomposition {
	return models.Decomposition{
		Task: "test task",
		Queries: []models.SearchQuery{
			{QueryText: "test", TagFilters: tags, Weight: 1.0, Category: models.CategoryImplementation},
		},
	}
}

func TestScore_CompositeInRange(t *testing.T) {
	s := NewScorer()
	tests := []struct {
		name       string
		similarity float64
		age        time.Duration
		tags       []string
	}{
		{"high everything", 1.0, 0, []string{"go", "api"}},
		{"zero everything", 0, 365 * 24 * time.Hour, nil},
		{"similarity above one clamped", 1.7, time.Hour, []string{"go"}},
		{"negative similarity clamped", -0.3, time.Hour, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := models.CandidateMemory{
				ContentHash: "abc",
				Tags:        tt.tags,
				CreatedAt:   testNow.Add(-tt.age),
				Similarity:  tt.similarity,
			}
			score := s.Score(candidate, testDecomposition("go", "api"), testNow)
			if score.Composite < 0 || score.Composite > 1 {
				t.Errorf("Composite = %v, want in [0,1]", score.Composite)
			}
			if score.Semantic < 0 || score.Semantic > 1 {
				t.Errorf("Semantic = %v, want in [0,1]", score.Semantic)
			}
		})
	}
}

func TestScore_MonotonicInSemantic(t *testing.T) {
	s := NewScorer()
	decomp := testDecomposition("go")
	prev := -1.0
	for _, sim := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		candidate := models.CandidateMemory{
			ContentHash: "abc",
			Tags:        []string{"go"},
			CreatedAt:   testNow.Add(-48 * time.Hour),
			Similarity:  sim,
		}
		got := s.Score(candidate, decomp, testNow).Composite
		if got < prev {
			t.Errorf("composite decreased when semantic rose to %v: %v < %v", sim, got, prev)
		}
		prev = got
	}
}

func TestTemporalScore_HalfLife(t *testing.T) {
	s := NewScorer()
	fresh := s.temporalScore(testNow, testNow)
	if math.Abs(fresh-1.0) > 1e-9 {
		t.Errorf("fresh memory temporal = %v, want 1.0", fresh)
	}

	halved := s.temporalScore(testNow.Add(-30*24*time.Hour), testNow)
	if math.Abs(halved-0.5) > 1e-6 {
		t.Errorf("30-day-old memory temporal = %v, want 0.5", halved)
	}

	quartered := s.temporalScore(testNow.Add(-60*24*time.Hour), testNow)
	if math.Abs(quartered-0.25) > 1e-6 {
		t.Errorf("60-day-old memory temporal = %v, want 0.25", quartered)
	}
}

func TestTemporalScore_Floor(t *testing.T) {
	s := NewScorer()
	ancient := s.temporalScore(testNow.Add(-10*365*24*time.Hour), testNow)
	if ancient != 0.05 {
		t.Errorf("ancient memory temporal = %v, want floor 0.05", ancient)
	}
}

func TestTemporalScore_FutureTimestamp(t *testing.T) {
	s := NewScorer()
	got := s.temporalScore(testNow.Add(time.Hour), testNow)
	if got != 1.0 {
		t.Errorf("future timestamp temporal = %v, want 1.0", got)
	}
}

func TestTemporalScore_MissingTimestamp(t *testing.T) {
	s := NewScorer()
	got := s.temporalScore(time.Time{}, testNow)
	if got != 0.5 {
		t.Errorf("zero timestamp temporal = %v, want neutral 0.5", got)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"go", "api"}, []string{"go", "api"}, 1.0},
		{"disjoint", []string{"go"}, []string{"rust"}, 0},
		{"half overlap", []string{"go", "api", "db"}, []string{"go", "api", "web"}, 0.5},
		{"case insensitive", []string{"Go"}, []string{"go"}, 1.0},
		{"empty candidate", nil, []string{"go"}, 0},
		{"empty filters", []string{"go"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jaccard(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRank_Deterministic(t *testing.T) {
	mk := func(hash string, composite, temporal float64) models.ScoredMemory {
		return models.ScoredMemory{
			Memory: models.CandidateMemory{ContentHash: hash},
			Score:  models.RelevanceScore{Composite: composite, Temporal: temporal},
		}
	}

	// Two permutations of the same set must rank identically.
	a := []models.ScoredMemory{
		mk("ccc", 0.5, 0.3), mk("aaa", 0.5, 0.3), mk("bbb", 0.9, 0.1), mk("ddd", 0.5, 0.8),
	}
	b := []models.ScoredMemory{
		mk("ddd", 0.5, 0.8), mk("bbb", 0.9, 0.1), mk("aaa", 0.5, 0.3), mk("ccc", 0.5, 0.3),
	}
	Rank(a)
	Rank(b)

	wantOrder := []string{"bbb", "ddd", "aaa", "ccc"}
	for i, want := range wantOrder {
		if a[i].Memory.ContentHash != want {
			t.Errorf("rank a[%d] = %s, want %s", i, a[i].Memory.ContentHash, want)
		}
		if b[i].Memory.ContentHash != want {
			t.Errorf("rank b[%d] = %s, want %s", i, b[i].Memory.ContentHash, want)
		}
	}
}

func TestScorer_CustomWeights(t *testing.T) {
	// All weight on temporal: a fresh low-similarity memory must beat
	// a stale high-similarity one.
	s := NewScorer(WithWeights(Weights{Semantic: 0, Temporal: 1, Contextual: 0}))
	decomp := testDecomposition()

	fresh := models.CandidateMemory{ContentHash: "fresh", CreatedAt: testNow, Similarity: 0.1}
	stale := models.CandidateMemory{ContentHash: "stale", CreatedAt: testNow.Add(-90 * 24 * time.Hour), Similarity: 0.99}

	freshScore := s.Score(fresh, decomp, testNow)
	staleScore := s.Score(stale, decomp, testNow)
	if freshScore.Composite <= staleScore.Composite {
		t.Errorf("temporal-weighted: fresh %v should outrank stale %v", freshScore.Composite, staleScore.Composite)
	}
}
