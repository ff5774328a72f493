package models

// QueryCategory classifies a decomposed search query by the kind of
// context it is expected to retrieve.
type QueryCategory string

const (
	// CategoryArchitecture targets design and structural decisions.
	CategoryArchitecture QueryCategory = "architecture"
	// CategoryImplementation targets similar implementations and patterns.
	CategoryImplementation QueryCategory = "implementation"
	// CategoryProblemSolution targets fixes, workarounds, and resolved errors.
	CategoryProblemSolution QueryCategory = "problem-solution"
	// CategoryTesting targets testing strategies and approaches.
	CategoryTesting QueryCategory = "testing"
	// CategoryConfiguration targets setup and configuration examples.
	CategoryConfiguration QueryCategory = "configuration"
)

// Valid returns true if the category is a known value.
func (c QueryCategory) Valid() bool {
	switch c {
	case CategoryArchitecture, CategoryImplementation, CategoryProblemSolution,
		CategoryTesting, CategoryConfiguration:
		return true
	default:
		return false
	}
}

// SearchQuery is one weighted, categorized query produced by decomposition
// and passed to the store. It is never mutated after construction.
type SearchQuery struct {
	// QueryText is the full-text query sent to the store.
	QueryText string `json:"query_text"`
	// TagFilters restricts results to memories carrying any of these tags.
	TagFilters []string `json:"tag_filters,omitempty"`
	// SimilarityThreshold is the minimum store similarity for results.
	SimilarityThreshold float64 `json:"similarity_threshold"`
	// ResultLimit caps how many candidates the store may return.
	ResultLimit int `json:"result_limit"`
	// Weight reflects the match strength of the element behind this
	// query, in (0,1]. Higher-weight queries survive the query cap.
	Weight float64 `json:"weight"`
	// Category groups this query's results during assembly.
	Category QueryCategory `json:"category"`
}

// Decomposition is the structured breakdown of a task into search
// queries. It is immutable once produced and discarded after assembly.
type Decomposition struct {
	// Task is the original task text.
	Task string `json:"task"`
	// Queries is the ordered query set, capped by the configured limit.
	Queries []SearchQuery `json:"queries"`
}

// Empty reports whether decomposition found nothing to search for.
// The orchestrator treats an empty decomposition as "skip retrieval".
func (d Decomposition) Empty() bool {
	return len(d.Queries) == 0
}

// TagUnion returns the union of tag filters across all queries, used by
// contextual scoring. Order follows first occurrence.
func (d Decomposition) TagUnion() []string {
	seen := make(map[string]bool)
	var union []string
	for _, q := range d.Queries {
		for _, tag := range q.TagFilters {
			if !seen[tag] {
				seen[tag] = true
				union = append(union, tag)
			}
		}
	}
	return union
}
