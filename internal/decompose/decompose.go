package decompose

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/calebmorse/mnemon/pkg/models"
)

// queryLimits are the per-category search parameters. Higher-priority
// categories search more inclusively (lower threshold, more results).
type queryLimits struct {
	threshold float64
	limit     int
}

var defaultLimits = map[models.QueryCategory]queryLimits{
	models.CategoryArchitecture:    {threshold: 0.3, limit: 10},
	models.CategoryProblemSolution: {threshold: 0.3, limit: 10},
	models.CategoryImplementation:  {threshold: 0.4, limit: 8},
	models.CategoryTesting:         {threshold: 0.5, limit: 5},
	models.CategoryConfiguration:   {threshold: 0.5, limit: 5},
}

// boostedCategories outrank generic elements by the priority multiplier.
var boostedCategories = map[models.QueryCategory]bool{
	models.CategoryArchitecture:    true,
	models.CategoryProblemSolution: true,
}

// Decomposer breaks task text into weighted search queries using a
// vocabulary table. Decomposition is deterministic for a fixed
// vocabulary; the vocabulary itself can be swapped at runtime (hot
// reload), guarded by the mutex.
type Decomposer struct {
	mu    sync.RWMutex
	vocab *Vocabulary

	maxQueries    int
	partialWeight float64
	priorityBoost float64
}

// DecomposerOption configures a Decomposer.
type DecomposerOption func(*Decomposer)

// WithMaxQueries overrides the query cap (default 8).
func WithMaxQueries(n int) DecomposerOption {
	return func(d *Decomposer) {
		if n > 0 {
			d.maxQueries = n
		}
	}
}

// WithPartialWeight overrides the weight of synonym matches (default 0.6).
func WithPartialWeight(w float64) DecomposerOption {
	return func(d *Decomposer) { d.partialWeight = w }
}

// WithPriorityBoost overrides the multiplier applied to architecture and
// problem-solution matches (default 1.2).
func WithPriorityBoost(b float64) DecomposerOption {
	return func(d *Decomposer) { d.priorityBoost = b }
}

// NewDecomposer creates a Decomposer. A nil vocabulary uses the built-in
// default table.
func NewDecomposer(vocab *Vocabulary, opts ...DecomposerOption) *Decomposer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	d := &Decomposer{
		vocab:         vocab,
		maxQueries:    8,
		partialWeight: 0.6,
		priorityBoost: 1.2,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetVocabulary swaps the vocabulary table, used by hot reload.
func (d *Decomposer) SetVocabulary(vocab *Vocabulary) {
	if vocab == nil {
		return
	}
	d.mu.Lock()
	d.vocab = vocab
	d.mu.Unlock()
}

// match records one vocabulary hit in the task text.
type match struct {
	entry  Entry
	weight float64
	// pos is the first occurrence offset, used to break weight ties so
	// earlier-mentioned elements survive the query cap.
	pos int
}

// Decompose analyzes task text and returns the capped set of search
// queries. Empty or whitespace-only text yields zero queries, which
// callers treat as "skip retrieval", not an error.
func (d *Decomposer) Decompose(task string) models.Decomposition {
	decomp := models.Decomposition{Task: task}

	text := normalize(task)
	if text == "" {
		return decomp
	}

	d.mu.RLock()
	vocab := d.vocab
	d.mu.RUnlock()

	matches := d.collectMatches(text, vocab)
	if len(matches) == 0 {
		return decomp
	}

	// Highest-weight elements survive the cap; ties go to whichever
	// appeared first in the input, then to the term for determinism.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].weight != matches[j].weight {
			return matches[i].weight > matches[j].weight
		}
		if matches[i].pos != matches[j].pos {
			return matches[i].pos < matches[j].pos
		}
		return matches[i].entry.Term < matches[j].entry.Term
	})
	if len(matches) > d.maxQueries {
		matches = matches[:d.maxQueries]
	}

	for _, m := range matches {
		decomp.Queries = append(decomp.Queries, d.buildQuery(m, vocab))
	}
	return decomp
}

// collectMatches scans the vocabulary against normalized text, keeping
// one match per entry at the strongest matching level.
func (d *Decomposer) collectMatches(text string, vocab *Vocabulary) []match {
	var matches []match
	for _, entry := range vocab.Entries {
		weight, pos := 0.0, -1

		for _, kw := range entry.Keywords {
			if p := indexWord(text, kw); p >= 0 {
				weight, pos = 1.0, p
				break
			}
		}
		if weight == 0 {
			for _, syn := range entry.Synonyms {
				if p := indexWord(text, syn); p >= 0 {
					weight, pos = d.partialWeight, p
					break
				}
			}
		}
		if weight == 0 {
			continue
		}

		if boostedCategories[entry.Category] {
			weight *= d.priorityBoost
			if weight > 1.0 {
				weight = 1.0
			}
		}
		matches = append(matches, match{entry: entry, weight: weight, pos: pos})
	}
	return matches
}

// buildQuery synthesizes the search query for a matched element: the
// canonical term plus the category's contextual modifier words.
func (d *Decomposer) buildQuery(m match, vocab *Vocabulary) models.SearchQuery {
	parts := []string{m.entry.Term}
	parts = append(parts, vocab.Modifiers[m.entry.Category]...)

	limits, ok := defaultLimits[m.entry.Category]
	if !ok {
		limits = queryLimits{threshold: 0.5, limit: 5}
	}

	return models.SearchQuery{
		QueryText:           strings.Join(parts, " "),
		TagFilters:          []string{m.entry.Term, string(m.entry.Category)},
		SimilarityThreshold: limits.threshold,
		ResultLimit:         limits.limit,
		Weight:              m.weight,
		Category:            m.entry.Category,
	}
}

// SuggestTags derives storage tags from content using the same
// vocabulary: the canonical term of every matched element plus its
// category. Store invocations apply these before writing.
func (d *Decomposer) SuggestTags(content string) []string {
	text := normalize(content)
	if text == "" {
		return nil
	}

	d.mu.RLock()
	vocab := d.vocab
	d.mu.RUnlock()

	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, m := range d.collectMatches(text, vocab) {
		add(m.entry.Term)
		add(string(m.entry.Category))
	}
	return tags
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// normalize lowercases text and collapses punctuation to spaces so
// multi-word keywords match across hyphens and slashes.
func normalize(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSpace(nonWord.ReplaceAllString(lower, " "))
}

// indexWord returns the offset of kw in text with whole-word semantics,
// or -1 when absent.
func indexWord(text, kw string) int {
	padded := " " + text + " "
	idx := strings.Index(padded, " "+kw+" ")
	if idx < 0 {
		return -1
	}
	return idx
}

// stopWords filters noise when extracting key terms for direct recall
// searches.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true,
	"should": true, "this": true, "that": true, "these": true,
	"those": true, "it": true, "its": true, "we": true, "our": true,
	"you": true, "your": true, "how": true, "what": true, "when": true,
	"where": true, "which": true, "can": true, "need": true, "want": true,
}

// maxKeyTerms caps how many terms a recall query carries.
const maxKeyTerms = 10

// ExtractKeyTerms pulls the meaningful terms from free text, preserving
// first-occurrence order. Used to build direct recall queries.
func ExtractKeyTerms(text string) []string {
	normalized := normalize(text)
	if normalized == "" {
		return nil
	}

	seen := make(map[string]bool)
	var terms []string
	for _, word := range strings.Fields(normalized) {
		if len(word) < 3 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
		if len(terms) == maxKeyTerms {
			break
		}
	}
	return terms
}
