// Package decompose turns free-form task text into a structured set of
// weighted search queries for the memory store.
package decompose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calebmorse/mnemon/pkg/models"
)

// Entry is one recognizable element in the vocabulary. Keywords match at
// full strength; synonyms match at partial strength.
type Entry struct {
	// Term is the canonical name used in the synthesized query.
	Term string `yaml:"term"`
	// Category determines the query's category and priority.
	Category models.QueryCategory `yaml:"category"`
	// Keywords are exact-match tokens for this element.
	Keywords []string `yaml:"keywords"`
	// Synonyms are looser matches scored at partial weight.
	Synonyms []string `yaml:"synonyms,omitempty"`
}

// Vocabulary is the declarative table driving decomposition. It is data,
// not code: a YAML file can replace or extend it without code changes.
type Vocabulary struct {
	// Entries lists the recognizable elements in match-priority order.
	Entries []Entry `yaml:"entries"`
	// Modifiers are contextual words appended to a query's text based
	// on its category (e.g. problem-solution adds "fix workaround").
	Modifiers map[models.QueryCategory][]string `yaml:"modifiers"`
}

// DefaultVocabulary returns the built-in table. Category assignment
// follows the element's nature: technology and feature words retrieve
// implementations, error words retrieve fixes, and so on.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Entries: []Entry{
			// Architecture and design elements.
			{Term: "architecture", Category: models.CategoryArchitecture,
				Keywords: []string{"architecture", "design", "structure", "pattern"},
				Synonyms: []string{"restructure", "redesign", "architectural"}},
			{Term: "microservice", Category: models.CategoryArchitecture,
				Keywords: []string{"microservice", "microservices", "service mesh"},
				Synonyms: []string{"distributed"}},
			{Term: "refactoring", Category: models.CategoryArchitecture,
				Keywords: []string{"refactor", "refactoring", "rewrite"},
				Synonyms: []string{"modernize", "cleanup"}},

			// Problem and error elements.
			{Term: "error", Category: models.CategoryProblemSolution,
				Keywords: []string{"error", "exception", "crash", "bug"},
				Synonyms: []string{"stacktrace", "traceback"}},
			{Term: "failure", Category: models.CategoryProblemSolution,
				Keywords: []string{"failing", "failed", "broken", "not working"},
				Synonyms: []string{"flaky", "intermittent"}},
			{Term: "debugging", Category: models.CategoryProblemSolution,
				Keywords: []string{"debug", "troubleshoot", "investigate"},
				Synonyms: []string{"diagnose"}},
			{Term: "timeout", Category: models.CategoryProblemSolution,
				Keywords: []string{"timeout", "deadlock", "memory leak"},
				Synonyms: []string{"hang", "stuck"}},

			// Technology elements.
			{Term: "python", Category: models.CategoryImplementation,
				Keywords: []string{"python", "pytest", "django", "flask"},
				Synonyms: []string{"pip"}},
			{Term: "javascript", Category: models.CategoryImplementation,
				Keywords: []string{"javascript", "typescript", "node", "react"},
				Synonyms: []string{"npm", "frontend"}},
			{Term: "go", Category: models.CategoryImplementation,
				Keywords: []string{"golang", "goroutine"},
				Synonyms: []string{"go module"}},
			{Term: "docker", Category: models.CategoryConfiguration,
				Keywords: []string{"docker", "container", "dockerfile"},
				Synonyms: []string{"compose"}},
			{Term: "kubernetes", Category: models.CategoryConfiguration,
				Keywords: []string{"kubernetes", "k8s", "kubectl", "helm"},
				Synonyms: []string{"cluster"}},
			{Term: "database", Category: models.CategoryImplementation,
				Keywords: []string{"database", "sql", "postgres", "mysql", "sqlite"},
				Synonyms: []string{"schema", "migration", "query"}},
			{Term: "api", Category: models.CategoryImplementation,
				Keywords: []string{"api", "rest", "graphql", "endpoint"},
				Synonyms: []string{"webhook", "grpc"}},
			{Term: "cloud", Category: models.CategoryConfiguration,
				Keywords: []string{"aws", "azure", "gcp", "terraform"},
				Synonyms: []string{"serverless", "lambda"}},
			{Term: "security", Category: models.CategoryArchitecture,
				Keywords: []string{"security", "auth", "oauth", "jwt", "tls"},
				Synonyms: []string{"encryption", "permissions"}},
			{Term: "cache", Category: models.CategoryImplementation,
				Keywords: []string{"cache", "caching", "redis"},
				Synonyms: []string{"memcached"}},

			// Implementation aspects.
			{Term: "testing", Category: models.CategoryTesting,
				Keywords: []string{"test", "testing", "unit test", "integration test"},
				Synonyms: []string{"coverage", "mock", "fixture", "spec"}},
			{Term: "performance", Category: models.CategoryImplementation,
				Keywords: []string{"performance", "optimize", "optimization"},
				Synonyms: []string{"benchmark", "profiling", "slow", "latency"}},
			{Term: "deployment", Category: models.CategoryConfiguration,
				Keywords: []string{"deploy", "deployment", "release", "ci"},
				Synonyms: []string{"pipeline", "rollout"}},
			{Term: "configuration", Category: models.CategoryConfiguration,
				Keywords: []string{"config", "configuration", "setup", "install"},
				Synonyms: []string{"environment", "settings"}},

			// Generic task elements.
			{Term: "implementation", Category: models.CategoryImplementation,
				Keywords: []string{"implement", "create", "build", "develop", "add"},
				Synonyms: []string{"feature", "function", "component", "module"}},
		},
		Modifiers: map[models.QueryCategory][]string{
			models.CategoryArchitecture:    {"architecture", "decision", "design", "pattern"},
			models.CategoryImplementation:  {"implementation", "example", "pattern"},
			models.CategoryProblemSolution: {"fix", "workaround", "resolved"},
			models.CategoryTesting:         {"test", "strategy", "approach"},
			models.CategoryConfiguration:   {"configuration", "setup", "example"},
		},
	}
}

// LoadVocabulary reads a vocabulary table from a YAML file. Entries with
// missing terms, unknown categories, or no keywords are rejected so a
// bad table fails loudly at load time instead of silently matching
// nothing.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}

	var vocab Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	if err := vocab.Validate(); err != nil {
		return nil, fmt.Errorf("validate vocabulary %s: %w", path, err)
	}
	return &vocab, nil
}

// Validate checks table integrity.
func (v *Vocabulary) Validate() error {
	if len(v.Entries) == 0 {
		return fmt.Errorf("vocabulary has no entries")
	}
	seen := make(map[string]bool)
	for i, e := range v.Entries {
		if e.Term == "" {
			return fmt.Errorf("entry %d: missing term", i)
		}
		if !e.Category.Valid() {
			return fmt.Errorf("entry %q: unknown category %q", e.Term, e.Category)
		}
		if len(e.Keywords) == 0 {
			return fmt.Errorf("entry %q: no keywords", e.Term)
		}
		if seen[e.Term] {
			return fmt.Errorf("entry %q: duplicate term", e.Term)
		}
		seen[e.Term] = true
	}
	for cat := range v.Modifiers {
		if !cat.Valid() {
			return fmt.Errorf("modifiers: unknown category %q", cat)
		}
	}
	return nil
}
