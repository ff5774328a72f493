// Package orchestrator decides whether and how to act on incoming
// content: it detects triggers, fans them out into invocations, runs
// the invocations concurrently, and aggregates the results.
package orchestrator

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/calebmorse/mnemon/pkg/models"
)

// triggerRule declares one detectable condition. Keywords match whole
// words; phrases match as substrings of the normalized input. Detection
// is table-driven so new conditions are added as data, not code paths.
type triggerRule struct {
	trigger  models.TriggerType
	behavior models.Behavior
	keywords []string
	phrases  []string
}

// defaultRules covers decision, solution, error, configuration, and
// task-start conditions. Table order is the dispatch order for fan-out,
// which keeps detection deterministic.
var defaultRules = []triggerRule{
	{
		trigger:  models.TriggerDecisionMade,
		behavior: models.BehaviorStore,
		keywords: []string{"decided", "chosen", "selected", "approach", "strategy", "architecture"},
		phrases:  []string{"going with", "will use", "we chose"},
	},
	{
		trigger:  models.TriggerSolutionFound,
		behavior: models.BehaviorStore,
		keywords: []string{"solution", "fix", "fixed", "resolved", "solved", "workaround"},
		phrases:  []string{"working now", "turned out", "root cause was"},
	},
	{
		trigger:  models.TriggerErrorEncountered,
		behavior: models.BehaviorContext,
		keywords: []string{"error", "exception", "failed", "failure", "crash", "bug", "broken", "timeout", "debug", "troubleshoot"},
		phrases:  []string{"not working", "stack trace", "memory leak"},
	},
	{
		trigger:  models.TriggerConfigChanged,
		behavior: models.BehaviorStore,
		keywords: []string{"configured", "configuration", "config", "setup", "installed", "settings", "environment"},
		phrases:  []string{"set up", "env var"},
	},
	{
		trigger:  models.TriggerTaskStarted,
		behavior: models.BehaviorContext,
		keywords: []string{"implement", "create", "build", "develop", "add", "feature", "refactor"},
		phrases:  []string{"need to", "want to", "going to", "planning to", "working on", "starting on", "how do i", "how can i"},
	},
}

// Detector classifies input text against the trigger table.
type Detector struct {
	rules     []triggerRule
	threshold float64
}

// NewDetector creates a Detector with the default rule table and the
// given confidence threshold.
func NewDetector(threshold float64) *Detector {
	return &Detector{
		rules:     defaultRules,
		threshold: threshold,
	}
}

var nonWordChars = regexp.MustCompile(`[^a-z0-9]+`)

// Detect classifies the input and returns one pending invocation per
// trigger whose confidence meets the threshold. Multiple triggers can
// fire from the same input.
func (d *Detector) Detect(input string) []models.Invocation {
	text := strings.TrimSpace(strings.ToLower(input))
	if text == "" {
		return nil
	}
	normalized := " " + nonWordChars.ReplaceAllString(text, " ") + " "

	var invocations []models.Invocation
	for _, rule := range d.rules {
		confidence := rule.confidence(normalized)
		if confidence < d.threshold {
			continue
		}
		invocations = append(invocations, models.Invocation{
			ID:         uuid.New().String()[:8],
			Trigger:    rule.trigger,
			Confidence: confidence,
			Behavior:   rule.behavior,
			Input:      input,
			Status:     models.StatusPending,
		})
	}
	return invocations
}

// confidence maps match count to [0,1]: no match is 0, a single match
// clears the default threshold, and each extra match adds conviction.
func (r triggerRule) confidence(normalized string) float64 {
	hits := 0
	for _, kw := range r.keywords {
		if strings.Contains(normalized, " "+kw+" ") {
			hits++
		}
	}
	for _, ph := range r.phrases {
		if strings.Contains(normalized, ph) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	confidence := 0.5 + 0.15*float64(hits-1)
	if confidence > 1 {
		return 1
	}
	return confidence
}
