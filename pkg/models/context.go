package models

import "time"

// ContextSection groups assembled memories that share a query category.
type ContextSection struct {
	// Category is the query category the items were retrieved for.
	Category QueryCategory `json:"category"`
	// Items are the section's memories, ranked by composite score.
	Items []ScoredMemory `json:"items"`
	// Truncated is true if candidates existed beyond the applied budget.
	Truncated bool `json:"truncated"`
}

// AssembledContext is the final deduplicated, budgeted context bundle
// produced once per orchestration cycle.
type AssembledContext struct {
	// Task is the task text the context was assembled for.
	Task string `json:"task"`
	// Sections are ordered by category priority, then alphabetically.
	Sections []ContextSection `json:"sections"`
	// TotalItems counts items across all sections.
	TotalItems int `json:"total_items"`
	// AssembledAt is when assembly completed.
	AssembledAt time.Time `json:"assembled_at"`
}

// QueryResult pairs a search query with its scored candidates. It is
// the assembler's input, one entry per settled search.
type QueryResult struct {
	Query      SearchQuery    `json:"query"`
	Candidates []ScoredMemory `json:"candidates"`
}

// InvocationOutcome records how a single invocation ended.
type InvocationOutcome struct {
	// ID is the invocation's identifier.
	ID string `json:"id"`
	// Trigger is the condition that created the invocation.
	Trigger TriggerType `json:"trigger"`
	// Behavior is the operation the invocation performed.
	Behavior Behavior `json:"behavior"`
	// Status is the terminal status.
	Status InvocationStatus `json:"status"`
	// Error describes the failure for failed or timed-out invocations.
	Error string `json:"error,omitempty"`
	// Duration is how long execution took.
	Duration time.Duration `json:"duration"`
}

// AggregateResult is what a cycle always returns, even when every
// invocation failed. A degraded result with no context is the documented
// "no context available" outcome, not an error condition.
type AggregateResult struct {
	// CycleID identifies the orchestration cycle.
	CycleID string `json:"cycle_id"`
	// Invocations holds one outcome per dispatched invocation.
	Invocations []InvocationOutcome `json:"invocations"`
	// Context is the assembled context, or nil when no retrieval ran
	// or none succeeded.
	Context *AssembledContext `json:"context,omitempty"`
	// StoredHashes lists content hashes written by store behaviors.
	StoredHashes []string `json:"stored_hashes,omitempty"`
	// Degraded is true when every invocation failed or timed out.
	Degraded bool `json:"degraded"`
}

// Succeeded counts invocations that completed.
func (r AggregateResult) Succeeded() int {
	n := 0
	for _, inv := range r.Invocations {
		if inv.Status == StatusCompleted {
			n++
		}
	}
	return n
}
