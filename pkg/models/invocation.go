package models

// TriggerType identifies the condition that caused an invocation.
type TriggerType string

const (
	// TriggerDecisionMade fires on content describing a decision or choice.
	TriggerDecisionMade TriggerType = "decision_made"
	// TriggerSolutionFound fires on content describing a fix or resolution.
	TriggerSolutionFound TriggerType = "solution_found"
	// TriggerErrorEncountered fires on content describing an error or failure.
	TriggerErrorEncountered TriggerType = "error_encountered"
	// TriggerConfigChanged fires on content describing setup or config work.
	TriggerConfigChanged TriggerType = "configuration_changed"
	// TriggerTaskStarted fires on content describing new work beginning.
	TriggerTaskStarted TriggerType = "task_started"
)

// Valid returns true if the trigger type is a known value.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerDecisionMade, TriggerSolutionFound, TriggerErrorEncountered,
		TriggerConfigChanged, TriggerTaskStarted:
		return true
	default:
		return false
	}
}

// Behavior is the closed set of operations an invocation can perform.
type Behavior string

const (
	// BehaviorStore writes the input content to the memory store.
	BehaviorStore Behavior = "store"
	// BehaviorRecall runs a direct search against the store.
	BehaviorRecall Behavior = "recall"
	// BehaviorContext decomposes the input and assembles full context.
	BehaviorContext Behavior = "context"
	// BehaviorHealth checks store health.
	BehaviorHealth Behavior = "health"
	// BehaviorConsolidate asks the store to run maintenance.
	BehaviorConsolidate Behavior = "consolidate"
)

// Valid returns true if the behavior is a known value.
func (b Behavior) Valid() bool {
	switch b {
	case BehaviorStore, BehaviorRecall, BehaviorContext, BehaviorHealth, BehaviorConsolidate:
		return true
	default:
		return false
	}
}

// InvocationStatus represents the lifecycle state of an invocation.
type InvocationStatus string

const (
	// StatusPending indicates the invocation has not been dispatched.
	StatusPending InvocationStatus = "pending"
	// StatusRunning indicates the invocation is executing.
	StatusRunning InvocationStatus = "running"
	// StatusCompleted indicates the invocation finished successfully.
	StatusCompleted InvocationStatus = "completed"
	// StatusFailed indicates the invocation hit an unrecoverable error.
	StatusFailed InvocationStatus = "failed"
	// StatusTimedOut indicates the per-invocation timeout elapsed.
	StatusTimedOut InvocationStatus = "timed_out"
)

// Valid returns true if the status is a known value.
func (s InvocationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is an end state. Failed and
// TimedOut are terminal but non-fatal to the surrounding cycle.
func (s InvocationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition.
func (s InvocationStatus) CanTransition(next InvocationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed || next == StatusTimedOut
	default:
		return false
	}
}

// Invocation is one unit of orchestrated work created for a detected
// trigger. It is created per cycle and discarded after completion.
type Invocation struct {
	// ID is the unique identifier for this invocation.
	ID string `json:"id"`
	// Trigger is the condition that created this invocation.
	Trigger TriggerType `json:"trigger"`
	// Confidence is the trigger classifier's confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Behavior is the operation this invocation performs.
	Behavior Behavior `json:"behavior"`
	// Input is the content or query the behavior acts on.
	Input string `json:"input"`
	// Params carries behavior-specific parameters.
	Params map[string]string `json:"params,omitempty"`
	// Status is the current lifecycle state.
	Status InvocationStatus `json:"status"`
}
