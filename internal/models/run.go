package models

import "time"

// Decision is the routing outcome for one (signal, analysis) pair.
type Decision string

const (
	DecisionExecute  Decision = "execute"
	DecisionEscalate Decision = "escalate"
	DecisionObserve  Decision = "observe"
)

// ExecutionResult is the outcome of one Executor invocation. Executed=false
// with a Reason is a valid non-error result; Success=false records a contained
// executor failure.
type ExecutionResult struct {
	EventID         string    `json:"event_id"`
	Executed        bool      `json:"executed"`
	Reason          string    `json:"reason,omitempty"`
	ActionType      string    `json:"action_type,omitempty"`
	Command         string    `json:"command,omitempty"`
	Steps           []string  `json:"steps,omitempty"`
	Success         bool      `json:"success"`
	DurationSeconds float64   `json:"duration_seconds"`
	ExecutedAt      time.Time `json:"executed_at"`
}

// RunResult pairs one processed signal with its analysis and routed outcome.
// Exactly one of Execution or Escalation is set unless Decision is observe,
// in which case both are nil.
type RunResult struct {
	Signal     Signal            `json:"signal"`
	Analysis   Analysis          `json:"analysis"`
	Decision   Decision          `json:"decision"`
	Execution  *ExecutionResult  `json:"execution,omitempty"`
	Escalation *EscalationRecord `json:"escalation,omitempty"`
}

// Run records one complete orchestrator execution. Runs are immutable once
// appended to history. Results preserve Collector output order.
type Run struct {
	RunID           string      `json:"run_id"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     time.Time   `json:"completed_at"`
	EventsProcessed int         `json:"events_processed"`
	AutoFixed       int         `json:"auto_fixed"`
	Escalated       int         `json:"escalated"`
	Observed        int         `json:"observed"`
	Results         []RunResult `json:"results"`
}
