package models

import "time"

// EscalationStatus tracks the HITL lifecycle of an escalation record.
// The only transition is pending -> resolved; resolved is terminal.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationResolved EscalationStatus = "resolved"
)

// Resolution is the operator's decision on an escalation.
type Resolution string

const (
	ResolutionApproved Resolution = "approved"
	ResolutionRejected Resolution = "rejected"
	ResolutionDeferred Resolution = "deferred"
)

// Valid reports whether the resolution is one of the accepted values.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionApproved, ResolutionRejected, ResolutionDeferred:
		return true
	default:
		return false
	}
}

// EscalationRecord is one pending-or-resolved HITL approval item. The signal
// and analysis are embedded snapshots taken at enqueue time. Records are owned
// by the escalation queue and mutated only through its Resolve operation.
type EscalationRecord struct {
	EscalationID string           `json:"escalation_id"`
	EventID      string           `json:"event_id"`
	Signal       Signal           `json:"signal"`
	Analysis     Analysis         `json:"analysis"`
	Status       EscalationStatus `json:"status"`
	Resolution   Resolution       `json:"resolution,omitempty"`
	ResolvedBy   string           `json:"resolved_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
}
