package models

// Analysis is the Reasoner's conclusion for a single Signal. One analysis is
// produced per signal per run and never mutated. Confidence is always within
// [0, 1]; adapters clamp before an Analysis enters the pipeline.
type Analysis struct {
	EventID           string            `json:"event_id"`
	RootCause         string            `json:"root_cause"`
	Confidence        float64           `json:"confidence"`
	Impact            string            `json:"impact,omitempty"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	FixDescription    string            `json:"fix_description"`
	ReasoningSteps    []string          `json:"reasoning_steps"`
	RelatedServices   []string          `json:"related_services,omitempty"`
}

// RecommendedAction is the Reasoner's suggested handling for a signal. It is
// distinct from the routing Decision, which also weighs confidence and the
// remediation allow-list.
type RecommendedAction string

const (
	ActionAutoFix  RecommendedAction = "auto_fix"
	ActionEscalate RecommendedAction = "escalate"
	ActionMonitor  RecommendedAction = "monitor"
)
