package engine

import "github.com/opsgridstack/opsgrid-orchestrator/internal/models"

// RoutingPolicy gates auto-remediation on analysis confidence and an action
// allow-list. It carries no state beyond its configuration and performs no I/O.
type RoutingPolicy struct {
	AutoRemediateThreshold float64
	allowed                map[models.RecommendedAction]struct{}
}

// NewRoutingPolicy builds a policy from a confidence threshold and the set of
// actions eligible for automated execution.
func NewRoutingPolicy(threshold float64, allowedActions []string) RoutingPolicy {
	allowed := make(map[models.RecommendedAction]struct{}, len(allowedActions))
	for _, action := range allowedActions {
		allowed[models.RecommendedAction(action)] = struct{}{}
	}
	return RoutingPolicy{AutoRemediateThreshold: threshold, allowed: allowed}
}

// Decide routes one analysis. Execute requires all three gates: the reasoner
// recommended auto_fix, confidence meets the threshold (inclusive), and
// auto_fix is allow-listed. A failed gate on auto_fix, or an explicit escalate
// recommendation, routes to escalation; monitor routes to observe. Unknown
// actions escalate: they never reach the executor.
func (p RoutingPolicy) Decide(analysis models.Analysis) models.Decision {
	switch analysis.RecommendedAction {
	case models.ActionAutoFix:
		if _, ok := p.allowed[models.ActionAutoFix]; ok && analysis.Confidence >= p.AutoRemediateThreshold {
			return models.DecisionExecute
		}
		return models.DecisionEscalate
	case models.ActionMonitor:
		return models.DecisionObserve
	default:
		return models.DecisionEscalate
	}
}
