package models

import "time"

// Signal is one observed anomaly from the monitored environment. Signals are
// produced by a Collector and never mutated afterwards.
type Signal struct {
	ID         string    `json:"id"`
	Source     Source    `json:"source"`
	Severity   Severity  `json:"severity"`
	Service    string    `json:"service"`
	Resource   string    `json:"resource"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
	Message    string    `json:"message"`
	ObservedAt time.Time `json:"observed_at"`
}

// Source enumerates signal origins.
type Source string

const (
	SourceMetricAlarm     Source = "metric-alarm"
	SourceCostAnomaly     Source = "cost-anomaly"
	SourceSecurityFinding Source = "security-finding"
)

// Severity captures impact levels, ordered from critical down to low.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort position of a severity; critical sorts first.
// Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}
