// Package collect provides the Collector implementations: a deterministic
// fixture batch for local development and a live AWS-backed collector. The
// variant is chosen by configuration at construction time; the pipeline never
// branches on it.
package collect

import (
	"context"
	"sort"
	"time"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

// FixtureCollector returns a fixed batch of realistic signals, ordered by
// severity. Timestamps are derived from the clock at collection time so the
// batch always looks current.
type FixtureCollector struct {
	now func() time.Time
}

// NewFixtureCollector constructs the deterministic collector.
func NewFixtureCollector() *FixtureCollector {
	return &FixtureCollector{now: func() time.Time { return time.Now().UTC() }}
}

// Collect returns the fixture batch sorted by severity, critical first.
func (c *FixtureCollector) Collect(ctx context.Context) ([]models.Signal, error) {
	now := c.now()
	signals := []models.Signal{
		{
			ID:         "alarm-001",
			Source:     models.SourceMetricAlarm,
			Severity:   models.SeverityCritical,
			Service:    "EC2",
			Resource:   "i-0a1b2c3d4e5f",
			Metric:     "CPUUtilization",
			Value:      94.7,
			Threshold:  80.0,
			Message:    "CPU utilization at 94.7% sustained for 15 minutes",
			ObservedAt: now.Add(-3 * time.Minute),
		},
		{
			ID:         "alarm-002",
			Source:     models.SourceCostAnomaly,
			Severity:   models.SeverityHigh,
			Service:    "RDS",
			Resource:   "db-prod-postgres",
			Metric:     "DailySpend",
			Value:      847.50,
			Threshold:  400.0,
			Message:    "RDS daily spend $847.50, 112% above 30-day baseline",
			ObservedAt: now.Add(-12 * time.Minute),
		},
		{
			ID:         "alarm-003",
			Source:     models.SourceSecurityFinding,
			Severity:   models.SeverityHigh,
			Service:    "S3",
			Resource:   "s3://prod-data-lake-exports",
			Metric:     "PublicAccessViolation",
			Value:      1,
			Threshold:  0,
			Message:    "S3 bucket has public read ACL, PCI-DSS violation detected",
			ObservedAt: now.Add(-7 * time.Minute),
		},
		{
			ID:         "alarm-004",
			Source:     models.SourceMetricAlarm,
			Severity:   models.SeverityMedium,
			Service:    "Lambda",
			Resource:   "fn-order-processor",
			Metric:     "ErrorRate",
			Value:      12.3,
			Threshold:  5.0,
			Message:    "Lambda error rate 12.3%, upstream DynamoDB throttling detected",
			ObservedAt: now.Add(-1 * time.Minute),
		},
		{
			ID:         "alarm-005",
			Source:     models.SourceCostAnomaly,
			Severity:   models.SeverityMedium,
			Service:    "EKS",
			Resource:   "cluster-prod-k8s",
			Metric:     "ComputeCost",
			Value:      1240.00,
			Threshold:  900.0,
			Message:    "EKS compute cost spike, 3 oversized node groups detected",
			ObservedAt: now.Add(-25 * time.Minute),
		},
	}

	sortSignals(signals)
	return signals, nil
}

// sortSignals orders a batch by severity, then by observation time.
func sortSignals(signals []models.Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Severity.Rank() != signals[j].Severity.Rank() {
			return signals[i].Severity.Rank() < signals[j].Severity.Rank()
		}
		return signals[i].ObservedAt.Before(signals[j].ObservedAt)
	})
}
