// Package reason provides the Reasoner implementations: a deterministic
// fixture reasoner for local development and a live adapter calling a
// generative model through Bedrock. All free-text parsing of model output is
// isolated here; the pipeline only ever consumes a validated Analysis.
package reason

import (
	"context"
	"fmt"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

// FixtureReasoner returns canned analyses keyed by signal id, with a generic
// fallback derived from the signal itself.
type FixtureReasoner struct {
	analyses map[string]models.Analysis
}

// NewFixtureReasoner constructs the deterministic reasoner.
func NewFixtureReasoner() *FixtureReasoner {
	return &FixtureReasoner{analyses: fixtureAnalyses()}
}

// Analyze returns the canned analysis for the signal id, or a generic
// medium-confidence escalation for unknown signals.
func (r *FixtureReasoner) Analyze(ctx context.Context, sig models.Signal) (models.Analysis, error) {
	if analysis, ok := r.analyses[sig.ID]; ok {
		return analysis, nil
	}
	return models.Analysis{
		EventID:           sig.ID,
		RootCause:         fmt.Sprintf("Anomaly detected in %s: %s exceeded threshold.", sig.Service, sig.Metric),
		Confidence:        0.65,
		Impact:            "Service degradation detected. Scope under investigation.",
		RecommendedAction: models.ActionEscalate,
		FixDescription:    "Investigate the affected resource and confirm remediation manually.",
		ReasoningSteps: []string{
			fmt.Sprintf("Metric %s = %.2f exceeds threshold %.2f.", sig.Metric, sig.Value, sig.Threshold),
			"No matching remediation playbook signature; confidence insufficient for automated action.",
		},
		RelatedServices: []string{sig.Service},
	}, nil
}

func fixtureAnalyses() map[string]models.Analysis {
	return map[string]models.Analysis{
		"alarm-001": {
			EventID:           "alarm-001",
			RootCause:         "Sustained CPU spike on EC2 instance i-0a1b2c3d4e5f caused by runaway application thread pool exhaustion.",
			Confidence:        0.91,
			Impact:            "Production API latency increased 340ms p99. Risk of instance failure within 10 minutes.",
			RecommendedAction: models.ActionAutoFix,
			FixDescription:    "Restart application process on i-0a1b2c3d4e5f via SSM Run Command. If CPU does not drop below 70% within 3 minutes, trigger instance replacement via Auto Scaling.",
			ReasoningSteps: []string{
				"CPUUtilization at 94.7% for over 15 minutes exceeds the safe operating threshold of 80%.",
				"Correlated memory pressure with heap usage at 87% suggests GC pressure.",
				"No recent deployments in the last 6 hours rules out a code change as root cause.",
				"Traffic volume is normal, which rules out a load spike and points to an internal thread issue.",
				"Pattern matches the known thread pool exhaustion signature in the order-service.",
			},
			RelatedServices: []string{"EC2", "CloudWatch", "Auto Scaling", "SSM"},
		},
		"alarm-002": {
			EventID:           "alarm-002",
			RootCause:         "RDS PostgreSQL instance running full table scans due to a missing index on orders.customer_id after a schema migration.",
			Confidence:        0.87,
			Impact:            "Database spend 112% above baseline. Query latency degraded. Risk of read replica lag.",
			RecommendedAction: models.ActionEscalate,
			FixDescription:    "Add index: CREATE INDEX CONCURRENTLY idx_orders_customer_id ON orders(customer_id). Requires DBA approval for a production schema change.",
			ReasoningSteps: []string{
				"Cost spike of $847.50 against a $400 baseline correlates with a schema migration deployed 14 hours ago.",
				"Performance Insights shows sequential scan queries consuming 78% of DB load.",
				"Missing index on orders.customer_id identified in the slow query log.",
				"IOPS spike confirms a full table scan pattern rather than a connection pool issue.",
			},
			RelatedServices: []string{"RDS", "Cost Explorer", "CloudWatch"},
		},
		"alarm-003": {
			EventID:           "alarm-003",
			RootCause:         "S3 bucket prod-data-lake-exports has a public-read ACL, likely misconfigured during a Terraform apply for the new export pipeline.",
			Confidence:        0.95,
			Impact:            "PCI-DSS and SOC2 violation. Sensitive export data potentially exposed. Immediate remediation required.",
			RecommendedAction: models.ActionAutoFix,
			FixDescription:    "Immediately apply S3 Block Public Access settings, then revoke the public ACL and alert the security team.",
			ReasoningSteps: []string{
				"Security finding confirms the bucket ACL is set to public-read via the GetBucketAcl API.",
				"The bucket contains customer export data classified as PII.",
				"CloudTrail shows PutBucketAcl called 2 hours ago by terraform-ci-role during pipeline deployment.",
				"Terraform state is missing block_public_acls = true on the S3 resource.",
				"No unauthorized access detected in S3 access logs yet; the exposure window is narrow.",
			},
			RelatedServices: []string{"S3", "Security Hub", "CloudTrail", "IAM"},
		},
		"alarm-004": {
			EventID:           "alarm-004",
			RootCause:         "Lambda fn-order-processor error rate elevated due to DynamoDB throttling on the orders table from insufficient provisioned capacity.",
			Confidence:        0.88,
			Impact:            "12.3% of order processing requests failing. Revenue impact estimated at $2,400/hour.",
			RecommendedAction: models.ActionAutoFix,
			FixDescription:    "Temporarily double the DynamoDB orders table provisioned capacity via UpdateTable. Auto-scaling will stabilize within 5 minutes.",
			ReasoningSteps: []string{
				"Lambda error rate of 12.3% began 8 minutes ago and correlates with a traffic surge.",
				"Logs show ProvisionedThroughputExceededException from DynamoDB.",
				"DynamoDB orders table consumed capacity is at 98% with an auto-scaling lag of roughly 5 minutes.",
				"Exponential backoff is not implemented in the Lambda, so errors cascade instead of retrying.",
			},
			RelatedServices: []string{"Lambda", "DynamoDB", "CloudWatch"},
		},
		"alarm-005": {
			EventID:           "alarm-005",
			RootCause:         "EKS cluster running 3 oversized node groups (m5.4xlarge) with average utilization below 15%; right-sizing opportunity.",
			Confidence:        0.82,
			Impact:            "Overspend of $340/day. No performance impact; purely a cost optimization opportunity.",
			RecommendedAction: models.ActionEscalate,
			FixDescription:    "Migrate node groups from m5.4xlarge to m5.xlarge. Requires infrastructure team approval. Estimated savings: $340/day.",
			ReasoningSteps: []string{
				"Cost Explorer shows $1,240 EKS compute against a $900 baseline, 38% above target.",
				"Kubernetes metrics show node CPU utilization averaging 14.2% across 3 node groups.",
				"Pods can be consolidated onto m5.xlarge instances with headroom to spare.",
				"No scheduled batch jobs or traffic spikes in the next 72 hours per the capacity plan.",
			},
			RelatedServices: []string{"EKS", "EC2", "Cost Explorer"},
		},
	}
}
