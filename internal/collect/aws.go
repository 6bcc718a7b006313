package collect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/utils"
)

// AWSCollector gathers signals from CloudWatch alarms, Cost Explorer anomaly
// detection, and Security Hub findings. CloudWatch is the primary source and
// its failure fails the collection; cost and security sources are best effort.
type AWSCollector struct {
	logger       *slog.Logger
	cloudwatch   *cloudwatch.Client
	costExplorer *costexplorer.Client
	securityHub  *securityhub.Client
	maxFindings  int32
}

// NewAWSCollector builds a collector from a resolved AWS configuration.
func NewAWSCollector(cfg aws.Config, maxFindings int, logger *slog.Logger) *AWSCollector {
	if logger == nil {
		logger = slog.Default()
	}
	if maxFindings <= 0 {
		maxFindings = 25
	}
	return &AWSCollector{
		logger:       logger,
		cloudwatch:   cloudwatch.NewFromConfig(cfg),
		costExplorer: costexplorer.NewFromConfig(cfg),
		securityHub:  securityhub.NewFromConfig(cfg),
		maxFindings:  int32(maxFindings),
	}
}

// Collect returns the current signal batch, sorted by severity.
func (c *AWSCollector) Collect(ctx context.Context) ([]models.Signal, error) {
	signals, err := c.collectAlarms(ctx)
	if err != nil {
		return nil, utils.NewAppError("collect.cloudwatch", "describe alarms", err)
	}

	if costSignals, err := c.collectCostAnomalies(ctx); err != nil {
		c.logger.Warn("cost anomaly collection failed", slog.Any("error", err))
	} else {
		signals = append(signals, costSignals...)
	}

	if findingSignals, err := c.collectFindings(ctx); err != nil {
		c.logger.Warn("security finding collection failed", slog.Any("error", err))
	} else {
		signals = append(signals, findingSignals...)
	}

	sortSignals(signals)
	return signals, nil
}

func (c *AWSCollector) collectAlarms(ctx context.Context) ([]models.Signal, error) {
	signals := make([]models.Signal, 0)

	paginator := cloudwatch.NewDescribeAlarmsPaginator(c.cloudwatch, &cloudwatch.DescribeAlarmsInput{
		StateValue: cwtypes.StateValueAlarm,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, alarm := range page.MetricAlarms {
			observedAt := time.Now().UTC()
			if alarm.StateUpdatedTimestamp != nil {
				observedAt = *alarm.StateUpdatedTimestamp
			}
			signals = append(signals, models.Signal{
				ID:         aws.ToString(alarm.AlarmArn),
				Source:     models.SourceMetricAlarm,
				Severity:   models.SeverityHigh,
				Service:    serviceFromNamespace(aws.ToString(alarm.Namespace)),
				Resource:   aws.ToString(alarm.AlarmName),
				Metric:     aws.ToString(alarm.MetricName),
				Threshold:  aws.ToFloat64(alarm.Threshold),
				Message:    aws.ToString(alarm.StateReason),
				ObservedAt: observedAt,
			})
		}
	}
	return signals, nil
}

func (c *AWSCollector) collectCostAnomalies(ctx context.Context) ([]models.Signal, error) {
	now := time.Now().UTC()
	out, err := c.costExplorer.GetAnomalies(ctx, &costexplorer.GetAnomaliesInput{
		DateInterval: &cetypes.AnomalyDateInterval{
			StartDate: aws.String(now.AddDate(0, 0, -1).Format("2006-01-02")),
			EndDate:   aws.String(now.Format("2006-01-02")),
		},
	})
	if err != nil {
		return nil, err
	}

	signals := make([]models.Signal, 0, len(out.Anomalies))
	for _, anomaly := range out.Anomalies {
		service := aws.ToString(anomaly.DimensionValue)
		for _, cause := range anomaly.RootCauses {
			if svc := aws.ToString(cause.Service); svc != "" {
				service = svc
				break
			}
		}

		var impact float64
		if anomaly.Impact != nil {
			impact = anomaly.Impact.TotalImpact
		}
		observedAt := now
		if start := aws.ToString(anomaly.AnomalyStartDate); start != "" {
			if t, err := time.Parse(time.RFC3339, start); err == nil {
				observedAt = t
			}
		}

		signals = append(signals, models.Signal{
			ID:         aws.ToString(anomaly.AnomalyId),
			Source:     models.SourceCostAnomaly,
			Severity:   costSeverity(impact),
			Service:    service,
			Resource:   aws.ToString(anomaly.DimensionValue),
			Metric:     "CostImpact",
			Value:      impact,
			Message:    fmt.Sprintf("Cost anomaly on %s with total impact $%.2f", service, impact),
			ObservedAt: observedAt,
		})
	}
	return signals, nil
}

func (c *AWSCollector) collectFindings(ctx context.Context) ([]models.Signal, error) {
	out, err := c.securityHub.GetFindings(ctx, &securityhub.GetFindingsInput{
		MaxResults: aws.Int32(c.maxFindings),
		Filters: &shtypes.AwsSecurityFindingFilters{
			RecordState: []shtypes.StringFilter{{
				Comparison: shtypes.StringFilterComparisonEquals,
				Value:      aws.String("ACTIVE"),
			}},
		},
	})
	if err != nil {
		return nil, err
	}

	signals := make([]models.Signal, 0, len(out.Findings))
	for _, finding := range out.Findings {
		resource := ""
		if len(finding.Resources) > 0 {
			resource = aws.ToString(finding.Resources[0].Id)
		}
		observedAt := time.Now().UTC()
		if updated := aws.ToString(finding.UpdatedAt); updated != "" {
			if t, err := time.Parse(time.RFC3339, updated); err == nil {
				observedAt = t
			}
		}

		signals = append(signals, models.Signal{
			ID:         aws.ToString(finding.Id),
			Source:     models.SourceSecurityFinding,
			Severity:   findingSeverity(finding.Severity),
			Service:    "SecurityHub",
			Resource:   resource,
			Metric:     aws.ToString(finding.Title),
			Value:      1,
			Message:    aws.ToString(finding.Description),
			ObservedAt: observedAt,
		})
	}
	return signals, nil
}

func serviceFromNamespace(namespace string) string {
	if namespace == "" {
		return "AWS"
	}
	parts := strings.Split(namespace, "/")
	return parts[len(parts)-1]
}

func costSeverity(impact float64) models.Severity {
	switch {
	case impact >= 500:
		return models.SeverityHigh
	case impact >= 100:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func findingSeverity(severity *shtypes.Severity) models.Severity {
	if severity == nil {
		return models.SeverityMedium
	}
	switch severity.Label {
	case shtypes.SeverityLabelCritical:
		return models.SeverityCritical
	case shtypes.SeverityLabelHigh:
		return models.SeverityHigh
	case shtypes.SeverityLabelMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
