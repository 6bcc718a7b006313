// Package services exposes the pipeline to transport layers. The facade owns
// metrics emission and latency accounting so handlers stay thin.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/engine"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/escalation"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/history"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/metrics"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/utils"
)

// ErrSignalNotFound reports an AnalyzeSignal call for an event id absent from
// the current signal batch.
var ErrSignalNotFound = errors.New("signal not found in current batch")

// DashboardSummary aggregates pipeline activity for the operator dashboard.
// Severity and source breakdowns cover the most recent run's signals.
type DashboardSummary struct {
	TotalRuns           int            `json:"total_runs"`
	EventsProcessed     int            `json:"events_processed"`
	AutoFixed           int            `json:"auto_fixed"`
	Escalated           int            `json:"escalated"`
	Observed            int            `json:"observed"`
	PendingEscalations  int            `json:"pending_escalations"`
	ResolvedEscalations int            `json:"resolved_escalations"`
	BySeverity          map[string]int `json:"by_severity,omitempty"`
	BySource            map[string]int `json:"by_source,omitempty"`
	LastRunAt           *time.Time     `json:"last_run_at,omitempty"`
	LastRunID           string         `json:"last_run_id,omitempty"`
}

// PipelineService fronts the orchestrator, escalation queue, and run history
// for the HTTP layer.
type PipelineService struct {
	logger       *slog.Logger
	orchestrator *engine.Orchestrator
	collector    engine.Collector
	queue        *escalation.Queue
	history      *history.Store
	runLatency   *utils.LatencyTracker
}

// NewPipelineService wires the facade.
func NewPipelineService(
	logger *slog.Logger,
	orchestrator *engine.Orchestrator,
	collector engine.Collector,
	queue *escalation.Queue,
	historyStore *history.Store,
) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		logger:       logger,
		orchestrator: orchestrator,
		collector:    collector,
		queue:        queue,
		history:      historyStore,
		runLatency:   utils.NewLatencyTracker(200),
	}
}

// RunOnce triggers a full pipeline pass and records its outcome in metrics.
func (s *PipelineService) RunOnce(ctx context.Context) (models.Run, error) {
	start := time.Now()
	run, err := s.orchestrator.RunOnce(ctx)
	elapsed := time.Since(start)

	if err != nil {
		metrics.ObserveRun(elapsed, metrics.OutcomeError)
		return models.Run{}, err
	}

	metrics.ObserveRun(elapsed, metrics.OutcomeSuccess)
	metrics.AddDecisions(run.AutoFixed, run.Escalated, run.Observed)
	metrics.SetPendingEscalations(s.queue.PendingCount())

	s.runLatency.Observe(elapsed)
	if n := s.runLatency.Count(); n%20 == 0 {
		s.logger.Info("pipeline latency checkpoint",
			slog.Int("sample_count", n),
			slog.Duration("p95", s.runLatency.Percentile(95)))
	}
	return run, nil
}

// ListRuns returns recorded runs, newest first.
func (s *PipelineService) ListRuns() []models.Run {
	return s.history.List()
}

// GetRun returns one recorded run by id.
func (s *PipelineService) GetRun(runID string) (models.Run, error) {
	return s.history.Get(runID)
}

// CollectSignals returns the current signal batch without running the
// pipeline.
func (s *PipelineService) CollectSignals(ctx context.Context) ([]models.Signal, error) {
	return s.collector.Collect(ctx)
}

// AnalyzeSignal collects the current batch and analyzes the single signal
// with the given event id. Returns ErrSignalNotFound if the id is not in the
// batch.
func (s *PipelineService) AnalyzeSignal(ctx context.Context, eventID string) (models.Analysis, error) {
	signals, err := s.collector.Collect(ctx)
	if err != nil {
		return models.Analysis{}, &engine.CollectionError{Err: err}
	}
	for _, sig := range signals {
		if sig.ID == eventID {
			return s.orchestrator.Analyze(ctx, sig), nil
		}
	}
	return models.Analysis{}, ErrSignalNotFound
}

// ListPendingEscalations returns unresolved escalations in creation order.
func (s *PipelineService) ListPendingEscalations() []models.EscalationRecord {
	return s.queue.ListPending()
}

// ListAllEscalations returns every escalation ever enqueued.
func (s *PipelineService) ListAllEscalations() []models.EscalationRecord {
	return s.queue.ListAll()
}

// ResolveEscalation applies an operator decision to a pending escalation and
// refreshes the pending gauge.
func (s *PipelineService) ResolveEscalation(escalationID string, resolution models.Resolution, resolvedBy string) (models.EscalationRecord, error) {
	rec, err := s.queue.Resolve(escalationID, resolution, resolvedBy)
	if err != nil {
		return models.EscalationRecord{}, err
	}
	metrics.SetPendingEscalations(s.queue.PendingCount())
	s.logger.Info("escalation resolved",
		slog.String("escalation_id", rec.EscalationID),
		slog.String("resolution", string(rec.Resolution)),
		slog.String("resolved_by", rec.ResolvedBy))
	return rec, nil
}

// Summary aggregates run history and escalation state.
func (s *PipelineService) Summary() DashboardSummary {
	runs := s.history.List()
	summary := DashboardSummary{TotalRuns: len(runs)}
	for _, run := range runs {
		summary.EventsProcessed += run.EventsProcessed
		summary.AutoFixed += run.AutoFixed
		summary.Escalated += run.Escalated
		summary.Observed += run.Observed
	}
	if len(runs) > 0 {
		latest := runs[0]
		summary.LastRunAt = &latest.CompletedAt
		summary.LastRunID = latest.RunID
		summary.BySeverity = make(map[string]int)
		summary.BySource = make(map[string]int)
		for _, res := range latest.Results {
			summary.BySeverity[string(res.Signal.Severity)]++
			summary.BySource[string(res.Signal.Source)]++
		}
	}
	for _, rec := range s.queue.ListAll() {
		if rec.Status == models.EscalationPending {
			summary.PendingEscalations++
		} else {
			summary.ResolvedEscalations++
		}
	}
	return summary
}
