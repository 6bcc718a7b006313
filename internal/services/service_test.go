package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/engine"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/escalation"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/history"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

type stubCollector struct {
	signals []models.Signal
	err     error
}

func (c *stubCollector) Collect(ctx context.Context) ([]models.Signal, error) {
	return c.signals, c.err
}

type stubReasoner struct {
	analyses map[string]models.Analysis
}

func (r *stubReasoner) Analyze(ctx context.Context, sig models.Signal) (models.Analysis, error) {
	if a, ok := r.analyses[sig.ID]; ok {
		return a, nil
	}
	return models.Analysis{EventID: sig.ID, RecommendedAction: models.ActionMonitor, Confidence: 0.5}, nil
}

type stubExecutor struct{}

func (e *stubExecutor) Execute(ctx context.Context, sig models.Signal, analysis models.Analysis) (models.ExecutionResult, error) {
	return models.ExecutionResult{EventID: sig.ID, Executed: true, Success: true}, nil
}

func newTestService(collector engine.Collector, reasoner engine.Reasoner) (*PipelineService, *escalation.Queue, *history.Store) {
	queue := escalation.NewQueue(nil)
	store := history.NewStore(history.DefaultCapacity)
	policy := engine.NewRoutingPolicy(0.8, []string{string(models.ActionAutoFix)})
	orch := engine.NewOrchestrator(nil, collector, reasoner, &stubExecutor{}, policy, queue, store, time.Second)
	return NewPipelineService(nil, orch, collector, queue, store), queue, store
}

func TestRunOnceRecordsRun(t *testing.T) {
	collector := &stubCollector{signals: []models.Signal{
		{ID: "sig-1", Service: "EC2"},
		{ID: "sig-2", Service: "RDS"},
	}}
	reasoner := &stubReasoner{analyses: map[string]models.Analysis{
		"sig-1": {EventID: "sig-1", RecommendedAction: models.ActionAutoFix, Confidence: 0.9},
		"sig-2": {EventID: "sig-2", RecommendedAction: models.ActionEscalate, Confidence: 0.85},
	}}
	svc, _, _ := newTestService(collector, reasoner)

	run, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.EventsProcessed != 2 || run.AutoFixed != 1 || run.Escalated != 1 {
		t.Fatalf("run counts: processed=%d auto_fixed=%d escalated=%d",
			run.EventsProcessed, run.AutoFixed, run.Escalated)
	}

	runs := svc.ListRuns()
	if len(runs) != 1 || runs[0].RunID != run.RunID {
		t.Fatalf("history = %+v", runs)
	}
	got, err := svc.GetRun(run.RunID)
	if err != nil || got.RunID != run.RunID {
		t.Fatalf("GetRun: %v %+v", err, got)
	}
}

func TestRunOnceCollectionFailurePropagates(t *testing.T) {
	collector := &stubCollector{err: errors.New("throttled")}
	svc, _, _ := newTestService(collector, &stubReasoner{})

	_, err := svc.RunOnce(context.Background())
	var ce *engine.CollectionError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CollectionError", err)
	}
	if len(svc.ListRuns()) != 0 {
		t.Error("failed run was recorded in history")
	}
}

func TestAnalyzeSignal(t *testing.T) {
	collector := &stubCollector{signals: []models.Signal{{ID: "sig-1", Service: "S3"}}}
	reasoner := &stubReasoner{analyses: map[string]models.Analysis{
		"sig-1": {EventID: "sig-1", RecommendedAction: models.ActionAutoFix, Confidence: 0.95},
	}}
	svc, _, _ := newTestService(collector, reasoner)

	a, err := svc.AnalyzeSignal(context.Background(), "sig-1")
	if err != nil {
		t.Fatalf("AnalyzeSignal: %v", err)
	}
	if a.Confidence != 0.95 {
		t.Errorf("confidence = %v", a.Confidence)
	}

	if _, err := svc.AnalyzeSignal(context.Background(), "sig-404"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("error = %v, want ErrSignalNotFound", err)
	}
}

func TestResolveEscalationThroughFacade(t *testing.T) {
	collector := &stubCollector{signals: []models.Signal{{ID: "sig-1"}}}
	reasoner := &stubReasoner{analyses: map[string]models.Analysis{
		"sig-1": {EventID: "sig-1", RecommendedAction: models.ActionEscalate, Confidence: 0.9},
	}}
	svc, _, _ := newTestService(collector, reasoner)

	if _, err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	pending := svc.ListPendingEscalations()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	rec, err := svc.ResolveEscalation(pending[0].EscalationID, models.ResolutionApproved, "oncall")
	if err != nil {
		t.Fatalf("ResolveEscalation: %v", err)
	}
	if rec.Status != models.EscalationResolved || rec.ResolvedBy != "oncall" {
		t.Errorf("record = %+v", rec)
	}
	if len(svc.ListPendingEscalations()) != 0 {
		t.Error("escalation still pending after resolve")
	}
	if len(svc.ListAllEscalations()) != 1 {
		t.Error("resolved escalation missing from full list")
	}
}

func TestSummaryAggregates(t *testing.T) {
	collector := &stubCollector{signals: []models.Signal{
		{ID: "sig-1"}, {ID: "sig-2"}, {ID: "sig-3"},
	}}
	reasoner := &stubReasoner{analyses: map[string]models.Analysis{
		"sig-1": {EventID: "sig-1", RecommendedAction: models.ActionAutoFix, Confidence: 0.9},
		"sig-2": {EventID: "sig-2", RecommendedAction: models.ActionEscalate, Confidence: 0.9},
	}}
	svc, _, _ := newTestService(collector, reasoner)

	run, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	sum := svc.Summary()
	if sum.TotalRuns != 1 || sum.EventsProcessed != 3 {
		t.Errorf("summary runs/events = %d/%d", sum.TotalRuns, sum.EventsProcessed)
	}
	if sum.AutoFixed != 1 || sum.Escalated != 1 || sum.Observed != 1 {
		t.Errorf("summary decisions = %d/%d/%d", sum.AutoFixed, sum.Escalated, sum.Observed)
	}
	if sum.PendingEscalations != 1 || sum.ResolvedEscalations != 0 {
		t.Errorf("summary escalations = %d pending / %d resolved",
			sum.PendingEscalations, sum.ResolvedEscalations)
	}
	if sum.LastRunID != run.RunID {
		t.Errorf("last run id = %q", sum.LastRunID)
	}
}
