package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/escalation"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/history"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

type fakeCollector struct {
	signals []models.Signal
	err     error
}

func (f *fakeCollector) Collect(ctx context.Context) ([]models.Signal, error) {
	return f.signals, f.err
}

type fakeReasoner struct {
	analyses map[string]models.Analysis
	errs     map[string]error
	delays   map[string]time.Duration
}

func (f *fakeReasoner) Analyze(ctx context.Context, sig models.Signal) (models.Analysis, error) {
	if d, ok := f.delays[sig.ID]; ok {
		time.Sleep(d)
	}
	if err, ok := f.errs[sig.ID]; ok {
		return models.Analysis{}, err
	}
	if analysis, ok := f.analyses[sig.ID]; ok {
		return analysis, nil
	}
	return models.Analysis{
		EventID:           sig.ID,
		Confidence:        0.5,
		RecommendedAction: models.ActionMonitor,
	}, nil
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{calls: make(map[string]int)}
}

func (f *fakeExecutor) Execute(ctx context.Context, sig models.Signal, analysis models.Analysis) (models.ExecutionResult, error) {
	f.mu.Lock()
	f.calls[sig.ID]++
	f.mu.Unlock()
	if err, ok := f.errs[sig.ID]; ok {
		return models.ExecutionResult{}, err
	}
	return models.ExecutionResult{
		EventID:    sig.ID,
		Executed:   true,
		Success:    true,
		ActionType: "restart_service",
		ExecutedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeExecutor) callCount(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[eventID]
}

func signalBatch(n int) []models.Signal {
	signals := make([]models.Signal, 0, n)
	for i := 0; i < n; i++ {
		signals = append(signals, models.Signal{
			ID:       fmt.Sprintf("alarm-%03d", i+1),
			Source:   models.SourceMetricAlarm,
			Severity: models.SeverityHigh,
			Service:  "EC2",
		})
	}
	return signals
}

func newTestOrchestrator(collector Collector, reasoner Reasoner, executor Executor, timeout time.Duration) (*Orchestrator, *escalation.Queue, *history.Store) {
	queue := escalation.NewQueue(nil)
	store := history.NewStore(20)
	policy := NewRoutingPolicy(0.8, []string{"auto_fix"})
	orch := NewOrchestrator(nil, collector, reasoner, executor, policy, queue, store, timeout)
	return orch, queue, store
}

func assertRunInvariants(t *testing.T, run models.Run) {
	t.Helper()
	if run.AutoFixed+run.Escalated+run.Observed != run.EventsProcessed {
		t.Fatalf("auto_fixed(%d)+escalated(%d)+observed(%d) != events_processed(%d)",
			run.AutoFixed, run.Escalated, run.Observed, run.EventsProcessed)
	}
	if len(run.Results) != run.EventsProcessed {
		t.Fatalf("results length %d != events_processed %d", len(run.Results), run.EventsProcessed)
	}
	for i, entry := range run.Results {
		switch entry.Decision {
		case models.DecisionObserve:
			if entry.Execution != nil || entry.Escalation != nil {
				t.Fatalf("results[%d]: observe entry carries execution or escalation", i)
			}
		case models.DecisionExecute:
			if entry.Execution == nil || entry.Escalation != nil {
				t.Fatalf("results[%d]: execute entry must carry exactly an execution", i)
			}
		case models.DecisionEscalate:
			if entry.Escalation == nil || entry.Execution != nil {
				t.Fatalf("results[%d]: escalate entry must carry exactly an escalation", i)
			}
		}
	}
}

func TestRunOnceScenarioThreeSignals(t *testing.T) {
	signals := signalBatch(3)
	reasoner := &fakeReasoner{analyses: map[string]models.Analysis{
		"alarm-001": {EventID: "alarm-001", Confidence: 0.95, RecommendedAction: models.ActionAutoFix},
		"alarm-002": {EventID: "alarm-002", Confidence: 0.5, RecommendedAction: models.ActionEscalate},
		"alarm-003": {EventID: "alarm-003", Confidence: 0.3, RecommendedAction: models.ActionMonitor},
	}}
	executor := newFakeExecutor()
	orch, queue, store := newTestOrchestrator(&fakeCollector{signals: signals}, reasoner, executor, time.Second)

	run, err := orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	assertRunInvariants(t, run)

	if run.AutoFixed != 1 || run.Escalated != 1 || run.Observed != 1 {
		t.Fatalf("got auto_fixed=%d escalated=%d observed=%d, want 1/1/1",
			run.AutoFixed, run.Escalated, run.Observed)
	}
	want := []models.Decision{models.DecisionExecute, models.DecisionEscalate, models.DecisionObserve}
	for i, entry := range run.Results {
		if entry.Decision != want[i] {
			t.Fatalf("results[%d].decision = %s, want %s", i, entry.Decision, want[i])
		}
	}
	if pending := queue.ListPending(); len(pending) != 1 || pending[0].EventID != "alarm-002" {
		t.Fatalf("expected alarm-002 pending, got %+v", pending)
	}
	if store.Len() != 1 {
		t.Fatalf("expected run appended to history, len=%d", store.Len())
	}
}

func TestRunOnceEmptyBatch(t *testing.T) {
	orch, _, store := newTestOrchestrator(&fakeCollector{}, &fakeReasoner{}, newFakeExecutor(), time.Second)

	run, err := orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.EventsProcessed != 0 || len(run.Results) != 0 {
		t.Fatalf("expected empty run, got %+v", run)
	}
	if store.Len() != 1 {
		t.Fatalf("empty run should still be recorded")
	}
}

func TestRunOnceCollectorFailureAborts(t *testing.T) {
	collector := &fakeCollector{err: errors.New("cloudwatch unreachable")}
	orch, _, store := newTestOrchestrator(collector, &fakeReasoner{}, newFakeExecutor(), time.Second)

	_, err := orch.RunOnce(context.Background())
	var collErr *CollectionError
	if !errors.As(err, &collErr) {
		t.Fatalf("expected CollectionError, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed run must not be appended to history")
	}
}

func TestRunOnceReasonerTimeoutIsolated(t *testing.T) {
	signals := signalBatch(2)
	reasoner := &fakeReasoner{
		analyses: map[string]models.Analysis{
			"alarm-002": {EventID: "alarm-002", Confidence: 0.9, RecommendedAction: models.ActionAutoFix},
		},
		delays: map[string]time.Duration{"alarm-001": 500 * time.Millisecond},
	}
	orch, _, _ := newTestOrchestrator(&fakeCollector{signals: signals}, reasoner, newFakeExecutor(), 50*time.Millisecond)

	run, err := orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if run.EventsProcessed != 2 {
		t.Fatalf("events_processed = %d, want 2", run.EventsProcessed)
	}

	timedOut := run.Results[0].Analysis
	if timedOut.Confidence != 0 || timedOut.RecommendedAction != models.ActionEscalate {
		t.Fatalf("timed-out analysis not converted: %+v", timedOut)
	}
	healthy := run.Results[1].Analysis
	if healthy.Confidence != 0.9 || healthy.RecommendedAction != models.ActionAutoFix {
		t.Fatalf("healthy analysis affected by sibling timeout: %+v", healthy)
	}
	assertRunInvariants(t, run)
}

func TestRunOnceReasonerErrorConverted(t *testing.T) {
	signals := signalBatch(1)
	reasoner := &fakeReasoner{errs: map[string]error{"alarm-001": errors.New("model unavailable")}}
	orch, queue, _ := newTestOrchestrator(&fakeCollector{signals: signals}, reasoner, newFakeExecutor(), time.Second)

	run, err := orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	analysis := run.Results[0].Analysis
	if analysis.Confidence != 0 || analysis.RecommendedAction != models.ActionEscalate {
		t.Fatalf("failed analysis not converted: %+v", analysis)
	}
	if analysis.EventID != "alarm-001" {
		t.Fatalf("synthetic analysis missing event id")
	}
	if queue.PendingCount() != 1 {
		t.Fatalf("failed analysis should escalate")
	}
}

func TestRunOnceExecutorFailureContained(t *testing.T) {
	signals := signalBatch(1)
	reasoner := &fakeReasoner{analyses: map[string]models.Analysis{
		"alarm-001": {EventID: "alarm-001", Confidence: 0.95, RecommendedAction: models.ActionAutoFix},
	}}
	executor := newFakeExecutor()
	executor.errs = map[string]error{"alarm-001": errors.New("ssm command rejected")}
	orch, _, _ := newTestOrchestrator(&fakeCollector{signals: signals}, reasoner, executor, time.Second)

	run, err := orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("executor failure must not abort the run: %v", err)
	}
	if run.AutoFixed != 1 {
		t.Fatalf("failed execution still counts toward auto_fixed, got %d", run.AutoFixed)
	}
	execution := run.Results[0].Execution
	if execution == nil || execution.Success {
		t.Fatalf("expected success=false execution result, got %+v", execution)
	}
	if execution.Reason == "" {
		t.Fatalf("expected failure reason recorded")
	}
}

func TestRunOncePreservesCollectorOrder(t *testing.T) {
	signals := signalBatch(5)
	// First signals finish last; fan-in must still restore collector order.
	delays := map[string]time.Duration{
		"alarm-001": 80 * time.Millisecond,
		"alarm-002": 60 * time.Millisecond,
		"alarm-003": 40 * time.Millisecond,
		"alarm-004": 20 * time.Millisecond,
	}
	orch, _, _ := newTestOrchestrator(&fakeCollector{signals: signals}, &fakeReasoner{delays: delays}, newFakeExecutor(), time.Second)

	run, err := orch.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	for i, entry := range run.Results {
		if entry.Signal.ID != signals[i].ID {
			t.Fatalf("results[%d] = %s, want %s", i, entry.Signal.ID, signals[i].ID)
		}
		if entry.Analysis.EventID != signals[i].ID {
			t.Fatalf("results[%d] analysis belongs to %s", i, entry.Analysis.EventID)
		}
	}
}

func TestRunOnceExecutorInvokedOncePerEvent(t *testing.T) {
	signals := signalBatch(3)
	analyses := make(map[string]models.Analysis, len(signals))
	for _, sig := range signals {
		analyses[sig.ID] = models.Analysis{EventID: sig.ID, Confidence: 0.95, RecommendedAction: models.ActionAutoFix}
	}
	executor := newFakeExecutor()
	orch, _, _ := newTestOrchestrator(&fakeCollector{signals: signals}, &fakeReasoner{analyses: analyses}, executor, time.Second)

	if _, err := orch.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	for _, sig := range signals {
		if n := executor.callCount(sig.ID); n != 1 {
			t.Fatalf("executor invoked %d times for %s, want 1", n, sig.ID)
		}
	}
}

func TestConcurrentRunsProduceDistinctRuns(t *testing.T) {
	signals := signalBatch(4)
	orch, _, store := newTestOrchestrator(&fakeCollector{signals: signals}, &fakeReasoner{}, newFakeExecutor(), time.Second)

	const parallel = 6
	runs := make([]models.Run, parallel)
	errs := make([]error, parallel)
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runs[i], errs[i] = orch.RunOnce(context.Background())
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, parallel)
	for i := 0; i < parallel; i++ {
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if _, dup := seen[runs[i].RunID]; dup {
			t.Fatalf("duplicate run id %s", runs[i].RunID)
		}
		seen[runs[i].RunID] = struct{}{}
		assertRunInvariants(t, runs[i])
	}
	if store.Len() != parallel {
		t.Fatalf("expected %d runs in history, got %d", parallel, store.Len())
	}
}

func TestAnalyzeClampsConfidence(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.7, 1},
		{-0.2, 0},
		{math.NaN(), 0},
		{0.85, 0.85},
	}
	for _, tc := range cases {
		reasoner := &fakeReasoner{analyses: map[string]models.Analysis{
			"alarm-001": {EventID: "alarm-001", Confidence: tc.in, RecommendedAction: models.ActionMonitor},
		}}
		orch, _, _ := newTestOrchestrator(&fakeCollector{}, reasoner, newFakeExecutor(), time.Second)

		analysis := orch.Analyze(context.Background(), models.Signal{ID: "alarm-001"})
		if analysis.Confidence != tc.want {
			t.Fatalf("confidence %v clamped to %v, want %v", tc.in, analysis.Confidence, tc.want)
		}
	}
}
