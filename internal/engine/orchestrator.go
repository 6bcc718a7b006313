// Package engine drives one pipeline run: collect signals, analyze them
// concurrently, route each analysis, and record the assembled run.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/escalation"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/history"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

// Collector returns the current batch of signals from the monitored
// environment. A failed Collect aborts the run.
type Collector interface {
	Collect(ctx context.Context) ([]models.Signal, error)
}

// Reasoner produces an Analysis for one signal. Errors are contained: the
// orchestrator converts them into a zero-confidence escalation analysis.
type Reasoner interface {
	Analyze(ctx context.Context, sig models.Signal) (models.Analysis, error)
}

// Executor performs the remediation action for a signal routed to execute.
// Errors are contained and reflected as Success=false in the result.
type Executor interface {
	Execute(ctx context.Context, sig models.Signal, analysis models.Analysis) (models.ExecutionResult, error)
}

// CollectionError wraps a Collector failure; it is the only error class that
// aborts RunOnce.
type CollectionError struct {
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect signals: %v", e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Orchestrator runs the collect -> reason -> route -> act/escalate loop. It
// holds no mutable state of its own; the queue and history store it references
// are internally synchronized, so concurrent RunOnce calls are safe.
type Orchestrator struct {
	logger          *slog.Logger
	collector       Collector
	reasoner        Reasoner
	executor        Executor
	policy          RoutingPolicy
	queue           *escalation.Queue
	history         *history.Store
	analysisTimeout time.Duration
}

// NewOrchestrator wires the pipeline with its collaborators and shared stores.
func NewOrchestrator(
	logger *slog.Logger,
	collector Collector,
	reasoner Reasoner,
	executor Executor,
	policy RoutingPolicy,
	queue *escalation.Queue,
	historyStore *history.Store,
	analysisTimeout time.Duration,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if analysisTimeout <= 0 {
		analysisTimeout = 20 * time.Second
	}
	return &Orchestrator{
		logger:          logger,
		collector:       collector,
		reasoner:        reasoner,
		executor:        executor,
		policy:          policy,
		queue:           queue,
		history:         historyStore,
		analysisTimeout: analysisTimeout,
	}
}

// RunOnce executes one full pipeline pass and appends the resulting run to
// history. An empty signal batch is valid and yields a run with zero events.
// Only a Collector failure aborts the run; in that case nothing is appended.
func (o *Orchestrator) RunOnce(ctx context.Context) (models.Run, error) {
	startedAt := time.Now().UTC()
	runID := newRunID(startedAt)

	signals, err := o.collector.Collect(ctx)
	if err != nil {
		o.logger.Error("signal collection failed", slog.String("run_id", runID), slog.Any("error", err))
		return models.Run{}, &CollectionError{Err: err}
	}

	o.logger.Info("pipeline run started",
		slog.String("run_id", runID),
		slog.Int("signals", len(signals)))

	analyses := o.analyzeAll(ctx, signals)

	results := make([]models.RunResult, 0, len(signals))
	var autoFixed, escalated, observed int

	for i, sig := range signals {
		analysis := analyses[i]
		decision := o.policy.Decide(analysis)
		entry := models.RunResult{Signal: sig, Analysis: analysis, Decision: decision}

		switch decision {
		case models.DecisionExecute:
			// One executor invocation per (run, event); retries belong to
			// the executor's own contract.
			execution, execErr := o.executor.Execute(ctx, sig, analysis)
			if execErr != nil {
				o.logger.Warn("execution failed",
					slog.String("run_id", runID),
					slog.String("event_id", sig.ID),
					slog.Any("error", execErr))
				execution = models.ExecutionResult{
					EventID:    sig.ID,
					Executed:   true,
					Success:    false,
					Reason:     execErr.Error(),
					ExecutedAt: time.Now().UTC(),
				}
			}
			entry.Execution = &execution
			autoFixed++
		case models.DecisionEscalate:
			record := o.queue.Enqueue(sig, analysis)
			entry.Escalation = &record
			escalated++
		case models.DecisionObserve:
			observed++
		}

		results = append(results, entry)
	}

	run := models.Run{
		RunID:           runID,
		StartedAt:       startedAt,
		CompletedAt:     time.Now().UTC(),
		EventsProcessed: len(signals),
		AutoFixed:       autoFixed,
		Escalated:       escalated,
		Observed:        observed,
		Results:         results,
	}
	o.history.Append(run)

	o.logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Int("auto_fixed", autoFixed),
		slog.Int("escalated", escalated),
		slog.Int("observed", observed))
	return run, nil
}

// Analyze produces an analysis for a single signal under the configured
// timeout. It never fails: reasoner errors and timeouts are converted into a
// zero-confidence escalation analysis so every signal reaches a routing
// decision.
func (o *Orchestrator) Analyze(ctx context.Context, sig models.Signal) models.Analysis {
	actx, cancel := context.WithTimeout(ctx, o.analysisTimeout)
	defer cancel()

	type outcome struct {
		analysis models.Analysis
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		analysis, err := o.reasoner.Analyze(actx, sig)
		done <- outcome{analysis: analysis, err: err}
	}()

	// The select guards against reasoners that ignore context deadlines:
	// one unresponsive signal must not stall the run.
	select {
	case out := <-done:
		if out.err != nil {
			o.logger.Warn("analysis failed",
				slog.String("event_id", sig.ID),
				slog.Any("error", out.err))
			return failedAnalysis(sig, out.err.Error())
		}
		return sanitizeAnalysis(sig, out.analysis)
	case <-actx.Done():
		o.logger.Warn("analysis timed out",
			slog.String("event_id", sig.ID),
			slog.Duration("timeout", o.analysisTimeout))
		return failedAnalysis(sig, actx.Err().Error())
	}
}

// analyzeAll fans out one analysis per signal and recombines the results in
// collector order regardless of completion order.
func (o *Orchestrator) analyzeAll(ctx context.Context, signals []models.Signal) []models.Analysis {
	analyses := make([]models.Analysis, len(signals))
	var wg sync.WaitGroup
	for i, sig := range signals {
		wg.Add(1)
		go func(i int, sig models.Signal) {
			defer wg.Done()
			analyses[i] = o.Analyze(ctx, sig)
		}(i, sig)
	}
	wg.Wait()
	return analyses
}

// sanitizeAnalysis enforces the Analysis invariants at the boundary where any
// reasoner result enters the pipeline: event id set, confidence within [0,1].
func sanitizeAnalysis(sig models.Signal, analysis models.Analysis) models.Analysis {
	if analysis.EventID == "" {
		analysis.EventID = sig.ID
	}
	switch {
	case math.IsNaN(analysis.Confidence), analysis.Confidence < 0:
		analysis.Confidence = 0
	case analysis.Confidence > 1:
		analysis.Confidence = 1
	}
	return analysis
}

func failedAnalysis(sig models.Signal, cause string) models.Analysis {
	return models.Analysis{
		EventID:           sig.ID,
		RootCause:         fmt.Sprintf("analysis failed: %s", cause),
		Confidence:        0,
		RecommendedAction: models.ActionEscalate,
		FixDescription:    "Manual investigation required.",
		ReasoningSteps:    []string{fmt.Sprintf("Reasoner error: %s", cause)},
	}
}

func newRunID(startedAt time.Time) string {
	return fmt.Sprintf("run-%s-%s", startedAt.Format("20060102-150405"), uuid.NewString()[:8])
}
