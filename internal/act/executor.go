package act

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

// PlaybookExecutor resolves remediations from the playbook catalog and
// records what was done. It simulates command execution; the command and
// steps in the result are what a live runner would perform.
type PlaybookExecutor struct {
	playbooks map[string]Playbook
	logger    *slog.Logger
	now       func() time.Time
}

// NewPlaybookExecutor constructs an executor over the given catalog.
func NewPlaybookExecutor(playbooks map[string]Playbook, logger *slog.Logger) *PlaybookExecutor {
	if playbooks == nil {
		playbooks = builtinPlaybooks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybookExecutor{playbooks: playbooks, logger: logger, now: time.Now}
}

// Execute runs the remediation for the analysis. Analyses that do not call
// for an automated fix produce a non-executed result with the reason filled
// in; this is a normal outcome, not an error.
func (e *PlaybookExecutor) Execute(ctx context.Context, sig models.Signal, analysis models.Analysis) (models.ExecutionResult, error) {
	if analysis.RecommendedAction != models.ActionAutoFix {
		return models.ExecutionResult{
			EventID:  sig.ID,
			Executed: false,
			Reason:   fmt.Sprintf("recommended action is %q, not auto_fix", analysis.RecommendedAction),
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return models.ExecutionResult{}, err
	}

	pb, ok := e.playbooks[sig.ID]
	if !ok {
		pb = genericPlaybook(sig.Service)
	}

	start := e.now()
	e.logger.Info("executing remediation",
		slog.String("event_id", sig.ID),
		slog.String("action_type", pb.ActionType),
		slog.String("service", sig.Service))

	return models.ExecutionResult{
		EventID:         sig.ID,
		Executed:        true,
		ActionType:      pb.ActionType,
		Command:         pb.Command,
		Steps:           pb.Steps,
		Success:         true,
		DurationSeconds: e.now().Sub(start).Seconds(),
		ExecutedAt:      start.UTC(),
	}, nil
}
