// Package escalation owns the lifecycle of human-in-the-loop approval records.
// The queue is independent of run history: escalations survive across runs and
// are resolved only through the Resolve operation.
package escalation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

var (
	// ErrNotFound signals an unknown escalation id.
	ErrNotFound = errors.New("escalation not found")
	// ErrAlreadyResolved signals an attempt to resolve a terminal record.
	ErrAlreadyResolved = errors.New("escalation already resolved")
	// ErrInvalidResolution signals a resolution outside approved|rejected|deferred.
	ErrInvalidResolution = errors.New("invalid resolution")
)

// Queue is a concurrency-safe in-memory HITL queue. Enqueue is idempotent per
// unresolved event: while a pending record exists for an event id, re-enqueueing
// that event returns the existing record unchanged. Once resolved, a later
// enqueue for the same event opens a fresh record with a sequence suffix so the
// audit trail keeps both.
type Queue struct {
	logger *slog.Logger
	now    func() time.Time

	mu             sync.RWMutex
	records        map[string]*models.EscalationRecord
	order          []string
	pendingByEvent map[string]string
	seqByEvent     map[string]int
}

// NewQueue constructs an empty queue.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
		records:        make(map[string]*models.EscalationRecord),
		pendingByEvent: make(map[string]string),
		seqByEvent:     make(map[string]int),
	}
}

// Enqueue creates a pending record for the signal, or returns the existing
// pending record for the same event id.
func (q *Queue) Enqueue(sig models.Signal, analysis models.Analysis) models.EscalationRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id, ok := q.pendingByEvent[sig.ID]; ok {
		return *q.records[id]
	}

	q.seqByEvent[sig.ID]++
	id := fmt.Sprintf("esc-%s", sig.ID)
	if seq := q.seqByEvent[sig.ID]; seq > 1 {
		id = fmt.Sprintf("esc-%s-%d", sig.ID, seq)
	}

	record := &models.EscalationRecord{
		EscalationID: id,
		EventID:      sig.ID,
		Signal:       sig,
		Analysis:     analysis,
		Status:       models.EscalationPending,
		CreatedAt:    q.now(),
	}
	q.records[id] = record
	q.order = append(q.order, id)
	q.pendingByEvent[sig.ID] = id

	q.logger.Debug("escalation enqueued",
		slog.String("escalation_id", id),
		slog.String("event_id", sig.ID),
		slog.String("severity", string(sig.Severity)))
	return *record
}

// Get returns the record with the given id.
func (q *Queue) Get(escalationID string) (models.EscalationRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	record, ok := q.records[escalationID]
	if !ok {
		return models.EscalationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, escalationID)
	}
	return *record, nil
}

// ListPending returns pending records in creation order.
func (q *Queue) ListPending() []models.EscalationRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	pending := make([]models.EscalationRecord, 0)
	for _, id := range q.order {
		if record := q.records[id]; record.Status == models.EscalationPending {
			pending = append(pending, *record)
		}
	}
	return pending
}

// ListAll returns every record, pending and resolved, in creation order.
func (q *Queue) ListAll() []models.EscalationRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	all := make([]models.EscalationRecord, 0, len(q.order))
	for _, id := range q.order {
		all = append(all, *q.records[id])
	}
	return all
}

// PendingCount returns the number of unresolved records.
func (q *Queue) PendingCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pendingByEvent)
}

// Resolve transitions a pending record to resolved. Resolution of an already
// resolved record fails without altering it; resolutions are never overwritten.
// On approval, invoking the executor is the caller's concern: the queue only
// records the decision.
func (q *Queue) Resolve(escalationID string, resolution models.Resolution, resolvedBy string) (models.EscalationRecord, error) {
	if !resolution.Valid() {
		return models.EscalationRecord{}, fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	record, ok := q.records[escalationID]
	if !ok {
		return models.EscalationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, escalationID)
	}
	if record.Status == models.EscalationResolved {
		return models.EscalationRecord{}, fmt.Errorf("%w: %s", ErrAlreadyResolved, escalationID)
	}

	resolvedAt := q.now()
	record.Status = models.EscalationResolved
	record.Resolution = resolution
	record.ResolvedBy = resolvedBy
	record.ResolvedAt = &resolvedAt
	delete(q.pendingByEvent, record.EventID)

	q.logger.Info("escalation resolved",
		slog.String("escalation_id", escalationID),
		slog.String("resolution", string(resolution)),
		slog.String("resolved_by", resolvedBy))
	return *record, nil
}
