// Package history keeps a bounded, newest-first record of completed pipeline
// runs. Eviction of the oldest run is part of the contract, not an
// implementation detail: the store never grows past its capacity.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
)

// DefaultCapacity bounds the store when no capacity is configured.
const DefaultCapacity = 20

// ErrNotFound signals an unknown run id.
var ErrNotFound = errors.New("run not found")

// Store is a concurrency-safe, capacity-bounded run record. Append inserts at
// the front; runs are immutable once appended.
type Store struct {
	mu       sync.RWMutex
	capacity int
	runs     []models.Run
}

// NewStore creates a store holding at most capacity runs.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		runs:     make([]models.Run, 0, capacity),
	}
}

// Append inserts the run at the front, evicting the oldest run when full.
func (s *Store) Append(run models.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) == s.capacity {
		copy(s.runs[1:], s.runs)
		s.runs[0] = run
		return
	}
	s.runs = append(s.runs, models.Run{})
	copy(s.runs[1:], s.runs)
	s.runs[0] = run
}

// Get returns the run with the given id.
func (s *Store) Get(runID string) (models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.RunID == runID {
			return run, nil
		}
	}
	return models.Run{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
}

// List returns all stored runs, newest first.
func (s *Store) List() []models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.Run(nil), s.runs...)
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
