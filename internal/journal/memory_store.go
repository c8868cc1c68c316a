package journal

import (
	"context"
	"sync"
	"time"

	"github.com/mharju/stepline/pkg/flow"
)

// MemoryStore is a simple, goroutine-safe Store backed by maps. It is
// non-durable and intended for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]*flow.RunRecord
	order  []string
	events map[string][]flow.RunEvent
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]*flow.RunRecord),
		events: make(map[string][]flow.RunEvent),
	}
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) SaveRun(run *flow.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		s.order = append(s.order, run.RunID)
	}
	cp := *run
	s.runs[run.RunID] = &cp
	return nil
}

func (s *MemoryStore) UpdateRun(run *flow.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.RunID]; !ok {
		return ErrRunNotFound
	}
	cp := *run
	s.runs[run.RunID] = &cp
	return nil
}

func (s *MemoryStore) GetRun(id string) (*flow.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *MemoryStore) ListRuns(filter flow.RunFilter) ([]*flow.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*flow.RunRecord
	for _, id := range s.order {
		run := s.runs[id]
		if !matches(run, filter) {
			continue
		}
		cp := *run
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, ev flow.RunEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.RunID] = append(s.events[ev.RunID], ev)
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, runID string) ([]flow.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[runID]
	out := make([]flow.RunEvent, len(evs))
	copy(out, evs)
	return out, nil
}
