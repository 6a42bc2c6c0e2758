package visit

import (
	"context"
	"sort"
	"sync"

	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// MemoryStore is the development and test implementation of Store.
type MemoryStore struct {
	mu     sync.RWMutex
	visits map[domain.VisitID]Visit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{visits: make(map[domain.VisitID]Visit)}
}

func (s *MemoryStore) Create(_ context.Context, v Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.visits[v.ID]; exists {
		return sentinel.ErrConflict
	}
	s.visits[v.ID] = cloneVisit(v)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.VisitID) (Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visits[id]
	if !ok {
		return Visit{}, sentinel.ErrNotFound
	}
	return cloneVisit(v), nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Visit
	for _, v := range s.visits {
		if filter.Status != nil && v.Status != *filter.Status {
			continue
		}
		if filter.OfficerID != nil && v.OfficerID != *filter.OfficerID {
			continue
		}
		if filter.CitizenID != nil && v.CitizenID != *filter.CitizenID {
			continue
		}
		if filter.From != nil && v.ScheduledAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && v.ScheduledAt.After(*filter.To) {
			continue
		}
		out = append(out, cloneVisit(v))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

func (s *MemoryStore) Transition(_ context.Context, v Visit, from Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.visits[v.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != from {
		return sentinel.ErrConflict
	}
	s.visits[v.ID] = cloneVisit(v)
	return nil
}

func (s *MemoryStore) HasInProgress(_ context.Context, officer domain.OfficerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.visits {
		if v.OfficerID == officer && v.Status == StatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Counts(_ context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int)
	for _, v := range s.visits {
		counts[v.Status]++
	}
	return counts, nil
}

// cloneVisit deep-copies the mutable slices so callers cannot alias store
// state.
func cloneVisit(v Visit) Visit {
	out := v
	if v.Timeline != nil {
		out.Timeline = make([]TimelineEntry, len(v.Timeline))
		copy(out.Timeline, v.Timeline)
	}
	if v.Cancellation != nil {
		c := *v.Cancellation
		out.Cancellation = &c
	}
	if v.RiskScore != nil {
		r := *v.RiskScore
		out.RiskScore = &r
	}
	if v.RequestRef != nil {
		ref := *v.RequestRef
		out.RequestRef = &ref
	}
	return out
}
