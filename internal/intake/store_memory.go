package intake

import (
	"context"
	"sort"
	"sync"

	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// MemoryStore keeps requests in process memory. Used by tests and by
// deployments without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[domain.VisitRequestID]VisitRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[domain.VisitRequestID]VisitRequest)}
}

func (s *MemoryStore) Create(_ context.Context, r VisitRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = cloneRequest(r)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.VisitRequestID) (VisitRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return VisitRequest{}, sentinel.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]VisitRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]VisitRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.CitizenRef != nil && (r.CitizenRef == nil || *r.CitizenRef != *filter.CitizenRef) {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Transition(_ context.Context, r VisitRequest, from RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != from {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = cloneRequest(r)
	return nil
}

func (s *MemoryStore) Counts(_ context.Context) (map[RequestStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[RequestStatus]int)
	for _, r := range s.requests {
		counts[r.Status]++
	}
	return counts, nil
}

func cloneRequest(r VisitRequest) VisitRequest {
	if r.CitizenRef != nil {
		ref := *r.CitizenRef
		r.CitizenRef = &ref
	}
	if r.RegistrationRef != nil {
		ref := *r.RegistrationRef
		r.RegistrationRef = &ref
	}
	if r.BoundVisit != nil {
		ref := *r.BoundVisit
		r.BoundVisit = &ref
	}
	return r
}
