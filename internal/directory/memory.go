package directory

import (
	"context"
	"sync"

	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// Memory is an in-memory directory used by development mode and tests.
type Memory struct {
	mu       sync.RWMutex
	citizens map[domain.CitizenID]Citizen
	officers map[domain.OfficerID]Officer
}

func NewMemory() *Memory {
	return &Memory{
		citizens: make(map[domain.CitizenID]Citizen),
		officers: make(map[domain.OfficerID]Officer),
	}
}

func (m *Memory) PutCitizen(c Citizen) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.citizens[c.ID] = c
}

func (m *Memory) PutOfficer(o Officer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.officers[o.ID] = o
}

func (m *Memory) GetCitizen(_ context.Context, id domain.CitizenID) (Citizen, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.citizens[id]
	if !ok {
		return Citizen{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (m *Memory) GetOfficer(_ context.Context, id domain.OfficerID) (Officer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.officers[id]
	if !ok {
		return Officer{}, sentinel.ErrNotFound
	}
	return o, nil
}
