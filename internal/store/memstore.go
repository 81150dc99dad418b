package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is the in-memory store used in dev mode and tests.
type MemStore struct {
	mu        sync.RWMutex
	instances map[string]ConnectorInstance
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{instances: make(map[string]ConnectorInstance)}
}

func (s *MemStore) Create(_ context.Context, inst ConnectorInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (ConnectorInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return ConnectorInstance{}, &NotFoundError{ID: id}
	}
	return inst.Clone(), nil
}

func (s *MemStore) ListByWorkspace(_ context.Context, workspaceID string) ([]ConnectorInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConnectorInstance, 0)
	for _, inst := range s.instances {
		if inst.WorkspaceID == workspaceID {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) Update(_ context.Context, inst ConnectorInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.instances[inst.ID]
	if !ok {
		return &NotFoundError{ID: inst.ID}
	}
	updated := inst.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.instances[inst.ID] = updated
	return nil
}

func (s *MemStore) SetStatus(_ context.Context, id string, status Status, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	inst.Status = status.Normalize()
	inst.LastError = lastError
	inst.UpdatedAt = time.Now().UTC()
	s.instances[id] = inst
	return nil
}

func (s *MemStore) SetLastTested(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	at = at.UTC()
	inst.LastTested = &at
	inst.UpdatedAt = time.Now().UTC()
	s.instances[id] = inst
	return nil
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, id)
	return nil
}

func (s *MemStore) ResetTransientStatuses(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, inst := range s.instances {
		if inst.Status == StatusConnecting || inst.Status == StatusConnected {
			inst.Status = StatusDisconnected
			inst.UpdatedAt = time.Now().UTC()
			s.instances[id] = inst
		}
	}
	return nil
}
