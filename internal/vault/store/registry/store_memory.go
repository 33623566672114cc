package registry

import (
	"context"
	"sync"

	"custodia/internal/vault/models"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps the registry in process memory. It favors clarity over
// performance and is the default in dev mode and unit tests.
type InMemory struct {
	mu       sync.RWMutex
	registry *models.Registry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Get returns a snapshot of the current registry.
func (s *InMemory) Get(_ context.Context) (*models.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registry == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.registry.Clone(), nil
}

// Replace installs the given registry wholesale, discarding the previous one.
func (s *InMemory) Replace(_ context.Context, registry *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = registry.Clone()
	return nil
}
