package ledger

import (
	"context"
	"sync"

	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory is an append-only, index-addressed ledger in process memory.
// Proposal ids are slice indexes, which keeps the dense-id invariant trivially
// true.
type InMemory struct {
	mu        sync.RWMutex
	proposals []*models.Proposal
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append assigns the next sequential id and stores the proposal.
func (s *InMemory) Append(_ context.Context, proposal *models.Proposal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := int64(len(s.proposals))
	stored := proposal.Clone()
	stored.ID = id
	s.proposals = append(s.proposals, stored)
	return id, nil
}

// Get returns a snapshot of the proposal, or sentinel.ErrNotFound for an
// unknown id.
func (s *InMemory) Get(_ context.Context, id int64) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 0 || id >= int64(len(s.proposals)) {
		return nil, sentinel.ErrNotFound
	}
	return s.proposals[id].Clone(), nil
}

// AddApproval records an approval, keeping the count and the approver set in
// step.
func (s *InMemory) AddApproval(_ context.Context, id int64, approver domain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id >= int64(len(s.proposals)) {
		return sentinel.ErrNotFound
	}
	proposal := s.proposals[id]
	if proposal.ApprovedBy[approver] {
		return sentinel.ErrAlreadyUsed
	}
	proposal.ApprovedBy[approver] = true
	proposal.Approvals++
	return nil
}

// MarkExecuted flips the terminal flag.
func (s *InMemory) MarkExecuted(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id >= int64(len(s.proposals)) {
		return sentinel.ErrNotFound
	}
	if s.proposals[id].Executed {
		return sentinel.ErrInvalidState
	}
	s.proposals[id].Executed = true
	return nil
}

// Count returns the number of proposals ever created.
func (s *InMemory) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.proposals)), nil
}
