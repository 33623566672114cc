package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/pkg/domain"
)

func TestNewRegistry(t *testing.T) {
	t.Run("rejects empty list before inspecting quorum", func(t *testing.T) {
		_, err := NewRegistry(nil, 0)
		require.ErrorIs(t, err, ErrEmptySignerSet)
	})

	t.Run("rejects zero and negative quorum", func(t *testing.T) {
		signers := []domain.Principal{domain.NewPrincipal()}
		_, err := NewRegistry(signers, 0)
		require.ErrorIs(t, err, ErrZeroQuorum)
		_, err = NewRegistry(signers, -1)
		require.ErrorIs(t, err, ErrZeroQuorum)
	})

	t.Run("rejects quorum above list length", func(t *testing.T) {
		signers := []domain.Principal{domain.NewPrincipal(), domain.NewPrincipal()}
		_, err := NewRegistry(signers, 3)
		require.ErrorIs(t, err, ErrQuorumExceedsSignerCount)
	})

	t.Run("quorum bound uses list length, not distinct count", func(t *testing.T) {
		dup := domain.NewPrincipal()
		registry, err := NewRegistry([]domain.Principal{dup, dup}, 2)
		require.NoError(t, err)
		assert.Len(t, registry.Members, 1)
		assert.Equal(t, []domain.Principal{dup, dup}, registry.Signers())
		assert.Equal(t, 2, registry.Quorum)
	})

	t.Run("preserves enumeration order", func(t *testing.T) {
		a, b, c := domain.NewPrincipal(), domain.NewPrincipal(), domain.NewPrincipal()
		registry, err := NewRegistry([]domain.Principal{c, a, b}, 2)
		require.NoError(t, err)
		assert.Equal(t, []domain.Principal{c, a, b}, registry.Signers())
		assert.True(t, registry.IsSigner(a))
		assert.False(t, registry.IsSigner(domain.NewPrincipal()))
	})
}

func TestRegistryClone(t *testing.T) {
	registry, err := NewRegistry([]domain.Principal{domain.NewPrincipal()}, 1)
	require.NoError(t, err)
	registry.Version = 3

	clone := registry.Clone()
	clone.Members[domain.NewPrincipal()] = true
	clone.Order = append(clone.Order, domain.NewPrincipal())
	clone.Quorum = 9

	assert.Len(t, registry.Members, 1)
	assert.Len(t, registry.Order, 1)
	assert.Equal(t, 1, registry.Quorum)
	assert.Equal(t, int64(3), registry.Version)
}

func TestProposalClone(t *testing.T) {
	creator := domain.NewPrincipal()
	proposal := &Proposal{
		ID:         4,
		Recipient:  domain.NewPrincipal(),
		Amount:     250,
		Approvals:  1,
		ApprovedBy: map[domain.Principal]bool{creator: true},
	}

	clone := proposal.Clone()
	clone.ApprovedBy[domain.NewPrincipal()] = true
	clone.Approvals = 2
	clone.Executed = true

	assert.Len(t, proposal.ApprovedBy, 1)
	assert.Equal(t, 1, proposal.Approvals)
	assert.False(t, proposal.Executed)
	assert.True(t, proposal.HasApproved(creator))
	assert.False(t, proposal.HasApproved(domain.NewPrincipal()))
}
