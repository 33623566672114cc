package models

import (
	"time"

	"custodia/pkg/domain"
)

// Proposal is one entry in the transfer ledger. Entries are append-only and
// are never deleted; an executed proposal stays addressable by its id forever
// for audit.
type Proposal struct {
	// ID is dense and monotonically increasing (0, 1, 2, ...), assigned at
	// creation and never reused.
	ID        int64            `json:"id"`
	Recipient domain.Principal `json:"recipient"`
	Amount    int64            `json:"amount"`
	// Approvals counts distinct approving signers. Invariant: equals the size
	// of ApprovedBy at all times.
	Approvals int `json:"approvals"`
	// ApprovedBy is the per-proposal set of principals that approved. Owned by
	// the proposal rather than a global sparse structure so entries stay
	// self-contained.
	ApprovedBy map[domain.Principal]bool `json:"approved_by"`
	// Executed is false until the release succeeds, then permanently true.
	Executed  bool      `json:"executed"`
	CreatedAt time.Time `json:"created_at"`
}

// HasApproved reports whether the principal already approved this proposal.
func (p *Proposal) HasApproved(principal domain.Principal) bool {
	return p.ApprovedBy[principal]
}

// Clone returns a deep copy so stores can hand out snapshots without aliasing
// their internal state.
func (p *Proposal) Clone() *Proposal {
	approvedBy := make(map[domain.Principal]bool, len(p.ApprovedBy))
	for principal, ok := range p.ApprovedBy {
		approvedBy[principal] = ok
	}
	cp := *p
	cp.ApprovedBy = approvedBy
	return &cp
}

// Registry is the current signer set and quorum. It is replaced wholesale by
// an authorized update; Version increases by one per replacement so stores and
// consumers can tell generations apart.
type Registry struct {
	// Members is the membership set; duplicates in the input collapse here.
	Members map[domain.Principal]bool `json:"-"`
	// Order preserves the caller-supplied enumeration, including duplicates.
	// Used only for export and replacement bookkeeping, never for membership
	// checks.
	Order []domain.Principal `json:"signers"`
	// Quorum is the minimum count of distinct approvals required to execute.
	// Invariant: 1 <= Quorum <= len(input signer list).
	Quorum  int   `json:"quorum"`
	Version int64 `json:"version"`
}

// NewRegistry validates and builds a registry from a caller-supplied signer
// list. Duplicate entries collapse silently into the membership set while the
// enumeration order keeps every entry as given. The quorum bound is checked
// against the input list length, matching the reference behavior when the
// input contains duplicates.
func NewRegistry(signers []domain.Principal, quorum int) (*Registry, error) {
	if len(signers) == 0 {
		return nil, ErrEmptySignerSet
	}
	if quorum <= 0 {
		return nil, ErrZeroQuorum
	}
	if quorum > len(signers) {
		return nil, ErrQuorumExceedsSignerCount
	}

	members := make(map[domain.Principal]bool, len(signers))
	order := make([]domain.Principal, 0, len(signers))
	for _, s := range signers {
		members[s] = true
		order = append(order, s)
	}
	return &Registry{Members: members, Order: order, Quorum: quorum}, nil
}

// IsSigner reports whether the principal is a current member.
func (r *Registry) IsSigner(p domain.Principal) bool {
	return r.Members[p]
}

// Signers returns a copy of the enumeration order.
func (r *Registry) Signers() []domain.Principal {
	return append([]domain.Principal{}, r.Order...)
}

// Clone returns a deep copy for store snapshots.
func (r *Registry) Clone() *Registry {
	members := make(map[domain.Principal]bool, len(r.Members))
	for p := range r.Members {
		members[p] = true
	}
	return &Registry{
		Members: members,
		Order:   append([]domain.Principal{}, r.Order...),
		Quorum:  r.Quorum,
		Version: r.Version,
	}
}
