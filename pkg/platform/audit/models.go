package audit

import (
	"context"
	"time"

	"custodia/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: executed transfers, signer set replacements, quorum changes.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	// Examples: transfer proposals, individual approvals.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the vault engine to capture authorization activity.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory    `json:"category"`
	Timestamp time.Time        `json:"timestamp"`
	Action    string           `json:"action"`
	Actor     domain.Principal `json:"actor"`
	// TransferID is set for ledger events and absent for registry events.
	TransferID *int64           `json:"transfer_id,omitempty"`
	Recipient  domain.Principal `json:"recipient,omitempty"`
	Amount     int64            `json:"amount,omitempty"`
	Quorum     int              `json:"quorum,omitempty"`
	// RequestID is the correlation ID from HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

// VaultEvent names the notifications the engine emits.
type VaultEvent string

const (
	EventTransferInitiated VaultEvent = "transfer_initiated"
	EventTransferApproved  VaultEvent = "transfer_approved"
	EventTransferExecuted  VaultEvent = "transfer_executed"
	EventSignersUpdated    VaultEvent = "signers_updated"
	EventQuorumUpdated     VaultEvent = "quorum_updated"
)

// eventCategories maps each vault event to its category.
// Compliance: value movement and authority changes, long retention required.
// Operations: routine proposal activity, can be sampled.
var eventCategories = map[VaultEvent]EventCategory{
	EventTransferExecuted: CategoryCompliance,
	EventSignersUpdated:   CategoryCompliance,
	EventQuorumUpdated:    CategoryCompliance,

	EventTransferInitiated: CategoryOperations,
	EventTransferApproved:  CategoryOperations,
}

// CategoryFor returns the category for a vault event, defaulting to operations
// for unknown actions.
func CategoryFor(event VaultEvent) EventCategory {
	if c, ok := eventCategories[event]; ok {
		return c
	}
	return CategoryOperations
}

// Sink receives audit events. Stores, brokers, and test doubles implement it.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a queryable sink backed by durable (or in-memory) storage.
type Store interface {
	Sink
	ListByTransfer(ctx context.Context, transferID int64) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
