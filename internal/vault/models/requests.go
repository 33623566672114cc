package models

import (
	"custodia/pkg/domain"
)

// InitiateTransferRequest is the payload for proposing a transfer.
type InitiateTransferRequest struct {
	Recipient domain.Principal `json:"recipient"`
	Amount    int64            `json:"amount"`
}

// Validate enforces the input-level preconditions. Signer membership is the
// service's job; the handler only rejects payloads that can never be valid.
func (r *InitiateTransferRequest) Validate() error {
	if r.Recipient.IsNil() {
		return ErrInvalidRecipient
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ReplaceSignersRequest is the payload for swapping the signer set and quorum.
type ReplaceSignersRequest struct {
	Signers []domain.Principal `json:"signers"`
	Quorum  int                `json:"quorum"`
}

// InitiateTransferResponse returns the id allocated to a new proposal.
type InitiateTransferResponse struct {
	ID int64 `json:"id"`
}

// TransferCountResponse reports how many proposals the ledger holds.
type TransferCountResponse struct {
	Count int64 `json:"count"`
}

// ApprovalStatusResponse reports whether a principal approved a transfer.
type ApprovalStatusResponse struct {
	TransferID int64            `json:"transfer_id"`
	Principal  domain.Principal `json:"principal"`
	Approved   bool             `json:"approved"`
}

// SignersResponse exports the current registry.
type SignersResponse struct {
	Signers []domain.Principal `json:"signers"`
	Quorum  int                `json:"quorum"`
	Version int64              `json:"version"`
}

// BalanceResponse reports the treasury's available balance.
type BalanceResponse struct {
	Available int64 `json:"available"`
}
