package models

import (
	dErrors "custodia/pkg/domain-errors"
)

// Engine failure modes. Every one is a precondition violation: the engine
// validates before it writes, so a failing operation leaves no partial state.
// Services return these directly or wrapped with %w so callers can match with
// errors.Is while transport layers map the embedded codes.
var (
	// Configuration errors (construction / replacement time).
	ErrEmptySignerSet           = dErrors.New(dErrors.CodeInvalidInput, "signer set is empty")
	ErrZeroQuorum               = dErrors.New(dErrors.CodeInvalidInput, "quorum must be greater than zero")
	ErrQuorumExceedsSignerCount = dErrors.New(dErrors.CodeInvalidInput, "quorum exceeds signer count")
	ErrZeroAddressSigner        = dErrors.New(dErrors.CodeInvalidInput, "signer cannot be the null principal")

	// Authorization errors.
	ErrNotASigner = dErrors.New(dErrors.CodeForbidden, "caller is not a registered signer")

	// Input errors.
	ErrInvalidRecipient = dErrors.New(dErrors.CodeInvalidInput, "recipient cannot be the null principal")
	ErrInvalidAmount    = dErrors.New(dErrors.CodeInvalidInput, "amount must be greater than zero")

	// State-conflict errors.
	ErrAlreadyApproved  = dErrors.New(dErrors.CodeConflict, "caller already approved this transfer")
	ErrAlreadyExecuted  = dErrors.New(dErrors.CodeConflict, "transfer already executed")
	ErrQuorumNotReached = dErrors.New(dErrors.CodeFailedPrecondition, "approvals below quorum")

	// Resource errors.
	ErrInsufficientBalance = dErrors.New(dErrors.CodeInsufficientFunds, "vault balance below requested amount")
	ErrExecutionFailed     = dErrors.New(dErrors.CodeUnavailable, "funds release failed")
)
