// Package service implements the vault authorization engine: the signer
// registry, the transfer ledger protocol, and the execution path against the
// treasury collaborator.
//
// Every state-mutating operation runs under a single mutex, giving the
// serialized single-writer semantics the protocol requires: no two mutations
// ever interleave partially, and an execution attempt observes registry,
// ledger, and balance as one consistent snapshot.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/treasury"
	"custodia/internal/vault/metrics"
	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// RegistryStore persists the signer registry.
type RegistryStore interface {
	Get(ctx context.Context) (*models.Registry, error)
	Replace(ctx context.Context, registry *models.Registry) error
}

// LedgerStore persists transfer proposals and their approval state.
type LedgerStore interface {
	Append(ctx context.Context, proposal *models.Proposal) (int64, error)
	Get(ctx context.Context, id int64) (*models.Proposal, error)
	AddApproval(ctx context.Context, id int64, approver domain.Principal) error
	MarkExecuted(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// Emitter receives engine notifications. Satisfied by the audit publisher.
type Emitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	// mu serializes all mutating operations (initiate, approve, execute,
	// replace signers). Reads go straight to the stores, which snapshot
	// internally.
	mu sync.Mutex

	registry RegistryStore
	ledger   LedgerStore
	funds    treasury.Treasury
	events   Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(events Emitter) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(registry RegistryStore, ledger LedgerStore, funds treasury.Treasury, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if funds == nil {
		return nil, fmt.Errorf("treasury is required")
	}

	svc := &Service{
		registry: registry,
		ledger:   ledger,
		funds:    funds,
		logger:   slog.Default(),
		tracer:   otel.Tracer("custodia/internal/vault"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Bootstrap installs the initial signer set and quorum when no registry
// exists yet. It is a no-op when one is already persisted, so restarting a
// durable deployment never resets authority.
func (s *Service) Bootstrap(ctx context.Context, signers []domain.Principal, quorum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.registry.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
	}

	registry, err := models.NewRegistry(signers, quorum)
	if err != nil {
		return err
	}
	registry.Version = 1
	if err := s.registry.Replace(ctx, registry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to install registry")
	}
	s.logger.InfoContext(ctx, "registry bootstrapped",
		"signers", len(registry.Order),
		"quorum", registry.Quorum,
	)
	return nil
}

// InitiateTransfer creates a proposal, auto-approved by its creator, and
// returns the new dense id. Creation and the creator's approval are one
// atomic transition so the approvals count matches the approver set from the
// first observable state.
func (s *Service) InitiateTransfer(ctx context.Context, caller, recipient domain.Principal, amount int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "vault.InitiateTransfer")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSigner(ctx, caller); err != nil {
		return 0, err
	}
	if recipient.IsNil() {
		return 0, models.ErrInvalidRecipient
	}
	if amount <= 0 {
		return 0, models.ErrInvalidAmount
	}

	proposal := &models.Proposal{
		Recipient:  recipient,
		Amount:     amount,
		Approvals:  1,
		ApprovedBy: map[domain.Principal]bool{caller: true},
		CreatedAt:  requestcontext.Now(ctx),
	}
	id, err := s.ledger.Append(ctx, proposal)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append transfer")
	}

	if s.metrics != nil {
		s.metrics.IncrementInitiated()
	}
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventTransferInitiated),
		Category:   audit.CategoryFor(audit.EventTransferInitiated),
		Actor:      caller,
		TransferID: &id,
		Recipient:  recipient,
		Amount:     amount,
		RequestID:  requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "transfer initiated",
		"transfer_id", id,
		"recipient", recipient,
		"amount", amount,
	)
	return id, nil
}

// ApproveTransfer records one signer's approval. Reaching quorum never
// auto-executes: approval and execution are deliberately decoupled.
func (s *Service) ApproveTransfer(ctx context.Context, caller domain.Principal, id int64) error {
	ctx, span := s.tracer.Start(ctx, "vault.ApproveTransfer")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSigner(ctx, caller); err != nil {
		return err
	}

	proposal, err := s.ledger.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "transfer %d does not exist", id)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer")
	}
	if proposal.Executed {
		return fmt.Errorf("transfer %d: %w", id, models.ErrAlreadyExecuted)
	}
	if proposal.HasApproved(caller) {
		return fmt.Errorf("signer %s: %w", caller, models.ErrAlreadyApproved)
	}

	if err := s.ledger.AddApproval(ctx, id, caller); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record approval")
	}

	if s.metrics != nil {
		s.metrics.IncrementApproved()
	}
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventTransferApproved),
		Category:   audit.CategoryFor(audit.EventTransferApproved),
		Actor:      caller,
		TransferID: &id,
		RequestID:  requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "transfer approved",
		"transfer_id", id,
		"approver", caller,
	)
	return nil
}

// ExecuteTransfer releases the funds for a proposal that has met quorum. The
// quorum is re-read from the live registry at execution time, so a quorum
// raised after approval raises the bar for unexecuted proposals too. A failed
// release leaves the proposal unexecuted and re-attemptable.
func (s *Service) ExecuteTransfer(ctx context.Context, caller domain.Principal, id int64) error {
	ctx, span := s.tracer.Start(ctx, "vault.ExecuteTransfer")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	registry, err := s.loadRegistry(ctx)
	if err != nil {
		return err
	}
	if !registry.IsSigner(caller) {
		return models.ErrNotASigner
	}

	proposal, err := s.ledger.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "transfer %d does not exist", id)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer")
	}

	// Quorum is checked before the executed flag: if a registry replacement
	// raised the quorum above an executed proposal's recorded approvals, the
	// quorum failure wins, matching the reference precedence.
	if proposal.Approvals < registry.Quorum {
		return fmt.Errorf("transfer %d has %d of %d approvals: %w",
			id, proposal.Approvals, registry.Quorum, models.ErrQuorumNotReached)
	}
	if proposal.Executed {
		return fmt.Errorf("transfer %d: %w", id, models.ErrAlreadyExecuted)
	}

	available, err := s.funds.AvailableBalance(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to query balance")
	}
	if proposal.Amount > available {
		return fmt.Errorf("available %d, requested %d: %w",
			available, proposal.Amount, models.ErrInsufficientBalance)
	}

	if err := s.funds.Release(ctx, proposal.Recipient, proposal.Amount); err != nil {
		s.logger.WarnContext(ctx, "funds release failed",
			"transfer_id", id,
			"error", err,
		)
		return fmt.Errorf("transfer %d: %w", id, models.ErrExecutionFailed)
	}

	if err := s.ledger.MarkExecuted(ctx, id); err != nil {
		// Funds moved but the terminal flag could not be written. Surface the
		// fault loudly; the ledger must be repaired before this id is retried.
		s.logger.ErrorContext(ctx, "released funds but failed to mark transfer executed",
			"transfer_id", id,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize transfer")
	}

	if s.metrics != nil {
		s.metrics.IncrementExecuted(proposal.Amount)
	}
	s.emit(ctx, audit.Event{
		Action:     string(audit.EventTransferExecuted),
		Category:   audit.CategoryFor(audit.EventTransferExecuted),
		Actor:      caller,
		TransferID: &id,
		Recipient:  proposal.Recipient,
		Amount:     proposal.Amount,
		RequestID:  requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "transfer executed",
		"transfer_id", id,
		"recipient", proposal.Recipient,
		"amount", proposal.Amount,
	)
	return nil
}

// ReplaceSigners atomically swaps the signer set and quorum. Membership is
// revoked wholesale and rebuilt from the new list. The ledger is untouched:
// open proposals survive a replacement and are judged against the new quorum
// at execution time.
func (s *Service) ReplaceSigners(ctx context.Context, caller domain.Principal, newSigners []domain.Principal, newQuorum int) error {
	ctx, span := s.tracer.Start(ctx, "vault.ReplaceSigners")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadRegistry(ctx)
	if err != nil {
		return err
	}
	if !current.IsSigner(caller) {
		return models.ErrNotASigner
	}

	replacement, err := models.NewRegistry(newSigners, newQuorum)
	if err != nil {
		return err
	}
	for _, signer := range newSigners {
		if signer.IsNil() {
			return models.ErrZeroAddressSigner
		}
	}
	replacement.Version = current.Version + 1

	if err := s.registry.Replace(ctx, replacement); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to replace signers")
	}

	if s.metrics != nil {
		s.metrics.IncrementRegistryReplacements()
	}
	requestID := requestcontext.RequestID(ctx)
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventSignersUpdated),
		Category:  audit.CategoryFor(audit.EventSignersUpdated),
		Actor:     caller,
		RequestID: requestID,
	})
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventQuorumUpdated),
		Category:  audit.CategoryFor(audit.EventQuorumUpdated),
		Actor:     caller,
		Quorum:    newQuorum,
		RequestID: requestID,
	})
	s.logger.InfoContext(ctx, "signer set replaced",
		"signers", len(replacement.Order),
		"quorum", replacement.Quorum,
		"version", replacement.Version,
	)
	return nil
}

// GetTransfer returns the proposal for id. Unknown ids yield a zero-valued
// proposal rather than an error, preserving the permissive read behavior of
// the reference ledger.
func (s *Service) GetTransfer(ctx context.Context, id int64) (*models.Proposal, error) {
	proposal, err := s.ledger.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &models.Proposal{ID: id, ApprovedBy: map[domain.Principal]bool{}}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer")
	}
	return proposal, nil
}

// HasApproved reports whether principal approved transfer id. Unknown ids
// yield false, matching GetTransfer's permissive defaults.
func (s *Service) HasApproved(ctx context.Context, id int64, principal domain.Principal) (bool, error) {
	proposal, err := s.GetTransfer(ctx, id)
	if err != nil {
		return false, err
	}
	return proposal.HasApproved(principal), nil
}

// TransferCount returns the total number of proposals ever created.
func (s *Service) TransferCount(ctx context.Context) (int64, error) {
	count, err := s.ledger.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count transfers")
	}
	return count, nil
}

// Signers returns a snapshot of the current registry.
func (s *Service) Signers(ctx context.Context) (*models.Registry, error) {
	return s.loadRegistry(ctx)
}

// IsSigner reports whether principal is a current signer.
func (s *Service) IsSigner(ctx context.Context, principal domain.Principal) (bool, error) {
	registry, err := s.loadRegistry(ctx)
	if err != nil {
		return false, err
	}
	return registry.IsSigner(principal), nil
}

// AvailableBalance exposes the treasury's balance for the read surface.
func (s *Service) AvailableBalance(ctx context.Context) (int64, error) {
	available, err := s.funds.AvailableBalance(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query balance")
	}
	return available, nil
}

func (s *Service) requireSigner(ctx context.Context, caller domain.Principal) error {
	registry, err := s.loadRegistry(ctx)
	if err != nil {
		return err
	}
	if !registry.IsSigner(caller) {
		return models.ErrNotASigner
	}
	return nil
}

func (s *Service) loadRegistry(ctx context.Context) (*models.Registry, error) {
	registry, err := s.registry.Get(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registry not initialized")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
	}
	return registry, nil
}

// emit forwards a notification. Notifications are observability only; a
// failing emitter never fails the operation that produced the event.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit vault event",
			"action", event.Action,
			"error", err,
		)
	}
}
