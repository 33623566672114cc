package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/platform/middleware"
	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// Service defines the engine operations the transport layer needs.
type Service interface {
	InitiateTransfer(ctx context.Context, caller, recipient domain.Principal, amount int64) (int64, error)
	ApproveTransfer(ctx context.Context, caller domain.Principal, id int64) error
	ExecuteTransfer(ctx context.Context, caller domain.Principal, id int64) error
	ReplaceSigners(ctx context.Context, caller domain.Principal, newSigners []domain.Principal, newQuorum int) error
	GetTransfer(ctx context.Context, id int64) (*models.Proposal, error)
	HasApproved(ctx context.Context, id int64, principal domain.Principal) (bool, error)
	TransferCount(ctx context.Context) (int64, error)
	Signers(ctx context.Context) (*models.Registry, error)
	AvailableBalance(ctx context.Context) (int64, error)
}

// Handler exposes the vault engine over HTTP. It stays thin: request decoding
// and principal extraction here, protocol rules in the service.
type Handler struct {
	vault     Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

// New creates a vault Handler.
func New(vault Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		vault:     vault,
		logger:    logger,
		validator: validator,
	}
}

// Register mounts the vault routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	vaultRouter := chi.NewRouter()
	vaultRouter.Use(middleware.Recovery(h.logger))
	vaultRouter.Use(middleware.RequestID)
	vaultRouter.Use(middleware.Logger(h.logger))
	vaultRouter.Use(middleware.Timeout(30 * time.Second))
	vaultRouter.Use(middleware.ContentTypeJSON)
	vaultRouter.Use(middleware.RequireAuth(h.validator, h.logger))

	vaultRouter.Post("/vault/transfers", h.handleInitiateTransfer)
	vaultRouter.Post("/vault/transfers/{id}/approvals", h.handleApproveTransfer)
	vaultRouter.Post("/vault/transfers/{id}/execution", h.handleExecuteTransfer)
	vaultRouter.Get("/vault/transfers/count", h.handleTransferCount)
	vaultRouter.Get("/vault/transfers/{id}", h.handleGetTransfer)
	vaultRouter.Get("/vault/transfers/{id}/approvals/{principal}", h.handleApprovalStatus)
	vaultRouter.Get("/vault/signers", h.handleGetSigners)
	vaultRouter.Put("/vault/signers", h.handleReplaceSigners)
	vaultRouter.Get("/vault/balance", h.handleBalance)

	r.Mount("/", vaultRouter)
}

func (h *Handler) handleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.InitiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.vault.InitiateTransfer(ctx, caller, req.Recipient, req.Amount)
	if err != nil {
		h.writeServiceError(w, r, "failed to initiate transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.InitiateTransferResponse{ID: id})
}

func (h *Handler) handleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}

	if err := h.vault.ApproveTransfer(r.Context(), caller, id); err != nil {
		h.writeServiceError(w, r, "failed to approve transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExecuteTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}

	if err := h.vault.ExecuteTransfer(r.Context(), caller, id); err != nil {
		h.writeServiceError(w, r, "failed to execute transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReplaceSigners(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.ReplaceSignersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.vault.ReplaceSigners(r.Context(), caller, req.Signers, req.Quorum); err != nil {
		h.writeServiceError(w, r, "failed to replace signers", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}

	proposal, err := h.vault.GetTransfer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "failed to load transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proposal)
}

func (h *Handler) handleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	approved, err := h.vault.HasApproved(r.Context(), id, principal)
	if err != nil {
		h.writeServiceError(w, r, "failed to load approval status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ApprovalStatusResponse{
		TransferID: id,
		Principal:  principal,
		Approved:   approved,
	})
}

func (h *Handler) handleTransferCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.vault.TransferCount(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to count transfers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.TransferCountResponse{Count: count})
}

func (h *Handler) handleGetSigners(w http.ResponseWriter, r *http.Request) {
	registry, err := h.vault.Signers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to load signers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SignersResponse{
		Signers: registry.Signers(),
		Quorum:  registry.Quorum,
		Version: registry.Version,
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	available, err := h.vault.AvailableBalance(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to query balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.BalanceResponse{Available: available})
}

// caller extracts the authenticated principal set by the auth middleware.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsNil() {
		// Should never happen behind RequireAuth.
		h.logger.ErrorContext(r.Context(), "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.NilPrincipal, false
	}
	return caller, true
}

func (h *Handler) transferID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid transfer id %q", raw))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(r.Context(), msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
