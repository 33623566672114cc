package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/platform/middleware"
	"custodia/internal/treasury"
	"custodia/internal/vault/models"
	"custodia/internal/vault/service"
	ledgerstore "custodia/internal/vault/store/ledger"
	registrystore "custodia/internal/vault/store/registry"
	"custodia/pkg/domain"
)

type testServer struct {
	router    chi.Router
	validator *middleware.HS256Validator
	signers   []domain.Principal
	funds     *treasury.InMemory
}

func newTestServer(t *testing.T, signerCount, quorum int, balance int64) *testServer {
	t.Helper()

	signers := make([]domain.Principal, 0, signerCount)
	for range signerCount {
		signers = append(signers, domain.NewPrincipal())
	}

	funds := treasury.NewInMemory(balance)
	svc, err := service.New(registrystore.NewInMemory(), ledgerstore.NewInMemory(), funds)
	require.NoError(t, err)
	require.NoError(t, svc.Bootstrap(context.Background(), signers, quorum))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := middleware.NewHS256Validator("test-signing-key")

	router := chi.NewRouter()
	New(svc, logger, validator).Register(router)

	return &testServer{router: router, validator: validator, signers: signers, funds: funds}
}

// do issues an authenticated request as the given principal and returns the
// recorded response.
func (ts *testServer) do(t *testing.T, as domain.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := ts.validator.IssueToken(as)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (ts *testServer) initiate(t *testing.T, as domain.Principal, recipient domain.Principal, amount int64) int64 {
	t.Helper()
	rec := ts.do(t, as, http.MethodPost, "/vault/transfers", models.InitiateTransferRequest{
		Recipient: recipient,
		Amount:    amount,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeJSON[models.InitiateTransferResponse](t, rec).ID
}

func TestInitiateTransferEndpoint(t *testing.T) {
	t.Run("creates and returns the new id", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		id := ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 100)
		assert.Equal(t, int64(0), id)
	})

	t.Run("requires a token", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		req := httptest.NewRequest(http.MethodPost, "/vault/transfers", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a forged token", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		other := middleware.NewHS256Validator("wrong-key")
		token, err := other.IssueToken(ts.signers[0])
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/vault/transfers", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects non-signer with 403", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		rec := ts.do(t, domain.NewPrincipal(), http.MethodPost, "/vault/transfers",
			models.InitiateTransferRequest{Recipient: domain.NewPrincipal(), Amount: 100})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects invalid payloads with 400", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)

		rec := ts.do(t, ts.signers[0], http.MethodPost, "/vault/transfers",
			models.InitiateTransferRequest{Recipient: domain.NewPrincipal(), Amount: 0})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = ts.do(t, ts.signers[0], http.MethodPost, "/vault/transfers",
			models.InitiateTransferRequest{Recipient: domain.NilPrincipal, Amount: 100})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestApproveAndExecuteEndpoints(t *testing.T) {
	t.Run("approval then execution moves funds", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		id := ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 400)

		rec := ts.do(t, ts.signers[1], http.MethodPost, fmt.Sprintf("/vault/transfers/%d/approvals", id), nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = ts.do(t, ts.signers[2], http.MethodPost, fmt.Sprintf("/vault/transfers/%d/execution", id), nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = ts.do(t, ts.signers[0], http.MethodGet, "/vault/balance", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(600), decodeJSON[models.BalanceResponse](t, rec).Available)
	})

	t.Run("duplicate approval returns 409", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		id := ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 100)

		rec := ts.do(t, ts.signers[0], http.MethodPost, fmt.Sprintf("/vault/transfers/%d/approvals", id), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("execution below quorum returns 422", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		id := ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 100)

		rec := ts.do(t, ts.signers[0], http.MethodPost, fmt.Sprintf("/vault/transfers/%d/execution", id), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("execution beyond balance returns 422", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 50)
		id := ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 100)

		rec := ts.do(t, ts.signers[1], http.MethodPost, fmt.Sprintf("/vault/transfers/%d/approvals", id), nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, ts.signers[2], http.MethodPost, fmt.Sprintf("/vault/transfers/%d/execution", id), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("approving an unknown id returns 404", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		rec := ts.do(t, ts.signers[0], http.MethodPost, "/vault/transfers/42/approvals", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		rec := ts.do(t, ts.signers[0], http.MethodPost, "/vault/transfers/abc/approvals", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = ts.do(t, ts.signers[0], http.MethodPost, "/vault/transfers/-1/approvals", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReadEndpoints(t *testing.T) {
	t.Run("get transfer returns the proposal", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		recipient := domain.NewPrincipal()
		id := ts.initiate(t, ts.signers[0], recipient, 250)

		rec := ts.do(t, ts.signers[1], http.MethodGet, fmt.Sprintf("/vault/transfers/%d", id), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		proposal := decodeJSON[models.Proposal](t, rec)
		assert.Equal(t, id, proposal.ID)
		assert.Equal(t, recipient, proposal.Recipient)
		assert.Equal(t, int64(250), proposal.Amount)
		assert.Equal(t, 1, proposal.Approvals)
		assert.False(t, proposal.Executed)
	})

	t.Run("unknown transfer reads as zero-valued, not 404", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		rec := ts.do(t, ts.signers[0], http.MethodGet, "/vault/transfers/99", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		proposal := decodeJSON[models.Proposal](t, rec)
		assert.Equal(t, int64(99), proposal.ID)
		assert.Zero(t, proposal.Amount)
		assert.False(t, proposal.Executed)
	})

	t.Run("count reflects total proposals", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 10)
		ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 20)

		rec := ts.do(t, ts.signers[0], http.MethodGet, "/vault/transfers/count", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(2), decodeJSON[models.TransferCountResponse](t, rec).Count)
	})

	t.Run("approval status is per principal", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		id := ts.initiate(t, ts.signers[0], domain.NewPrincipal(), 100)

		rec := ts.do(t, ts.signers[1], http.MethodGet,
			fmt.Sprintf("/vault/transfers/%d/approvals/%s", id, ts.signers[0]), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeJSON[models.ApprovalStatusResponse](t, rec).Approved)

		rec = ts.do(t, ts.signers[1], http.MethodGet,
			fmt.Sprintf("/vault/transfers/%d/approvals/%s", id, ts.signers[1]), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeJSON[models.ApprovalStatusResponse](t, rec).Approved)
	})

	t.Run("signers endpoint exports the registry", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		rec := ts.do(t, ts.signers[0], http.MethodGet, "/vault/signers", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeJSON[models.SignersResponse](t, rec)
		assert.Equal(t, ts.signers, got.Signers)
		assert.Equal(t, 2, got.Quorum)
		assert.Equal(t, int64(1), got.Version)
	})
}

func TestReplaceSignersEndpoint(t *testing.T) {
	t.Run("swaps the registry", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		newSigners := []domain.Principal{domain.NewPrincipal(), domain.NewPrincipal()}

		rec := ts.do(t, ts.signers[0], http.MethodPut, "/vault/signers", models.ReplaceSignersRequest{
			Signers: newSigners,
			Quorum:  1,
		})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		// The old signer is now locked out.
		rec = ts.do(t, ts.signers[0], http.MethodPut, "/vault/signers", models.ReplaceSignersRequest{
			Signers: newSigners,
			Quorum:  2,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = ts.do(t, newSigners[0], http.MethodGet, "/vault/signers", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeJSON[models.SignersResponse](t, rec)
		assert.Equal(t, newSigners, got.Signers)
		assert.Equal(t, 1, got.Quorum)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("invalid quorum returns 400", func(t *testing.T) {
		ts := newTestServer(t, 3, 2, 1000)
		rec := ts.do(t, ts.signers[0], http.MethodPut, "/vault/signers", models.ReplaceSignersRequest{
			Signers: []domain.Principal{domain.NewPrincipal()},
			Quorum:  5,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
