/*
handlers.go - HTTP API handlers for the coin ledger

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response and JSON
  serialization, delegating everything else to the coin package.

ENDPOINTS:
  Users:
    POST   /api/users                         Create user (boundary record)
    GET    /api/users/{id}/balance            Balance summary
    GET    /api/users/{id}/transactions       Transaction history
    POST   /api/users/{id}/submissions        Submit a reward request
    POST   /api/users/{id}/welcome-bonus      Grant the one-time signup bonus

  Brands:
    GET    /api/brands                        List brands
    POST   /api/brands                        Create brand (boundary record)

  Approvals:
    GET    /api/admin/transactions/pending    Pending queue for operators
    POST   /api/transactions/{id}/approve
    POST   /api/transactions/{id}/reject
    POST   /api/transactions/{id}/pay

  Admin:
    POST   /api/admin/adjustments             Manual balance correction
    POST   /api/admin/sweep                   Run both staging sweeps now

  Staging (unauthenticated flow):
    POST   /api/submissions/pending           Stage receipt data by session
    POST   /api/submissions/pending/claim     Claim staged data for a user

ERROR HANDLING:
  The coin error taxonomy maps onto HTTP statuses:
    404  not found
    400  invalid input
    422  business rule violation
    409  state conflict
    500  anything outside the taxonomy (transient/infrastructure)
  The specific reason is returned verbatim in the "error" field.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/coin-engine/coin"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       coin.Store
	Submissions *coin.SubmissionService
	Approvals   *coin.ApprovalService
	Bridge      *coin.BridgeService
	Balances    *coin.BalanceStore
}

// NewHandler wires the engine services over the given store.
func NewHandler(store coin.Store) *Handler {
	return &Handler{
		Store:       store,
		Submissions: coin.NewSubmissionService(store),
		Approvals:   coin.NewApprovalService(store),
		Bridge:      coin.NewBridgeService(store),
		Balances:    coin.NewBalanceStore(store),
	}
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	user := coin.User{ID: req.ID, Name: req.Name, Email: req.Email}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	// Ensure the user exists before lazily creating a balance row for an
	// arbitrary identifier.
	if _, err := h.Store.GetUser(r.Context(), userID); err != nil {
		writeDomainError(w, err)
		return
	}

	balance, err := h.Balances.Read(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*balance))
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	txs, err := h.Store.ListTransactionsByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

func (h *Handler) SubmitRewardRequest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req SubmitRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	billDate, err := time.ParseInLocation("2006-01-02", req.BillDate, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bill_date must be YYYY-MM-DD", err)
		return
	}

	result, err := h.Submissions.Submit(r.Context(), coin.SubmitInput{
		UserID:        userID,
		BrandID:       req.BrandID,
		BillAmount:    req.BillAmount,
		BillDate:      billDate,
		ReceiptRef:    req.ReceiptRef,
		CoinsToRedeem: req.CoinsToRedeem,
		PayoutID:      req.PayoutID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResultDTO{
		Transaction: toTransactionDTO(result.Transaction),
		NewBalance:  toBalanceDTO(result.NewBalance),
	})
}

func (h *Handler) GrantWelcomeBonus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	txn, err := h.Submissions.GrantWelcomeBonus(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*txn))
}

// =============================================================================
// APPROVALS
// =============================================================================

func (h *Handler) ListPendingTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Store.ListTransactionsByStatus(r.Context(), coin.StatusPending)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	decodeOptionalBody(r, &req)

	txn, err := h.Approvals.Approve(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*txn))
}

func (h *Handler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	decodeOptionalBody(r, &req)

	txn, err := h.Approvals.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*txn))
}

func (h *Handler) MarkTransactionPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	decodeOptionalBody(r, &req)

	txn, err := h.Approvals.MarkPaid(r.Context(), chi.URLParam(r, "id"), req.PaymentRef, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*txn))
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	txn, err := h.Submissions.AdjustBalance(r.Context(), req.UserID, req.Delta, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*txn))
}

func (h *Handler) RunSweeps(w http.ResponseWriter, r *http.Request) {
	expired, err := h.Bridge.SweepExpired(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	oldClaimed, err := h.Bridge.SweepOldClaimed(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{Expired: expired, OldClaimed: oldClaimed})
}

// =============================================================================
// STAGING
// =============================================================================

func (h *Handler) StagePendingSubmission(w http.ResponseWriter, r *http.Request) {
	var req StageSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	staged, err := h.Bridge.Stage(r.Context(), coin.StageInput{
		SessionID:  req.SessionID,
		BrandID:    req.BrandID,
		BillAmount: req.BillAmount,
		ReceiptRef: req.ReceiptRef,
		FileName:   req.FileName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPendingSubmissionDTO(*staged))
}

func (h *Handler) ClaimPendingSubmission(w http.ResponseWriter, r *http.Request) {
	var req ClaimSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	claimed, err := h.Bridge.Claim(r.Context(), req.SessionID, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if claimed == nil {
		writeJSON(w, http.StatusOK, map[string]any{"claimed": nil})
		return
	}
	writeJSON(w, http.StatusOK, toPendingSubmissionDTO(*claimed))
}

// =============================================================================
// BRANDS
// =============================================================================

func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.Store.ListBrands(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]BrandDTO, 0, len(brands))
	for _, b := range brands {
		dtos = append(dtos, toBrandDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req CreateBrandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	earnPct, err := decimal.NewFromString(req.EarningPercentage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "earning_percentage must be a decimal number", err)
		return
	}
	redeemPct := decimal.Zero
	if req.RedemptionPercentage != "" {
		redeemPct, err = decimal.NewFromString(req.RedemptionPercentage)
		if err != nil {
			writeError(w, http.StatusBadRequest, "redemption_percentage must be a decimal number", err)
			return
		}
	}

	brand := coin.Brand{
		ID:                      req.ID,
		Name:                    req.Name,
		Category:                req.Category,
		Active:                  req.Active,
		EarningPercentage:       earnPct,
		RedemptionPercentage:    redeemPct,
		MaxEarnPerTransaction:   req.MaxEarnPerTransaction,
		MaxRedeemPerTransaction: req.MaxRedeemPerTransaction,
		MinRedemption:           req.MinRedemption,
		MaxRedemption:           req.MaxRedemption,
	}
	if err := h.Store.CreateBrand(r.Context(), brand); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create brand", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBrandDTO(brand))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeDomainError maps the coin error taxonomy to HTTP statuses. The
// specific reason is always surfaced verbatim.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error(), nil)
}

func statusFor(err error) int {
	switch {
	case coin.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, coin.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, coin.ErrBusinessRule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coin.ErrStateConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeOptionalBody tolerates an empty request body for endpoints whose
// fields are all optional.
func decodeOptionalBody(r *http.Request, dst any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(dst)
}
