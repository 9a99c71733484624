/*
handlers_test.go - HTTP surface tests

Tests for:
- Error-kind to status-code mapping
- Submission and approval endpoints end to end
- Staging endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/coin-engine/coin"
	"github.com/warp/coin-engine/coin/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *Handler) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreateUser(ctx, coin.User{ID: "user-1", Name: "Ada"}))
	require.NoError(t, mem.CreateBrand(ctx, coin.Brand{
		ID:                   "brand-1",
		Name:                 "Cafe",
		Active:               true,
		EarningPercentage:    decimal.NewFromInt(10),
		RedemptionPercentage: decimal.NewFromInt(50),
	}))

	h := NewHandler(mem)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, h
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func submitBody(billAmount int64) SubmitRewardRequest {
	return SubmitRewardRequest{
		BrandID:    "brand-1",
		BillAmount: billAmount,
		BillDate:   time.Now().UTC().Format("2006-01-02"),
	}
}

// =============================================================================
// SUBMISSION ENDPOINTS
// =============================================================================

func TestSubmitEndpoint_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/users/user-1/submissions", submitBody(1000))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := decodeBody[SubmitResultDTO](t, resp)
	assert.Equal(t, "pending", result.Transaction.Status)
	assert.Equal(t, int64(100), result.Transaction.CoinsEarned)
	assert.Equal(t, int64(100), result.NewBalance.Balance)
}

func TestSubmitEndpoint_StatusMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("unknown user is 404", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/users/nobody/submissions", submitBody(1000))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("out-of-range amount is 400", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/users/user-1/submissions", submitBody(0))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed date is 400", func(t *testing.T) {
		body := submitBody(1000)
		body.BillDate = "15/03/2026"
		resp := postJSON(t, srv.URL+"/api/users/user-1/submissions", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate submission is 422", func(t *testing.T) {
		body := submitBody(777)
		resp := postJSON(t, srv.URL+"/api/users/user-1/submissions", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = postJSON(t, srv.URL+"/api/users/user-1/submissions", body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestBalanceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/users/user-1/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	balance := decodeBody[BalanceDTO](t, resp)
	assert.Equal(t, "user-1", balance.UserID)
	assert.Equal(t, int64(0), balance.Balance)

	// Unknown user does not get a lazily created balance
	resp, err = http.Get(srv.URL + "/api/users/ghost/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWelcomeBonusEndpoint_SecondGrantIs422(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/users/user-1/welcome-bonus", struct{}{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/users/user-1/welcome-bonus", struct{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// =============================================================================
// APPROVAL ENDPOINTS
// =============================================================================

func TestApprovalEndpoints_Lifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/users/user-1/submissions", submitBody(1000))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[SubmitResultDTO](t, resp)
	txID := created.Transaction.ID

	// Pending queue contains it
	listResp, err := http.Get(srv.URL + "/api/admin/transactions/pending")
	require.NoError(t, err)
	defer listResp.Body.Close()
	pending := decodeBody[[]TransactionDTO](t, listResp)
	require.Len(t, pending, 1)
	assert.Equal(t, txID, pending[0].ID)

	// Approve
	resp = postJSON(t, fmt.Sprintf("%s/api/transactions/%s/approve", srv.URL, txID), ApproveRequest{Note: "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decodeBody[TransactionDTO](t, resp)
	assert.Equal(t, "approved", approved.Status)

	// Second approve conflicts
	resp = postJSON(t, fmt.Sprintf("%s/api/transactions/%s/approve", srv.URL, txID), ApproveRequest{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Reject without a reason is 400
	resp = postJSON(t, fmt.Sprintf("%s/api/transactions/%s/reject", srv.URL, txID), RejectRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown transaction is 404
	resp = postJSON(t, srv.URL+"/api/transactions/missing/approve", ApproveRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdjustmentEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/admin/adjustments", AdjustBalanceRequest{
		UserID: "user-1", Delta: 40, Reason: "goodwill",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Zero delta is invalid input
	resp = postJSON(t, srv.URL+"/api/admin/adjustments", AdjustBalanceRequest{
		UserID: "user-1", Delta: 0, Reason: "noop",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// STAGING ENDPOINTS
// =============================================================================

func TestStagingEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	stage := StageSubmissionRequest{
		SessionID:  "sess-1",
		BrandID:    "brand-1",
		BillAmount: 600,
		ReceiptRef: "r-1",
	}

	resp := postJSON(t, srv.URL+"/api/submissions/pending", stage)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	staged := decodeBody[PendingSubmissionDTO](t, resp)
	assert.Equal(t, "sess-1", staged.SessionID)
	assert.False(t, staged.Claimed)

	// Claim binds it to the user
	resp = postJSON(t, srv.URL+"/api/submissions/pending/claim", ClaimSubmissionRequest{
		SessionID: "sess-1", UserID: "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claimed := decodeBody[PendingSubmissionDTO](t, resp)
	assert.True(t, claimed.Claimed)
	assert.Equal(t, "user-1", claimed.ClaimedBy)

	// Second claim comes back empty, still 200
	resp = postJSON(t, srv.URL+"/api/submissions/pending/claim", ClaimSubmissionRequest{
		SessionID: "sess-1", UserID: "user-2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decodeBody[map[string]any](t, resp)
	assert.Nil(t, empty["claimed"])

	// Missing session is invalid input
	resp = postJSON(t, srv.URL+"/api/submissions/pending", StageSubmissionRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
