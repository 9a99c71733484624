package coin_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/coin-engine/coin"
	"github.com/warp/coin-engine/coin/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type engineFixture struct {
	store       *store.Memory
	submissions *coin.SubmissionService
	approvals   *coin.ApprovalService
	balances    *coin.BalanceStore
}

func newEngineFixture(t *testing.T) *engineFixture {
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

	fixed := func() time.Time { return testNow }
	sub := coin.NewSubmissionService(mem)
	sub.Now = fixed
	app := coin.NewApprovalService(mem)
	app.Now = fixed

	return &engineFixture{
		store:       mem,
		submissions: sub,
		approvals:   app,
		balances:    coin.NewBalanceStore(mem),
	}
}

func (f *engineFixture) submit(t *testing.T, in coin.SubmitInput) *coin.SubmitResult {
	t.Helper()
	result, err := f.submissions.Submit(context.Background(), in)
	require.NoError(t, err)
	return result
}

// assertLedgerInvariant checks Coins == TotalEarned - TotalRedeemed.
func (f *engineFixture) assertLedgerInvariant(t *testing.T, userID string) {
	t.Helper()
	balance, err := f.balances.Read(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, balance.TotalEarned-balance.TotalRedeemed, balance.Coins,
		"coins must equal lifetime earned minus lifetime redeemed")
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_CreatesPendingAndCreditsOptimistically(t *testing.T) {
	// GIVEN: a fresh user with no balance row
	// WHEN: submitting a 1000 bill at a 10% earning brand
	// THEN: a pending transaction for 100 coins exists and the balance
	//       already reflects the credit

	f := newEngineFixture(t)
	ctx := context.Background()

	result := f.submit(t, coin.SubmitInput{
		UserID:     "user-1",
		BrandID:    "brand-1",
		BillAmount: 1000,
		BillDate:   testNow.AddDate(0, 0, -1),
	})

	assert.Equal(t, coin.TxRewardRequest, result.Transaction.Type)
	assert.Equal(t, coin.StatusPending, result.Transaction.Status)
	assert.Equal(t, int64(100), result.Transaction.CoinsEarned)
	assert.Equal(t, int64(0), result.Transaction.PreviousBalance)
	assert.Equal(t, int64(100), result.NewBalance.Coins)

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Coins)
	assert.Equal(t, int64(100), balance.TotalEarned)
	f.assertLedgerInvariant(t, "user-1")
}

func TestSubmit_ValidationFailureWritesNothing(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.submissions.Submit(ctx, coin.SubmitInput{
		UserID:     "user-1",
		BrandID:    "brand-1",
		BillAmount: 0, // rejected by the amount rule
		BillDate:   testNow,
	})
	require.Error(t, err)

	txs, err := f.store.ListTransactionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, txs, "no ledger entry on validation failure")

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Coins)
}

func TestSubmit_DuplicateGuardLifecycle(t *testing.T) {
	// GIVEN: a pending submission
	// THEN: an identical submission is rejected while the first is pending,
	//       and accepted again once the first reaches a terminal state

	f := newEngineFixture(t)
	ctx := context.Background()

	in := coin.SubmitInput{
		UserID:     "user-1",
		BrandID:    "brand-1",
		BillAmount: 500,
		BillDate:   testNow.AddDate(0, 0, -2),
	}

	first := f.submit(t, in)

	_, err := f.submissions.Submit(ctx, in)
	assert.ErrorIs(t, err, coin.ErrDuplicateSubmission)

	// A different amount is not a duplicate
	other := in
	other.BillAmount = 501
	_, err = f.submissions.Submit(ctx, other)
	assert.NoError(t, err)

	// Terminal state releases the guard
	_, err = f.approvals.Reject(ctx, first.Transaction.ID, "illegible receipt")
	require.NoError(t, err)

	_, err = f.submissions.Submit(ctx, in)
	assert.NoError(t, err)
}

func TestSubmit_WithRedemption(t *testing.T) {
	f := newEngineFixture(t)

	// Seed a balance via an approved-style adjustment
	_, err := f.submissions.AdjustBalance(context.Background(), "user-1", 200, "seed")
	require.NoError(t, err)

	result := f.submit(t, coin.SubmitInput{
		UserID:        "user-1",
		BrandID:       "brand-1",
		BillAmount:    1000,
		BillDate:      testNow,
		CoinsToRedeem: 150,
		PayoutID:      "ada@bank",
	})

	// Net 850 at 10% earns 85; redeems 150
	assert.Equal(t, int64(85), result.Transaction.CoinsEarned)
	assert.Equal(t, int64(150), result.Transaction.CoinsRedeemed)
	assert.Equal(t, int64(200), result.Transaction.PreviousBalance)
	assert.Equal(t, int64(135), result.NewBalance.Coins) // 200 + 85 - 150
	f.assertLedgerInvariant(t, "user-1")
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

func TestApprove_LeavesBalanceUnchanged(t *testing.T) {
	// The credit was applied at submission; approval only finalizes it.

	f := newEngineFixture(t)
	ctx := context.Background()

	result := f.submit(t, coin.SubmitInput{
		UserID: "user-1", BrandID: "brand-1", BillAmount: 1000, BillDate: testNow,
	})

	approved, err := f.approvals.Approve(ctx, result.Transaction.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, coin.StatusApproved, approved.Status)
	assert.Equal(t, "looks good", approved.AdminNotes)
	require.NotNil(t, approved.ProcessedAt)

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Coins, "approval applies no further balance effect")
	f.assertLedgerInvariant(t, "user-1")
}

func TestReject_RevertsToSubmissionSnapshot(t *testing.T) {
	// GIVEN: balance 100 from a completed grant, then a submission raising it
	// WHEN: the submission is rejected
	// THEN: the balance returns to the snapshot and counters roll back

	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.submissions.AdjustBalance(ctx, "user-1", 100, "seed")
	require.NoError(t, err)

	result := f.submit(t, coin.SubmitInput{
		UserID: "user-1", BrandID: "brand-1", BillAmount: 300, BillDate: testNow,
	})
	assert.Equal(t, int64(130), result.NewBalance.Coins) // 100 + 30

	rejected, err := f.approvals.Reject(ctx, result.Transaction.ID, "mismatched receipt")
	require.NoError(t, err)
	assert.Equal(t, coin.StatusRejected, rejected.Status)
	assert.Equal(t, "mismatched receipt", rejected.RejectionReason)

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Coins)
	assert.Equal(t, int64(100), balance.TotalEarned)
	assert.Equal(t, int64(0), balance.TotalRedeemed)
	f.assertLedgerInvariant(t, "user-1")
}

func TestReject_RestoresRedeemedCoins(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.submissions.AdjustBalance(ctx, "user-1", 200, "seed")
	require.NoError(t, err)

	result := f.submit(t, coin.SubmitInput{
		UserID: "user-1", BrandID: "brand-1", BillAmount: 1000, BillDate: testNow,
		CoinsToRedeem: 150, PayoutID: "ada@bank",
	})
	assert.Equal(t, int64(135), result.NewBalance.Coins)

	_, err = f.approvals.Reject(ctx, result.Transaction.ID, "not payable")
	require.NoError(t, err)

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance.Coins, "redeemed coins restored")
	f.assertLedgerInvariant(t, "user-1")
}

func TestReject_RequiresReason(t *testing.T) {
	f := newEngineFixture(t)

	result := f.submit(t, coin.SubmitInput{
		UserID: "user-1", BrandID: "brand-1", BillAmount: 100, BillDate: testNow,
	})

	_, err := f.approvals.Reject(context.Background(), result.Transaction.ID, "")
	assert.ErrorIs(t, err, coin.ErrReasonRequired)
}

func TestApprovalStateMachine_NoDoubleTransition(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	result := f.submit(t, coin.SubmitInput{
		UserID: "user-1", BrandID: "brand-1", BillAmount: 1000, BillDate: testNow,
	})
	txID := result.Transaction.ID

	_, err := f.approvals.Approve(ctx, txID, "")
	require.NoError(t, err)

	// Second approve conflicts
	_, err = f.approvals.Approve(ctx, txID, "")
	var conflict *coin.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, coin.StatusApproved, conflict.Current)

	// Reject after approve conflicts too, and the balance stays put
	_, err = f.approvals.Reject(ctx, txID, "late change of heart")
	assert.ErrorAs(t, err, &conflict)

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Coins, "failed transition must not touch the balance")
}

func TestMarkPaid_OnlyForRedemptionBearing(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Earn-only request: approve, then paying it is a conflict
	earnOnly := f.submit(t, coin.SubmitInput{
		UserID: "user-1", BrandID: "brand-1", BillAmount: 1000, BillDate: testNow,
	})
	_, err := f.approvals.Approve(ctx, earnOnly.Transaction.ID, "")
	require.NoError(t, err)

	_, err = f.approvals.MarkPaid(ctx, earnOnly.Transaction.ID, "pay-001", "")
	assert.ErrorIs(t, err, coin.ErrNotRedemptionBearing)

	// Redemption-bearing request: pending -> approved -> paid
	withRedeem := f.submit(t, coin.SubmitInput{
		UserID: "user-1", BrandID: "brand-1", BillAmount: 500, BillDate: testNow,
		CoinsToRedeem: 50, PayoutID: "ada@bank",
	})

	// Cannot pay while still pending
	_, err = f.approvals.MarkPaid(ctx, withRedeem.Transaction.ID, "pay-002", "")
	var conflict *coin.StateConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = f.approvals.Approve(ctx, withRedeem.Transaction.ID, "")
	require.NoError(t, err)

	paid, err := f.approvals.MarkPaid(ctx, withRedeem.Transaction.ID, "pay-002", "settled")
	require.NoError(t, err)
	assert.Equal(t, coin.StatusPaid, paid.Status)
	assert.Equal(t, "pay-002", paid.PaymentRef)

	// Balance untouched by the payment marker
	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	f.assertLedgerInvariant(t, "user-1")
	assert.Equal(t, balance.TotalEarned-balance.TotalRedeemed, balance.Coins)
}

func TestMarkPaid_RequiresPaymentRef(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.approvals.MarkPaid(context.Background(), "whatever", "", "")
	assert.ErrorIs(t, err, coin.ErrPaymentRefRequired)
}

// =============================================================================
// WELCOME BONUS AND ADJUSTMENTS
// =============================================================================

func TestWelcomeBonus_GrantedOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	txn, err := f.submissions.GrantWelcomeBonus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, coin.TxWelcomeBonus, txn.Type)
	assert.Equal(t, coin.StatusCompleted, txn.Status)
	assert.Equal(t, int64(100), txn.CoinsEarned)

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Coins)

	// Second grant is rejected and changes nothing
	_, err = f.submissions.GrantWelcomeBonus(ctx, "user-1")
	assert.ErrorIs(t, err, coin.ErrWelcomeBonusGranted)

	balance, err = f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Coins)
	f.assertLedgerInvariant(t, "user-1")
}

func TestWelcomeBonus_ConfigurableAmount(t *testing.T) {
	f := newEngineFixture(t)
	f.submissions.WelcomeBonusCoins = 250

	txn, err := f.submissions.GrantWelcomeBonus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), txn.CoinsEarned)
}

func TestAdjustBalance_SignedDeltas(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	up, err := f.submissions.AdjustBalance(ctx, "user-1", 50, "goodwill")
	require.NoError(t, err)
	assert.Equal(t, coin.TxAdjustment, up.Type)
	assert.Equal(t, int64(50), up.CoinsEarned)

	down, err := f.submissions.AdjustBalance(ctx, "user-1", -20, "correction")
	require.NoError(t, err)
	assert.Equal(t, int64(20), down.CoinsRedeemed)
	assert.Equal(t, int64(-20), down.Amount)

	balance, err := f.balances.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance.Coins)
	f.assertLedgerInvariant(t, "user-1")
}

func TestAdjustBalance_Guards(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.submissions.AdjustBalance(ctx, "user-1", 0, "noop")
	assert.ErrorIs(t, err, coin.ErrZeroAdjustment)

	_, err = f.submissions.AdjustBalance(ctx, "user-1", 10, "")
	assert.ErrorIs(t, err, coin.ErrReasonRequired)

	_, err = f.submissions.AdjustBalance(ctx, "nobody", 10, "who")
	assert.ErrorIs(t, err, coin.ErrUserNotFound)
}
