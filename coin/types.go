/*
Package coin implements the coin ledger and reward-transaction engine.

PURPOSE:
  Tracks per-user redeemable-coin balances, validates and records bill-based
  earn/redeem submissions, moves transactions through an approval workflow,
  and bridges unauthenticated receipt submissions into authenticated accounts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Balance: A user's coin balance plus lifetime earned/redeemed counters
  - Transaction: A ledger entry recording a submission and its balance effect
  - Brand: Earning/redemption configuration for a merchant
  - PendingSubmission: Session-keyed staging record for pre-login receipts

DESIGN PRINCIPLES:
  1. Integer arithmetic: Balances and coin counts are int64 throughout.
     decimal.Decimal is used only inside percentage computations, never stored.
  2. Immutable snapshots: CoinsEarned, CoinsRedeemed and PreviousBalance are
     written once at submission and never modified; rejection reverses against
     these exact values.
  3. One-way status transitions: A terminal transaction cannot be re-opened.
  4. Single mutation gateway: Only the BalanceStore writes balance rows.

SEE ALSO:
  - validator.go: Submission rule checking
  - balance.go: Balance mutation gateway
  - submission.go / approval.go: The two workflows
  - bridge.go: Pre-authentication staging
*/
package coin

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION TYPES AND STATUSES
// =============================================================================

type TransactionType string

const (
	TxRewardRequest TransactionType = "reward_request" // Bill-based earn/redeem submission
	TxWelcomeBonus  TransactionType = "welcome_bonus"  // One-time signup grant
	TxAdjustment    TransactionType = "adjustment"     // Manual admin correction
	TxEarn          TransactionType = "earn"           // Plain credit, applied at approval
	TxRedeem        TransactionType = "redeem"         // Plain debit
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusApproved  TransactionStatus = "approved"
	StatusRejected  TransactionStatus = "rejected"
	StatusPaid      TransactionStatus = "paid"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
// Approved is not terminal: it may still move to paid.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusPaid, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// =============================================================================
// BALANCE - One row per user, created lazily on first access
// =============================================================================

// Balance holds a user's current redeemable coins and the two lifetime
// counters. Invariant after every committed mutation:
//
//	Coins == TotalEarned - TotalRedeemed
type Balance struct {
	UserID        string
	Coins         int64
	TotalEarned   int64
	TotalRedeemed int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// =============================================================================
// TRANSACTION - One ledger entry per submitted request
// =============================================================================

type Transaction struct {
	ID      string
	UserID  string
	BrandID string // empty for welcome bonus / adjustments

	Type   TransactionType
	Status TransactionStatus

	// Bill details (reward requests only)
	BillAmount int64
	BillDate   time.Time
	ReceiptRef string

	// Balance effect, snapshotted at submission time. Immutable once written:
	// rejection reverses against exactly these values.
	CoinsEarned     int64
	CoinsRedeemed   int64
	PreviousBalance int64
	Amount          int64 // net signed delta: CoinsEarned - CoinsRedeemed

	// Redemption payout target (UPI-style handle), required when redeeming
	PayoutID string

	// Approval workflow bookkeeping
	AdminNotes      string
	RejectionReason string
	PaymentRef      string

	CreatedAt       time.Time
	ProcessedAt     *time.Time
	StatusChangedAt *time.Time
}

// RedemptionBearing reports whether the transaction debits coins and is
// therefore eligible for mark-paid.
func (t Transaction) RedemptionBearing() bool {
	return t.CoinsRedeemed > 0
}

// =============================================================================
// BRAND - Merchant earning/redemption configuration
// =============================================================================

// Brand configures how bills at a merchant convert to coins. Percentages are
// decimal so fractional rates (e.g. 2.5%) carry no float drift. Caps and
// bounds use 0 to mean "not set".
type Brand struct {
	ID       string
	Name     string
	Category string
	Active   bool

	// Coins earned per 100 units of net bill amount
	EarningPercentage decimal.Decimal

	// Max fraction of a bill payable via redeemed coins, per 100 units
	RedemptionPercentage decimal.Decimal

	// Per-transaction limits (0 = unlimited / unset)
	MaxEarnPerTransaction   int64
	MaxRedeemPerTransaction int64
	MinRedemption           int64
	MaxRedemption           int64

	CreatedAt time.Time
}

// =============================================================================
// USER - Minimal identity record; profile semantics live elsewhere
// =============================================================================

type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// =============================================================================
// PENDING SUBMISSION - Session-scoped pre-authentication staging record
// =============================================================================

// PendingSubmission stages receipt data captured before login. At most one
// unclaimed record exists per session identifier; re-staging updates in place
// and extends ExpiresAt.
type PendingSubmission struct {
	ID         string
	SessionID  string
	BrandID    string
	BillAmount int64
	ReceiptRef string
	FileName   string

	ExpiresAt time.Time
	Claimed   bool
	ClaimedBy string
	ClaimedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is past its expiry at the given instant.
func (p PendingSubmission) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
