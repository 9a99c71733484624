/*
errors.go - Centralized error types for the coin engine

PURPOSE:
  All error types in one place. Every expected failure carries a specific,
  user-presentable reason and unwraps to one of four kind sentinels so the
  API layer can map it to an HTTP status without string matching.

ERROR KINDS:
  ErrNotFound      - referenced user, brand, or transaction does not exist
  ErrInvalidInput  - malformed or out-of-range input
  ErrBusinessRule  - submission violates a business limit
  ErrStateConflict - illegal status transition

USAGE:
  if errors.Is(err, coin.ErrStateConflict) { ... }

  var insuf *coin.InsufficientBalanceError
  if errors.As(err, &insuf) { ... }

Unexpected infrastructure failures (storage unavailable) are returned as plain
wrapped errors outside this taxonomy; callers treat anything that matches no
kind sentinel as transient.
*/
package coin

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// KIND SENTINELS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBusinessRule  = errors.New("business rule violation")
	ErrStateConflict = errors.New("state conflict")
)

// Specific not-found errors, each unwrapping to ErrNotFound.
var (
	ErrUserNotFound        = &kindError{kind: ErrNotFound, msg: "user not found"}
	ErrBrandNotFound       = &kindError{kind: ErrNotFound, msg: "brand not found"}
	ErrTransactionNotFound = &kindError{kind: ErrNotFound, msg: "transaction not found"}
)

// Specific business-rule errors.
var (
	ErrBrandInactive        = &kindError{kind: ErrBusinessRule, msg: "brand is not active"}
	ErrDuplicateSubmission  = &kindError{kind: ErrBusinessRule, msg: "a pending submission already exists for this bill"}
	ErrWelcomeBonusGranted  = &kindError{kind: ErrBusinessRule, msg: "welcome bonus already granted"}
	ErrNetAmountNotPositive = &kindError{kind: ErrBusinessRule, msg: "bill amount after redemption must be positive"}
)

// Specific invalid-input errors.
var (
	ErrZeroAdjustment     = &kindError{kind: ErrInvalidInput, msg: "adjustment delta must not be zero"}
	ErrReasonRequired     = &kindError{kind: ErrInvalidInput, msg: "a reason is required"}
	ErrPayoutIDRequired   = &kindError{kind: ErrInvalidInput, msg: "a payout identifier is required when redeeming"}
	ErrPayoutIDInvalid    = &kindError{kind: ErrInvalidInput, msg: "payout identifier is malformed"}
	ErrPaymentRefRequired = &kindError{kind: ErrInvalidInput, msg: "a payment reference is required"}
)

// ErrNotRedemptionBearing is returned when mark-paid targets a transaction
// with no coins redeemed.
var ErrNotRedemptionBearing = &kindError{kind: ErrStateConflict, msg: "only redemption-bearing transactions can be marked paid"}

// ErrBalanceExists is returned by stores when inserting a balance row that
// already exists. It is handled internally by the BalanceStore (re-read) and
// never surfaces to callers.
var ErrBalanceExists = errors.New("balance row already exists")

// kindError is a fixed message that unwraps to a kind sentinel.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BillAmountError reports a bill amount outside the accepted range.
type BillAmountError struct {
	Amount int64
	Min    int64
	Max    int64
}

func (e *BillAmountError) Error() string {
	return fmt.Sprintf("bill amount %d must be a whole number between %d and %d", e.Amount, e.Min, e.Max)
}

func (e *BillAmountError) Unwrap() error { return ErrInvalidInput }

// BillDateError reports a bill date outside the submission window.
type BillDateError struct {
	Date   time.Time
	Reason string // "future" or "too_old"
}

func (e *BillDateError) Error() string {
	if e.Reason == "future" {
		return fmt.Sprintf("bill date %s is in the future", e.Date.Format("2006-01-02"))
	}
	return fmt.Sprintf("bill date %s is more than %d days old", e.Date.Format("2006-01-02"), BillDateWindowDays)
}

func (e *BillDateError) Unwrap() error { return ErrInvalidInput }

// InsufficientBalanceError reports a redemption exceeding the current balance.
type InsufficientBalanceError struct {
	UserID    string
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrBusinessRule }

// RedemptionLimitError reports a redemption violating a brand limit.
type RedemptionLimitError struct {
	Rule      string // "percentage", "cap", "min", "max"
	Requested int64
	Limit     int64
}

func (e *RedemptionLimitError) Error() string {
	switch e.Rule {
	case "percentage":
		return fmt.Sprintf("redemption of %d exceeds the brand's redeemable share of this bill (%d)", e.Requested, e.Limit)
	case "cap":
		return fmt.Sprintf("redemption of %d exceeds the brand's per-transaction cap of %d", e.Requested, e.Limit)
	case "min":
		return fmt.Sprintf("redemption of %d is below the brand minimum of %d", e.Requested, e.Limit)
	default:
		return fmt.Sprintf("redemption of %d exceeds the brand maximum of %d", e.Requested, e.Limit)
	}
}

func (e *RedemptionLimitError) Unwrap() error { return ErrBusinessRule }

// EarningCapError reports computed earnings exceeding the brand's cap.
type EarningCapError struct {
	Earned int64
	Cap    int64
}

func (e *EarningCapError) Error() string {
	return fmt.Sprintf("computed earning of %d coins exceeds the brand's per-transaction cap of %d", e.Earned, e.Cap)
}

func (e *EarningCapError) Unwrap() error { return ErrBusinessRule }

// StateConflictError reports an illegal status transition attempt.
type StateConflictError struct {
	TransactionID string
	Current       TransactionStatus
	Attempted     string // "approve", "reject", "mark_paid"
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s transaction %s in status %q", e.Attempted, e.TransactionID, e.Current)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError reports whether the error belongs to the expected business
// taxonomy rather than an infrastructure fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrBusinessRule) ||
		errors.Is(err, ErrStateConflict)
}
