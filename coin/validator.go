/*
validator.go - Submission rule checking

PURPOSE:
  Stateless rule-checker invoked before a reward-request transaction is
  created. Consults the store for the user, brand, balance, and duplicate
  guard, but mutates nothing. Rules run in a fixed order and fail fast on the
  first violation with a specific, user-presentable error.

RULES, IN ORDER:
   1. User exists
   2. Brand exists and is active
   3. Bill amount is a whole number in [1, 100000]
   4. Bill date is not in the future and at most 30 days old
   5. No other pending transaction for (user, brand, bill amount, bill date)
   6. Redemption within balance, brand percentage, cap, and min/max bounds;
      payout identifier present and plausible
   7. Net bill amount (bill - redeemed) strictly positive
   8. coinsEarned = max(1, round(net * earningPercentage / 100)), within the
      brand's earning cap
   9. Applying the earn/redeem pair cannot drive the balance negative

ROUNDING:
  decimal.Decimal.Round performs round-half-away-from-zero, which is the
  required policy. The floor of 1 coin applies only when the raw computation
  is positive; rule 7 already rejects a non-positive net amount, so the floor
  never masks a zero-bill edge case.
*/
package coin

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Submission limits.
const (
	MinBillAmount      int64 = 1
	MaxBillAmount      int64 = 100000
	BillDateWindowDays       = 30

	MinPayoutIDLength = 5
	MaxPayoutIDLength = 50
	PayoutIDSeparator = "@" // UPI-style handle, e.g. name@bank
)

var oneHundred = decimal.NewFromInt(100)

// SubmitInput is the caller-supplied payload for a reward request.
type SubmitInput struct {
	UserID        string
	BrandID       string
	BillAmount    int64
	BillDate      time.Time
	ReceiptRef    string
	CoinsToRedeem int64
	PayoutID      string
}

// ValidationOutcome carries the values the submission workflow needs after a
// successful validation, so it does not re-read or re-compute them.
type ValidationOutcome struct {
	User        *User
	Brand       *Brand
	Balance     Balance
	CoinsEarned int64
	NetBill     int64
}

// Validator checks submission rules. It is stateless; all reads go through
// the StoreTx handle supplied by the caller so that validation and the
// subsequent writes observe the same transactional snapshot.
type Validator struct {
	Balances *BalanceStore
}

func NewValidator(balances *BalanceStore) *Validator {
	return &Validator{Balances: balances}
}

// Validate runs the rules against the given input. now anchors the bill-date
// window so tests can pin time.
func (v *Validator) Validate(ctx context.Context, tx StoreTx, in SubmitInput, now time.Time) (*ValidationOutcome, error) {
	// Rule 1: user exists
	user, err := tx.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	// Rule 2: brand exists and is active
	brand, err := tx.GetBrand(ctx, in.BrandID)
	if err != nil {
		return nil, err
	}
	if !brand.Active {
		return nil, ErrBrandInactive
	}

	// Rule 3: bill amount range
	if in.BillAmount < MinBillAmount || in.BillAmount > MaxBillAmount {
		return nil, &BillAmountError{Amount: in.BillAmount, Min: MinBillAmount, Max: MaxBillAmount}
	}

	// Rule 4: bill date window, at day granularity
	today := dateOnly(now)
	billDay := dateOnly(in.BillDate)
	if billDay.After(today) {
		return nil, &BillDateError{Date: in.BillDate, Reason: "future"}
	}
	if billDay.Before(today.AddDate(0, 0, -BillDateWindowDays)) {
		return nil, &BillDateError{Date: in.BillDate, Reason: "too_old"}
	}

	// Rule 5: duplicate-submission guard
	dup, err := tx.HasPendingDuplicate(ctx, in.UserID, in.BrandID, in.BillAmount, billDay)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateSubmission
	}

	// Balance snapshot, created lazily inside the same transaction
	balance, err := v.Balances.readOrCreate(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}

	// Rule 6: redemption limits
	if in.CoinsToRedeem > 0 {
		if err := v.checkRedemption(brand, balance, in); err != nil {
			return nil, err
		}
	}

	// Rule 7: net bill amount strictly positive
	net := in.BillAmount - in.CoinsToRedeem
	if net <= 0 {
		return nil, ErrNetAmountNotPositive
	}

	// Rule 8: earning computation and cap
	earned := ComputeCoinsEarned(net, brand.EarningPercentage)
	if brand.MaxEarnPerTransaction > 0 && earned > brand.MaxEarnPerTransaction {
		return nil, &EarningCapError{Earned: earned, Cap: brand.MaxEarnPerTransaction}
	}

	// Rule 9: resulting balance cannot go negative
	if balance.Coins+earned-in.CoinsToRedeem < 0 {
		return nil, &InsufficientBalanceError{
			UserID:    in.UserID,
			Available: balance.Coins + earned,
			Requested: in.CoinsToRedeem,
		}
	}

	return &ValidationOutcome{
		User:        user,
		Brand:       brand,
		Balance:     *balance,
		CoinsEarned: earned,
		NetBill:     net,
	}, nil
}

func (v *Validator) checkRedemption(brand *Brand, balance *Balance, in SubmitInput) error {
	if balance.Coins < in.CoinsToRedeem {
		return &InsufficientBalanceError{
			UserID:    in.UserID,
			Available: balance.Coins,
			Requested: in.CoinsToRedeem,
		}
	}

	// Redeemable share of this bill: billAmount * redemptionPercentage / 100.
	// Compared as decimals; no rounding is involved in a limit check.
	redeemable := decimal.NewFromInt(in.BillAmount).Mul(brand.RedemptionPercentage).Div(oneHundred)
	if redeemable.LessThan(decimal.NewFromInt(in.CoinsToRedeem)) {
		return &RedemptionLimitError{Rule: "percentage", Requested: in.CoinsToRedeem, Limit: redeemable.IntPart()}
	}

	if brand.MaxRedeemPerTransaction > 0 && in.CoinsToRedeem > brand.MaxRedeemPerTransaction {
		return &RedemptionLimitError{Rule: "cap", Requested: in.CoinsToRedeem, Limit: brand.MaxRedeemPerTransaction}
	}
	if brand.MinRedemption > 0 && in.CoinsToRedeem < brand.MinRedemption {
		return &RedemptionLimitError{Rule: "min", Requested: in.CoinsToRedeem, Limit: brand.MinRedemption}
	}
	if brand.MaxRedemption > 0 && in.CoinsToRedeem > brand.MaxRedemption {
		return &RedemptionLimitError{Rule: "max", Requested: in.CoinsToRedeem, Limit: brand.MaxRedemption}
	}

	return validatePayoutID(in.PayoutID)
}

// validatePayoutID checks syntactic plausibility of a payout handle.
func validatePayoutID(payoutID string) error {
	if payoutID == "" {
		return ErrPayoutIDRequired
	}
	if len(payoutID) < MinPayoutIDLength || len(payoutID) > MaxPayoutIDLength {
		return ErrPayoutIDInvalid
	}
	if !strings.Contains(payoutID, PayoutIDSeparator) {
		return ErrPayoutIDInvalid
	}
	return nil
}

// ComputeCoinsEarned converts a net bill amount into coins at the given
// earning percentage: round(net * pct / 100), half away from zero, floored at
// 1 when the raw computation is positive.
func ComputeCoinsEarned(netBill int64, earningPercentage decimal.Decimal) int64 {
	if netBill <= 0 || !earningPercentage.IsPositive() {
		return 0
	}
	raw := decimal.NewFromInt(netBill).Mul(earningPercentage).Div(oneHundred)
	earned := raw.Round(0).IntPart()
	if earned < 1 {
		earned = 1
	}
	return earned
}

// dateOnly truncates a time to its UTC calendar day.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
