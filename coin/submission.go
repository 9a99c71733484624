/*
submission.go - Reward request, welcome bonus, and adjustment submission

PURPOSE:
  Orchestrates validation -> ledger-entry creation -> balance update as one
  atomic unit. The balance effect of a reward request is applied at
  submission time (optimistic ledger): the user's displayed balance reflects
  pending activity immediately, subject to reversal on rejection.

FLOW:
  Submit
    1. Validate (rules 1-9), inside the same storage transaction
    2. Snapshot the current balance as PreviousBalance
    3. Insert the pending transaction
    4. Apply earn/redeem to the balance
  All four steps commit or roll back together.

  GrantWelcomeBonus and AdjustBalance are single-step: the transaction is
  created already completed and the balance effect applied in the same unit;
  there is no approval stage for either.
*/
package coin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultWelcomeBonusCoins is granted when no override is configured.
const DefaultWelcomeBonusCoins int64 = 100

// SubmitResult pairs the created transaction with the balance after the
// optimistic credit/debit.
type SubmitResult struct {
	Transaction Transaction
	NewBalance  Balance
}

// SubmissionService creates ledger entries. Each exported method opens
// exactly one storage transaction spanning the ledger write and the balance
// write.
type SubmissionService struct {
	Store     Store
	Validator *Validator
	Balances  *BalanceStore

	// WelcomeBonusCoins overrides the default grant when positive.
	WelcomeBonusCoins int64

	// Now allows tests to pin time. Defaults to time.Now.
	Now func() time.Time
}

func NewSubmissionService(store Store) *SubmissionService {
	balances := NewBalanceStore(store)
	return &SubmissionService{
		Store:     store,
		Validator: NewValidator(balances),
		Balances:  balances,
	}
}

func (s *SubmissionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit validates and records a reward request, applying its balance effect
// optimistically. On any validation failure nothing is written.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	now := s.now()

	var result SubmitResult
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		outcome, err := s.Validator.Validate(ctx, tx, in, now)
		if err != nil {
			return err
		}

		txn := Transaction{
			ID:              uuid.NewString(),
			UserID:          in.UserID,
			BrandID:         in.BrandID,
			Type:            TxRewardRequest,
			Status:          StatusPending,
			BillAmount:      in.BillAmount,
			BillDate:        dateOnly(in.BillDate),
			ReceiptRef:      in.ReceiptRef,
			CoinsEarned:     outcome.CoinsEarned,
			CoinsRedeemed:   in.CoinsToRedeem,
			PreviousBalance: outcome.Balance.Coins,
			Amount:          outcome.CoinsEarned - in.CoinsToRedeem,
			PayoutID:        in.PayoutID,
			CreatedAt:       now,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		balance, err := s.Balances.Apply(ctx, tx, in.UserID, outcome.CoinsEarned, in.CoinsToRedeem)
		if err != nil {
			return err
		}

		result = SubmitResult{Transaction: txn, NewBalance: *balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GrantWelcomeBonus credits the one-time signup bonus. At most one
// welcome-bonus transaction exists per user, ever; the transaction is
// completed immediately with no approval stage.
func (s *SubmissionService) GrantWelcomeBonus(ctx context.Context, userID string) (*Transaction, error) {
	now := s.now()
	bonus := s.WelcomeBonusCoins
	if bonus <= 0 {
		bonus = DefaultWelcomeBonusCoins
	}

	var created Transaction
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		granted, err := tx.HasWelcomeBonus(ctx, userID)
		if err != nil {
			return err
		}
		if granted {
			return ErrWelcomeBonusGranted
		}

		balance, err := s.Balances.readOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}

		created = Transaction{
			ID:              uuid.NewString(),
			UserID:          userID,
			Type:            TxWelcomeBonus,
			Status:          StatusCompleted,
			CoinsEarned:     bonus,
			PreviousBalance: balance.Coins,
			Amount:          bonus,
			AdminNotes:      "welcome bonus",
			CreatedAt:       now,
			ProcessedAt:     &now,
			StatusChangedAt: &now,
		}
		if err := tx.InsertTransaction(ctx, created); err != nil {
			return fmt.Errorf("failed to record welcome bonus: %w", err)
		}

		_, err = s.Balances.Apply(ctx, tx, userID, bonus, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// AdjustBalance records an out-of-band admin correction. The delta may be
// negative; zero is rejected, and a human-readable reason is mandatory.
func (s *SubmissionService) AdjustBalance(ctx context.Context, userID string, delta int64, reason string) (*Transaction, error) {
	if delta == 0 {
		return nil, ErrZeroAdjustment
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	now := s.now()

	var created Transaction
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}

		balance, err := s.Balances.readOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}

		created = Transaction{
			ID:              uuid.NewString(),
			UserID:          userID,
			Type:            TxAdjustment,
			Status:          StatusCompleted,
			PreviousBalance: balance.Coins,
			Amount:          delta,
			AdminNotes:      reason,
			CreatedAt:       now,
			ProcessedAt:     &now,
			StatusChangedAt: &now,
		}
		if delta > 0 {
			created.CoinsEarned = delta
		} else {
			created.CoinsRedeemed = -delta
		}
		if err := tx.InsertTransaction(ctx, created); err != nil {
			return fmt.Errorf("failed to record adjustment: %w", err)
		}

		_, err = s.Balances.ApplyDelta(ctx, tx, userID, delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}
