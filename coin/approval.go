/*
approval.go - Transaction approval state machine

PURPOSE:
  Moves a ledger entry from pending to a terminal or payment-ready state,
  applying or reverting its balance effect atomically with the status write.

STATE MACHINE:
  pending  -> approved | rejected
  approved -> paid

  approve:   no balance effect for reward requests (already applied at
             submission); a plain earn transaction is credited now
  reject:    compensating reversal against the submission-time snapshot
  mark-paid: no balance effect; records the external payment reference;
             only legal for redemption-bearing transactions

IDEMPOTENCY:
  Transitioning a transaction that is not in the required state fails with a
  StateConflictError, never silently succeeds. Silent success would permit
  double-application of balance effects.
*/
package coin

import (
	"context"
	"fmt"
	"time"
)

// ApprovalService finalizes pending transactions.
type ApprovalService struct {
	Store    Store
	Balances *BalanceStore

	Now func() time.Time
}

func NewApprovalService(store Store) *ApprovalService {
	return &ApprovalService{Store: store, Balances: NewBalanceStore(store)}
}

func (s *ApprovalService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Approve moves a pending transaction to approved. Reward requests carry no
// balance effect here: their credit/debit was applied at submission. A plain
// earn transaction, which has no optimistic credit, is credited now.
func (s *ApprovalService) Approve(ctx context.Context, transactionID, note string) (*Transaction, error) {
	now := s.now()

	var updated Transaction
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		txn, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != StatusPending {
			return &StateConflictError{TransactionID: transactionID, Current: txn.Status, Attempted: "approve"}
		}

		if txn.Type == TxEarn && txn.CoinsEarned > 0 {
			if _, err := s.Balances.Apply(ctx, tx, txn.UserID, txn.CoinsEarned, 0); err != nil {
				return err
			}
		}

		txn.Status = StatusApproved
		if note != "" {
			txn.AdminNotes = note
		}
		txn.ProcessedAt = &now
		txn.StatusChangedAt = &now
		if err := tx.UpdateTransactionStatus(ctx, *txn); err != nil {
			return fmt.Errorf("failed to approve transaction: %w", err)
		}
		updated = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Reject moves a pending transaction to rejected and reverses its optimistic
// balance effect. The reason is mandatory.
func (s *ApprovalService) Reject(ctx context.Context, transactionID, reason string) (*Transaction, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	now := s.now()

	var updated Transaction
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		txn, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != StatusPending {
			return &StateConflictError{TransactionID: transactionID, Current: txn.Status, Attempted: "reject"}
		}

		// Earn transactions never applied a balance effect; everything else
		// submitted optimistically and must be reversed precisely.
		if txn.Type != TxEarn {
			if _, err := s.Balances.Revert(ctx, tx, txn.UserID, *txn); err != nil {
				return err
			}
		}

		txn.Status = StatusRejected
		txn.RejectionReason = reason
		txn.ProcessedAt = &now
		txn.StatusChangedAt = &now
		if err := tx.UpdateTransactionStatus(ctx, *txn); err != nil {
			return fmt.Errorf("failed to reject transaction: %w", err)
		}
		updated = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// MarkPaid moves an approved, redemption-bearing transaction to paid,
// recording the external payment reference. No balance effect.
func (s *ApprovalService) MarkPaid(ctx context.Context, transactionID, paymentRef, note string) (*Transaction, error) {
	if paymentRef == "" {
		return nil, ErrPaymentRefRequired
	}
	now := s.now()

	var updated Transaction
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		txn, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != StatusApproved {
			return &StateConflictError{TransactionID: transactionID, Current: txn.Status, Attempted: "mark_paid"}
		}
		if !txn.RedemptionBearing() {
			return ErrNotRedemptionBearing
		}

		txn.Status = StatusPaid
		txn.PaymentRef = paymentRef
		if note != "" {
			txn.AdminNotes = note
		}
		txn.StatusChangedAt = &now
		if err := tx.UpdateTransactionStatus(ctx, *txn); err != nil {
			return fmt.Errorf("failed to mark transaction paid: %w", err)
		}
		updated = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
