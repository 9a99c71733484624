/*
balance.go - Balance mutation gateway

PURPOSE:
  The only component permitted to mutate balance rows. Submission and
  approval workflows call these operations with the StoreTx handle of their
  enclosing transaction so the balance write commits or rolls back together
  with the ledger write.

CRITICAL INVARIANT:
  Coins == TotalEarned - TotalRedeemed after every committed mutation.
  Apply and Revert preserve it by construction; tests assert it after every
  operation.

FIRST-WRITE RACE:
  Balance rows are created lazily. Two concurrent first-writes for the same
  user are expected: the loser's InsertBalance fails with ErrBalanceExists
  and readOrCreate re-reads instead of propagating the error.
*/
package coin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BalanceStore owns balance rows. Mutations take a StoreTx supplied by the
// caller; Read opens its own transaction for the lazy-create path.
type BalanceStore struct {
	Store Store
}

func NewBalanceStore(store Store) *BalanceStore {
	return &BalanceStore{Store: store}
}

// Read returns the current balance for a user, creating a zero row if none
// exists.
func (bs *BalanceStore) Read(ctx context.Context, userID string) (*Balance, error) {
	var balance *Balance
	err := bs.Store.WithTx(ctx, func(tx StoreTx) error {
		b, err := bs.readOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// Apply credits coinsEarned and debits coinsRedeemed in one mutation,
// updating the lifetime counters. Safe to call with either side zero.
func (bs *BalanceStore) Apply(ctx context.Context, tx StoreTx, userID string, coinsEarned, coinsRedeemed int64) (*Balance, error) {
	if coinsEarned < 0 || coinsRedeemed < 0 {
		return nil, fmt.Errorf("negative amounts: earned %d, redeemed %d", coinsEarned, coinsRedeemed)
	}

	balance, err := bs.readOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	balance.Coins += coinsEarned - coinsRedeemed
	balance.TotalEarned += coinsEarned
	balance.TotalRedeemed += coinsRedeemed
	balance.UpdatedAt = time.Now().UTC()

	if err := tx.UpdateBalance(ctx, *balance); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return balance, nil
}

// Revert undoes a transaction's optimistic balance effect: Coins is restored
// to the snapshot taken at submission time, and the lifetime counters are
// decremented by the exact earn/redeem amounts recorded on the transaction.
// Counter decrements clamp at zero to tolerate partial reversal attempts.
func (bs *BalanceStore) Revert(ctx context.Context, tx StoreTx, userID string, txn Transaction) (*Balance, error) {
	balance, err := bs.readOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	balance.Coins = txn.PreviousBalance
	balance.TotalEarned -= txn.CoinsEarned
	if balance.TotalEarned < 0 {
		balance.TotalEarned = 0
	}
	balance.TotalRedeemed -= txn.CoinsRedeemed
	if balance.TotalRedeemed < 0 {
		balance.TotalRedeemed = 0
	}
	balance.UpdatedAt = time.Now().UTC()

	if err := tx.UpdateBalance(ctx, *balance); err != nil {
		return nil, fmt.Errorf("failed to revert balance: %w", err)
	}
	return balance, nil
}

// ApplyDelta applies a signed admin correction directly. The caller records
// the matching adjustment transaction in the same StoreTx.
func (bs *BalanceStore) ApplyDelta(ctx context.Context, tx StoreTx, userID string, delta int64) (*Balance, error) {
	if delta > 0 {
		return bs.Apply(ctx, tx, userID, delta, 0)
	}
	return bs.Apply(ctx, tx, userID, 0, -delta)
}

// readOrCreate loads the balance row, zero-initializing it on first access.
// The loser of a concurrent create re-reads rather than erroring.
func (bs *BalanceStore) readOrCreate(ctx context.Context, tx StoreTx, userID string) (*Balance, error) {
	balance, err := tx.GetBalance(ctx, userID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := Balance{UserID: userID, CreatedAt: now, UpdatedAt: now}
	if insErr := tx.InsertBalance(ctx, fresh); insErr != nil {
		if errors.Is(insErr, ErrBalanceExists) {
			return tx.GetBalance(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create balance row: %w", insErr)
	}
	return &fresh, nil
}
