/*
store.go - Persistence interface for balances, transactions and staging records

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

TRANSACTIONAL DISCIPLINE:
  Every balance mutation must be committed in the same database transaction as
  its triggering ledger write. StoreTx is the handle for those operations; the
  workflows open exactly one WithTx per operation and pass the handle down to
  the validator and the balance store. A read-modify-write of a balance row
  performed outside WithTx is a correctness bug (lost-update race).

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (single-writer WAL, serialized writes)
  - coin/store:   In-memory with snapshot rollback, for tests/dev
*/
package coin

import (
	"context"
	"time"
)

// StoreTx is the set of operations available inside a storage transaction.
// Reads observe uncommitted writes of the same transaction.
type StoreTx interface {
	// Users and brands (boundary records; CRUD semantics live elsewhere)
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, u User) error
	GetBrand(ctx context.Context, id string) (*Brand, error)
	CreateBrand(ctx context.Context, b Brand) error
	ListBrands(ctx context.Context) ([]Brand, error)

	// Balance rows. InsertBalance returns ErrBalanceExists on a duplicate row
	// so the BalanceStore can resolve the first-write race by re-reading.
	GetBalance(ctx context.Context, userID string) (*Balance, error)
	InsertBalance(ctx context.Context, b Balance) error
	UpdateBalance(ctx context.Context, b Balance) error

	// Transaction ledger. Rows are append-mostly: only the status-bearing
	// fields (Status, AdminNotes, RejectionReason, PaymentRef, ProcessedAt,
	// StatusChangedAt) change after insert.
	InsertTransaction(ctx context.Context, t Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	UpdateTransactionStatus(ctx context.Context, t Transaction) error
	ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status TransactionStatus) ([]Transaction, error)

	// Duplicate-submission guard and welcome-bonus check
	HasPendingDuplicate(ctx context.Context, userID, brandID string, billAmount int64, billDate time.Time) (bool, error)
	HasWelcomeBonus(ctx context.Context, userID string) (bool, error)

	// Pending-submission staging. GetPendingSubmission returns the unclaimed
	// record for a session, or ErrNotFound.
	GetPendingSubmission(ctx context.Context, sessionID string) (*PendingSubmission, error)
	InsertPendingSubmission(ctx context.Context, p PendingSubmission) error
	UpdatePendingSubmission(ctx context.Context, p PendingSubmission) error
	DeletePendingSubmission(ctx context.Context, id string) error
	DeleteExpiredPendingSubmissions(ctx context.Context, asOf time.Time) (int64, error)
	DeleteClaimedPendingSubmissionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the top-level persistence handle. Calling StoreTx methods directly
// on a Store executes them outside any transaction; mutations that pair a
// ledger write with a balance write must go through WithTx.
type Store interface {
	StoreTx

	// WithTx executes fn within a storage transaction. If fn returns an
	// error the transaction is rolled back and the error is returned
	// unchanged; otherwise it is committed.
	WithTx(ctx context.Context, fn func(StoreTx) error) error

	Close() error
}
