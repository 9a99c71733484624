// Package store provides coin.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/coin-engine/coin"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements coin.Store with map-backed tables. WithTx takes a
// snapshot of all state and restores it when fn fails, so the all-or-nothing
// contract holds exactly as it does for the SQL store. A single mutex
// serializes transactions.
type Memory struct {
	mu sync.Mutex

	users        map[string]coin.User
	brands       map[string]coin.Brand
	balances     map[string]coin.Balance
	transactions map[string]coin.Transaction
	pending      map[string]coin.PendingSubmission // keyed by record ID
}

var _ coin.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[string]coin.User),
		brands:       make(map[string]coin.Brand),
		balances:     make(map[string]coin.Balance),
		transactions: make(map[string]coin.Transaction),
		pending:      make(map[string]coin.PendingSubmission),
	}
}

func (m *Memory) Close() error { return nil }

// WithTx runs fn against the store under the mutex. On error the
// pre-transaction snapshot is restored.
func (m *Memory) WithTx(_ context.Context, fn func(coin.StoreTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) clone() *Memory {
	c := NewMemory()
	for k, v := range m.users {
		c.users[k] = v
	}
	for k, v := range m.brands {
		c.brands[k] = v
	}
	for k, v := range m.balances {
		c.balances[k] = v
	}
	for k, v := range m.transactions {
		c.transactions[k] = v
	}
	for k, v := range m.pending {
		c.pending[k] = v
	}
	return c
}

func (m *Memory) restore(snapshot *Memory) {
	m.users = snapshot.users
	m.brands = snapshot.brands
	m.balances = snapshot.balances
	m.transactions = snapshot.transactions
	m.pending = snapshot.pending
}

// Direct (non-transactional) calls lock and delegate to the same
// implementation the transactional handle uses.

func (m *Memory) GetUser(ctx context.Context, id string) (*coin.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).GetUser(ctx, id)
}

func (m *Memory) CreateUser(ctx context.Context, u coin.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).CreateUser(ctx, u)
}

func (m *Memory) GetBrand(ctx context.Context, id string) (*coin.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).GetBrand(ctx, id)
}

func (m *Memory) CreateBrand(ctx context.Context, b coin.Brand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).CreateBrand(ctx, b)
}

func (m *Memory) ListBrands(ctx context.Context) ([]coin.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).ListBrands(ctx)
}

func (m *Memory) GetBalance(ctx context.Context, userID string) (*coin.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).GetBalance(ctx, userID)
}

func (m *Memory) InsertBalance(ctx context.Context, b coin.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).InsertBalance(ctx, b)
}

func (m *Memory) UpdateBalance(ctx context.Context, b coin.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).UpdateBalance(ctx, b)
}

func (m *Memory) InsertTransaction(ctx context.Context, t coin.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).InsertTransaction(ctx, t)
}

func (m *Memory) GetTransaction(ctx context.Context, id string) (*coin.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).GetTransaction(ctx, id)
}

func (m *Memory) UpdateTransactionStatus(ctx context.Context, t coin.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).UpdateTransactionStatus(ctx, t)
}

func (m *Memory) ListTransactionsByUser(ctx context.Context, userID string) ([]coin.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).ListTransactionsByUser(ctx, userID)
}

func (m *Memory) ListTransactionsByStatus(ctx context.Context, status coin.TransactionStatus) ([]coin.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).ListTransactionsByStatus(ctx, status)
}

func (m *Memory) HasPendingDuplicate(ctx context.Context, userID, brandID string, billAmount int64, billDate time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).HasPendingDuplicate(ctx, userID, brandID, billAmount, billDate)
}

func (m *Memory) HasWelcomeBonus(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).HasWelcomeBonus(ctx, userID)
}

func (m *Memory) GetPendingSubmission(ctx context.Context, sessionID string) (*coin.PendingSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).GetPendingSubmission(ctx, sessionID)
}

func (m *Memory) InsertPendingSubmission(ctx context.Context, p coin.PendingSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).InsertPendingSubmission(ctx, p)
}

func (m *Memory) UpdatePendingSubmission(ctx context.Context, p coin.PendingSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).UpdatePendingSubmission(ctx, p)
}

func (m *Memory) DeletePendingSubmission(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).DeletePendingSubmission(ctx, id)
}

func (m *Memory) DeleteExpiredPendingSubmissions(ctx context.Context, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).DeleteExpiredPendingSubmissions(ctx, asOf)
}

func (m *Memory) DeleteClaimedPendingSubmissionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).DeleteClaimedPendingSubmissionsBefore(ctx, cutoff)
}

// =============================================================================
// TRANSACTIONAL HANDLE
// =============================================================================

// memTx operates on the parent store directly; rollback is handled by the
// snapshot in WithTx. Callers hold the mutex for the duration.
type memTx struct {
	m *Memory
}

var _ coin.StoreTx = (*memTx)(nil)

func (t *memTx) GetUser(_ context.Context, id string) (*coin.User, error) {
	u, ok := t.m.users[id]
	if !ok {
		return nil, coin.ErrUserNotFound
	}
	return &u, nil
}

func (t *memTx) CreateUser(_ context.Context, u coin.User) error {
	if _, ok := t.m.users[u.ID]; ok {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	t.m.users[u.ID] = u
	return nil
}

func (t *memTx) GetBrand(_ context.Context, id string) (*coin.Brand, error) {
	b, ok := t.m.brands[id]
	if !ok {
		return nil, coin.ErrBrandNotFound
	}
	return &b, nil
}

func (t *memTx) CreateBrand(_ context.Context, b coin.Brand) error {
	if _, ok := t.m.brands[b.ID]; ok {
		return fmt.Errorf("brand %s already exists", b.ID)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	t.m.brands[b.ID] = b
	return nil
}

func (t *memTx) ListBrands(_ context.Context) ([]coin.Brand, error) {
	brands := make([]coin.Brand, 0, len(t.m.brands))
	for _, b := range t.m.brands {
		brands = append(brands, b)
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i].Name < brands[j].Name })
	return brands, nil
}

func (t *memTx) GetBalance(_ context.Context, userID string) (*coin.Balance, error) {
	b, ok := t.m.balances[userID]
	if !ok {
		return nil, fmt.Errorf("balance for user %s: %w", userID, coin.ErrNotFound)
	}
	return &b, nil
}

func (t *memTx) InsertBalance(_ context.Context, b coin.Balance) error {
	if _, ok := t.m.balances[b.UserID]; ok {
		return coin.ErrBalanceExists
	}
	t.m.balances[b.UserID] = b
	return nil
}

func (t *memTx) UpdateBalance(_ context.Context, b coin.Balance) error {
	if _, ok := t.m.balances[b.UserID]; !ok {
		return fmt.Errorf("balance for user %s: %w", b.UserID, coin.ErrNotFound)
	}
	t.m.balances[b.UserID] = b
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn coin.Transaction) error {
	if _, ok := t.m.transactions[txn.ID]; ok {
		return fmt.Errorf("transaction %s already exists", txn.ID)
	}
	t.m.transactions[txn.ID] = txn
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*coin.Transaction, error) {
	txn, ok := t.m.transactions[id]
	if !ok {
		return nil, coin.ErrTransactionNotFound
	}
	return &txn, nil
}

func (t *memTx) UpdateTransactionStatus(_ context.Context, txn coin.Transaction) error {
	existing, ok := t.m.transactions[txn.ID]
	if !ok {
		return coin.ErrTransactionNotFound
	}
	existing.Status = txn.Status
	existing.AdminNotes = txn.AdminNotes
	existing.RejectionReason = txn.RejectionReason
	existing.PaymentRef = txn.PaymentRef
	existing.ProcessedAt = txn.ProcessedAt
	existing.StatusChangedAt = txn.StatusChangedAt
	t.m.transactions[txn.ID] = existing
	return nil
}

func (t *memTx) ListTransactionsByUser(_ context.Context, userID string) ([]coin.Transaction, error) {
	var txs []coin.Transaction
	for _, txn := range t.m.transactions {
		if txn.UserID == userID {
			txs = append(txs, txn)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}

func (t *memTx) ListTransactionsByStatus(_ context.Context, status coin.TransactionStatus) ([]coin.Transaction, error) {
	var txs []coin.Transaction
	for _, txn := range t.m.transactions {
		if txn.Status == status {
			txs = append(txs, txn)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.Before(txs[j].CreatedAt) })
	return txs, nil
}

func (t *memTx) HasPendingDuplicate(_ context.Context, userID, brandID string, billAmount int64, billDate time.Time) (bool, error) {
	day := billDate.Format("2006-01-02")
	for _, txn := range t.m.transactions {
		if txn.UserID == userID && txn.BrandID == brandID &&
			txn.BillAmount == billAmount && txn.Status == coin.StatusPending &&
			txn.BillDate.Format("2006-01-02") == day {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) HasWelcomeBonus(_ context.Context, userID string) (bool, error) {
	for _, txn := range t.m.transactions {
		if txn.UserID == userID && txn.Type == coin.TxWelcomeBonus {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) GetPendingSubmission(_ context.Context, sessionID string) (*coin.PendingSubmission, error) {
	for _, p := range t.m.pending {
		if p.SessionID == sessionID && !p.Claimed {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("pending submission for session %s: %w", sessionID, coin.ErrNotFound)
}

func (t *memTx) InsertPendingSubmission(_ context.Context, p coin.PendingSubmission) error {
	if _, ok := t.m.pending[p.ID]; ok {
		return fmt.Errorf("pending submission %s already exists", p.ID)
	}
	t.m.pending[p.ID] = p
	return nil
}

func (t *memTx) UpdatePendingSubmission(_ context.Context, p coin.PendingSubmission) error {
	if _, ok := t.m.pending[p.ID]; !ok {
		return fmt.Errorf("pending submission %s: %w", p.ID, coin.ErrNotFound)
	}
	t.m.pending[p.ID] = p
	return nil
}

func (t *memTx) DeletePendingSubmission(_ context.Context, id string) error {
	delete(t.m.pending, id)
	return nil
}

func (t *memTx) DeleteExpiredPendingSubmissions(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for id, p := range t.m.pending {
		if !p.Claimed && asOf.After(p.ExpiresAt) {
			delete(t.m.pending, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) DeleteClaimedPendingSubmissionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, p := range t.m.pending {
		if p.Claimed && p.ClaimedAt != nil && p.ClaimedAt.Before(cutoff) {
			delete(t.m.pending, id)
			n++
		}
	}
	return n, nil
}
