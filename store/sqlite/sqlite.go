/*
Package sqlite provides a SQLite-backed implementation of coin.Store.

PURPOSE:
  Implements the storage contract using database/sql. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences (and
  SELECT ... FOR UPDATE on the balance row instead of writer serialization).

KEY TABLES:
  users:               Boundary identity records
  brands:              Earning/redemption configuration
  balances:            One row per user; the primary key on user_id is what
                       makes the first-write race detectable
  transactions:        Append-mostly ledger; only status-bearing columns change
  pending_submissions: Session-keyed staging records with TTL

ATOMIC UNITS:
  WithTx wraps fn in a single BEGIN ... COMMIT. A mutex serializes writers on
  top of SQLite's single-writer model, so a balance read-modify-write inside
  WithTx cannot interleave with another submission for the same user. This is
  the engine's sole serialization point; no shared mutable state exists
  outside the database.

WAL MODE:
  The database is opened with WAL so readers don't block behind the writer.

USAGE:
  store, err := sqlite.New("./coins.db")   // ":memory:" for tests
  defer store.Close()

SEE ALSO:
  - coin/store.go: Interface definitions
  - coin/store/memory.go: In-memory implementation for tests/dev
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/coin-engine/coin"
)

const (
	// Fixed-width UTC encoding: trailing fractional zeros are kept so the
	// lexicographic order of stored strings equals time order, which the
	// sweep range queries rely on. RFC3339Nano trims them and breaks that.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout = "2006-01-02"
)

// Store implements coin.Store on SQLite.
type Store struct {
	session
	db *sql.DB
	mu sync.Mutex
}

var _ coin.Store = (*Store)(nil)

// New opens (or creates) the database at the given path and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and sidesteps
	// SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	store.session.db = db
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn inside one database transaction, serialized against
// other writers.
func (s *Store) WithTx(ctx context.Context, fn func(coin.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&session{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS brands (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		earning_percentage TEXT NOT NULL,
		redemption_percentage TEXT NOT NULL,
		max_earn_per_tx INTEGER NOT NULL DEFAULT 0,
		max_redeem_per_tx INTEGER NOT NULL DEFAULT 0,
		min_redemption INTEGER NOT NULL DEFAULT 0,
		max_redemption INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- One balance row per user. The primary key turns a concurrent first
	-- write into a detectable UNIQUE violation instead of a duplicate row.
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		coins INTEGER NOT NULL DEFAULT 0,
		total_earned INTEGER NOT NULL DEFAULT 0,
		total_redeemed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		brand_id TEXT,
		tx_type TEXT NOT NULL,
		status TEXT NOT NULL,
		bill_amount INTEGER NOT NULL DEFAULT 0,
		bill_date TEXT,
		receipt_ref TEXT,
		coins_earned INTEGER NOT NULL DEFAULT 0,
		coins_redeemed INTEGER NOT NULL DEFAULT 0,
		previous_balance INTEGER NOT NULL DEFAULT 0,
		amount INTEGER NOT NULL DEFAULT 0,
		payout_id TEXT,
		admin_notes TEXT,
		rejection_reason TEXT,
		payment_ref TEXT,
		created_at TEXT NOT NULL,
		processed_at TEXT,
		status_changed_at TEXT
	);

	-- Duplicate-submission guard (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_dup_guard
		ON transactions(user_id, brand_id, bill_amount, bill_date, status);
	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_status
		ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_type
		ON transactions(user_id, tx_type);

	CREATE TABLE IF NOT EXISTS pending_submissions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		brand_id TEXT,
		bill_amount INTEGER NOT NULL DEFAULT 0,
		receipt_ref TEXT,
		file_name TEXT,
		expires_at TEXT NOT NULL,
		claimed BOOLEAN NOT NULL DEFAULT FALSE,
		claimed_by TEXT,
		claimed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- At most one unclaimed record per session
	CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_unclaimed_session
		ON pending_submissions(session_id) WHERE claimed = FALSE;
	CREATE INDEX IF NOT EXISTS idx_pending_expires
		ON pending_submissions(expires_at) WHERE claimed = FALSE;
	CREATE INDEX IF NOT EXISTS idx_pending_claimed_at
		ON pending_submissions(claimed_at) WHERE claimed = TRUE;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SESSION - coin.StoreTx over either *sql.DB or *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type session struct {
	db dbtx
}

var _ coin.StoreTx = (*session)(nil)

// -----------------------------------------------------------------------------
// Users and brands
// -----------------------------------------------------------------------------

func (s *session) GetUser(ctx context.Context, id string) (*coin.User, error) {
	var (
		u         coin.User
		email     sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, coin.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u.Email = email.String
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (s *session) CreateUser(ctx context.Context, u coin.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, nullString(u.Email), formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *session) GetBrand(ctx context.Context, id string) (*coin.Brand, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, active, earning_percentage, redemption_percentage,
		       max_earn_per_tx, max_redeem_per_tx, min_redemption, max_redemption, created_at
		FROM brands WHERE id = ?`, id)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		return nil, coin.ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load brand: %w", err)
	}
	return b, nil
}

func (s *session) CreateBrand(ctx context.Context, b coin.Brand) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO brands
		(id, name, category, active, earning_percentage, redemption_percentage,
		 max_earn_per_tx, max_redeem_per_tx, min_redemption, max_redemption, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, nullString(b.Category), b.Active,
		b.EarningPercentage.String(), b.RedemptionPercentage.String(),
		b.MaxEarnPerTransaction, b.MaxRedeemPerTransaction,
		b.MinRedemption, b.MaxRedemption,
		formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create brand: %w", err)
	}
	return nil
}

func (s *session) ListBrands(ctx context.Context) ([]coin.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, active, earning_percentage, redemption_percentage,
		       max_earn_per_tx, max_redeem_per_tx, min_redemption, max_redemption, created_at
		FROM brands ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	var brands []coin.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, *b)
	}
	return brands, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBrand(row scanner) (*coin.Brand, error) {
	var (
		b                  coin.Brand
		category           sql.NullString
		earnPct, redeemPct string
		createdAt          string
	)
	err := row.Scan(&b.ID, &b.Name, &category, &b.Active, &earnPct, &redeemPct,
		&b.MaxEarnPerTransaction, &b.MaxRedeemPerTransaction,
		&b.MinRedemption, &b.MaxRedemption, &createdAt)
	if err != nil {
		return nil, err
	}
	b.Category = category.String
	b.EarningPercentage, _ = decimal.NewFromString(earnPct)
	b.RedemptionPercentage, _ = decimal.NewFromString(redeemPct)
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

// -----------------------------------------------------------------------------
// Balances
// -----------------------------------------------------------------------------

func (s *session) GetBalance(ctx context.Context, userID string) (*coin.Balance, error) {
	var (
		b                    coin.Balance
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, coins, total_earned, total_redeemed, created_at, updated_at
		FROM balances WHERE user_id = ?`, userID,
	).Scan(&b.UserID, &b.Coins, &b.TotalEarned, &b.TotalRedeemed, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("balance for user %s: %w", userID, coin.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

func (s *session) InsertBalance(ctx context.Context, b coin.Balance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (user_id, coins, total_earned, total_redeemed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.Coins, b.TotalEarned, b.TotalRedeemed,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return coin.ErrBalanceExists
		}
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	return nil
}

func (s *session) UpdateBalance(ctx context.Context, b coin.Balance) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE balances SET coins = ?, total_earned = ?, total_redeemed = ?, updated_at = ?
		WHERE user_id = ?`,
		b.Coins, b.TotalEarned, b.TotalRedeemed, formatTime(b.UpdatedAt), b.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("balance for user %s: %w", b.UserID, coin.ErrNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Transactions
// -----------------------------------------------------------------------------

func (s *session) InsertTransaction(ctx context.Context, t coin.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, brand_id, tx_type, status, bill_amount, bill_date, receipt_ref,
		 coins_earned, coins_redeemed, previous_balance, amount, payout_id,
		 admin_notes, rejection_reason, payment_ref, created_at, processed_at, status_changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, nullString(t.BrandID), t.Type, t.Status,
		t.BillAmount, nullDate(t.BillDate), nullString(t.ReceiptRef),
		t.CoinsEarned, t.CoinsRedeemed, t.PreviousBalance, t.Amount,
		nullString(t.PayoutID), nullString(t.AdminNotes),
		nullString(t.RejectionReason), nullString(t.PaymentRef),
		formatTime(t.CreatedAt), nullTime(t.ProcessedAt), nullTime(t.StatusChangedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *session) GetTransaction(ctx context.Context, id string) (*coin.Transaction, error) {
	row := s.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, coin.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return t, nil
}

// UpdateTransactionStatus writes only the status-bearing columns. The
// submission-time snapshot columns are immutable.
func (s *session) UpdateTransactionStatus(ctx context.Context, t coin.Transaction) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, admin_notes = ?, rejection_reason = ?, payment_ref = ?,
		    processed_at = ?, status_changed_at = ?
		WHERE id = ?`,
		t.Status, nullString(t.AdminNotes), nullString(t.RejectionReason),
		nullString(t.PaymentRef), nullTime(t.ProcessedAt), nullTime(t.StatusChangedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return coin.ErrTransactionNotFound
	}
	return nil
}

func (s *session) ListTransactionsByUser(ctx context.Context, userID string) ([]coin.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *session) ListTransactionsByStatus(ctx context.Context, status coin.TransactionStatus) ([]coin.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE status = ? ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *session) HasPendingDuplicate(ctx context.Context, userID, brandID string, billAmount int64, billDate time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM transactions
		WHERE user_id = ? AND brand_id = ? AND bill_amount = ? AND bill_date = ? AND status = ?`,
		userID, brandID, billAmount, billDate.Format(dateLayout), coin.StatusPending,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate submissions: %w", err)
	}
	return n > 0, nil
}

func (s *session) HasWelcomeBonus(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transactions WHERE user_id = ? AND tx_type = ?`,
		userID, coin.TxWelcomeBonus,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check welcome bonus: %w", err)
	}
	return n > 0, nil
}

const selectTransaction = `
	SELECT id, user_id, brand_id, tx_type, status, bill_amount, bill_date, receipt_ref,
	       coins_earned, coins_redeemed, previous_balance, amount, payout_id,
	       admin_notes, rejection_reason, payment_ref, created_at, processed_at, status_changed_at
	FROM transactions`

func scanTransaction(row scanner) (*coin.Transaction, error) {
	var (
		t                                       coin.Transaction
		brandID, billDate, receiptRef, payoutID sql.NullString
		adminNotes, rejectionReason, paymentRef sql.NullString
		createdAt                               string
		processedAt, statusChangedAt            sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &brandID, &t.Type, &t.Status,
		&t.BillAmount, &billDate, &receiptRef,
		&t.CoinsEarned, &t.CoinsRedeemed, &t.PreviousBalance, &t.Amount, &payoutID,
		&adminNotes, &rejectionReason, &paymentRef,
		&createdAt, &processedAt, &statusChangedAt)
	if err != nil {
		return nil, err
	}
	t.BrandID = brandID.String
	t.ReceiptRef = receiptRef.String
	t.PayoutID = payoutID.String
	t.AdminNotes = adminNotes.String
	t.RejectionReason = rejectionReason.String
	t.PaymentRef = paymentRef.String
	t.CreatedAt = parseTime(createdAt)
	if billDate.Valid {
		t.BillDate, _ = time.ParseInLocation(dateLayout, billDate.String, time.UTC)
	}
	t.ProcessedAt = parseNullTime(processedAt)
	t.StatusChangedAt = parseNullTime(statusChangedAt)
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]coin.Transaction, error) {
	var txs []coin.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// -----------------------------------------------------------------------------
// Pending submissions
// -----------------------------------------------------------------------------

func (s *session) GetPendingSubmission(ctx context.Context, sessionID string) (*coin.PendingSubmission, error) {
	var (
		p                               coin.PendingSubmission
		brandID, receiptRef, fileName   sql.NullString
		claimedBy, claimedAt            sql.NullString
		expiresAt, createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, brand_id, bill_amount, receipt_ref, file_name,
		       expires_at, claimed, claimed_by, claimed_at, created_at, updated_at
		FROM pending_submissions WHERE session_id = ? AND claimed = FALSE`, sessionID,
	).Scan(&p.ID, &p.SessionID, &brandID, &p.BillAmount, &receiptRef, &fileName,
		&expiresAt, &p.Claimed, &claimedBy, &claimedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pending submission for session %s: %w", sessionID, coin.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending submission: %w", err)
	}
	p.BrandID = brandID.String
	p.ReceiptRef = receiptRef.String
	p.FileName = fileName.String
	p.ClaimedBy = claimedBy.String
	p.ClaimedAt = parseNullTime(claimedAt)
	p.ExpiresAt = parseTime(expiresAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (s *session) InsertPendingSubmission(ctx context.Context, p coin.PendingSubmission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_submissions
		(id, session_id, brand_id, bill_amount, receipt_ref, file_name,
		 expires_at, claimed, claimed_by, claimed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, nullString(p.BrandID), p.BillAmount,
		nullString(p.ReceiptRef), nullString(p.FileName),
		formatTime(p.ExpiresAt), p.Claimed,
		nullString(p.ClaimedBy), nullTime(p.ClaimedAt),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending submission: %w", err)
	}
	return nil
}

func (s *session) UpdatePendingSubmission(ctx context.Context, p coin.PendingSubmission) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_submissions
		SET brand_id = ?, bill_amount = ?, receipt_ref = ?, file_name = ?,
		    expires_at = ?, claimed = ?, claimed_by = ?, claimed_at = ?, updated_at = ?
		WHERE id = ?`,
		nullString(p.BrandID), p.BillAmount, nullString(p.ReceiptRef), nullString(p.FileName),
		formatTime(p.ExpiresAt), p.Claimed,
		nullString(p.ClaimedBy), nullTime(p.ClaimedAt), formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pending submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pending submission %s: %w", p.ID, coin.ErrNotFound)
	}
	return nil
}

func (s *session) DeletePendingSubmission(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending submission: %w", err)
	}
	return nil
}

func (s *session) DeleteExpiredPendingSubmissions(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_submissions WHERE claimed = FALSE AND expires_at < ?`,
		formatTime(asOf))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired submissions: %w", err)
	}
	return res.RowsAffected()
}

func (s *session) DeleteClaimedPendingSubmissionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_submissions WHERE claimed = TRUE AND claimed_at < ?`,
		formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep claimed submissions: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

// formatTime normalizes to UTC before encoding; the layout's zone marker is
// a literal "Z".
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
