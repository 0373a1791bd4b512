package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coinbot/backend/internal/audit"
	"github.com/coinbot/backend/internal/clock"
	"github.com/coinbot/backend/internal/models"
	"github.com/coinbot/backend/internal/monitoring"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// LedgerService owns every balance mutation. Each mutation runs under an
// exclusive row lock on the account and is saved with a version check, so
// concurrent operations on one account serialize and never lose updates.
type LedgerService struct {
	db          *sql.DB
	log         *zap.Logger
	audit       *audit.Logger
	clock       clock.Clock
	maxAttempts int
	backoff     time.Duration
}

type LedgerOption func(*LedgerService)

func WithClock(c clock.Clock) LedgerOption {
	return func(s *LedgerService) { s.clock = c }
}

// WithRetry bounds how many times a conflicting read-modify-write is attempted.
func WithRetry(attempts int, backoff time.Duration) LedgerOption {
	return func(s *LedgerService) {
		if attempts < 1 {
			attempts = 1
		}
		s.maxAttempts = attempts
		s.backoff = backoff
	}
}

func WithAuditLogger(a *audit.Logger) LedgerOption {
	return func(s *LedgerService) { s.audit = a }
}

func NewLedgerService(db *sql.DB, log *zap.Logger, opts ...LedgerOption) *LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &LedgerService{
		db:          db,
		log:         log.Named("ledger"),
		clock:       clock.System(),
		maxAttempts: 3,
		backoff:     50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = audit.NewLogger(log)
	}
	return s
}

// AccountTx is the scoped, exclusive view of one locked account.
// Balance changes must go through Post; other fields on Account
// (streak, last claim, referral binding) are saved with it on commit.
type AccountTx struct {
	Tx      *sql.Tx
	Account *models.Account

	now     time.Time
	entries []*models.LedgerEntry
}

// Now is the timestamp shared by every entry posted in this unit.
func (a *AccountTx) Now() time.Time { return a.now }

// Post appends an entry and moves the balance by amount. A result below
// zero fails with ErrInsufficientBalance and nothing is written.
func (a *AccountTx) Post(ctx context.Context, amount int64, kind models.EntryKind, description string) (*models.LedgerEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}
	balanceAfter := a.Account.Balance + amount
	if balanceAfter < 0 {
		return nil, ErrInsufficientBalance
	}

	entry := &models.LedgerEntry{
		Reference:    uuid.NewString(),
		AccountID:    a.Account.ID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  description,
		CreatedAt:    a.now,
	}
	query := `
		INSERT INTO ledger_entries (reference, account_id, kind, amount, balance_after, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := a.Tx.QueryRowContext(ctx, query,
		entry.Reference, entry.AccountID, string(entry.Kind), entry.Amount,
		entry.BalanceAfter, entry.Description, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	a.Account.Balance = balanceAfter
	a.entries = append(a.entries, entry)
	return entry, nil
}

// WithAccountLock runs fn against the locked account inside one transaction
// and saves the account afterwards. Storage conflicts are retried up to the
// configured attempt count; fn may run more than once and must not keep
// state between calls. Business errors returned by fn abort without retry.
func (s *LedgerService) WithAccountLock(ctx context.Context, accountID int64, fn func(atx *AccountTx) error) (*models.Account, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		account, err := s.runLocked(ctx, accountID, fn)
		if err == nil {
			return account, nil
		}
		if !isConflict(err) {
			s.recordFailure(accountID, err)
			return nil, err
		}
		lastErr = err
		if attempt == s.maxAttempts {
			break
		}

		monitoring.LedgerConflictRetries.Inc()
		s.log.Warn("storage conflict, retrying",
			zap.Int64("account_id", accountID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, s.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}

	err := fmt.Errorf("%w: %v", ErrStorageConflict, lastErr)
	s.recordFailure(accountID, err)
	return nil, err
}

func (s *LedgerService) runLocked(ctx context.Context, accountID int64, fn func(atx *AccountTx) error) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	atx := &AccountTx{Tx: tx, Account: account, now: s.clock.Now()}
	if err := fn(atx); err != nil {
		return nil, err
	}
	if err := s.saveAccount(ctx, tx, account, atx.now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	account.Version++
	account.UpdatedAt = atx.now
	for _, e := range atx.entries {
		monitoring.LedgerEntriesTotal.WithLabelValues(string(e.Kind)).Inc()
		s.audit.LogEntry(e.Reference, e.AccountID, string(e.Kind), e.Amount, e.BalanceAfter)
	}
	return account, nil
}

func (s *LedgerService) recordFailure(accountID int64, err error) {
	if IsBusinessError(err) {
		monitoring.LedgerRejectionsTotal.WithLabelValues(reasonOf(err)).Inc()
		return
	}
	if errors.Is(err, ErrStorageConflict) {
		monitoring.LedgerRejectionsTotal.WithLabelValues(reasonOf(err)).Inc()
	}
	s.audit.LogError("LEDGER", accountID, err)
}

// GrantReward credits (or, with a negative amount, debits) an account in a
// single atomic unit and returns the account as committed.
func (s *LedgerService) GrantReward(ctx context.Context, accountID, amount int64, kind models.EntryKind, description string) (*models.Account, error) {
	return s.WithAccountLock(ctx, accountID, func(atx *AccountTx) error {
		_, err := atx.Post(ctx, amount, kind, description)
		return err
	})
}

// AdjustBalance is the admin entry point; delta must be non-zero.
func (s *LedgerService) AdjustBalance(ctx context.Context, accountID, delta int64, reason string) (*models.Account, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	if reason == "" {
		reason = "Admin adjustment"
	}
	return s.GrantReward(ctx, accountID, delta, models.KindAdminAdjustment, reason)
}

type ResetSummary struct {
	Accounts     int              `json:"accounts"`
	Reset        int              `json:"reset"`
	TotalRemoved int64            `json:"total_removed"`
	ResetIDs     []int64          `json:"reset_ids,omitempty"`
	Failed       map[int64]string `json:"failed,omitempty"`
}

// ResetAllBalances zeroes every positive balance. Each account is reset in
// its own locked unit with an offsetting admin entry, so a concurrent grant
// is either fully before or fully after the reset for that account.
func (s *LedgerService) ResetAllBalances(ctx context.Context, reason string) (*ResetSummary, error) {
	if reason == "" {
		reason = "Balance reset"
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts WHERE balance > 0 ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary := &ResetSummary{Accounts: len(ids)}
	for _, id := range ids {
		var removed int64
		_, err := s.WithAccountLock(ctx, id, func(atx *AccountTx) error {
			removed = 0
			if atx.Account.Balance == 0 {
				return nil
			}
			removed = atx.Account.Balance
			_, err := atx.Post(ctx, -atx.Account.Balance, models.KindAdminAdjustment, reason)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			if summary.Failed == nil {
				summary.Failed = make(map[int64]string)
			}
			summary.Failed[id] = err.Error()
			continue
		}
		if removed > 0 {
			summary.Reset++
			summary.TotalRemoved += removed
			summary.ResetIDs = append(summary.ResetIDs, id)
		}
	}

	s.audit.LogOperation("RESET", 0, fmt.Sprintf("reset %d of %d accounts, removed %d", summary.Reset, summary.Accounts, summary.TotalRemoved))
	return summary, nil
}

type BalanceCheck struct {
	AccountID  int64 `json:"account_id"`
	Balance    int64 `json:"balance"`
	LedgerSum  int64 `json:"ledger_sum"`
	Consistent bool  `json:"consistent"`
}

// VerifyBalance compares the stored balance with the sum of its entries.
func (s *LedgerService) VerifyBalance(ctx context.Context, accountID int64) (*BalanceCheck, error) {
	query := `
		SELECT a.balance, COALESCE(SUM(e.amount), 0)
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		WHERE a.id = $1
		GROUP BY a.id, a.balance`

	check := &BalanceCheck{AccountID: accountID}
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(&check.Balance, &check.LedgerSum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	check.Consistent = check.Balance == check.LedgerSum
	return check, nil
}

// ListEntries returns the newest entries first.
func (s *LedgerService) ListEntries(ctx context.Context, accountID int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
		SELECT id, reference, account_id, kind, amount, balance_after, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.Reference, &e.AccountID, &kind, &e.Amount, &e.BalanceAfter, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = models.EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, accountID int64) (*models.Account, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

func (s *LedgerService) saveAccount(ctx context.Context, tx *sql.Tx, account *models.Account, now time.Time) error {
	query := `
		UPDATE accounts
		SET balance = $1, streak = $2, last_claim_at = $3, referred_by = $4,
			version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`

	var lastClaim sql.NullTime
	if account.LastClaimAt != nil {
		lastClaim = sql.NullTime{Time: *account.LastClaimAt, Valid: true}
	}
	var referredBy sql.NullString
	if account.ReferredBy != nil {
		referredBy = sql.NullString{String: *account.ReferredBy, Valid: true}
	}

	result, err := tx.ExecContext(ctx, query,
		account.Balance, account.Streak, lastClaim, referredBy, now, account.ID, account.Version,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w for account %d", errVersionConflict, account.ID)
	}
	return nil
}

const accountColumns = `id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	balance, streak, last_claim_at, referral_code, referred_by, is_active, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var lastClaim sql.NullTime
	var referredBy sql.NullString
	if err := row.Scan(accountDest(&a, &lastClaim, &referredBy)...); err != nil {
		return nil, err
	}
	fillAccount(&a, lastClaim, referredBy)
	return &a, nil
}

func accountDest(a *models.Account, lastClaim *sql.NullTime, referredBy *sql.NullString) []any {
	return []any{
		&a.ID, &a.TelegramID, &a.Username, &a.FirstName, &a.LastName,
		&a.Balance, &a.Streak, lastClaim, &a.ReferralCode, referredBy,
		&a.IsActive, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	}
}

func fillAccount(a *models.Account, lastClaim sql.NullTime, referredBy sql.NullString) {
	if lastClaim.Valid {
		t := lastClaim.Time
		a.LastClaimAt = &t
	}
	if referredBy.Valid {
		code := referredBy.String
		a.ReferredBy = &code
	}
}

// isConflict reports whether err is transient contention worth retrying.
func isConflict(err error) bool {
	if errors.Is(err, errVersionConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
