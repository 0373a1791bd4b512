package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coinbot/backend/internal/clock"
	"go.uber.org/zap"
)

var accountColumnNames = []string{
	"id", "telegram_id", "username", "first_name", "last_name",
	"balance", "streak", "last_claim_at", "referral_code", "referred_by",
	"is_active", "version", "created_at", "updated_at",
}

type accountFixture struct {
	ID          int64
	TelegramID  string
	Username    string
	Balance     int64
	Streak      int
	LastClaimAt *time.Time
	Code        string
	ReferredBy  *string
	Version     int
}

func (f accountFixture) rows() *sqlmock.Rows {
	var lastClaim, referredBy any
	if f.LastClaimAt != nil {
		lastClaim = *f.LastClaimAt
	}
	if f.ReferredBy != nil {
		referredBy = *f.ReferredBy
	}
	telegramID := f.TelegramID
	if telegramID == "" {
		telegramID = "1000"
	}
	code := f.Code
	if code == "" {
		code = "CODE0001"
	}
	version := f.Version
	if version == 0 {
		version = 1
	}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(accountColumnNames).AddRow(
		f.ID, telegramID, f.Username, "", "",
		f.Balance, f.Streak, lastClaim, code, referredBy,
		true, version, created, created,
	)
}

func expectLock(mock sqlmock.Sqlmock, f accountFixture) {
	mock.ExpectQuery("FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs(f.ID).
		WillReturnRows(f.rows())
}

func expectEntry(mock sqlmock.Sqlmock, accountID int64, kind string, amount, balanceAfter, entryID int64) {
	mock.ExpectQuery("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), accountID, kind, amount, balanceAfter, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID))
}

func expectSave(mock sqlmock.Sqlmock, accountID, balance int64, streak, version int) *sqlmock.ExpectedExec {
	return mock.ExpectExec("UPDATE accounts SET balance = \\$1, streak = \\$2").
		WithArgs(balance, streak, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), accountID, version)
}

func fixedClock(t time.Time) clock.Clock {
	return clock.Func(func() time.Time { return t })
}

// pacific is the calendar every service test runs on.
func pacific(t *testing.T) *clock.Calendar {
	t.Helper()
	return clock.NewCalendar("America/Los_Angeles", nil)
}

func newTestLedger(t *testing.T, now time.Time) (*LedgerService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	ledger := NewLedgerService(db, zap.NewNop(), WithClock(fixedClock(now)), WithRetry(3, 0))
	return ledger, mock, func() { db.Close() }
}

type staticSettings struct {
	daily    int64
	referral int64
}

func (s staticSettings) DailyRewardAmount(context.Context) int64    { return s.daily }
func (s staticSettings) ReferralRewardAmount(context.Context) int64 { return s.referral }
