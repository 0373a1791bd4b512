package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var raffleColumnNames = []string{
	"id", "title", "description", "prize_description", "entry_cost", "max_entries",
	"current_entries", "start_date", "end_date", "winner_id", "is_active", "created_at",
}

func raffleRows(id int64, cost int64, maxEntries any, current int, end time.Time) *sqlmock.Rows {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(raffleColumnNames).
		AddRow(id, "Spring draw", "", "A hoodie", cost, maxEntries, current, start, end, nil, true, start)
}

func TestRaffleService_Enter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	end := now.Add(72 * time.Hour)

	t.Run("debits entry cost", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 12})
		mock.ExpectQuery("FROM raffles WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(3)).
			WillReturnRows(raffleRows(3, 5, 100, 10, end))
		mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), int64(1), "raffle_entry", int64(-5), int64(7), "Entered raffle Spring draw", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("INSERT INTO raffle_entries").
			WithArgs(int64(3), int64(1), 1, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(40))
		mock.ExpectExec("UPDATE raffles SET current_entries = current_entries \\+ 1").
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSave(mock, 1, 7, 0, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		entry, account, err := service.Enter(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(40), entry.ID)
		assert.Equal(t, int64(7), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ended raffle", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 12})
		mock.ExpectQuery("FROM raffles WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(3)).
			WillReturnRows(raffleRows(3, 5, nil, 10, now.Add(-time.Minute)))
		mock.ExpectRollback()

		_, _, err := service.Enter(ctx, 1, 3)
		assert.ErrorIs(t, err, ErrRaffleClosed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full raffle", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 12})
		mock.ExpectQuery("FROM raffles WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(3)).
			WillReturnRows(raffleRows(3, 5, 10, 10, end))
		mock.ExpectRollback()

		_, _, err := service.Enter(ctx, 1, 3)
		assert.ErrorIs(t, err, ErrRaffleFull)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing raffle", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 12})
		mock.ExpectQuery("FROM raffles WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(raffleColumnNames))
		mock.ExpectRollback()

		_, _, err := service.Enter(ctx, 1, 9)
		assert.ErrorIs(t, err, ErrRaffleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRaffleService_ListActive(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	ledger, mock, done := newTestLedger(t, now)
	defer done()
	service := NewRaffleService(ledger.db, ledger)

	mock.ExpectQuery("FROM raffles WHERE is_active = TRUE AND end_date > \\$1").
		WithArgs(now).
		WillReturnRows(raffleRows(3, 5, nil, 0, now.Add(time.Hour)))

	raffles, err := service.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, raffles, 1)
	assert.Nil(t, raffles[0].MaxEntries)
	assert.Equal(t, "Spring draw", raffles[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRaffleService_Admin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	end := now.Add(72 * time.Hour)

	t.Run("create starts now by default", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		mock.ExpectQuery("INSERT INTO raffles").
			WithArgs("Spring draw", "", "A hoodie", int64(5), nil, now, end, true, now).
			WillReturnRows(raffleRows(9, 5, nil, 0, end))

		raffle, err := service.Create(ctx, RaffleInput{Title: "Spring draw", PrizeDescription: "A hoodie", EntryCost: 5, EndDate: end})
		require.NoError(t, err)
		assert.Equal(t, int64(9), raffle.ID)
		assert.Nil(t, raffle.MaxEntries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create rejects an end before the start", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		_, err := service.Create(ctx, RaffleInput{Title: "Late", PrizeDescription: "x", EndDate: now.Add(-time.Hour)})
		assert.ErrorIs(t, err, ErrRaffleSchedule)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update picks a winner and closes", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		winner := int64(7)
		closed := false
		mock.ExpectBegin()
		mock.ExpectQuery("FROM raffles WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(3)).
			WillReturnRows(raffleRows(3, 5, 100, 10, end))
		mock.ExpectExec("UPDATE raffles").
			WithArgs("Spring draw", "", "A hoodie", int64(5), int64(100), end, int64(7), false, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		raffle, err := service.Update(ctx, 3, RafflePatch{WinnerID: &winner, IsActive: &closed})
		require.NoError(t, err)
		require.NotNil(t, raffle.WinnerID)
		assert.Equal(t, int64(7), *raffle.WinnerID)
		assert.False(t, raffle.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update keeps the schedule valid", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		early := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectBegin()
		mock.ExpectQuery("FROM raffles WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(3)).
			WillReturnRows(raffleRows(3, 5, nil, 0, end))
		mock.ExpectRollback()

		_, err := service.Update(ctx, 3, RafflePatch{EndDate: &early})
		assert.ErrorIs(t, err, ErrRaffleSchedule)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("entries", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("FROM raffle_entries e").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "raffle_id", "account_id", "entries", "created_at",
				"telegram_id", "username", "first_name", "last_name",
			}).AddRow(40, 3, 1, 1, now, "1000", "bob", "Bob", ""))

		entries, err := service.Entries(ctx, 3)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "bob", entries[0].Username)
		assert.Equal(t, int64(1), entries[0].AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("entries of unknown raffle", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewRaffleService(ledger.db, ledger)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := service.Entries(ctx, 99)
		assert.ErrorIs(t, err, ErrRaffleNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
