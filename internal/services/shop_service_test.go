package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shopItemColumnNames = []string{"id", "name", "description", "cost", "stock", "image_url", "is_active", "created_at"}

func shopItemRows(id int64, name string, cost int64, stock any, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(shopItemColumnNames).
		AddRow(id, name, "", cost, stock, "", active, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestShopService_Purchase(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

	t.Run("debits and takes stock", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 50})
		mock.ExpectQuery("FROM shop_items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(shopItemRows(5, "Sticker pack", 30, 3, true))
		mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), int64(1), "shop_purchase", int64(-30), int64(20), "Purchased Sticker pack", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("INSERT INTO purchases").
			WithArgs(int64(1), int64(5), 1, int64(30), "pending", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))
		mock.ExpectExec("UPDATE shop_items SET stock = stock - 1").
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSave(mock, 1, 20, 0, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		purchase, account, err := service.Purchase(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(77), purchase.ID)
		assert.Equal(t, int64(20), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unlimited stock is not decremented", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 50})
		mock.ExpectQuery("FROM shop_items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(6)).
			WillReturnRows(shopItemRows(6, "Badge", 10, nil, true))
		expectEntry(mock, 1, "shop_purchase", -10, 40, 1)
		mock.ExpectQuery("INSERT INTO purchases").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(78))
		expectSave(mock, 1, 40, 0, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, account, err := service.Purchase(ctx, 1, 6)
		require.NoError(t, err)
		assert.Equal(t, int64(40), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 10})
		mock.ExpectQuery("FROM shop_items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(shopItemRows(5, "Sticker pack", 30, 3, true))
		mock.ExpectRollback()

		_, _, err := service.Purchase(ctx, 1, 5)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("out of stock", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 100})
		mock.ExpectQuery("FROM shop_items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(shopItemRows(5, "Sticker pack", 30, 0, true))
		mock.ExpectRollback()

		_, _, err := service.Purchase(ctx, 1, 5)
		assert.ErrorIs(t, err, ErrOutOfStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive item", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		mock.ExpectBegin()
		expectLock(mock, accountFixture{ID: 1, Balance: 100})
		mock.ExpectQuery("FROM shop_items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(shopItemRows(5, "Sticker pack", 30, 3, false))
		mock.ExpectRollback()

		_, _, err := service.Purchase(ctx, 1, 5)
		assert.ErrorIs(t, err, ErrItemNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestShopService_ListActive(t *testing.T) {
	ledger, mock, done := newTestLedger(t, time.Now())
	defer done()
	service := NewShopService(ledger.db, ledger)

	rows := sqlmock.NewRows(shopItemColumnNames).
		AddRow(1, "Badge", "", 10, nil, "", true, time.Now()).
		AddRow(2, "Sticker pack", "", 30, 3, "", true, time.Now())
	mock.ExpectQuery("FROM shop_items WHERE is_active = TRUE").WillReturnRows(rows)

	items, err := service.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Nil(t, items[0].Stock)
	require.NotNil(t, items[1].Stock)
	assert.Equal(t, 3, *items[1].Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShopService_Admin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)

	t.Run("create", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		stock := 10
		mock.ExpectQuery("INSERT INTO shop_items").
			WithArgs("Sticker pack", "", int64(30), int64(10), "", true, now).
			WillReturnRows(shopItemRows(5, "Sticker pack", 30, 10, true))

		item, err := service.Create(ctx, ShopItemInput{Name: " Sticker pack ", Cost: 30, Stock: &stock})
		require.NoError(t, err)
		assert.Equal(t, int64(5), item.ID)
		require.NotNil(t, item.Stock)
		assert.Equal(t, 10, *item.Stock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update clears stock and deactivates", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		cost := int64(25)
		inactive := false
		mock.ExpectBegin()
		mock.ExpectQuery("FROM shop_items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(shopItemRows(5, "Sticker pack", 30, 3, true))
		mock.ExpectExec("UPDATE shop_items").
			WithArgs("Sticker pack", "", int64(25), nil, "", false, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		item, err := service.Update(ctx, 5, ShopItemPatch{Cost: &cost, UnlimitedStock: true, IsActive: &inactive})
		require.NoError(t, err)
		assert.Equal(t, int64(25), item.Cost)
		assert.Nil(t, item.Stock)
		assert.False(t, item.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update unknown item", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		mock.ExpectBegin()
		mock.ExpectQuery("FROM shop_items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(shopItemColumnNames))
		mock.ExpectRollback()

		_, err := service.Update(ctx, 9, ShopItemPatch{})
		assert.ErrorIs(t, err, ErrItemNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list all includes inactive", func(t *testing.T) {
		ledger, mock, done := newTestLedger(t, now)
		defer done()
		service := NewShopService(ledger.db, ledger)

		rows := sqlmock.NewRows(shopItemColumnNames).
			AddRow(2, "Hoodie", "", 100, nil, "", false, now).
			AddRow(1, "Badge", "", 10, nil, "", true, now)
		mock.ExpectQuery("FROM shop_items ORDER BY created_at DESC").WillReturnRows(rows)

		items, err := service.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.False(t, items[0].IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
