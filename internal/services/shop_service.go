package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/coinbot/backend/internal/models"
)

type ShopService struct {
	db     *sql.DB
	ledger *LedgerService
}

func NewShopService(db *sql.DB, ledger *LedgerService) *ShopService {
	return &ShopService{db: db, ledger: ledger}
}

const shopItemColumns = `id, name, description, cost, stock, image_url, is_active, created_at`

// ShopItemInput creates an item. A nil Stock means unlimited.
type ShopItemInput struct {
	Name        string `json:"name" validate:"notblank,max=100" example:"Sticker pack"`
	Description string `json:"description" validate:"max=500"`
	Cost        int64  `json:"cost" validate:"gte=0" example:"30"`
	Stock       *int   `json:"stock" validate:"omitempty,gte=0" example:"10"`
	ImageURL    string `json:"image_url" validate:"max=500"`
	IsActive    *bool  `json:"is_active"`
}

// ShopItemPatch changes the fields that are set. UnlimitedStock clears Stock.
type ShopItemPatch struct {
	Name           *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description    *string `json:"description" validate:"omitempty,max=500"`
	Cost           *int64  `json:"cost" validate:"omitempty,gte=0"`
	Stock          *int    `json:"stock" validate:"omitempty,gte=0"`
	UnlimitedStock bool    `json:"unlimited_stock"`
	ImageURL       *string `json:"image_url" validate:"omitempty,max=500"`
	IsActive       *bool   `json:"is_active"`
}

func (p ShopItemPatch) apply(item *models.ShopItem) {
	if p.Name != nil {
		item.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Cost != nil {
		item.Cost = *p.Cost
	}
	if p.Stock != nil {
		n := *p.Stock
		item.Stock = &n
	}
	if p.UnlimitedStock {
		item.Stock = nil
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
	if p.IsActive != nil {
		item.IsActive = *p.IsActive
	}
}

// ListActive returns purchasable items in the order the bot numbers them.
func (s *ShopService) ListActive(ctx context.Context) ([]models.ShopItem, error) {
	return s.list(ctx, `SELECT `+shopItemColumns+` FROM shop_items WHERE is_active = TRUE ORDER BY id ASC`)
}

// ListAll returns every item, newest first.
func (s *ShopService) ListAll(ctx context.Context) ([]models.ShopItem, error) {
	return s.list(ctx, `SELECT `+shopItemColumns+` FROM shop_items ORDER BY created_at DESC, id DESC`)
}

func (s *ShopService) Create(ctx context.Context, in ShopItemInput) (*models.ShopItem, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO shop_items (name, description, cost, stock, image_url, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+shopItemColumns,
		strings.TrimSpace(in.Name), in.Description, in.Cost, nullableInt(in.Stock), in.ImageURL, active, s.ledger.clock.Now(),
	)
	return scanShopItem(row)
}

// Update applies patch to item id under a row lock.
func (s *ShopService) Update(ctx context.Context, id int64, patch ShopItemPatch) (*models.ShopItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	item, err := scanShopItem(tx.QueryRowContext(ctx, `SELECT `+shopItemColumns+` FROM shop_items WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	patch.apply(item)
	_, err = tx.ExecContext(ctx, `
		UPDATE shop_items
		SET name = $1, description = $2, cost = $3, stock = $4, image_url = $5, is_active = $6
		WHERE id = $7`,
		item.Name, item.Description, item.Cost, nullableInt(item.Stock), item.ImageURL, item.IsActive, item.ID,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ShopService) list(ctx context.Context, query string) ([]models.ShopItem, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.ShopItem{}
	for rows.Next() {
		item, err := scanShopItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Purchase debits the item cost, records the purchase and takes one unit of
// stock in a single locked unit. The account is locked before the item.
func (s *ShopService) Purchase(ctx context.Context, accountID, itemID int64) (*models.Purchase, *models.Account, error) {
	var purchase *models.Purchase
	account, err := s.ledger.WithAccountLock(ctx, accountID, func(atx *AccountTx) error {
		row := atx.Tx.QueryRowContext(ctx, `SELECT `+shopItemColumns+` FROM shop_items WHERE id = $1 FOR UPDATE`, itemID)
		item, err := scanShopItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if !item.IsActive {
			return ErrItemNotFound
		}
		if item.Stock != nil && *item.Stock <= 0 {
			return ErrOutOfStock
		}

		if _, err := atx.Post(ctx, -item.Cost, models.KindShopPurchase, "Purchased "+item.Name); err != nil {
			return err
		}

		p := &models.Purchase{
			AccountID: accountID,
			ItemID:    item.ID,
			Quantity:  1,
			TotalCost: item.Cost,
			Status:    models.PurchaseStatusPending,
			CreatedAt: atx.Now(),
		}
		err = atx.Tx.QueryRowContext(ctx, `
			INSERT INTO purchases (account_id, item_id, quantity, total_cost, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			p.AccountID, p.ItemID, p.Quantity, p.TotalCost, p.Status, p.CreatedAt,
		).Scan(&p.ID)
		if err != nil {
			return err
		}

		if item.Stock != nil {
			if _, err := atx.Tx.ExecContext(ctx, `UPDATE shop_items SET stock = stock - 1 WHERE id = $1`, item.ID); err != nil {
				return err
			}
		}
		purchase = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return purchase, account, nil
}

func scanShopItem(row rowScanner) (*models.ShopItem, error) {
	var item models.ShopItem
	var stock sql.NullInt32
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Cost, &stock, &item.ImageURL, &item.IsActive, &item.CreatedAt); err != nil {
		return nil, err
	}
	if stock.Valid {
		n := int(stock.Int32)
		item.Stock = &n
	}
	return &item, nil
}

func nullableInt(n *int) sql.NullInt32 {
	if n == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*n), Valid: true}
}
