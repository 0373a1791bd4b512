package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/coinbot/backend/internal/models"
)

type RaffleService struct {
	db     *sql.DB
	ledger *LedgerService
}

func NewRaffleService(db *sql.DB, ledger *LedgerService) *RaffleService {
	return &RaffleService{db: db, ledger: ledger}
}

const raffleColumns = `id, title, description, prize_description, entry_cost, max_entries,
	current_entries, start_date, end_date, winner_id, is_active, created_at`

// RaffleInput creates a raffle. StartDate defaults to now.
type RaffleInput struct {
	Title            string     `json:"title" validate:"notblank,max=100" example:"Spring draw"`
	Description      string     `json:"description" validate:"max=500"`
	PrizeDescription string     `json:"prize_description" validate:"notblank,max=200" example:"A hoodie"`
	EntryCost        int64      `json:"entry_cost" validate:"gte=0" example:"5"`
	MaxEntries       *int       `json:"max_entries" validate:"omitempty,gt=0"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          time.Time  `json:"end_date" validate:"required"`
	IsActive         *bool      `json:"is_active"`
}

// RafflePatch changes the fields that are set. UnlimitedEntries clears MaxEntries.
type RafflePatch struct {
	Title            *string    `json:"title" validate:"omitempty,notblank,max=100"`
	Description      *string    `json:"description" validate:"omitempty,max=500"`
	PrizeDescription *string    `json:"prize_description" validate:"omitempty,notblank,max=200"`
	EntryCost        *int64     `json:"entry_cost" validate:"omitempty,gte=0"`
	MaxEntries       *int       `json:"max_entries" validate:"omitempty,gt=0"`
	UnlimitedEntries bool       `json:"unlimited_entries"`
	EndDate          *time.Time `json:"end_date"`
	WinnerID         *int64     `json:"winner_id" validate:"omitempty,gt=0"`
	IsActive         *bool      `json:"is_active"`
}

func (p RafflePatch) apply(r *models.Raffle) {
	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.PrizeDescription != nil {
		r.PrizeDescription = *p.PrizeDescription
	}
	if p.EntryCost != nil {
		r.EntryCost = *p.EntryCost
	}
	if p.MaxEntries != nil {
		n := *p.MaxEntries
		r.MaxEntries = &n
	}
	if p.UnlimitedEntries {
		r.MaxEntries = nil
	}
	if p.EndDate != nil {
		r.EndDate = *p.EndDate
	}
	if p.WinnerID != nil {
		id := *p.WinnerID
		r.WinnerID = &id
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
}

// ListActive returns raffles still accepting entries, oldest first.
func (s *RaffleService) ListActive(ctx context.Context) ([]models.Raffle, error) {
	return s.list(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE is_active = TRUE AND end_date > $1 ORDER BY id ASC`, s.ledger.clock.Now())
}

// ListAll returns every raffle, newest first.
func (s *RaffleService) ListAll(ctx context.Context) ([]models.Raffle, error) {
	return s.list(ctx, `SELECT `+raffleColumns+` FROM raffles ORDER BY created_at DESC, id DESC`)
}

func (s *RaffleService) Create(ctx context.Context, in RaffleInput) (*models.Raffle, error) {
	now := s.ledger.clock.Now()
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if !in.EndDate.After(start) {
		return nil, ErrRaffleSchedule
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO raffles (title, description, prize_description, entry_cost, max_entries,
			start_date, end_date, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+raffleColumns,
		strings.TrimSpace(in.Title), in.Description, in.PrizeDescription, in.EntryCost, nullableInt(in.MaxEntries),
		start, in.EndDate, active, now,
	)
	return scanRaffle(row)
}

// Update applies patch to raffle id under a row lock, so it serialises with
// concurrent entries.
func (s *RaffleService) Update(ctx context.Context, id int64, patch RafflePatch) (*models.Raffle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	raffle, err := scanRaffle(tx.QueryRowContext(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaffleNotFound
	}
	if err != nil {
		return nil, err
	}

	patch.apply(raffle)
	if !raffle.EndDate.After(raffle.StartDate) {
		return nil, ErrRaffleSchedule
	}

	var winner sql.NullInt64
	if raffle.WinnerID != nil {
		winner = sql.NullInt64{Int64: *raffle.WinnerID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE raffles
		SET title = $1, description = $2, prize_description = $3, entry_cost = $4,
			max_entries = $5, end_date = $6, winner_id = $7, is_active = $8
		WHERE id = $9`,
		raffle.Title, raffle.Description, raffle.PrizeDescription, raffle.EntryCost,
		nullableInt(raffle.MaxEntries), raffle.EndDate, winner, raffle.IsActive, raffle.ID,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return raffle, nil
}

// Entries lists a raffle's entries with the entering account, oldest first.
func (s *RaffleService) Entries(ctx context.Context, raffleID int64) ([]models.RaffleEntrant, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM raffles WHERE id = $1)`, raffleID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRaffleNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.raffle_id, e.account_id, e.entries, e.created_at,
			a.telegram_id, COALESCE(a.username, ''), COALESCE(a.first_name, ''), COALESCE(a.last_name, '')
		FROM raffle_entries e
		JOIN accounts a ON a.id = e.account_id
		WHERE e.raffle_id = $1
		ORDER BY e.id ASC`, raffleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RaffleEntrant{}
	for rows.Next() {
		var e models.RaffleEntrant
		err := rows.Scan(&e.ID, &e.RaffleID, &e.AccountID, &e.Entries, &e.CreatedAt,
			&e.TelegramID, &e.Username, &e.FirstName, &e.LastName)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *RaffleService) list(ctx context.Context, query string, args ...any) ([]models.Raffle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	raffles := []models.Raffle{}
	for rows.Next() {
		r, err := scanRaffle(rows)
		if err != nil {
			return nil, err
		}
		raffles = append(raffles, *r)
	}
	return raffles, rows.Err()
}

// Enter debits the entry cost and records one entry in a single locked unit.
func (s *RaffleService) Enter(ctx context.Context, accountID, raffleID int64) (*models.RaffleEntry, *models.Account, error) {
	var entry *models.RaffleEntry
	account, err := s.ledger.WithAccountLock(ctx, accountID, func(atx *AccountTx) error {
		row := atx.Tx.QueryRowContext(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1 FOR UPDATE`, raffleID)
		raffle, err := scanRaffle(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRaffleNotFound
		}
		if err != nil {
			return err
		}
		if !raffle.Open(atx.Now()) {
			return ErrRaffleClosed
		}
		if raffle.MaxEntries != nil && raffle.CurrentEntries >= *raffle.MaxEntries {
			return ErrRaffleFull
		}

		if _, err := atx.Post(ctx, -raffle.EntryCost, models.KindRaffleEntry, "Entered raffle "+raffle.Title); err != nil {
			return err
		}

		e := &models.RaffleEntry{RaffleID: raffle.ID, AccountID: accountID, Entries: 1, CreatedAt: atx.Now()}
		err = atx.Tx.QueryRowContext(ctx, `
			INSERT INTO raffle_entries (raffle_id, account_id, entries, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			e.RaffleID, e.AccountID, e.Entries, e.CreatedAt,
		).Scan(&e.ID)
		if err != nil {
			return err
		}

		if _, err := atx.Tx.ExecContext(ctx, `UPDATE raffles SET current_entries = current_entries + 1 WHERE id = $1`, raffle.ID); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, account, nil
}

func scanRaffle(row rowScanner) (*models.Raffle, error) {
	var r models.Raffle
	var maxEntries sql.NullInt32
	var winnerID sql.NullInt64
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.PrizeDescription, &r.EntryCost, &maxEntries,
		&r.CurrentEntries, &r.StartDate, &r.EndDate, &winnerID, &r.IsActive, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if maxEntries.Valid {
		n := int(maxEntries.Int32)
		r.MaxEntries = &n
	}
	if winnerID.Valid {
		id := winnerID.Int64
		r.WinnerID = &id
	}
	return &r, nil
}
