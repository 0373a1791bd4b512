package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/coinbot/backend/internal/models"
	"go.uber.org/zap"
)

const (
	referralCharset      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts      = 5
	defaultReferralChars = 8
)

// Profile is what the bot knows about a user on first contact.
type Profile struct {
	TelegramID string
	Username   string
	FirstName  string
	LastName   string
}

type AccountService struct {
	db         *sql.DB
	codeLength int
	log        *zap.Logger
}

func NewAccountService(db *sql.DB, codeLength int, log *zap.Logger) *AccountService {
	if codeLength <= 0 {
		codeLength = defaultReferralChars
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{db: db, codeLength: codeLength, log: log.Named("accounts")}
}

// EnsureAccount returns the account for p.TelegramID, creating it with a
// fresh referral code on first contact. created reports whether it is new.
func (s *AccountService) EnsureAccount(ctx context.Context, p Profile) (account *models.Account, created bool, err error) {
	if p.TelegramID == "" {
		return nil, false, fmt.Errorf("telegram id is required")
	}

	query := `
		INSERT INTO accounts (telegram_id, username, first_name, last_name, referral_code)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		RETURNING ` + accountColumns + `, (xmax = 0) AS inserted`

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := GenerateReferralCode(s.codeLength)
		if err != nil {
			return nil, false, err
		}

		var a models.Account
		var lastClaim sql.NullTime
		var referredBy sql.NullString
		var inserted bool
		dest := append(accountDest(&a, &lastClaim, &referredBy), &inserted)

		err = s.db.QueryRowContext(ctx, query, p.TelegramID, p.Username, p.FirstName, p.LastName, code).Scan(dest...)
		if isUniqueViolation(err) {
			s.log.Debug("referral code collision", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to upsert account: %w", err)
		}

		fillAccount(&a, lastClaim, referredBy)
		if inserted {
			s.log.Info("account created", zap.Int64("account_id", a.ID), zap.String("telegram_id", a.TelegramID))
		}
		return &a, inserted, nil
	}
	return nil, false, fmt.Errorf("could not allocate a unique referral code after %d attempts", maxCodeAttempts)
}

func (s *AccountService) GetByTelegramID(ctx context.Context, telegramID string) (*models.Account, error) {
	return s.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE telegram_id = $1`, telegramID)
}

func (s *AccountService) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return s.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`, NormalizeCode(code))
}

func (s *AccountService) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

const (
	defaultAccountPage = 50
	maxAccountPage     = 200
	recentAccounts     = 10
)

// List returns accounts newest first.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	if limit <= 0 {
		limit = defaultAccountPage
	}
	if limit > maxAccountPage {
		limit = maxAccountPage
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// DashboardStats summarises the economy for the admin dashboard.
type DashboardStats struct {
	TotalAccounts  int64            `json:"total_accounts"`
	ActiveAccounts int64            `json:"active_accounts"`
	TotalCoins     int64            `json:"total_coins"`
	ActiveRaffles  int64            `json:"active_raffles"`
	ClaimedToday   int64            `json:"claimed_today"`
	RecentAccounts []models.Account `json:"recent_accounts"`
}

// Stats counts daily claims made at or after dayStart and raffles still open at now.
func (s *AccountService) Stats(ctx context.Context, now, dayStart time.Time) (*DashboardStats, error) {
	var st DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM accounts WHERE is_active = TRUE),
			(SELECT COALESCE(SUM(balance), 0) FROM accounts),
			(SELECT COUNT(*) FROM raffles WHERE is_active = TRUE AND end_date > $1),
			(SELECT COUNT(*) FROM accounts WHERE last_claim_at >= $2)`,
		now, dayStart,
	).Scan(&st.TotalAccounts, &st.ActiveAccounts, &st.TotalCoins, &st.ActiveRaffles, &st.ClaimedToday)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}

	st.RecentAccounts, err = s.List(ctx, recentAccounts, 0)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ActiveTelegramIDs lists broadcast recipients.
func (s *AccountService) ActiveTelegramIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT telegram_id FROM accounts WHERE is_active = TRUE ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *AccountService) SetActive(ctx context.Context, accountID int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, accountID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GenerateReferralCode draws length characters from [A-Z0-9] using crypto/rand.
func GenerateReferralCode(length int) (string, error) {
	code := make([]byte, length)
	charsetLen := big.NewInt(int64(len(referralCharset)))

	for i := range code {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		code[i] = referralCharset[n.Int64()]
	}
	return string(code), nil
}
