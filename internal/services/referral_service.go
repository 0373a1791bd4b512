package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/coinbot/backend/internal/audit"
	"github.com/coinbot/backend/internal/models"
	"github.com/coinbot/backend/internal/monitoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RewardSettings supplies the current reward amounts.
type RewardSettings interface {
	DailyRewardAmount(ctx context.Context) int64
	ReferralRewardAmount(ctx context.Context) int64
}

type ReferralService struct {
	db       *sql.DB
	ledger   *LedgerService
	settings RewardSettings
	audit    *audit.Logger
	log      *zap.Logger
}

func NewReferralService(db *sql.DB, ledger *LedgerService, settings RewardSettings, auditLog *audit.Logger, log *zap.Logger) *ReferralService {
	if log == nil {
		log = zap.NewNop()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}
	return &ReferralService{
		db:       db,
		ledger:   ledger,
		settings: settings,
		audit:    auditLog,
		log:      log.Named("referral"),
	}
}

// NormalizeCode trims and upper-cases a user-typed referral code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redemption is the outcome of a successful referral redemption. Reward is
// the amount credited to each side.
type Redemption struct {
	Account *models.Account
	Reward  int64
}

// RedeemReferral binds accountID to the owner of code and rewards both sides.
func (s *ReferralService) RedeemReferral(ctx context.Context, accountID int64, code string) (*models.Account, error) {
	r, err := s.Redeem(ctx, accountID, code)
	if err != nil {
		return nil, err
	}
	return r.Account, nil
}

// Redeem is RedeemReferral that also reports the credited amount.
//
// The referred side (binding plus credit) commits as one unit and is what the
// caller's success depends on. The referrer's credit is a second unit; if it
// fails the redemption still succeeds and the owed reward is recorded for
// reconciliation.
func (s *ReferralService) Redeem(ctx context.Context, accountID int64, code string) (*Redemption, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	var referrerID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE referral_code = $1`, code).Scan(&referrerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if referrerID == accountID {
		return nil, ErrSelfReferral
	}

	reward := s.settings.ReferralRewardAmount(ctx)

	var invitedName string
	account, err := s.ledger.WithAccountLock(ctx, accountID, func(atx *AccountTx) error {
		if atx.Account.ReferredBy != nil {
			return ErrAlreadyReferred
		}
		if _, err := atx.Post(ctx, reward, models.KindReferral, "Used invitation code "+code); err != nil {
			return err
		}
		atx.Account.ReferredBy = &code
		invitedName = atx.Account.DisplayName()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The binding is committed; the referrer's side must not be lost to the
	// caller going away.
	detached := context.WithoutCancel(ctx)
	if _, err := s.ledger.GrantReward(detached, referrerID, reward, models.KindReferral, "Invited "+invitedName); err != nil {
		s.flagReconciliation(detached, referrerID, accountID, reward, err)
	}
	return &Redemption{Account: account, Reward: reward}, nil
}

func (s *ReferralService) flagReconciliation(ctx context.Context, referrerID, referredID, amount int64, cause error) {
	id := uuid.NewString()
	monitoring.ReferralReconciliationsTotal.Inc()
	s.audit.LogReconciliation(id, referrerID, referredID, amount, cause)

	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO referral_reconciliations (id, referrer_id, referred_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, referrerID, referredID, amount, cause.Error(), s.ledger.clock.Now(),
	)
	if err != nil {
		s.log.Error("failed to record referral reconciliation",
			zap.String("reference", id),
			zap.Int64("referrer_id", referrerID),
			zap.Int64("referred_id", referredID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
	}
}

func (s *ReferralService) PendingReconciliations(ctx context.Context) ([]models.ReferralReconciliation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, referrer_id, referred_id, amount, reason, resolved, created_at, resolved_at
		FROM referral_reconciliations
		WHERE resolved = FALSE
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReferralReconciliation
	for rows.Next() {
		var r models.ReferralReconciliation
		var resolvedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.ReferrerID, &r.ReferredID, &r.Amount, &r.Reason, &r.Resolved, &r.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			r.ResolvedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResolveReconciliation grants the owed referrer reward and marks the record
// resolved in the same unit, so a record is paid at most once.
func (s *ReferralService) ResolveReconciliation(ctx context.Context, id string) (*models.Account, error) {
	var referrerID int64
	err := s.db.QueryRowContext(ctx, `SELECT referrer_id FROM referral_reconciliations WHERE id = $1`, id).Scan(&referrerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReconciliationNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.ledger.WithAccountLock(ctx, referrerID, func(atx *AccountTx) error {
		var amount int64
		var resolved bool
		err := atx.Tx.QueryRowContext(ctx,
			`SELECT amount, resolved FROM referral_reconciliations WHERE id = $1 FOR UPDATE`, id,
		).Scan(&amount, &resolved)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReconciliationNotFound
		}
		if err != nil {
			return err
		}
		if resolved {
			return ErrAlreadyResolved
		}

		if _, err := atx.Post(ctx, amount, models.KindReferral, "Referral reward (reconciled)"); err != nil {
			return err
		}
		_, err = atx.Tx.ExecContext(ctx,
			`UPDATE referral_reconciliations SET resolved = TRUE, resolved_at = $1 WHERE id = $2`,
			atx.Now(), id,
		)
		return err
	})
}
