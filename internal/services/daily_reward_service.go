package services

import (
	"context"
	"time"

	"github.com/coinbot/backend/internal/clock"
	"github.com/coinbot/backend/internal/models"
)

// DailyRewardService grants at most one reward per account per local day.
type DailyRewardService struct {
	ledger   *LedgerService
	calendar *clock.Calendar
}

func NewDailyRewardService(ledger *LedgerService, calendar *clock.Calendar) *DailyRewardService {
	return &DailyRewardService{ledger: ledger, calendar: calendar}
}

type DailyClaim struct {
	Account   *models.Account
	Streak    int
	Amount    int64
	ClaimedAt time.Time
}

type ClaimStatus struct {
	Available   bool      `json:"available"`
	Streak      int       `json:"streak"`
	NextClaimAt time.Time `json:"next_claim_at"`
}

// NextStreak decides the streak a claim at now produces. A claim on the same
// local day as the last one fails with ErrAlreadyClaimed; the day after
// extends the streak; anything else, including a clock that moved
// backwards into an earlier day, starts over at 1.
func NextStreak(cal *clock.Calendar, lastClaimAt *time.Time, prevStreak int, now time.Time) (int, error) {
	if lastClaimAt == nil {
		return 1, nil
	}
	if cal.SameDay(*lastClaimAt, now) {
		return 0, ErrAlreadyClaimed
	}
	if cal.IsDayBefore(*lastClaimAt, now) {
		return prevStreak + 1, nil
	}
	return 1, nil
}

// ClaimDaily checks eligibility, credits rewardAmount and advances the streak
// in one locked unit, so two racing claims on the same day grant once.
func (s *DailyRewardService) ClaimDaily(ctx context.Context, accountID, rewardAmount int64) (*DailyClaim, error) {
	if rewardAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	claim := &DailyClaim{Amount: rewardAmount}
	account, err := s.ledger.WithAccountLock(ctx, accountID, func(atx *AccountTx) error {
		now := atx.Now()
		streak, err := NextStreak(s.calendar, atx.Account.LastClaimAt, atx.Account.Streak, now)
		if err != nil {
			return err
		}
		if _, err := atx.Post(ctx, rewardAmount, models.KindDailyReward, "Daily reward"); err != nil {
			return err
		}
		atx.Account.Streak = streak
		atx.Account.LastClaimAt = &now

		claim.Streak = streak
		claim.ClaimedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	claim.Account = account
	return claim, nil
}

// Status reports whether a claim is possible now and when the next local day starts.
func (s *DailyRewardService) Status(ctx context.Context, accountID int64) (*ClaimStatus, error) {
	account, err := s.ledger.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.ledger.clock.Now()
	status := &ClaimStatus{Available: true, Streak: account.Streak, NextClaimAt: now}
	if account.LastClaimAt == nil {
		return status, nil
	}
	if s.calendar.SameDay(*account.LastClaimAt, now) {
		status.Available = false
		status.NextClaimAt = s.calendar.NextDayStart(now)
	} else if !s.calendar.IsDayBefore(*account.LastClaimAt, now) {
		status.Streak = 0
	}
	return status, nil
}
