package bot

import (
	"context"
	"sync"

	"github.com/coinbot/backend/internal/models"
	"github.com/coinbot/backend/internal/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	errs map[int64]error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		if err := f.errs[msg.ChatID]; err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) EnsureAccount(ctx context.Context, p services.Profile) (*models.Account, bool, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccounts) GetByTelegramID(ctx context.Context, telegramID string) (*models.Account, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccounts) ActiveTelegramIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAccounts) SetActive(ctx context.Context, accountID int64, active bool) error {
	args := m.Called(ctx, accountID, active)
	return args.Error(0)
}

type MockDaily struct {
	mock.Mock
}

func (m *MockDaily) ClaimDaily(ctx context.Context, accountID, rewardAmount int64) (*services.DailyClaim, error) {
	args := m.Called(ctx, accountID, rewardAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DailyClaim), args.Error(1)
}

type MockReferrals struct {
	mock.Mock
}

func (m *MockReferrals) Redeem(ctx context.Context, accountID int64, code string) (*services.Redemption, error) {
	args := m.Called(ctx, accountID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Redemption), args.Error(1)
}

type MockEntries struct {
	mock.Mock
}

func (m *MockEntries) ListEntries(ctx context.Context, accountID int64, limit int) ([]models.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LedgerEntry), args.Error(1)
}

type MockShop struct {
	mock.Mock
}

func (m *MockShop) ListActive(ctx context.Context) ([]models.ShopItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShopItem), args.Error(1)
}

func (m *MockShop) Purchase(ctx context.Context, accountID, itemID int64) (*models.Purchase, *models.Account, error) {
	args := m.Called(ctx, accountID, itemID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Purchase), args.Get(1).(*models.Account), args.Error(2)
}

type MockRaffles struct {
	mock.Mock
}

func (m *MockRaffles) ListActive(ctx context.Context) ([]models.Raffle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Raffle), args.Error(1)
}

func (m *MockRaffles) Enter(ctx context.Context, accountID, raffleID int64) (*models.RaffleEntry, *models.Account, error) {
	args := m.Called(ctx, accountID, raffleID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.RaffleEntry), args.Get(1).(*models.Account), args.Error(2)
}

type staticRewards struct {
	daily, referral int64
}

func (s staticRewards) DailyRewardAmount(context.Context) int64    { return s.daily }
func (s staticRewards) ReferralRewardAmount(context.Context) int64 { return s.referral }

type stubInvites struct{}

func (stubInvites) InviteLink(code string) string { return "https://t.me/coinbot?start=" + code }

func (stubInvites) InviteQRCode(string) ([]byte, error) { return []byte("png"), nil }
