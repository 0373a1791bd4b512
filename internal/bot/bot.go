package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coinbot/backend/internal/models"
	"github.com/coinbot/backend/internal/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Accounts interface {
	EnsureAccount(ctx context.Context, p services.Profile) (*models.Account, bool, error)
	GetByTelegramID(ctx context.Context, telegramID string) (*models.Account, error)
	ActiveTelegramIDs(ctx context.Context) ([]string, error)
	SetActive(ctx context.Context, accountID int64, active bool) error
}

type DailyRewards interface {
	ClaimDaily(ctx context.Context, accountID, rewardAmount int64) (*services.DailyClaim, error)
}

type Referrals interface {
	Redeem(ctx context.Context, accountID int64, code string) (*services.Redemption, error)
}

type Entries interface {
	ListEntries(ctx context.Context, accountID int64, limit int) ([]models.LedgerEntry, error)
}

type Shop interface {
	ListActive(ctx context.Context) ([]models.ShopItem, error)
	Purchase(ctx context.Context, accountID, itemID int64) (*models.Purchase, *models.Account, error)
}

type Raffles interface {
	ListActive(ctx context.Context) ([]models.Raffle, error)
	Enter(ctx context.Context, accountID, raffleID int64) (*models.RaffleEntry, *models.Account, error)
}

type Invites interface {
	InviteLink(code string) string
	InviteQRCode(code string) ([]byte, error)
}

// Deps wires the bot to the ledger services.
type Deps struct {
	Accounts  Accounts
	Daily     DailyRewards
	Referrals Referrals
	Entries   Entries
	Shop      Shop
	Raffles   Raffles
	Rewards   services.RewardSettings
	Invites   Invites
	State     StateStore
}

// Bot turns Telegram updates into ledger operations and replies.
type Bot struct {
	api            Sender
	deps           Deps
	broadcastDelay time.Duration
	log            *zap.Logger

	// life is cancelled by Close and bounds background broadcasts.
	life     context.Context
	shutdown context.CancelFunc
	jobs     sync.WaitGroup

	mu        sync.Mutex
	broadcast BroadcastStatus
}

func New(api Sender, deps Deps, broadcastDelay time.Duration, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	life, shutdown := context.WithCancel(context.Background())
	return &Bot{
		api:            api,
		deps:           deps,
		broadcastDelay: broadcastDelay,
		log:            log.Named("bot"),
		life:           life,
		shutdown:       shutdown,
	}
}

// Close stops any background broadcast and waits for it to return.
func (b *Bot) Close() {
	b.shutdown()
	b.jobs.Wait()
}

const (
	buttonDaily     = "My Daily Reward"
	buttonInfo      = "My Info"
	buttonShop      = "Shop Items"
	buttonRaffle    = "Join A Raffle"
	buttonInvite    = "Invite A Friend"
	buttonEnterCode = "Enter Invitation Code"
)

var mainKeyboard = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonDaily), tgbotapi.NewKeyboardButton(buttonInfo)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonShop), tgbotapi.NewKeyboardButton(buttonRaffle)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonInvite), tgbotapi.NewKeyboardButton(buttonEnterCode)),
)

// HandleUpdate processes one update. Failures are reported to the user and
// logged; nothing is returned because Telegram does not redeliver.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	chatID := msg.Chat.ID
	uid := strconv.FormatInt(msg.From.ID, 10)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.cmdStart(ctx, msg, strings.TrimSpace(msg.CommandArguments()))
		case "daily":
			b.cmdDaily(ctx, chatID, uid)
		case "myinfo":
			b.cmdInfo(ctx, chatID, uid)
		case "shop":
			b.cmdShop(ctx, chatID)
		case "raffle":
			b.cmdRaffles(ctx, chatID)
		case "referral":
			b.cmdReferral(ctx, chatID, uid)
		case "entercode":
			b.promptInviteCode(ctx, chatID, msg.From.ID)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)

	awaiting, err := b.deps.State.Take(ctx, msg.From.ID)
	if err != nil {
		b.log.Warn("failed to read conversation state", zap.Int64("user_id", msg.From.ID), zap.Error(err))
	}
	if awaiting == StateAwaitingCode {
		b.handleInvitationCode(ctx, chatID, msg.From.ID, text)
		return
	}

	if n, err := strconv.Atoi(text); err == nil && n > 0 {
		if b.tryShopSelection(ctx, chatID, uid, n) {
			return
		}
		if b.tryRaffleSelection(ctx, chatID, uid, n) {
			return
		}
		return
	}

	switch text {
	case buttonDaily:
		b.cmdDaily(ctx, chatID, uid)
	case buttonInfo:
		b.cmdInfo(ctx, chatID, uid)
	case buttonShop:
		b.cmdShop(ctx, chatID)
	case buttonRaffle:
		b.cmdRaffles(ctx, chatID)
	case buttonInvite:
		b.cmdReferral(ctx, chatID, uid)
	case buttonEnterCode:
		b.promptInviteCode(ctx, chatID, msg.From.ID)
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message, code string) {
	chatID := msg.Chat.ID
	account, created, err := b.deps.Accounts.EnsureAccount(ctx, services.Profile{
		TelegramID: strconv.FormatInt(msg.From.ID, 10),
		Username:   msg.From.UserName,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
	})
	if err != nil {
		b.fail(chatID, "start", err)
		return
	}
	if created {
		b.log.Info("account created", zap.Int64("account_id", account.ID), zap.String("telegram_id", account.TelegramID))
	}

	if code != "" && account.ReferredBy == nil {
		switch r, err := b.deps.Referrals.Redeem(ctx, account.ID, code); {
		case err == nil:
			b.reply(chatID, referralBonusText(r.Reward))
		case errors.Is(err, services.ErrAlreadyReferred):
		default:
			b.fail(chatID, "start referral", err)
		}
	}

	b.reply(chatID, welcomeText(msg.From.FirstName))
}

func (b *Bot) cmdDaily(ctx context.Context, chatID int64, uid string) {
	account, err := b.deps.Accounts.GetByTelegramID(ctx, uid)
	if err != nil {
		b.fail(chatID, "daily", err)
		return
	}

	claim, err := b.deps.Daily.ClaimDaily(ctx, account.ID, b.deps.Rewards.DailyRewardAmount(ctx))
	if err != nil {
		b.fail(chatID, "daily", err)
		return
	}
	b.reply(chatID, dailyText(claim))
}

func (b *Bot) cmdInfo(ctx context.Context, chatID int64, uid string) {
	account, err := b.deps.Accounts.GetByTelegramID(ctx, uid)
	if err != nil {
		b.fail(chatID, "info", err)
		return
	}
	entries, err := b.deps.Entries.ListEntries(ctx, account.ID, recentEntries)
	if err != nil {
		b.fail(chatID, "info", err)
		return
	}
	b.reply(chatID, infoText(account, entries))
}

func (b *Bot) cmdShop(ctx context.Context, chatID int64) {
	items, err := b.deps.Shop.ListActive(ctx)
	if err != nil {
		b.fail(chatID, "shop", err)
		return
	}
	b.reply(chatID, shopText(items))
}

func (b *Bot) cmdRaffles(ctx context.Context, chatID int64) {
	raffles, err := b.deps.Raffles.ListActive(ctx)
	if err != nil {
		b.fail(chatID, "raffles", err)
		return
	}
	b.reply(chatID, rafflesText(raffles))
}

func (b *Bot) cmdReferral(ctx context.Context, chatID int64, uid string) {
	account, err := b.deps.Accounts.GetByTelegramID(ctx, uid)
	if err != nil {
		b.fail(chatID, "referral", err)
		return
	}

	link := b.deps.Invites.InviteLink(account.ReferralCode)
	b.reply(chatID, inviteText(link, b.deps.Rewards.ReferralRewardAmount(ctx)))

	png, err := b.deps.Invites.InviteQRCode(account.ReferralCode)
	if err != nil {
		b.log.Warn("failed to render invite qr code", zap.Int64("account_id", account.ID), zap.Error(err))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "invite.png", Bytes: png})
	if _, err := b.api.Send(photo); err != nil {
		b.log.Warn("failed to send invite qr code", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) promptInviteCode(ctx context.Context, chatID, userID int64) {
	if err := b.deps.State.Set(ctx, userID, StateAwaitingCode); err != nil {
		b.fail(chatID, "prompt code", err)
		return
	}
	b.reply(chatID, "Please send the invitation code:")
}

func (b *Bot) handleInvitationCode(ctx context.Context, chatID, userID int64, code string) {
	allowed, err := b.deps.State.AllowCodeAttempt(ctx, userID)
	if err != nil {
		b.log.Warn("code attempt limit unavailable", zap.Int64("user_id", userID), zap.Error(err))
	} else if !allowed {
		b.reply(chatID, userMessage(errTooManyAttempts))
		return
	}

	account, err := b.deps.Accounts.GetByTelegramID(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		b.fail(chatID, "redeem code", err)
		return
	}

	redeemed, err := b.deps.Referrals.Redeem(ctx, account.ID, code)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCode) {
			if err := b.deps.State.RecordCodeFailure(ctx, userID); err != nil {
				b.log.Warn("failed to record code attempt", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
		b.fail(chatID, "redeem code", err)
		return
	}
	b.reply(chatID, codeAcceptedText(redeemed.Reward, redeemed.Account.Balance))
}

// tryShopSelection buys the n-th active item. It reports false when there is
// no such item so the number can be tried against raffles.
func (b *Bot) tryShopSelection(ctx context.Context, chatID int64, uid string, n int) bool {
	items, err := b.deps.Shop.ListActive(ctx)
	if err != nil {
		b.log.Error("failed to list shop items", zap.Error(err))
		return false
	}
	if n > len(items) {
		return false
	}
	item := items[n-1]

	account, err := b.deps.Accounts.GetByTelegramID(ctx, uid)
	if err != nil {
		b.fail(chatID, "purchase", err)
		return true
	}
	if _, _, err := b.deps.Shop.Purchase(ctx, account.ID, item.ID); err != nil {
		b.fail(chatID, "purchase", err)
		return true
	}
	b.replyMarkdown(chatID, purchasedText(item))
	return true
}

func (b *Bot) tryRaffleSelection(ctx context.Context, chatID int64, uid string, n int) bool {
	raffles, err := b.deps.Raffles.ListActive(ctx)
	if err != nil {
		b.log.Error("failed to list raffles", zap.Error(err))
		return false
	}
	if n > len(raffles) {
		return false
	}
	raffle := raffles[n-1]

	account, err := b.deps.Accounts.GetByTelegramID(ctx, uid)
	if err != nil {
		b.fail(chatID, "raffle entry", err)
		return true
	}
	if _, _, err := b.deps.Raffles.Enter(ctx, account.ID, raffle.ID); err != nil {
		b.fail(chatID, "raffle entry", err)
		return true
	}
	b.replyMarkdown(chatID, enteredText(raffle))
	return true
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainKeyboard
	b.send(msg)
}

func (b *Bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = mainKeyboard
	b.send(msg)
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

// fail replies with the user-facing text for err. Business outcomes are
// expected and logged at debug; anything else is an error.
func (b *Bot) fail(chatID int64, op string, err error) {
	if services.IsBusinessError(err) || errors.Is(err, errTooManyAttempts) {
		b.log.Debug("request rejected", zap.String("op", op), zap.Int64("chat_id", chatID), zap.Error(err))
	} else {
		b.log.Error("request failed", zap.String("op", op), zap.Int64("chat_id", chatID), zap.Error(err))
	}
	b.reply(chatID, userMessage(err))
}
