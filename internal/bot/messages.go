package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coinbot/backend/internal/models"
	"github.com/coinbot/backend/internal/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const recentEntries = 5

var errTooManyAttempts = errors.New("too many invitation code attempts")

// userMessage maps an operation error to the text shown in chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrAccountNotFound):
		return "Please /start first"
	case errors.Is(err, services.ErrAlreadyClaimed):
		return "⏰ Already claimed today. See you tomorrow!"
	case errors.Is(err, services.ErrInsufficientBalance):
		return "❌ Not enough coins."
	case errors.Is(err, services.ErrInvalidAmount):
		return "⏸️ Rewards are paused right now."
	case errors.Is(err, services.ErrInvalidCode):
		return "❌ Invalid invitation code."
	case errors.Is(err, services.ErrSelfReferral):
		return "❌ You can't use your own invitation code."
	case errors.Is(err, services.ErrAlreadyReferred):
		return "❌ You already used a code."
	case errors.Is(err, services.ErrItemNotFound):
		return "❌ That item is no longer available."
	case errors.Is(err, services.ErrOutOfStock):
		return "❌ That item is out of stock."
	case errors.Is(err, services.ErrRaffleNotFound):
		return "❌ That raffle is no longer available."
	case errors.Is(err, services.ErrRaffleClosed):
		return "❌ That raffle has ended."
	case errors.Is(err, services.ErrRaffleFull):
		return "❌ That raffle is full."
	case errors.Is(err, errTooManyAttempts):
		return "⏳ Too many attempts. Try again later."
	case errors.Is(err, services.ErrStorageConflict):
		return "⚠️ Busy right now, please try again in a moment."
	default:
		return "⚠️ Something went wrong. Please try again."
	}
}

func plural(n int64, word string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func welcomeText(firstName string) string {
	if firstName == "" {
		return "👋 Welcome! Choose an option."
	}
	return fmt.Sprintf("👋 Welcome %s! Choose an option.", firstName)
}

func referralBonusText(reward int64) string {
	return fmt.Sprintf("🎉 Referral bonus: +%d coins!", reward)
}

func dailyText(c *services.DailyClaim) string {
	return fmt.Sprintf("🎁 +%s!\nStreak: %d days\nBalance: %d", plural(c.Amount, "coin"), c.Streak, c.Account.Balance)
}

func infoText(a *models.Account, entries []models.LedgerEntry) string {
	recent := "None yet"
	if len(entries) > 0 {
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			sign := ""
			if e.Amount > 0 {
				sign = "+"
			}
			lines = append(lines, fmt.Sprintf("%s%d – %s", sign, e.Amount, e.Description))
		}
		recent = strings.Join(lines, "\n")
	}
	return fmt.Sprintf("🪙 Coins: %d\nReferral code: %s\n\nRecent transactions:\n%s", a.Balance, a.ReferralCode, recent)
}

func shopText(items []models.ShopItem) string {
	if len(items) == 0 {
		return "🏪 Shop is empty."
	}
	lines := make([]string, 0, len(items))
	for i, it := range items {
		line := fmt.Sprintf("%d. %s – %d coins", i+1, it.Name, it.Cost)
		if it.Stock != nil {
			line += fmt.Sprintf(" (stock %d)", *it.Stock)
		}
		lines = append(lines, line)
	}
	return "🏪 Items:\n\n" + strings.Join(lines, "\n") + "\n\n(type item number to buy)"
}

func rafflesText(raffles []models.Raffle) string {
	if len(raffles) == 0 {
		return "🎪 No active raffles."
	}
	blocks := make([]string, 0, len(raffles))
	for i, r := range raffles {
		blocks = append(blocks, fmt.Sprintf("%d. %s\n   Prize: %s\n   Cost: %d coins", i+1, r.Title, r.PrizeDescription, r.EntryCost))
	}
	return "🎪 Raffles:\n\n" + strings.Join(blocks, "\n\n") + "\n\n(type raffle number to enter)"
}

func inviteText(link string, reward int64) string {
	return fmt.Sprintf("🔗 Share: %s\nBoth of you earn %s!", link, plural(reward, "coin"))
}

func codeAcceptedText(reward, balance int64) string {
	return fmt.Sprintf("✅ Code accepted! +%d coins.\nBalance: %d", reward, balance)
}

func purchasedText(item models.ShopItem) string {
	return fmt.Sprintf("🛍️ Purchased *%s* for %d coins.", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, item.Name), item.Cost)
}

func enteredText(r models.Raffle) string {
	return fmt.Sprintf("🎟️ Entered *%s*! Good luck.", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, r.Title))
}

func broadcastText(message string) string {
	return "📢 " + message
}
