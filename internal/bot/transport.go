package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrBroadcastRunning is returned by StartBroadcast while another broadcast
// is still being delivered.
var ErrBroadcastRunning = errors.New("a broadcast is already running")

// BroadcastStatus describes the latest background broadcast.
type BroadcastStatus struct {
	Running    bool       `json:"running"`
	Sent       int        `json:"success"`
	Failed     int        `json:"failed"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StartBroadcast delivers text in the background. Delivery is detached from
// ctx's cancellation so it outlives the admin request; only Close stops it.
func (b *Bot) StartBroadcast(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.life.Err(); err != nil {
		return err
	}
	if b.broadcast.Running {
		return ErrBroadcastRunning
	}

	started := time.Now()
	b.broadcast = BroadcastStatus{Running: true, StartedAt: &started}

	run, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopOnClose := context.AfterFunc(b.life, cancel)

	b.jobs.Add(1)
	go func() {
		defer b.jobs.Done()
		defer cancel()
		defer stopOnClose()

		sent, failed, err := b.Broadcast(run, text)
		finished := time.Now()

		b.mu.Lock()
		b.broadcast.Running = false
		b.broadcast.Sent = sent
		b.broadcast.Failed = failed
		b.broadcast.FinishedAt = &finished
		if err != nil {
			b.broadcast.Error = err.Error()
		}
		b.mu.Unlock()

		fields := []zap.Field{zap.Int("success", sent), zap.Int("failed", failed), zap.Duration("took", finished.Sub(started))}
		if err != nil {
			b.log.Warn("broadcast stopped early", append(fields, zap.Error(err))...)
			return
		}
		b.log.Info("broadcast finished", fields...)
	}()
	return nil
}

func (b *Bot) BroadcastStatus() BroadcastStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.broadcast
}

// Broadcast sends text to every active account, pacing sends by the
// configured delay. Users who blocked the bot are marked inactive.
func (b *Bot) Broadcast(ctx context.Context, text string) (sent, failed int, err error) {
	ids, err := b.deps.Accounts.ActiveTelegramIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}

		chatID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			b.log.Warn("skipping malformed telegram id", zap.String("telegram_id", id))
			failed++
			continue
		}

		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, broadcastText(text))); err != nil {
			failed++
			b.log.Warn("broadcast send failed", zap.String("telegram_id", id), zap.Error(err))
			if blocked(err) {
				b.deactivate(ctx, id)
			}
			continue
		}
		sent++

		if b.broadcastDelay > 0 {
			select {
			case <-ctx.Done():
				return sent, failed, ctx.Err()
			case <-time.After(b.broadcastDelay):
			}
		}
	}
	return sent, failed, nil
}

func blocked(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden
}

func (b *Bot) deactivate(ctx context.Context, telegramID string) {
	account, err := b.deps.Accounts.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return
	}
	if err := b.deps.Accounts.SetActive(ctx, account.ID, false); err != nil {
		b.log.Warn("failed to deactivate account", zap.Int64("account_id", account.ID), zap.Error(err))
		return
	}
	b.log.Info("account deactivated after bot was blocked", zap.Int64("account_id", account.ID))
}

// Poll long-polls api for updates until ctx is cancelled. Updates are
// handled concurrently; the ledger serialises work per account.
func (b *Bot) Poll(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	b.log.Info("polling for updates", zap.String("bot", api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func(update tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}(update)
		}
	}
}

// WebhookHandler accepts updates pushed by Telegram.
func (b *Bot) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576)).Decode(&update); err != nil {
			b.log.Warn("malformed webhook update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	}
}
