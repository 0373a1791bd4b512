package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinbot/backend/internal/audit"
	"github.com/coinbot/backend/internal/bot"
	"github.com/coinbot/backend/internal/clock"
	"github.com/coinbot/backend/internal/config"
	"github.com/coinbot/backend/internal/database"
	"github.com/coinbot/backend/internal/handlers"
	"github.com/coinbot/backend/internal/logger"
	mW "github.com/coinbot/backend/internal/middleware"
	"github.com/coinbot/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// @title Coin Bot Admin API
// @version 1.0
// @description Admin API for the coin reward ledger behind the Telegram bot
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func loadConfig() {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.BindEnv("app.env", "APP_ENV")
	viper.BindEnv("server.port", "PORT")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("telegram.token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("telegram.mode", "TELEGRAM_MODE")
	viper.BindEnv("telegram.webhook_url", "TELEGRAM_WEBHOOK_URL")
	viper.BindEnv("telegram.debug", "TELEGRAM_DEBUG")
	viper.BindEnv("telegram.broadcast_delay", "TELEGRAM_BROADCAST_DELAY")
	viper.BindEnv("telegram.max_code_attempts", "TELEGRAM_MAX_CODE_ATTEMPTS")

	viper.BindEnv("ledger.timezone", "LEDGER_TIMEZONE")
	viper.BindEnv("ledger.max_attempts", "LEDGER_MAX_ATTEMPTS")
	viper.BindEnv("ledger.retry_backoff", "LEDGER_RETRY_BACKOFF")
	viper.BindEnv("rewards.daily_amount", "DAILY_REWARD_AMOUNT")
	viper.BindEnv("rewards.referral_amount", "REFERRAL_REWARD_AMOUNT")
	viper.BindEnv("referral.code_length", "REFERRAL_CODE_LENGTH")
	viper.BindEnv("settings.cache_ttl", "SETTINGS_CACHE_TTL")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("static.shop_dir", "./static/shop")
}

func main() {
	loadConfig()
	configErr := viper.ReadInConfig()

	log := logger.Must(viper.GetString("app.env") == "production")
	defer log.Sync()
	if configErr != nil {
		log.Info("config file not found, using environment and defaults", zap.Error(configErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledgerCfg := config.LoadLedgerConfig()
	botCfg := config.LoadBotConfig()
	authCfg := config.LoadAuthConfig()
	if authCfg.SecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	if botCfg.Token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	db := database.InitDatabase(ctx, log)
	defer db.Close()

	redisClient := database.InitRedis(ctx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	calendar := clock.NewCalendar(ledgerCfg.Timezone, nil)
	log.Info("reward calendar", zap.String("zone", calendar.Location().String()))

	auditLog := audit.NewLogger(log)
	ledger := services.NewLedgerService(db, log,
		services.WithRetry(ledgerCfg.MaxAttempts, ledgerCfg.RetryBackoff),
		services.WithAuditLogger(auditLog),
	)
	settings := services.NewSettingsService(db, redisClient, ledgerCfg, log)
	accounts := services.NewAccountService(db, ledgerCfg.ReferralCodeLength, log)
	daily := services.NewDailyRewardService(ledger, calendar)
	referrals := services.NewReferralService(db, ledger, settings, auditLog, log)
	shop := services.NewShopService(db, ledger)
	raffles := services.NewRaffleService(db, ledger)
	authService := services.NewAuthService(db, redisClient, authCfg, log)

	api, err := tgbotapi.NewBotAPI(botCfg.Token)
	if err != nil {
		log.Fatal("failed to connect to telegram", zap.Error(err))
	}
	api.Debug = botCfg.Debug
	log.Info("authorized on telegram", zap.String("bot", api.Self.UserName))

	qr := services.NewQRService(api.Self.UserName)

	var state bot.StateStore
	if redisClient != nil {
		state = bot.NewRedisStateStore(redisClient, botCfg.StateTTL, botCfg.MaxCodeAttempts, botCfg.CodeAttemptWindow)
	} else {
		state = bot.NewMemoryStateStore(botCfg.StateTTL, botCfg.MaxCodeAttempts, botCfg.CodeAttemptWindow)
	}

	tgBot := bot.New(api, bot.Deps{
		Accounts:  accounts,
		Daily:     daily,
		Referrals: referrals,
		Entries:   ledger,
		Shop:      shop,
		Raffles:   raffles,
		Rewards:   settings,
		Invites:   qr,
		State:     state,
	}, botCfg.BroadcastDelay, log)

	accountHandler := handlers.NewAccountHandler(ledger, accounts, calendar, log)
	catalogHandler := handlers.NewCatalogHandler(shop, raffles, log)
	inviteHandler := handlers.NewInviteHandler(ledger, qr, log)
	settingsHandler := handlers.NewSettingsHandler(settings, log)
	referralHandler := handlers.NewReferralHandler(referrals, log)
	broadcastHandler := handlers.NewBroadcastHandler(tgBot, log)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if err := db.PingContext(r.Context()); err != nil {
			status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Handle("/static/shop/*", http.StripPrefix("/static/shop/",
		mW.ShopImageServer(viper.GetString("static.shop_dir"))))

	if botCfg.Mode == "webhook" {
		r.Post("/telegram/webhook", tgBot.WebhookHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authService.Login)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(authCfg.SecretKey, redisClient))

			r.Post("/auth/logout", authService.Logout)

			r.Get("/dashboard/stats", accountHandler.Dashboard)

			r.Get("/accounts", accountHandler.ListAccounts)
			r.Post("/accounts/reset-balances", accountHandler.ResetBalances)
			r.Get("/accounts/{id}", accountHandler.GetAccount)
			r.Get("/accounts/{id}/entries", accountHandler.ListEntries)
			r.Get("/accounts/{id}/verify", accountHandler.VerifyBalance)
			r.Get("/accounts/{id}/invite", inviteHandler.GetInvite)
			r.Post("/accounts/{id}/adjust", accountHandler.AdjustBalance)
			r.Post("/accounts/{id}/status", accountHandler.SetStatus)

			r.Get("/shop", catalogHandler.ListShopItems)
			r.Post("/shop", catalogHandler.CreateShopItem)
			r.Patch("/shop/{id}", catalogHandler.UpdateShopItem)

			r.Get("/raffles", catalogHandler.ListRaffles)
			r.Post("/raffles", catalogHandler.CreateRaffle)
			r.Patch("/raffles/{id}", catalogHandler.UpdateRaffle)
			r.Get("/raffles/{id}/entries", catalogHandler.RaffleEntries)

			r.Get("/settings", settingsHandler.GetSettings)
			r.Patch("/settings", settingsHandler.UpdateSettings)

			r.Get("/referrals/reconciliations", referralHandler.ListReconciliations)
			r.Post("/referrals/reconciliations/{id}/resolve", referralHandler.ResolveReconciliation)

			r.Post("/broadcast", broadcastHandler.Broadcast)
			r.Get("/broadcast", broadcastHandler.Status)
		})
	})

	server := &http.Server{
		Addr:         ":" + viper.GetString("server.port"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	botDone := make(chan struct{})
	switch botCfg.Mode {
	case "webhook":
		wh, err := tgbotapi.NewWebhook(botCfg.WebhookURL)
		if err != nil {
			log.Fatal("invalid telegram webhook url", zap.Error(err))
		}
		if _, err := api.Request(wh); err != nil {
			log.Fatal("failed to register telegram webhook", zap.Error(err))
		}
		log.Info("telegram webhook registered", zap.String("url", botCfg.WebhookURL))
		close(botDone)
	default:
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn("failed to clear telegram webhook", zap.Error(err))
		}
		go func() {
			defer close(botDone)
			tgBot.Poll(ctx, api)
		}()
	}

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	<-botDone
	tgBot.Close()

	log.Info("server stopped")
}
