package config

import (
	"time"

	"github.com/spf13/viper"
)

type LedgerConfig struct {
	Timezone             string
	MaxAttempts          int
	RetryBackoff         time.Duration
	DailyRewardAmount    int64
	ReferralRewardAmount int64
	ReferralCodeLength   int
	SettingsCacheTTL     time.Duration
}

func LoadLedgerConfig() *LedgerConfig {
	viper.SetDefault("ledger.timezone", "America/Los_Angeles")
	viper.SetDefault("ledger.max_attempts", 3)
	viper.SetDefault("ledger.retry_backoff", 50*time.Millisecond)
	viper.SetDefault("rewards.daily_amount", 1)
	viper.SetDefault("rewards.referral_amount", 1)
	viper.SetDefault("referral.code_length", 8)
	viper.SetDefault("settings.cache_ttl", 5*time.Minute)

	cfg := &LedgerConfig{
		Timezone:             viper.GetString("ledger.timezone"),
		MaxAttempts:          viper.GetInt("ledger.max_attempts"),
		RetryBackoff:         viper.GetDuration("ledger.retry_backoff"),
		DailyRewardAmount:    viper.GetInt64("rewards.daily_amount"),
		ReferralRewardAmount: viper.GetInt64("rewards.referral_amount"),
		ReferralCodeLength:   viper.GetInt("referral.code_length"),
		SettingsCacheTTL:     viper.GetDuration("settings.cache_ttl"),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ReferralCodeLength < 4 {
		cfg.ReferralCodeLength = 8
	}
	return cfg
}

type BotConfig struct {
	Token      string
	Mode       string // polling or webhook
	WebhookURL string
	Debug      bool
	// BroadcastDelay paces outgoing broadcast messages under Telegram's rate limit.
	BroadcastDelay time.Duration
	StateTTL       time.Duration
	// Failed invitation codes allowed per user within CodeAttemptWindow.
	MaxCodeAttempts   int
	CodeAttemptWindow time.Duration
}

func LoadBotConfig() *BotConfig {
	viper.SetDefault("telegram.mode", "polling")
	viper.SetDefault("telegram.broadcast_delay", 50*time.Millisecond)
	viper.SetDefault("telegram.state_ttl", 10*time.Minute)
	viper.SetDefault("telegram.max_code_attempts", 5)
	viper.SetDefault("telegram.code_attempt_window", time.Hour)

	return &BotConfig{
		Token:          viper.GetString("telegram.token"),
		Mode:           viper.GetString("telegram.mode"),
		WebhookURL:     viper.GetString("telegram.webhook_url"),
		Debug:          viper.GetBool("telegram.debug"),
		BroadcastDelay: viper.GetDuration("telegram.broadcast_delay"),
		StateTTL:       viper.GetDuration("telegram.state_ttl"),

		MaxCodeAttempts:   viper.GetInt("telegram.max_code_attempts"),
		CodeAttemptWindow: viper.GetDuration("telegram.code_attempt_window"),
	}
}

type AuthConfig struct {
	SecretKey   string
	ExpiryHours int
	Argon2      Argon2Params
}

type Argon2Params struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength int
}

func LoadAuthConfig() *AuthConfig {
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	return &AuthConfig{
		SecretKey:   viper.GetString("jwt.secret_key"),
		ExpiryHours: viper.GetInt("jwt.expiry_hours"),
		Argon2: Argon2Params{
			Time:       uint32(viper.GetInt("argon2.time")),
			Memory:     uint32(viper.GetInt("argon2.memory")),
			Threads:    uint8(viper.GetInt("argon2.threads")),
			KeyLength:  uint32(viper.GetInt("argon2.key_length")),
			SaltLength: viper.GetInt("argon2.salt_length"),
		},
	}
}
