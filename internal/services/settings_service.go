package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/coinbot/backend/internal/config"
	"github.com/coinbot/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const settingsCachePrefix = "settings:"

// SettingsService reads runtime settings from bot_settings through a redis
// cache. Missing redis degrades to the database, and a failing database
// degrades to the configured defaults.
type SettingsService struct {
	db       *sql.DB
	redis    *redis.Client
	ttl      time.Duration
	defaults map[string]int64
	log      *zap.Logger
}

func NewSettingsService(db *sql.DB, rdb *redis.Client, cfg *config.LedgerConfig, log *zap.Logger) *SettingsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsService{
		db:    db,
		redis: rdb,
		ttl:   cfg.SettingsCacheTTL,
		defaults: map[string]int64{
			models.SettingDailyRewardAmount:    cfg.DailyRewardAmount,
			models.SettingReferralRewardAmount: cfg.ReferralRewardAmount,
		},
		log: log.Named("settings"),
	}
}

func (s *SettingsService) DailyRewardAmount(ctx context.Context) int64 {
	return s.intSetting(ctx, models.SettingDailyRewardAmount)
}

func (s *SettingsService) ReferralRewardAmount(ctx context.Context) int64 {
	return s.intSetting(ctx, models.SettingReferralRewardAmount)
}

func (s *SettingsService) intSetting(ctx context.Context, key string) int64 {
	fallback := s.defaults[key]
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		s.log.Warn("using default setting", zap.String("key", key), zap.Int64("default", fallback), zap.Error(err))
		return fallback
	}
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		s.log.Warn("malformed setting", zap.String("key", key), zap.String("value", value))
		return fallback
	}
	return n
}

// Get returns the raw value for key; ok is false when the key is unset.
func (s *SettingsService) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	cacheKey := settingsCachePrefix + key
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			return cached, true, nil
		}
		if err != redis.Nil {
			s.log.Warn("settings cache unavailable", zap.String("key", key), zap.Error(err))
		}
	}

	err = s.db.QueryRowContext(ctx, `SELECT value FROM bot_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, value, s.ttl).Err(); err != nil {
			s.log.Warn("failed to cache setting", zap.String("key", key), zap.Error(err))
		}
	}
	return value, true, nil
}

// Set upserts key and drops its cached value.
func (s *SettingsService) Set(ctx context.Context, key, value, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_settings (key, value, description, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, description = EXCLUDED.description, updated_at = NOW()`,
		key, value, description,
	)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, settingsCachePrefix+key).Err(); err != nil {
			s.log.Warn("failed to invalidate setting", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// RewardAmounts is the admin view of the reward settings.
type RewardAmounts struct {
	DailyRewardAmount    int64 `json:"daily_reward_amount"`
	ReferralRewardAmount int64 `json:"referral_reward_amount"`
}

func (s *SettingsService) Rewards(ctx context.Context) RewardAmounts {
	return RewardAmounts{
		DailyRewardAmount:    s.DailyRewardAmount(ctx),
		ReferralRewardAmount: s.ReferralRewardAmount(ctx),
	}
}

// All lists every stored setting.
func (s *SettingsService) All(ctx context.Context) ([]models.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, description, updated_at FROM bot_settings ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []models.Setting
	for rows.Next() {
		var st models.Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.Description, &st.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}
