package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RedisConfig is read from the redis.* keys. URL, when set, wins over the
// individual fields.
type RedisConfig struct {
	URL         string
	Host        string
	Port        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

func LoadRedisConfig() RedisConfig {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.dial_timeout", "3s")

	return RedisConfig{
		URL:         viper.GetString("redis.url"),
		Host:        viper.GetString("redis.host"),
		Port:        viper.GetString("redis.port"),
		Password:    viper.GetString("redis.password"),
		DB:          viper.GetInt("redis.db"),
		PoolSize:    viper.GetInt("redis.pool_size"),
		DialTimeout: viper.GetDuration("redis.dial_timeout"),
	}
}

// Options builds client options for c.
func (c RedisConfig) Options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     c.Host + ":" + c.Port,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	opts.PoolSize = c.PoolSize
	opts.DialTimeout = c.DialTimeout
	return opts, nil
}

// InitRedis connects to redis. Redis only backs the settings cache, token
// revocation and bot conversation state, so an unreachable server yields a
// nil client and a warning instead of a fatal error.
func InitRedis(ctx context.Context, log *zap.Logger) *redis.Client {
	cfg := LoadRedisConfig()
	opts, err := cfg.Options()
	if err != nil {
		log.Warn("redis disabled", zap.Error(err))
		return nil
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, continuing without it", zap.String("addr", opts.Addr), zap.Error(err))
		rdb.Close()
		return nil
	}

	log.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return rdb
}
