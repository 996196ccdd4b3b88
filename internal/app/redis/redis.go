package redis

import (
	"context"
	"fmt"
	"time"

	"agency/internal/app/config"

	"github.com/go-redis/redis/v8"
)

const (
	jwtPrefix       = "jwt."
	rateLimitPrefix = "rate_limit:"
)

type Client struct {
	cfg    config.RedisConfig
	client *redis.Client
}

func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	client := &Client{cfg: cfg}

	client.client = redis.NewClient(&redis.Options{
		Password:    cfg.Password,
		Username:    cfg.User,
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:          0,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})

	if err := client.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cant ping redis: %w", err)
	}

	return client, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// WriteJWTToBlacklist добавляет токен в blacklist до истечения его срока
func (c *Client) WriteJWTToBlacklist(ctx context.Context, jwtStr string, jwtTTL time.Duration) error {
	return c.client.Set(ctx, jwtPrefix+jwtStr, true, jwtTTL).Err()
}

// CheckJWTInBlacklist возвращает nil если токен найден в blacklist
func (c *Client) CheckJWTInBlacklist(ctx context.Context, jwtStr string) error {
	return c.client.Get(ctx, jwtPrefix+jwtStr).Err()
}

// AllowMessage лимит сообщений бота: не более limit сообщений в минуту на чат
func (c *Client) AllowMessage(ctx context.Context, chatID string, limit int64) (bool, error) {
	key := rateLimitPrefix + chatID

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, time.Minute).Err(); err != nil {
			return false, err
		}
	}

	return count <= limit, nil
}
