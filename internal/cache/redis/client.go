package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/pkg/logger"
	"github.com/service-agreement/backend/pkg/retry"
)

const completionPrefix = "completion:"

type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
	// TTL bounds how long a validated completion is reused.
	TTL time.Duration
	// Backoff controls the start-up ping. The zero value uses retry.DefaultBackoff.
	Backoff retry.Backoff
}

// Client caches completion text by prompt fingerprint.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	b := opts.Backoff
	if b.Logger == nil {
		b.Logger = logger.GetLogger()
	}
	err := retry.Do(ctx, b, "redis_ping", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger.Info("Redis client initialized", zap.String("addr", addr), zap.Duration("ttl", ttl))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func completionKey(fingerprint string) string {
	return completionPrefix + fingerprint
}

func (c *Client) SetCompletion(ctx context.Context, fingerprint, content string) error {
	err := c.client.Set(ctx, completionKey(fingerprint), content, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set completion cache: %w", err)
	}

	logger.Debug("Completion cached", zap.String("fingerprint", fingerprint), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetCompletion(ctx context.Context, fingerprint string) (string, bool, error) {
	content, err := c.client.Get(ctx, completionKey(fingerprint)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get completion cache: %w", err)
	}

	logger.Debug("Completion cache hit", zap.String("fingerprint", fingerprint))
	return content, true, nil
}

// InvalidateCompletions drops every cached completion. Prompts embed KB
// items, so the server calls it after loading the KB.
func (c *Client) InvalidateCompletions(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, completionPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Completion cache invalidated", zap.Int("deleted", deleted))
	return deleted, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
