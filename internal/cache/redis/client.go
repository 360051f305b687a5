package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const replyPrefix = "ai_reply:"

type Client struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewClient(ctx context.Context, host string, port int, password string, db int, ttl time.Duration, logger *zap.Logger) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	c, err := newClient(ctx, client, ttl, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	c.logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))
	return c, nil
}

// NewFromClient wraps an existing connection.
func NewFromClient(ctx context.Context, client *redis.Client, ttl time.Duration, logger *zap.Logger) (*Client, error) {
	return newClient(ctx, client, ttl, logger)
}

func newClient(ctx context.Context, client *redis.Client, ttl time.Duration, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Client{client: client, ttl: ttl, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetReply(ctx context.Context, key string, reply map[string]string) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	if err := c.client.Set(ctx, replyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set reply cache: %w", err)
	}

	c.logger.Debug("Reply cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetReply(ctx context.Context, key string) (map[string]string, bool, error) {
	data, err := c.client.Get(ctx, replyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get reply cache: %w", err)
	}

	var reply map[string]string
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	c.logger.Debug("Reply cache hit", zap.String("key", key))
	return reply, true, nil
}

// InvalidateReplies drops every cached AI reply, e.g. after the label vocabulary changes.
func (c *Client) InvalidateReplies(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, replyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	c.logger.Info("Reply cache invalidated", zap.Int("deleted", deleted))
	return deleted, nil
}
