package ratelimit

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const ClientHeader = "X-Client-ID"

type RateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	logger   *zap.Logger
}

type Config struct {
	MaxRequestsPerMinute int
	Burst                int
	// MaxClients bounds the number of tracked clients; the least recently seen are evicted.
	MaxClients int
	Logger     *zap.Logger
}

func New(cfg Config) (*RateLimiter, error) {
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.Burst == 0 {
		cfg.Burst = cfg.MaxRequestsPerMinute
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 10000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	limiters, err := lru.New[string, *rate.Limiter](cfg.MaxClients)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}

	return &RateLimiter{
		limiters: limiters,
		limit:    rate.Every(time.Minute / time.Duration(cfg.MaxRequestsPerMinute)),
		burst:    cfg.Burst,
		logger:   cfg.Logger,
	}, nil
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if id := c.Get(ClientHeader); id != "" {
			key = id
		}

		if !rl.allow(key) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	l, ok := rl.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		if prev, found, _ := rl.limiters.PeekOrAdd(key, l); found {
			l = prev
		}
	}
	return l.Allow()
}

// Clients reports how many clients are currently tracked.
func (rl *RateLimiter) Clients() int {
	return rl.limiters.Len()
}
