package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// BackoffFunc returns the wait before the next attempt; attempt starts at 1.
type BackoffFunc func(attempt int) time.Duration

type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// RetryableErrors limits retries to errors matching one of these. Empty retries everything.
	RetryableErrors []error
	Retryable       func(error) bool
	Backoff         BackoffFunc
	OnRetry         func(attempt int, err error)
	Logger          *zap.Logger
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (cfg Config) normalized() Config {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Backoff == nil {
		cfg.Backoff = exponential(cfg.InitialDelay, cfg.MaxDelay, cfg.Multiplier, cfg.JitterFraction)
	}
	return cfg
}

// CappedExponential waits min(max, 2^(attempt-1) seconds + up to one second of jitter),
// so the first retry waits between one and two seconds.
func CappedExponential(max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := time.Duration(math.Pow(2, float64(attempt-1))*float64(time.Second)) +
			time.Duration(rand.Float64()*float64(time.Second))
		return min(d, max)
	}
}

func exponential(initial, max time.Duration, multiplier, jitter float64) BackoffFunc {
	return func(attempt int) time.Duration {
		d := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		return spread(time.Duration(math.Min(d, float64(max))), jitter)
	}
}

// Do calls operation until it succeeds, returns a permanent or non-retryable error,
// or runs out of attempts. The last operation error wins over a context error.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				cfg.Logger.Info("Operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if !cfg.retryable(lastErr) {
			cfg.Logger.Debug("Error not retryable", zap.Error(lastErr), zap.Int("attempt", attempt))
			return lastErr
		}
		if attempt >= cfg.MaxAttempts {
			return lastErr
		}

		wait := cfg.Backoff(attempt)
		cfg.Logger.Warn("Operation failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", wait),
		)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}
		if !sleep(ctx, wait) {
			return lastErr
		}
	}
}

func DoWithResult[T any](ctx context.Context, cfg Config, operation func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}

func (cfg Config) retryable(err error) bool {
	if cfg.Retryable != nil {
		return cfg.Retryable(err)
	}
	if len(cfg.RetryableErrors) == 0 {
		return true
	}
	for _, target := range cfg.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// spread moves d up or down by a random share of at most fraction.
func spread(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	delta := time.Duration(rand.Float64() * float64(d) * fraction)
	if rand.Intn(2) == 0 {
		return d - delta
	}
	return d + delta
}
