// Package retry provides exponential backoff with jitter for operations
// against flaky upstreams. It is used on the ingestion path only; serving
// requests fail fast instead.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// RetryableErrors limits retries to matching errors. Empty means
	// every error is retried.
	RetryableErrors []error
	Logger          *zap.Logger
}

// DefaultConfig suits batch embedding calls: few attempts, generous
// delays, since ingestion is offline work with no caller waiting.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		Logger:         zap.NewNop(),
	}
}

func (cfg *Config) fillDefaults() {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// Do runs operation until it succeeds, returns a non-retryable error,
// the attempt budget is spent, or ctx is cancelled.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	cfg.fillDefaults()

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			if attempt > 1 {
				cfg.Logger.Info("Operation recovered",
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err

		if !retryable(err, cfg.RetryableErrors) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		cfg.Logger.Warn("Operation failed, backing off",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered(delay, cfg.JitterFraction)):
		}

		delay = time.Duration(math.Min(float64(cfg.MaxDelay), float64(delay)*cfg.Multiplier))
	}

	return lastErr
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](ctx context.Context, cfg Config, operation func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}

func retryable(err error, allowed []error) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, target := range allowed {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// jittered spreads the delay by ±fraction so simultaneous retries
// against the same upstream do not land together.
func jittered(delay time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return delay
	}
	spread := (rand.Float64()*2 - 1) * fraction
	return delay + time.Duration(spread*float64(delay))
}
