package assist

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff ceiling
	Multiplier float64       // exponential growth factor
	Jitter     bool          // add random jitter to spread retries
}

// DefaultRetryConfig allows three attempts in total, which suits slow
// language-model backends.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// retryWithBackoff runs op until it succeeds, the attempt budget is spent,
// or ctx is done. It returns the number of attempts made and the last error.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, op func() error) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt, lastErr
			}
			return attempt, err
		}

		lastErr = op()
		if lastErr == nil {
			return attempt + 1, nil
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return attempt + 1, lastErr
		case <-time.After(backoffDelay(cfg, attempt)):
		}
	}
	return cfg.MaxRetries + 1, lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		// Up to 10% either way, to avoid retry bursts lining up.
		span := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * span
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}
	return time.Duration(delay)
}
