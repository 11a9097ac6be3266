// Package retry re-runs delivery steps that may fail transiently.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/dailyletter/internal/logger"
)

type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // linear: attempt n waits n*Delay
}

// Default is used for sink delivery.
var Default = Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true}

// Do calls fn until it succeeds, attempts run out or ctx is done.
func Do(ctx context.Context, cfg Config, op string, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := cfg.Delay
		if cfg.Backoff {
			delay = time.Duration(attempt) * cfg.Delay
		}
		logger.Warn("Retrying", "op", op, "attempt", attempt, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
