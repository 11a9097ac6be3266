package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/dailyletter/internal/logger"
)

// ErrBudgetExhausted is returned once the per-run request cap is used up.
var ErrBudgetExhausted = errors.New("summarization request budget exhausted")

// Limiter is the system-wide budget for summarization calls. All workers
// share one instance, so the spacing and the cap apply across sources.
type Limiter struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	used     int
	maxCalls int // 0 = unlimited
	denied   int
}

// New spaces permits at least delay apart. maxCalls caps the number of
// permits handed out; 0 disables the cap.
func New(delay time.Duration, maxCalls int) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limit, 1),
		maxCalls: maxCalls,
	}
}

// Wait blocks until the next call may start. It returns ErrBudgetExhausted
// without waiting when the cap is reached, or the context error.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.maxCalls > 0 && l.used >= l.maxCalls {
		l.denied++
		l.mu.Unlock()
		logger.Debug("Summarization budget reached", "used", l.maxCalls)
		return ErrBudgetExhausted
	}
	l.used++
	used := l.used
	l.mu.Unlock()

	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	logger.Debug("Summarization permit granted", "used", used, "limit", l.maxCalls)
	return nil
}

// Stats reports how many permits were granted and denied.
func (l *Limiter) Stats() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]int{
		"used":   l.used,
		"limit":  l.maxCalls,
		"denied": l.denied,
	}
}
