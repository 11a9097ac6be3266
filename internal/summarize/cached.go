package summarize

import (
	"context"
	"strconv"
	"time"

	"github.com/deusflow/dailyletter/internal/cache"
	"github.com/deusflow/dailyletter/internal/logger"
	"github.com/deusflow/dailyletter/internal/outcome"
)

// Store is a persistent summary cache shared between runs.
type Store interface {
	GetSummary(ctx context.Context, key string) (string, bool, error)
	PutSummary(ctx context.Context, key, title, summary string) error
}

// Cached serves repeated articles from memory or the store before calling
// the wrapped summarizer. Only successful summaries are cached.
type Cached struct {
	next  Summarizer
	mem   *cache.Cache
	store Store
	ttl   time.Duration
}

// NewCached wraps next. store may be nil.
func NewCached(next Summarizer, mem *cache.Cache, store Store, ttl time.Duration) *Cached {
	return &Cached{next: next, mem: mem, store: store, ttl: ttl}
}

func Key(title, content string, maxChars int) string {
	return cache.GenerateKey(title, content, strconv.Itoa(maxChars))
}

func (c *Cached) Summarize(ctx context.Context, title, content string, maxChars int) outcome.Result {
	key := Key(title, content, maxChars)

	if v, ok := c.mem.Get(key); ok {
		logger.Debug("Summary cache hit", "layer", "memory", "title", title)
		return outcome.Success(v)
	}

	if c.store != nil {
		v, ok, err := c.store.GetSummary(ctx, key)
		if err != nil {
			logger.Warn("Summary store lookup failed", "error", err)
		} else if ok && v != "" {
			logger.Debug("Summary cache hit", "layer", "store", "title", title)
			c.mem.Set(key, v, c.ttl)
			return outcome.Success(v)
		}
	}

	res := c.next.Summarize(ctx, title, content, maxChars)
	if !res.OK() {
		return res
	}

	c.mem.Set(key, res.Text, c.ttl)
	if c.store != nil {
		if err := c.store.PutSummary(ctx, key, title, res.Text); err != nil {
			logger.Warn("Summary store write failed", "error", err)
		}
	}
	return res
}
