// Package digest collects recent feed entries into an ordered, deduplicated
// and summarized list ready for rendering.
package digest

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/dailyletter/internal/dedup"
	"github.com/deusflow/dailyletter/internal/logger"
	"github.com/deusflow/dailyletter/internal/metrics"
	"github.com/deusflow/dailyletter/internal/normalize"
	"github.com/deusflow/dailyletter/internal/outcome"
	"github.com/deusflow/dailyletter/internal/rss"
)

const (
	DefaultMaxSummaryChars = 60
	DefaultFallbackChars   = 100
	DefaultPlaceholder     = "点击查看详情"
)

// Entry is one rendered digest item.
type Entry struct {
	Title   string
	Link    string
	Source  string
	Summary string
}

// Document is the finished digest: entries in source-then-arrival order.
type Document struct {
	Entries       []Entry
	Count         int
	GeneratedAt   time.Time
	LookbackHours int
}

type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string) ([]rss.Item, error)
}

type ArticleReader interface {
	ReadArticle(ctx context.Context, link string) outcome.Result
}

type Summarizer interface {
	Summarize(ctx context.Context, title, content string, maxChars int) outcome.Result
}

// Pacer spaces summarization calls. One instance is shared by all workers.
type Pacer interface {
	Wait(ctx context.Context) error
}

type Options struct {
	LookbackHours   int
	MaxEntries      int // 0 = no cap
	MaxSummaryChars int
	FallbackChars   int
	Placeholder     string
	Workers         int // 1 = fully sequential
}

func (o Options) withDefaults() Options {
	if o.MaxSummaryChars <= 0 {
		o.MaxSummaryChars = DefaultMaxSummaryChars
	}
	if o.FallbackChars <= 0 {
		o.FallbackChars = DefaultFallbackChars
	}
	if o.Placeholder == "" {
		o.Placeholder = DefaultPlaceholder
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// Assembler runs one digest collection. Reader, summarizer and pacer are
// optional; without them every entry gets the fallback summary.
type Assembler struct {
	feeds      FeedFetcher
	reader     ArticleReader
	summarizer Summarizer
	pacer      Pacer
	metrics    *metrics.Metrics
	opts       Options
	now        func() time.Time
}

func New(feeds FeedFetcher, reader ArticleReader, summarizer Summarizer, pacer Pacer, opts Options) *Assembler {
	return &Assembler{
		feeds:      feeds,
		reader:     reader,
		summarizer: summarizer,
		pacer:      pacer,
		opts:       opts.withDefaults(),
		now:        time.Now,
	}
}

func (a *Assembler) WithMetrics(m *metrics.Metrics) *Assembler {
	a.metrics = m
	return a
}

func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

type candidate struct {
	source string
	title  string
	item   rss.Item
}

// Assemble fetches every source, keeps entries published within the
// lookback window, drops repeated titles, caps the list and attaches a
// summary to each entry. Per-source and per-item failures are absorbed;
// the only error is cancellation of ctx, in which case no document is made.
func (a *Assembler) Assemble(ctx context.Context, sources []rss.Source) (*Document, error) {
	now := a.now()
	cutoff := now.Add(-time.Duration(a.opts.LookbackHours) * time.Hour)

	fetched, err := a.fetchAll(ctx, sources)
	if err != nil {
		return nil, err
	}

	candidates := a.admit(sources, fetched, cutoff, dedup.NewSet())
	if limit := a.opts.MaxEntries; limit > 0 && len(candidates) > limit {
		logger.Info("Truncating digest", "admitted", len(candidates), "max_entries", limit)
		a.metrics.Add(metrics.ItemTruncated, int64(len(candidates)-limit))
		candidates = candidates[:limit]
	}

	entries, err := a.enrichAll(ctx, candidates)
	if err != nil {
		return nil, err
	}
	a.metrics.Add(metrics.EntryPublished, int64(len(entries)))

	return &Document{
		Entries:       entries,
		Count:         len(entries),
		GeneratedAt:   now,
		LookbackHours: a.opts.LookbackHours,
	}, nil
}

// fetchAll returns the items of each source by index. A failing source
// contributes nothing.
func (a *Assembler) fetchAll(ctx context.Context, sources []rss.Source) ([][]rss.Item, error) {
	results := make([][]rss.Item, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			items, err := a.feeds.FetchFeed(gctx, src.URL)
			if err != nil {
				logger.Warn("Source unavailable", "source", src.Name, "url", src.URL, "error", err)
				a.metrics.Inc(metrics.SourceFailed)
				return nil
			}
			logger.Info("Loaded entries", "source", src.Name, "count", len(items))
			a.metrics.Inc(metrics.SourceFetched)
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// admit walks sources in configured order so the first occurrence of a
// title always wins, whatever order the feeds arrived in.
func (a *Assembler) admit(sources []rss.Source, fetched [][]rss.Item, cutoff time.Time, seen *dedup.Set) []candidate {
	var out []candidate
	for i, src := range sources {
		for _, item := range fetched[i] {
			a.metrics.Inc(metrics.ItemSeen)

			if item.PublishedAt == nil {
				a.metrics.Inc(metrics.ItemUndated)
				continue
			}
			if item.PublishedAt.Before(cutoff) {
				a.metrics.Inc(metrics.ItemOutOfWindow)
				continue
			}

			title := normalize.Text(item.Title)
			if !seen.Admit(title) {
				logger.Debug("Duplicate title", "source", src.Name, "title", title)
				a.metrics.Inc(metrics.DuplicateFiltered)
				continue
			}
			out = append(out, candidate{source: src.Name, title: title, item: item})
		}
	}
	return out
}

func (a *Assembler) enrichAll(ctx context.Context, candidates []candidate) ([]Entry, error) {
	entries := make([]Entry, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			entries[i] = a.enrich(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (a *Assembler) enrich(ctx context.Context, c candidate) Entry {
	log := logger.With("source", c.source, "title", c.title)

	var summary string
	if a.reader != nil {
		article := a.reader.ReadArticle(ctx, c.item.Link)
		if !article.OK() {
			log.Debug("Article text unavailable", "status", article.Status, "error", article.Err)
			a.metrics.Inc(metrics.ExtractionFailure)
		} else if a.summarizer != nil {
			summary = a.summarize(ctx, log, c.title, article.Text)
		}
	}

	if summary == "" {
		summary = Fallback(c.item.RawSummary, a.opts.FallbackChars, a.opts.Placeholder)
		a.metrics.Inc(metrics.FallbackSummary)
	}

	return Entry{
		Title:   c.title,
		Link:    c.item.Link,
		Source:  c.source,
		Summary: summary,
	}
}

func (a *Assembler) summarize(ctx context.Context, log *slog.Logger, title, content string) string {
	// The inter-call delay is spent here, before each model call, rather than after every entry.
	if a.pacer != nil {
		if err := a.pacer.Wait(ctx); err != nil {
			log.Warn("Summarization skipped", "error", err)
			a.metrics.Inc(metrics.SummaryFailure)
			return ""
		}
	}

	res := a.summarizer.Summarize(ctx, title, content, a.opts.MaxSummaryChars)
	if !res.OK() {
		log.Warn("Summarization failed", "status", res.Status, "error", res.Err)
		a.metrics.Inc(metrics.SummaryFailure)
		return ""
	}
	a.metrics.Inc(metrics.SummaryGenerated)
	return res.Text
}

// Fallback derives a summary from the feed's own snippet: the first limit
// runes of the normalized text, always followed by an ellipsis, or
// placeholder when the snippet is empty.
func Fallback(raw string, limit int, placeholder string) string {
	text := normalize.Text(raw)
	if text == "" {
		return placeholder
	}
	return normalize.Prefix(text, limit) + normalize.Ellipsis
}
