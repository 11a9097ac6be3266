// Package app wires configuration, collection, rendering and delivery into
// a single digest run.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/dailyletter/internal/cache"
	"github.com/deusflow/dailyletter/internal/config"
	"github.com/deusflow/dailyletter/internal/digest"
	"github.com/deusflow/dailyletter/internal/logger"
	"github.com/deusflow/dailyletter/internal/metrics"
	"github.com/deusflow/dailyletter/internal/ratelimit"
	"github.com/deusflow/dailyletter/internal/render"
	"github.com/deusflow/dailyletter/internal/retry"
	"github.com/deusflow/dailyletter/internal/rss"
	"github.com/deusflow/dailyletter/internal/scraper"
	"github.com/deusflow/dailyletter/internal/storage"
	"github.com/deusflow/dailyletter/internal/summarize"
)

// ErrNoSinkAccepted means the digest was rendered but could not be stored
// anywhere.
var ErrNoSinkAccepted = errors.New("digest was not delivered to any sink")

// Result describes a finished run.
type Result struct {
	RunID    string
	Entries  int
	HTML     []byte
	Sinks    []string
	Duration time.Duration
}

// Run performs one digest run with metrics.Global.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	return RunWith(ctx, cfg, metrics.Global, retry.Default)
}

// RunWith is Run with explicit metrics and delivery retry policy.
func RunWith(ctx context.Context, cfg *config.Config, m *metrics.Metrics, deliveryRetry retry.Config) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.With("run_id", runID)
	log.Info("Starting digest run",
		"sources", len(cfg.Sources),
		"hours_back", cfg.HoursBack,
		"max_entries", cfg.MaxEntries,
		"provider", cfg.SummaryProvider,
		"workers", cfg.Workers,
	)

	st := openStores(ctx, cfg)
	defer st.close()

	summarizer, closeSummarizer, err := newSummarizer(ctx, cfg, st.summaries)
	if err != nil {
		m.SetError(err.Error())
		return nil, err
	}
	defer closeSummarizer()

	limiter := ratelimit.New(cfg.APIDelay, cfg.MaxSummaryRequests)
	assembler := digest.New(
		rss.NewFetcher(cfg.FeedTimeout, cfg.ItemsPerSource),
		scraper.NewReader(cfg.ReaderPrefix, cfg.ReaderTimeout, scraper.DefaultMaxChars),
		summarizer,
		limiter,
		digest.Options{
			LookbackHours:   cfg.HoursBack,
			MaxEntries:      cfg.MaxEntries,
			MaxSummaryChars: cfg.MaxSummaryLength,
			Workers:         cfg.Workers,
		},
	).WithMetrics(m)

	doc, err := assembler.Assemble(ctx, cfg.Sources)
	if err != nil {
		m.SetError(err.Error())
		return nil, fmt.Errorf("assemble digest: %w", err)
	}
	log.Info("Digest assembled", "entries", doc.Count, "limiter", limiter.Stats())

	page, err := render.HTML(doc)
	if err != nil {
		m.SetError(err.Error())
		return nil, err
	}

	delivered := deliver(ctx, st.sinks, storage.Digest{
		RunID:       runID,
		GeneratedAt: doc.GeneratedAt,
		EntryCount:  doc.Count,
		HTML:        page,
	}, m, deliveryRetry)

	st.persist()

	elapsed := time.Since(start)
	m.RecordProcessingTime(elapsed)
	if len(delivered) == 0 {
		m.SetError(ErrNoSinkAccepted.Error())
		return nil, ErrNoSinkAccepted
	}
	m.SetLastRun(runID)
	log.Info("Digest run finished", "entries", doc.Count, "sinks", delivered, "duration", elapsed)

	return &Result{
		RunID:    runID,
		Entries:  doc.Count,
		HTML:     page,
		Sinks:    delivered,
		Duration: elapsed,
	}, nil
}

// newSummarizer builds the provider client wrapped in the summary cache.
// Provider "none" yields a nil summarizer and every entry uses its feed
// snippet.
func newSummarizer(ctx context.Context, cfg *config.Config, store summarize.Store) (digest.Summarizer, func(), error) {
	var (
		base    summarize.Summarizer
		closeFn = func() {}
	)

	switch cfg.SummaryProvider {
	case config.ProviderNone:
		logger.Info("Summarization disabled, using feed snippets")
		return nil, closeFn, nil
	case config.ProviderMoonshot:
		base = summarize.NewOpenAI(cfg.KimiAPIKey, cfg.SummaryBaseURL, cfg.SummaryModel, cfg.SummaryTimeout)
	case config.ProviderOpenAI:
		baseURL := cfg.SummaryBaseURL
		if baseURL == summarize.MoonshotBaseURL {
			baseURL = summarize.OpenAIBaseURL
		}
		base = summarize.NewOpenAI(cfg.KimiAPIKey, baseURL, cfg.SummaryModel, cfg.SummaryTimeout)
	case config.ProviderGemini:
		g, err := summarize.NewGemini(ctx, cfg.GeminiAPIKey, cfg.SummaryModel, cfg.SummaryTimeout)
		if err != nil {
			return nil, closeFn, err
		}
		base, closeFn = g, g.Close
	default:
		return nil, closeFn, fmt.Errorf("unknown summary provider %q", cfg.SummaryProvider)
	}

	return summarize.NewCached(base, cache.New(), store, cfg.CacheTTL()), closeFn, nil
}

func deliver(ctx context.Context, sinks []storage.Sink, d storage.Digest, m *metrics.Metrics, policy retry.Config) []string {
	var delivered []string
	for _, sink := range sinks {
		err := retry.Do(ctx, policy, "deliver to "+sink.Name(), func(ctx context.Context) error {
			return sink.SaveDigest(ctx, d)
		})
		if err != nil {
			logger.Error("Delivery failed", "sink", sink.Name(), "error", err)
			m.Inc(metrics.DeliveryFailure)
			continue
		}
		logger.Info("Digest delivered", "sink", sink.Name(), "bytes", len(d.HTML))
		m.Inc(metrics.DigestDelivered)
		delivered = append(delivered, sink.Name())
	}
	return delivered
}
