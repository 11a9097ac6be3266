package app

import (
	"context"

	"github.com/deusflow/dailyletter/internal/config"
	"github.com/deusflow/dailyletter/internal/logger"
	"github.com/deusflow/dailyletter/internal/storage"
	"github.com/deusflow/dailyletter/internal/summarize"
)

// stores holds the persistence chosen for a run: PostgreSQL when
// DATABASE_URL is set and reachable, otherwise the optional JSON summary
// file. The output file sink is always present.
type stores struct {
	summaries summarize.Store
	sinks     []storage.Sink
	pg        *storage.PostgresStore
	file      *storage.FileCache
}

func openStores(ctx context.Context, cfg *config.Config) *stores {
	st := &stores{}
	if cfg.OutputPath != "" {
		st.sinks = append(st.sinks, storage.NewFileSink(cfg.OutputPath))
	}

	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.CacheTTL())
		if err != nil {
			logger.Warn("PostgreSQL unavailable, continuing without it", "error", err)
		} else {
			if err := pg.Cleanup(ctx); err != nil {
				logger.Warn("Summary cleanup failed", "error", err)
			}
			st.pg = pg
			st.summaries = pg
			st.sinks = append(st.sinks, pg)
			return st
		}
	}

	if cfg.SummaryCacheFile != "" {
		fc := storage.NewFileCache(cfg.SummaryCacheFile, cfg.CacheTTL())
		if err := fc.Load(); err != nil {
			logger.Warn("Summary cache file unreadable, starting empty", "path", cfg.SummaryCacheFile, "error", err)
		}
		fc.Cleanup()
		logger.Debug("Summary cache file loaded", "path", cfg.SummaryCacheFile, "stats", fc.GetStats())
		st.file = fc
		st.summaries = fc
	}
	return st
}

// persist flushes the file cache; PostgreSQL writes through.
func (st *stores) persist() {
	if st.file == nil {
		return
	}
	if err := st.file.Save(); err != nil {
		logger.Warn("Saving summary cache failed", "error", err)
	}
}

func (st *stores) close() {
	if st.pg != nil {
		if err := st.pg.Close(); err != nil {
			logger.Warn("Closing database failed", "error", err)
		}
	}
}
