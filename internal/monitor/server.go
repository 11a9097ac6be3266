// Package monitor exposes run health and counters over HTTP.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/dailyletter/internal/logger"
	"github.com/deusflow/dailyletter/internal/metrics"
	"github.com/deusflow/dailyletter/internal/storage"
)

// Archive lists stored digests.
type Archive interface {
	RecentDigests(ctx context.Context, limit int) ([]storage.ArchivedDigest, error)
}

// Server serves /health, /metrics, the latest digest and, when an archive
// is attached, the list of archived runs.
type Server struct {
	metrics    *metrics.Metrics
	digestPath string
	archive    Archive
	router     *gin.Engine
}

// NewServer builds the router. digestPath may be empty.
func NewServer(m *metrics.Metrics, digestPath string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		metrics:    m,
		digestPath: digestPath,
		router:     router,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", s.handleMetrics)
	router.GET("/digest", s.handleDigest)
	router.GET("/digests", s.handleDigests)

	return s
}

func (s *Server) WithArchive(a Archive) *Server {
	s.archive = a
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting monitoring server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.metrics.GetStats()

	status := "ok"
	code := http.StatusOK
	if !s.metrics.Healthy() {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":      status,
		"last_run":    stats["last_run_time"],
		"last_run_id": stats["last_run_id"],
		"last_error":  stats["last_error"],
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetStats())
}

func (s *Server) handleDigest(c *gin.Context) {
	if s.digestPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no digest output configured"})
		return
	}
	c.File(s.digestPath)
}

func (s *Server) handleDigests(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no digest archive configured"})
		return
	}

	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	digests, err := s.archive.RecentDigests(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Listing digests failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive unavailable"})
		return
	}

	out := make([]gin.H, 0, len(digests))
	for _, d := range digests {
		out = append(out, gin.H{
			"run_id":       d.RunID,
			"generated_at": d.GeneratedAt.Format(time.RFC3339),
			"entry_count":  d.EntryCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"digests": out})
}
