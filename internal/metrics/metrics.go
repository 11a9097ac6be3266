package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	SourcesFetched     int64
	SourcesFailed      int64
	ItemsSeen          int64
	ItemsUndated       int64
	ItemsOutOfWindow   int64
	DuplicatesFiltered int64
	ItemsTruncated     int64
	ExtractionFailures int64
	SummariesGenerated int64
	SummaryFailures    int64
	FallbackSummaries  int64
	EntriesPublished   int64
	DigestsDelivered   int64
	DeliveryFailures   int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunID     string
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

// Counter names accepted by Inc.
const (
	SourceFetched     = "sources_fetched"
	SourceFailed      = "sources_failed"
	ItemSeen          = "items_seen"
	ItemUndated       = "items_undated"
	ItemOutOfWindow   = "items_out_of_window"
	DuplicateFiltered = "duplicates_filtered"
	ItemTruncated     = "items_truncated"
	ExtractionFailure = "extraction_failures"
	SummaryGenerated  = "summaries_generated"
	SummaryFailure    = "summary_failures"
	FallbackSummary   = "fallback_summaries"
	EntryPublished    = "entries_published"
	DigestDelivered   = "digests_delivered"
	DeliveryFailure   = "delivery_failures"
)

func (m *Metrics) counter(name string) *int64 {
	switch name {
	case SourceFetched:
		return &m.SourcesFetched
	case SourceFailed:
		return &m.SourcesFailed
	case ItemSeen:
		return &m.ItemsSeen
	case ItemUndated:
		return &m.ItemsUndated
	case ItemOutOfWindow:
		return &m.ItemsOutOfWindow
	case DuplicateFiltered:
		return &m.DuplicatesFiltered
	case ItemTruncated:
		return &m.ItemsTruncated
	case ExtractionFailure:
		return &m.ExtractionFailures
	case SummaryGenerated:
		return &m.SummariesGenerated
	case SummaryFailure:
		return &m.SummaryFailures
	case FallbackSummary:
		return &m.FallbackSummaries
	case EntryPublished:
		return &m.EntriesPublished
	case DigestDelivered:
		return &m.DigestsDelivered
	case DeliveryFailure:
		return &m.DeliveryFailures
	}
	return nil
}

// Add increments the named counter by n. A nil receiver is a no-op so
// components can run without metrics in tests.
func (m *Metrics) Add(name string, n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.counter(name); c != nil {
		*c += n
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Count returns the current value of the named counter.
func (m *Metrics) Count(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.counter(name); c != nil {
		return *c
	}
	return 0
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun(runID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunID = runID
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		SourceFetched:                m.SourcesFetched,
		SourceFailed:                 m.SourcesFailed,
		ItemSeen:                     m.ItemsSeen,
		ItemUndated:                  m.ItemsUndated,
		ItemOutOfWindow:              m.ItemsOutOfWindow,
		DuplicateFiltered:            m.DuplicatesFiltered,
		ItemTruncated:                m.ItemsTruncated,
		ExtractionFailure:            m.ExtractionFailures,
		SummaryGenerated:             m.SummariesGenerated,
		SummaryFailure:               m.SummaryFailures,
		FallbackSummary:              m.FallbackSummaries,
		EntryPublished:               m.EntriesPublished,
		DigestDelivered:              m.DigestsDelivered,
		DeliveryFailure:              m.DeliveryFailures,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_id":                m.LastRunID,
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
