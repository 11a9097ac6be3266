package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// CachedSummary is one summary remembered between runs.
type CachedSummary struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// FileCache keeps summaries in a JSON file for deployments without a
// database. Call Load before use and Save after the run.
type FileCache struct {
	filePath string
	ttl      time.Duration
	items    map[string]CachedSummary
	mu       sync.RWMutex
	now      func() time.Time
}

func NewFileCache(filePath string, ttl time.Duration) *FileCache {
	return &FileCache{
		filePath: filePath,
		ttl:      ttl,
		items:    make(map[string]CachedSummary),
		now:      time.Now,
	}
}

// Load reads the cache file, dropping expired entries. A missing or empty
// file is an empty cache.
func (fc *FileCache) Load() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	data, err := os.ReadFile(fc.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read summary cache: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []CachedSummary
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode summary cache: %w", err)
	}

	cutoff := fc.cutoff()
	for _, item := range items {
		if item.CreatedAt.After(cutoff) {
			fc.items[item.Key] = item
		}
	}
	return nil
}

func (fc *FileCache) Save() error {
	fc.mu.RLock()
	items := make([]CachedSummary, 0, len(fc.items))
	for _, item := range fc.items {
		items = append(items, item)
	}
	fc.mu.RUnlock()

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary cache: %w", err)
	}
	return writeAtomic(fc.filePath, data)
}

func (fc *FileCache) GetSummary(_ context.Context, key string) (string, bool, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	item, ok := fc.items[key]
	if !ok || !item.CreatedAt.After(fc.cutoff()) {
		return "", false, nil
	}
	return item.Summary, true, nil
}

func (fc *FileCache) PutSummary(_ context.Context, key, title, summary string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.items[key] = CachedSummary{
		Key:       key,
		Title:     title,
		Summary:   summary,
		CreatedAt: fc.now(),
	}
	return nil
}

// Cleanup removes expired items from memory.
func (fc *FileCache) Cleanup() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	cutoff := fc.cutoff()
	for key, item := range fc.items {
		if !item.CreatedAt.After(cutoff) {
			delete(fc.items, key)
		}
	}
}

func (fc *FileCache) GetStats() map[string]int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	return map[string]int{
		"total_items": len(fc.items),
	}
}

func (fc *FileCache) cutoff() time.Time {
	return fc.now().Add(-fc.ttl)
}
