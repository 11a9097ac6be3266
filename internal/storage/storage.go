// Package storage persists rendered digests and cached summaries.
package storage

import (
	"context"
	"time"
)

// Digest is one rendered run ready for delivery.
type Digest struct {
	RunID       string
	GeneratedAt time.Time
	EntryCount  int
	HTML        []byte
}

// Sink receives a finished digest.
type Sink interface {
	Name() string
	SaveDigest(ctx context.Context, d Digest) error
}
