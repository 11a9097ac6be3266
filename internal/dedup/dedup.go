// Package dedup drops repeated titles within a single digest run.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/deusflow/dailyletter/internal/normalize"
)

// FingerprintLen is the number of hex characters kept from the title hash.
// Distinct titles that collide on this prefix are treated as duplicates.
const FingerprintLen = 8

// Fingerprint hashes the lower-cased normalized title.
func Fingerprint(title string) string {
	h := md5.Sum([]byte(strings.ToLower(normalize.Text(title))))
	return hex.EncodeToString(h[:])[:FingerprintLen]
}

// Set holds the fingerprints admitted during one run. Create one per run.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Admit reports whether title is new in this run and records it if so.
// The check and the insert happen under one lock.
func (s *Set) Admit(title string) bool {
	fp := Fingerprint(title)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[fp]; dup {
		return false
	}
	s.seen[fp] = struct{}{}
	return true
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
