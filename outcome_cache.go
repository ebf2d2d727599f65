package actions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultOutcomeTTL bounds how long a recorded link outcome is kept.
const DefaultOutcomeTTL = 24 * time.Hour

// DefaultReplayWindow is how long a repeated load of a verified link still
// reports success.
const DefaultReplayWindow = 30 * time.Second

// LinkOutcome is the settled result of a consumed action link.
type LinkOutcome struct {
	Mode       ActionMode         `json:"mode"`
	Status     VerificationStatus `json:"status"`
	Kind       ErrorKind          `json:"kind,omitempty"`
	Message    string             `json:"message,omitempty"`
	UID        string             `json:"uid,omitempty"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// OutcomeCache remembers settled outcomes per action code so a repeated
// request for the same link does not consume the token a second time.
// Lookup reports false when nothing is recorded.
type OutcomeCache interface {
	Lookup(ctx context.Context, code string) (*LinkOutcome, bool, error)
	Record(ctx context.Context, code string, outcome LinkOutcome) error
}

// OutcomeKey derives the storage key for an action code. Codes are
// credentials, so they are never stored in clear.
func OutcomeKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// cacheable reports whether an outcome is safe to replay. Provider
// failures are not, since the code may still be valid. Only verification
// outcomes are recorded.
func cacheable(status VerificationStatus) bool {
	return status == StatusSuccess || status == StatusExpired
}

type memoryEntry struct {
	outcome   LinkOutcome
	expiresAt time.Time
}

// MemoryOutcomeCache is an in-process OutcomeCache.
type MemoryOutcomeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryOutcomeCache returns a cache expiring entries after ttl.
func NewMemoryOutcomeCache(ttl time.Duration) *MemoryOutcomeCache {
	if ttl <= 0 {
		ttl = DefaultOutcomeTTL
	}
	return &MemoryOutcomeCache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]memoryEntry{},
	}
}

// WithClock sets the clock used for expiry.
func (c *MemoryOutcomeCache) WithClock(now func() time.Time) *MemoryOutcomeCache {
	if now != nil {
		c.now = now
	}
	return c
}

// Lookup implements OutcomeCache.
func (c *MemoryOutcomeCache) Lookup(_ context.Context, code string) (*LinkOutcome, bool, error) {
	key := OutcomeKey(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}

	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}

	outcome := entry.outcome
	return &outcome, true, nil
}

// Record implements OutcomeCache. The first recorded outcome wins.
func (c *MemoryOutcomeCache) Record(_ context.Context, code string, outcome LinkOutcome) error {
	key := OutcomeKey(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[key]; ok && now.Before(entry.expiresAt) {
		return nil
	}

	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = now
	}

	c.entries[key] = memoryEntry{
		outcome:   outcome,
		expiresAt: now.Add(c.ttl),
	}
	return nil
}
