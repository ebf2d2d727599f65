package actions

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFlowTTL bounds how long an unfinished flow is kept in a registry.
const DefaultFlowTTL = 30 * time.Minute

type registryEntry struct {
	flow      *VerificationFlow
	expiresAt time.Time
}

// FlowRegistry keeps flows waiting for user input, e.g. a new password,
// between requests.
type FlowRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]registryEntry
}

// NewFlowRegistry returns a registry expiring flows after ttl.
func NewFlowRegistry(ttl time.Duration) *FlowRegistry {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	return &FlowRegistry{
		ttl:     ttl,
		now:     time.Now,
		entries: map[uuid.UUID]registryEntry{},
	}
}

// WithClock sets the clock used for expiry.
func (r *FlowRegistry) WithClock(now func() time.Time) *FlowRegistry {
	if now != nil {
		r.now = now
	}
	return r
}

// Put stores a flow under its ID.
func (r *FlowRegistry) Put(flow *VerificationFlow) {
	if flow == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweep()
	r.entries[flow.ID()] = registryEntry{
		flow:      flow,
		expiresAt: r.now().Add(r.ttl),
	}
}

// Get returns a live flow.
func (r *FlowRegistry) Get(id uuid.UUID) (*VerificationFlow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, false
	}

	if r.now().After(entry.expiresAt) {
		delete(r.entries, id)
		entry.flow.Close()
		return nil, false
	}

	return entry.flow, true
}

// Remove drops and closes a flow.
func (r *FlowRegistry) Remove(id uuid.UUID) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		entry.flow.Close()
	}
}

// Len returns the number of stored flows.
func (r *FlowRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *FlowRegistry) sweep() {
	now := r.now()
	for id, entry := range r.entries {
		if now.After(entry.expiresAt) {
			delete(r.entries, id)
			entry.flow.Close()
		}
	}
}
