package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryAttemptLimiter keeps attempt windows in process memory.
type MemoryAttemptLimiter struct {
	mu      sync.Mutex
	entries map[string]*attemptEntry
	now     func() time.Time
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryAttemptLimiter() *MemoryAttemptLimiter {
	return &MemoryAttemptLimiter{
		entries: make(map[string]*attemptEntry),
		now:     time.Now,
	}
}

func (r *MemoryAttemptLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &attemptEntry{expiresAt: now.Add(window)}
		r.entries[key] = entry
	}
	entry.count++

	// drop expired windows so the map stays bounded by active keys
	for k, e := range r.entries {
		if now.After(e.expiresAt) {
			delete(r.entries, k)
		}
	}

	return entry.count <= limit, nil
}

func (r *MemoryAttemptLimiter) Reset(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}
