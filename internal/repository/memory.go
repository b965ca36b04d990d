package repository

import (
	"context"
	"sync"
	"time"

	"travelbook/internal/booking"
)

type memoryEntry struct {
	session   *booking.Session
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemorySessionRepository is the in-process store used when Redis is absent or down.
type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
	rateMu     sync.Mutex
	ttl        time.Duration
	now        func() time.Time
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, id string) (*booking.Session, error) {
	val, ok := r.sessions.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.sessions.CompareAndDelete(id, val)
		return nil, nil
	}
	return entry.session.Clone(), nil
}

// SaveSession stores a copy, so later changes to session are not visible until saved again.
func (r *MemorySessionRepository) SaveSession(ctx context.Context, session *booking.Session) error {
	r.sessions.Store(session.ID, memoryEntry{
		session:   session.Clone(),
		expiresAt: r.now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySessionRepository) DeleteSession(ctx context.Context, id string) error {
	r.sessions.Delete(id)
	return nil
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.rateMu.Lock()
	defer r.rateMu.Unlock()

	now := r.now()
	entry := rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	if val, ok := r.rateLimits.Load(key); ok {
		prev := val.(rateLimitEntry)
		if !now.After(prev.expiresAt) {
			entry = rateLimitEntry{count: prev.count + 1, expiresAt: prev.expiresAt}
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}

// Cleanup drops expired sessions and rate-limit windows and returns how many
// entries were removed.
func (r *MemorySessionRepository) Cleanup(now time.Time) int {
	removed := 0
	if r.ttl > 0 {
		r.sessions.Range(func(key, val any) bool {
			if now.After(val.(memoryEntry).expiresAt) && r.sessions.CompareAndDelete(key, val) {
				removed++
			}
			return true
		})
	}

	r.rateMu.Lock()
	defer r.rateMu.Unlock()
	r.rateLimits.Range(func(key, val any) bool {
		if now.After(val.(rateLimitEntry).expiresAt) {
			r.rateLimits.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// StartCleanup sweeps expired entries every interval until ctx is done.
func (r *MemorySessionRepository) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup(r.now())
		}
	}
}

func (r *MemorySessionRepository) size() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
