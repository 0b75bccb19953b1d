package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps attempts in process memory. Checkout retries happen
// within seconds on the same register, so the attempt log can live and die
// with the server the same way the carts do.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string]Attempt
}

// NewMemoryStore constructs an empty in-memory attempt log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string]Attempt)}
}

// live returns the unexpired attempt for the key, dropping a stale one on
// the way. Callers must hold the lock.
func (s *MemoryStore) live(key string, now time.Time) (Attempt, bool) {
	attempt, ok := s.attempts[key]
	if !ok {
		return Attempt{}, false
	}
	if attempt.Expired(now) {
		delete(s.attempts, key)
		return Attempt{}, false
	}
	return attempt, true
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.live(key, now)
	if !ok {
		attempt = Attempt{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      AttemptPending,
			FirstSeen:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		s.attempts[key] = attempt
		return Claim{Outcome: ClaimAccepted, Attempt: attempt}, nil
	}

	if attempt.Fingerprint != fingerprint {
		return Claim{}, ErrKeyReused
	}
	if attempt.Status == AttemptCompleted {
		return Claim{Outcome: ClaimReplay, Attempt: attempt}, nil
	}
	return Claim{Outcome: ClaimInFlight, Attempt: attempt}, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp CapturedResponse, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.live(key, now)
	if ok && attempt.Fingerprint != fingerprint {
		return ErrKeyReused
	}
	if !ok {
		attempt = Attempt{Key: key, Fingerprint: fingerprint, FirstSeen: now}
	}

	attempt.Status = AttemptCompleted
	attempt.StatusCode = resp.Status
	attempt.Header = storableHeader(resp.Header)
	attempt.Body = nil
	if len(resp.Body) > 0 {
		attempt.Body = append([]byte(nil), resp.Body...)
	}
	attempt.UpdatedAt = now
	attempt.ExpiresAt = now.Add(ttl)
	s.attempts[key] = attempt
	return nil
}

// Forget implements Store.
func (s *MemoryStore) Forget(_ context.Context, key, _ string) error {
	s.mu.Lock()
	delete(s.attempts, key)
	s.mu.Unlock()
	return nil
}

// CleanupExpired implements Store.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, attempt := range s.attempts {
		if limit > 0 && removed >= limit {
			break
		}
		if attempt.Expired(now) {
			delete(s.attempts, key)
			removed++
		}
	}
	return removed, nil
}
