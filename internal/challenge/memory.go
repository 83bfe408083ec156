package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore keeps challenges in a map guarded by a mutex
type MemoryStore struct {
	mu      sync.Mutex
	byEmail map[string]Challenge
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewMemoryStore(ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{byEmail: make(map[string]Challenge), ttl: ttl, clock: clock}
}

func (s *MemoryStore) Replace(ctx context.Context, email, code string) (*Challenge, error) {
	now := s.clock.Now()
	ch := Challenge{
		Email:     normalizeEmail(email),
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.byEmail[ch.Email] = ch
	s.mu.Unlock()

	return &ch, nil
}

func (s *MemoryStore) Find(ctx context.Context, email, code string) (*Challenge, error) {
	s.mu.Lock()
	ch, ok := s.byEmail[normalizeEmail(email)]
	s.mu.Unlock()

	if !ok || !ch.matches(code) || ch.Expired(s.clock.Now()) {
		return nil, ErrNotFound
	}
	return &ch, nil
}

func (s *MemoryStore) Consume(ctx context.Context, email string) error {
	s.mu.Lock()
	delete(s.byEmail, normalizeEmail(email))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for email, ch := range s.byEmail {
		if ch.Expired(now) {
			delete(s.byEmail, email)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}
