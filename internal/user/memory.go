package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory.
// Used for local development without Postgres and as a test double.
type MemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byEmail: make(map[string]*User)}
}

func (r *MemoryRepository) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	key := NormalizeEmail(email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[key]; ok {
		return nil, ErrDuplicateEmail
	}

	u := &User{
		ID:           uuid.New(),
		Name:         name,
		Email:        key,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.byEmail[key] = u

	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *u
	return &cp, nil
}

// Count returns the number of stored users
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEmail)
}
