package user

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, "Ann", "Ann@Example.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", created.Email)

	got, err := repo.GetByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_DuplicateIgnoresCase(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, "Ann", "ann@example.com", "hash")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "Ann 2", "ANN@example.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemoryRepository_ConcurrentCreate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, "Ann", "ann@example.com", "hash")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case ErrDuplicateEmail:
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
	assert.Equal(t, 1, repo.Count())
}

func TestPublic(t *testing.T) {
	u := &User{Name: "Ann", Email: "a@x.com", PasswordHash: "secret"}
	p := u.Public()
	assert.Equal(t, "Ann", p.Name)
	assert.Equal(t, "a@x.com", p.Email)
}
