package challenge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *clockwork.FakeClock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clock := clockwork.NewFakeClockAt(time.Now())
	return NewRedisStore(rdb, DefaultTTL, clock), clock, mr
}

func TestRedisStore_ReplaceFindConsume(t *testing.T) {
	store, _, mr := newRedisStoreTest(t)
	ctx := context.Background()

	issued, err := store.Replace(ctx, "A@X.com", "042917")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", issued.Email)
	assert.Equal(t, DefaultTTL, issued.ExpiresAt.Sub(issued.IssuedAt))
	assert.Equal(t, DefaultTTL, mr.TTL(getChallengeKey("a@x.com")))

	got, err := store.Find(ctx, "a@x.com", "042917")
	require.NoError(t, err)
	assert.Equal(t, "042917", got.Code)

	_, err = store.Find(ctx, "a@x.com", "111111")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Find(ctx, "b@x.com", "042917")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Consume(ctx, "a@x.com"))
	require.NoError(t, store.Consume(ctx, "a@x.com"))

	_, err = store.Find(ctx, "a@x.com", "042917")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ReplaceInvalidatesPrevious(t *testing.T) {
	store, _, _ := newRedisStoreTest(t)
	ctx := context.Background()

	_, err := store.Replace(ctx, "a@x.com", "111111")
	require.NoError(t, err)
	_, err = store.Replace(ctx, "a@x.com", "222222")
	require.NoError(t, err)

	_, err = store.Find(ctx, "a@x.com", "111111")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Find(ctx, "a@x.com", "222222")
	assert.NoError(t, err)
}

func TestRedisStore_ExpiredIsAbsentWithoutRedisExpiry(t *testing.T) {
	store, clock, mr := newRedisStoreTest(t)
	ctx := context.Background()

	_, err := store.Replace(ctx, "a@x.com", "123456")
	require.NoError(t, err)

	clock.Advance(DefaultTTL - time.Second)
	_, err = store.Find(ctx, "a@x.com", "123456")
	require.NoError(t, err)

	// the key is still physically present in redis
	clock.Advance(time.Second)
	assert.True(t, mr.Exists(getChallengeKey("a@x.com")))

	_, err = store.Find(ctx, "a@x.com", "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ConcurrentReplaceLeavesOneLiveCode(t *testing.T) {
	store, _, _ := newRedisStoreTest(t)
	ctx := context.Background()

	const n = 20
	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		codes[i] = fmt.Sprintf("%06d", 100000+i)
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := store.Replace(ctx, "a@x.com", code)
			assert.NoError(t, err)
		}(codes[i])
	}
	wg.Wait()

	live := 0
	for _, code := range codes {
		if _, err := store.Find(ctx, "a@x.com", code); err == nil {
			live++
		}
	}
	assert.Equal(t, 1, live)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, _, mr := newRedisStoreTest(t)
	mr.Close()

	_, err := store.Replace(context.Background(), "a@x.com", "123456")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = store.Find(context.Background(), "a@x.com", "123456")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
