package challenge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:challenge:"

// RedisStore keeps one hash per email. Replace runs inside MULTI/EXEC so
// concurrent issuers never leave two live codes behind.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewRedisStore(client *redis.Client, ttl time.Duration, clock clockwork.Clock) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisStore{client: client, ttl: ttl, clock: clock}
}

// getChallengeKey generates the Redis key for an email's challenge
func getChallengeKey(email string) string {
	return redisKeyPrefix + email
}

// Replace drops any challenge for email and stores a fresh one
func (s *RedisStore) Replace(ctx context.Context, email, code string) (*Challenge, error) {
	email = normalizeEmail(email)
	key := getChallengeKey(email)
	now := s.clock.Now()

	ch := &Challenge{
		Email:     email,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"code":       ch.Code,
			"issued_at":  ch.IssuedAt.UnixMilli(),
			"expires_at": ch.ExpiresAt.UnixMilli(),
		})
		// Redis expiry only reclaims memory; Find checks expires_at itself
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return ch, nil
}

// Find returns the live challenge for email if code matches it
func (s *RedisStore) Find(ctx context.Context, email, code string) (*Challenge, error) {
	email = normalizeEmail(email)

	data, err := s.client.HGetAll(ctx, getChallengeKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	issuedAt, err := strconv.ParseInt(data["issued_at"], 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	expiresAt, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}

	ch := &Challenge{
		Email:     email,
		Code:      data["code"],
		IssuedAt:  time.UnixMilli(issuedAt),
		ExpiresAt: time.UnixMilli(expiresAt),
	}

	if !ch.matches(code) || ch.Expired(s.clock.Now()) {
		return nil, ErrNotFound
	}

	return ch, nil
}

// Consume deletes the challenge for email. Missing keys are not an error.
func (s *RedisStore) Consume(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, getChallengeKey(normalizeEmail(email))).Err(); err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op for Redis as key expiry reclaims records
func (s *RedisStore) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
