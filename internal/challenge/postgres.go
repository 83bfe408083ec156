package challenge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/otp-auth-api/internal/database"
)

// PostgresStore keeps challenges in the otp_challenges table, keyed by email.
// Expired rows stay until DeleteExpired runs; Find ignores them.
type PostgresStore struct {
	db    bun.IDB
	ttl   time.Duration
	clock clockwork.Clock
}

func NewPostgresStore(db bun.IDB, ttl time.Duration, clock clockwork.Clock) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PostgresStore{db: db, ttl: ttl, clock: clock}
}

// Replace upserts the single row for email in one statement
func (s *PostgresStore) Replace(ctx context.Context, email, code string) (*Challenge, error) {
	now := s.clock.Now().UTC()
	row := &database.OTPChallenge{
		Email:     normalizeEmail(email),
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (email) DO UPDATE").
		Set("code = EXCLUDED.code").
		Set("issued_at = EXCLUDED.issued_at").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return mapRowToChallenge(row), nil
}

// Find returns the live challenge matching email and code
func (s *PostgresStore) Find(ctx context.Context, email, code string) (*Challenge, error) {
	row := new(database.OTPChallenge)
	err := s.db.NewSelect().
		Model(row).
		Where("email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	ch := mapRowToChallenge(row)
	if !ch.matches(code) || ch.Expired(s.clock.Now()) {
		return nil, ErrNotFound
	}

	return ch, nil
}

// Consume deletes the row for email; deleting nothing is fine
func (s *PostgresStore) Consume(ctx context.Context, email string) error {
	_, err := s.db.NewDelete().
		Model((*database.OTPChallenge)(nil)).
		Where("email = ?", normalizeEmail(email)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	return nil
}

// DeleteExpired removes rows past their expiry and reports how many went
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.NewDelete().
		Model((*database.OTPChallenge)(nil)).
		Where("expires_at <= ?", s.clock.Now().UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}

func mapRowToChallenge(row *database.OTPChallenge) *Challenge {
	return &Challenge{
		Email:     row.Email,
		Code:      row.Code,
		IssuedAt:  row.IssuedAt,
		ExpiresAt: row.ExpiresAt,
	}
}
