package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/otp-auth-api/internal/database"
)

var challengeColumns = []string{"email", "code", "issued_at", "expires_at"}

func newPostgresStoreTest(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *clockwork.FakeClock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db := database.NewBunDB(sqlDB)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return NewPostgresStore(db, DefaultTTL, clock), mock, clock
}

func TestPostgresStore_Replace(t *testing.T) {
	store, mock, clock := newPostgresStoreTest(t)

	mock.ExpectExec(`INSERT INTO "otp_challenges" .*'a@x\.com'.*ON CONFLICT \(email\) DO UPDATE SET code = EXCLUDED\.code`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ch, err := store.Replace(context.Background(), "A@x.com", "042917")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", ch.Email)
	assert.Equal(t, clock.Now().Add(DefaultTTL), ch.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Find(t *testing.T) {
	store, mock, clock := newPostgresStoreTest(t)
	now := clock.Now()

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows(challengeColumns).AddRow("a@x.com", "042917", now, now.Add(DefaultTTL))
	}

	mock.ExpectQuery(`SELECT .* FROM "otp_challenges" AS "c" WHERE \(email = 'a@x\.com'\)`).WillReturnRows(rows())
	got, err := store.Find(context.Background(), "a@x.com", "042917")
	require.NoError(t, err)
	assert.Equal(t, "042917", got.Code)

	mock.ExpectQuery(`FROM "otp_challenges"`).WillReturnRows(rows())
	_, err = store.Find(context.Background(), "a@x.com", "000000")
	assert.ErrorIs(t, err, ErrNotFound)

	clock.Advance(DefaultTTL)
	mock.ExpectQuery(`FROM "otp_challenges"`).WillReturnRows(rows())
	_, err = store.Find(context.Background(), "a@x.com", "042917")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`FROM "otp_challenges"`).WillReturnRows(sqlmock.NewRows(challengeColumns))
	_, err = store.Find(context.Background(), "b@x.com", "042917")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Find_DBError(t *testing.T) {
	store, mock, _ := newPostgresStoreTest(t)

	boom := errors.New("db down")
	mock.ExpectQuery(`FROM "otp_challenges"`).WillReturnError(boom)

	_, err := store.Find(context.Background(), "a@x.com", "042917")
	assert.ErrorIs(t, err, boom)
}

func TestPostgresStore_ConsumeAndDeleteExpired(t *testing.T) {
	store, mock, _ := newPostgresStoreTest(t)

	mock.ExpectExec(`DELETE FROM "otp_challenges" AS "c" WHERE \(email = 'a@x\.com'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Consume(context.Background(), "a@x.com"))

	mock.ExpectExec(`DELETE FROM "otp_challenges" AS "c" WHERE \(expires_at <= '2026-01-02 03:04:05`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
