package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model of the users table
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// OTPChallenge is the bun model of the otp_challenges table.
// One row per email; expires_at is checked on read, rows are only purged by the reaper.
type OTPChallenge struct {
	bun.BaseModel `bun:"table:otp_challenges,alias:c"`

	Email     string    `bun:"email,pk"`
	Code      string    `bun:"code,notnull"`
	IssuedAt  time.Time `bun:"issued_at,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}
