// Package challenge stores one-time passcodes that prove control of an email
// address. At most one live challenge exists per email: issuing a new one
// replaces the previous record, and a record past its expiry is reported as
// absent whether or not the backend has physically removed it.
package challenge

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// DefaultTTL is how long an issued code stays valid
const DefaultTTL = 10 * time.Minute

// CodeLength is the number of digits in a code
const CodeLength = 6

var ErrNotFound = errors.New("challenge not found")

// Challenge is one outstanding proof-of-email-ownership attempt
type Challenge struct {
	Email     string
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge is no longer usable at now
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// matches compares codes in constant time
func (c *Challenge) matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) == 1
}

var codeRange = big.NewInt(900000)

// GenerateCode draws a code uniformly from 100000-999999
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()+100000), nil
}

// ValidCode reports whether code is exactly CodeLength ASCII digits
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// normalizeEmail mirrors user.NormalizeEmail so every store keys by the same form
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
