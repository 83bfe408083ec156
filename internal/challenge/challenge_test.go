package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.True(t, ValidCode(code), "code %q", code)
		assert.GreaterOrEqual(t, code, "100000")
		assert.LessOrEqual(t, code, "999999")
	}
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("042917"))
	assert.True(t, ValidCode("000123"))
	assert.False(t, ValidCode("42917"))
	assert.False(t, ValidCode("1234567"))
	assert.False(t, ValidCode("12a456"))
	assert.False(t, ValidCode(""))
}

func TestChallenge_Expired(t *testing.T) {
	now := time.Now()
	ch := &Challenge{IssuedAt: now, ExpiresAt: now.Add(DefaultTTL)}

	assert.False(t, ch.Expired(now))
	assert.False(t, ch.Expired(now.Add(DefaultTTL-time.Second)))
	assert.True(t, ch.Expired(now.Add(DefaultTTL)))
}
