package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPassword(t *testing.T) {
	cases := []struct {
		pw string
		ok bool
	}{
		{"Parola123", true},
		{"Aa1aaaaa", true},
		{"short1A", false},    // under 8 chars
		{"parola123", false},  // no upper
		{"PAROLA123", false},  // no lower
		{"Parolamea", false},  // no digit
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, ValidPassword(c.pw), c.pw)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Parola123", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "Parola123"))
	assert.False(t, VerifyPassword(hash, "Parola124"))
}

func TestRefreshTokenHashing(t *testing.T) {
	tok, err := NewRefreshToken(30)
	require.NoError(t, err)
	assert.Len(t, tok.Raw, 96)

	// hashing is deterministic and never echoes the raw value
	h1 := HashRefreshRaw(tok.Raw)
	h2 := HashRefreshRaw(tok.Raw)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, tok.Raw, h1)
	assert.Len(t, h1, 64)
}
