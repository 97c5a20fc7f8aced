package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestStore_SetClear(t *testing.T) {
	s := NewStore()
	assert.False(t, s.IsAuthenticated())

	s.Set("opaque-token")
	assert.Equal(t, "opaque-token", s.Token())
	assert.True(t, s.IsAuthenticated())

	s.Clear()
	s.Clear() // idempotent
	assert.Empty(t, s.Token())
	assert.False(t, s.IsAuthenticated())
}

func TestStore_JWTExpiry(t *testing.T) {
	s := NewStore()

	s.Set(signedToken(t, time.Now().Add(time.Hour)))
	assert.True(t, s.IsAuthenticated())

	s.Set(signedToken(t, time.Now().Add(-time.Hour)))
	assert.False(t, s.IsAuthenticated())
}

func TestStore_OpaqueTokenAccepted(t *testing.T) {
	s := NewStore()
	s.Set("not.a.jwt-at-all")
	assert.True(t, s.IsAuthenticated())
}
