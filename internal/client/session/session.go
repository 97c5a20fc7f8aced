// Package session holds the bearer credential for the signed-in user. The
// sync subsystem only reads it to authorize requests and clears it when told
// about an unauthorized response; obtaining the token is the login flow's job.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store is a concurrency-safe holder for the session token.
type Store struct {
	mu    sync.RWMutex
	token string
}

func NewStore() *Store {
	return &Store{}
}

// Set records a freshly issued token.
func (s *Store) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the current bearer token, empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear drops the credential. Idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// IsAuthenticated reports whether a usable credential is present. Tokens that
// parse as JWTs are additionally checked for expiry; opaque tokens are
// accepted as-is and left for the server to judge.
func (s *Store) IsAuthenticated() bool {
	token := s.Token()
	if token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true // opaque token
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true // no expiry claim
	}
	return exp.Time.After(nowFunc())
}

// nowFunc is swapped in tests.
var nowFunc = time.Now
