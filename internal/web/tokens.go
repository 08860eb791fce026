package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenStore issues one-time admin link tokens.
type TokenStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
}

// NewTokenStore creates a store whose tokens expire after ttl.
func NewTokenStore(ttl time.Duration) *TokenStore {
	return &TokenStore{
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]time.Time),
	}
}

// Issue returns a fresh token.
func (ts *TokenStore) Issue() string {
	tok := uuid.NewString()
	ts.mu.Lock()
	ts.tokens[tok] = ts.now().Add(ts.ttl)
	ts.mu.Unlock()
	return tok
}

// Redeem consumes tok. It reports false for unknown, used or expired tokens.
func (ts *TokenStore) Redeem(tok string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	expiry, ok := ts.tokens[tok]
	if !ok {
		return false
	}
	delete(ts.tokens, tok)
	return ts.now().Before(expiry)
}

// Sweep drops expired tokens and returns how many were removed.
func (ts *TokenStore) Sweep() int {
	now := ts.now()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	removed := 0
	for tok, expiry := range ts.tokens {
		if !now.Before(expiry) {
			delete(ts.tokens, tok)
			removed++
		}
	}
	return removed
}

// Len is the number of outstanding tokens.
func (ts *TokenStore) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tokens)
}
