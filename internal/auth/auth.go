// Package auth resolves bearer tokens to the identity editing on this device.
// Authentication itself is external; the local service only needs to know
// which user or guest a token speaks for.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
)

// ErrInvalidToken indicates the bearer token is unknown or malformed.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the resolved owner of incoming requests. Exactly one of
// UserID/GuestID is set, mirroring project ownership.
type Identity struct {
	UserID  string
	GuestID string
}

// IsGuest reports whether the identity has not signed in yet.
func (i Identity) IsGuest() bool {
	return i.UserID == "" && i.GuestID != ""
}

// Provider resolves a bearer token to an identity.
type Provider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Registry allows the identity bound to a token to change, which happens
// once per device when a guest signs in.
type Registry interface {
	Register(token string, id Identity)
}

// Static is an in-memory token resolver for single-device deployments.
// Tokens are compared in constant time.
type Static struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

// NewStatic creates an empty static resolver.
func NewStatic() *Static {
	return &Static{tokens: make(map[string]Identity)}
}

// Register binds a token to an identity, replacing any previous binding.
func (s *Static) Register(token string, id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = id
}

// Resolve returns the identity bound to the token.
// Returns ErrInvalidToken for unknown tokens; the candidate set is scanned
// in full so response time does not reveal which tokens exist.
func (s *Static) Resolve(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found bool
		id    Identity
	)
	for candidate, candidateID := range s.tokens {
		if constantTimeEqual(token, candidate) {
			found = true
			id = candidateID
		}
	}
	if !found {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

// constantTimeEqual compares two strings using constant-time comparison
// to prevent timing attacks.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
