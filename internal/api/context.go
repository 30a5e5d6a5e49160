package api

import (
	"context"
	"errors"

	"github.com/hyperengineering/inkwell/internal/auth"
)

// identityContextKey is the context key for the resolved request identity.
type identityContextKey struct{}

// tokenContextKey is the context key for the raw bearer token.
type tokenContextKey struct{}

// ErrNoIdentityInContext indicates no identity was found in the context.
var ErrNoIdentityInContext = errors.New("no identity in context")

// WithIdentity returns a new context with the identity attached.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from the context.
// Returns ErrNoIdentityInContext if not present.
func IdentityFromContext(ctx context.Context) (auth.Identity, error) {
	id, ok := ctx.Value(identityContextKey{}).(auth.Identity)
	if !ok {
		return auth.Identity{}, ErrNoIdentityInContext
	}
	return id, nil
}

// MustIdentityFromContext extracts the identity or panics.
// Use only when middleware guarantees identity presence.
func MustIdentityFromContext(ctx context.Context) auth.Identity {
	id, err := IdentityFromContext(ctx)
	if err != nil {
		panic("identity not in context: middleware misconfiguration")
	}
	return id
}

// WithToken returns a new context with the raw bearer token attached.
// Sign-in needs it to rebind the token to the user identity.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext extracts the raw bearer token from the context.
// Returns empty string if not present.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}
