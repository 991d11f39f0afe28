package auth

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned by store operations attempted without a
// principal in the context.
var ErrUnauthenticated = errors.New("not authenticated: sign in first")

type principalKey struct{}

// WithPrincipal returns a context carrying the given user ID.
func WithPrincipal(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, principalKey{}, userID)
}

// PrincipalFrom returns the user ID carried by ctx, or "" if there is none.
func PrincipalFrom(ctx context.Context) string {
	id, _ := ctx.Value(principalKey{}).(string)
	return id
}

// RequirePrincipal returns the user ID carried by ctx or ErrUnauthenticated.
func RequirePrincipal(ctx context.Context) (string, error) {
	id := PrincipalFrom(ctx)
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}
