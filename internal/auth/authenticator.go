package auth

import (
	"context"

	"github.com/mmynk/tithe/internal/models"
)

var _ Authenticator = (*PasswordAuthenticator)(nil)

// Authenticator turns credentials into a user. The user's ID is the principal
// every session store call is scoped to.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the credentials and returns the matching user.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks the credential before it is stored.
	ValidateCredential(credential string) error
}
