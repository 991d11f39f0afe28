// Package storage defines the session store contract.
//
// Every operation is scoped to the principal carried by the context (see
// auth.WithPrincipal) and fails with auth.ErrUnauthenticated before touching
// the backend when there is none.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tithe/internal/models"
)

// MaxDocumentBytes is the per-session record ceiling, attachments included.
const MaxDocumentBytes = 1 << 20

var (
	// ErrNotFound is returned by Get for an unknown session ID.
	ErrNotFound = errors.New("session not found")

	// ErrTooLarge is returned by Save when the encoded session exceeds
	// MaxDocumentBytes.
	ErrTooLarge = errors.New("session exceeds the 1 MiB record limit")
)

// Store persists whole sessions per principal.
type Store interface {
	// Init checks the store can serve the principal in ctx.
	Init(ctx context.Context) error

	// List returns the principal's sessions, newest CreatedAt first.
	List(ctx context.Context) ([]*models.CalcSession, error)

	// Get returns one session or ErrNotFound.
	Get(ctx context.Context, id string) (*models.CalcSession, error)

	// Save upserts the session by ID.
	Save(ctx context.Context, s *models.CalcSession) error

	// Delete removes the session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
