package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/metrics"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/storage"
)

// Init verifies that ctx carries a principal.
func (s *SQLiteStore) Init(ctx context.Context) error {
	_, err := auth.RequirePrincipal(ctx)
	return err
}

// List returns the principal's sessions ordered by creation time, newest first.
func (s *SQLiteStore) List(ctx context.Context) (sessions []*models.CalcSession, err error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { metrics.ObserveStore("list", err) }()

	rows, err := s.db.QueryContext(ctx,
		"SELECT doc FROM sessions WHERE owner_id = ? ORDER BY created_at DESC, id",
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err = rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		var session *models.CalcSession
		if session, err = storage.DecodeDocument(doc); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Get retrieves a session by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (session *models.CalcSession, err error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { metrics.ObserveStore("get", err) }()

	var doc []byte
	err = s.db.QueryRowContext(ctx,
		"SELECT doc FROM sessions WHERE owner_id = ? AND id = ?",
		owner, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return storage.DecodeDocument(doc)
}

// Save upserts the whole session. A session that is already stored keeps
// the creation time of its first save, in the created_at column and in the
// document alike.
func (s *SQLiteStore) Save(ctx context.Context, session *models.CalcSession) (err error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	defer func() { metrics.ObserveStore("save", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored := session.Clone()
	var prev []byte
	err = tx.QueryRowContext(ctx,
		"SELECT doc FROM sessions WHERE owner_id = ? AND id = ?",
		owner, session.ID,
	).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to load stored session: %w", err)
	default:
		var old *models.CalcSession
		if old, err = storage.DecodeDocument(prev); err != nil {
			return err
		}
		stored.CreatedAt = old.CreatedAt
	}

	doc, err := storage.EncodeDocument(stored)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (owner_id, id, title, time_tag, created_at, updated_at, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			title = excluded.title,
			time_tag = excluded.time_tag,
			updated_at = excluded.updated_at,
			doc = excluded.doc
	`,
		owner,
		stored.ID,
		stored.Title,
		stored.TimeTag,
		stored.CreatedAt.UnixMilli(),
		time.Now().UnixMilli(),
		doc,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Delete removes a session. Unknown IDs are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (err error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	defer func() { metrics.ObserveStore("delete", err) }()

	if _, err = s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE owner_id = ? AND id = ?",
		owner, id,
	); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}
