// Package memory provides an in-process storage.Store. Sessions are kept as
// encoded documents, so callers never share memory with the store and the
// record ceiling applies as it does on disk.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/metrics"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/storage"
)

var (
	_ storage.Store    = (*Store)(nil)
	_ auth.UserStorage = (*Store)(nil)
)

type record struct {
	session *models.CalcSession // decoded copy used for ordering only
	doc     []byte
}

// Store is a mutex-guarded map of owner -> session ID -> document.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[string]record
	users    map[string]*models.User
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[string]map[string]record),
		users:    make(map[string]*models.User),
	}
}

func (s *Store) Init(ctx context.Context) error {
	_, err := auth.RequirePrincipal(ctx)
	return err
}

func (s *Store) List(ctx context.Context) ([]*models.CalcSession, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveStore("list", nil)

	s.mu.RLock()
	recs := make([]record, 0, len(s.sessions[owner]))
	for _, r := range s.sessions[owner] {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].session, recs[j].session
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	out := make([]*models.CalcSession, 0, len(recs))
	for _, r := range recs {
		session, err := storage.DecodeDocument(r.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.CalcSession, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	r, ok := s.sessions[owner][id]
	s.mu.RUnlock()
	if !ok {
		metrics.ObserveStore("get", storage.ErrNotFound)
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	metrics.ObserveStore("get", nil)
	return storage.DecodeDocument(r.doc)
}

func (s *Store) Save(ctx context.Context, session *models.CalcSession) error {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := session.Clone()
	prev, exists := s.sessions[owner][session.ID]
	if exists {
		stored.CreatedAt = prev.session.CreatedAt
	}

	doc, err := storage.EncodeDocument(stored)
	metrics.ObserveStore("save", err)
	if err != nil {
		return err
	}

	byID := s.sessions[owner]
	if byID == nil {
		byID = make(map[string]record)
		s.sessions[owner] = byID
	}
	byID[session.ID] = record{session: stored, doc: doc}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	metrics.ObserveStore("delete", nil)

	s.mu.Lock()
	delete(s.sessions[owner], id)
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }

// CreateUser stores a user. Emails are unique case-insensitively.
func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return auth.ErrEmailExists
		}
	}
	u := *user
	s.users[u.ID] = &u
	return nil
}

// GetUserByEmail returns nil, nil if no user has that email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetUserByID returns nil, nil if the user does not exist.
func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
