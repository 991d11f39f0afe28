// Package storagetest checks a storage.Store implementation against the
// store contract. Each backend's tests call Run with a fresh store.
package storagetest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/storage"
)

// NewSession returns a valid session created at the given time.
func NewSession(id, title string, created time.Time) *models.CalcSession {
	return &models.CalcSession{
		ID:        id,
		Title:     title,
		CreatedAt: created.UTC(),
		Percent:   10,
		TimeTag:   "2025-09",
		Items: []models.CalcItem{
			{ID: id + "-i1", Value: 100},
			{ID: id + "-i2", Value: 200},
		},
		Deductions: []models.Deduction{
			{ID: id + "-d1", Amount: 5, Note: "books"},
		},
	}
}

// Run exercises store. The store must be empty.
func Run(t *testing.T, store storage.Store) {
	t.Helper()

	alice := auth.WithPrincipal(context.Background(), "alice")
	bob := auth.WithPrincipal(context.Background(), "bob")
	anon := context.Background()
	base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("operations without principal fail", func(t *testing.T) {
		if err := store.Init(anon); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("Init: expected ErrUnauthenticated, got %v", err)
		}
		if _, err := store.List(anon); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("List: expected ErrUnauthenticated, got %v", err)
		}
		if _, err := store.Get(anon, "x"); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("Get: expected ErrUnauthenticated, got %v", err)
		}
		if err := store.Save(anon, NewSession("x", "x", base)); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("Save: expected ErrUnauthenticated, got %v", err)
		}
		if err := store.Delete(anon, "x"); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("Delete: expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("Init succeeds with principal", func(t *testing.T) {
		if err := store.Init(alice); err != nil {
			t.Fatalf("Init failed: %v", err)
		}
	})

	t.Run("Save and Get round trip", func(t *testing.T) {
		s := NewSession("s1", "September 9/2025", base)
		s.Deductions[0].Attachment = &models.ImageAttachment{
			Filename: "receipt.jpg",
			Mime:     "image/jpeg",
			DataURI:  "data:image/jpeg;base64,AAAA",
			AddedAt:  base,
		}
		if err := store.Save(alice, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := store.Get(alice, "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Title != s.Title || got.Percent != 10 || got.TimeTag != "2025-09" {
			t.Errorf("got %+v", got)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
		}
		if len(got.Items) != 2 || got.Items[1].Value != 200 {
			t.Errorf("items = %+v", got.Items)
		}
		if len(got.Deductions) != 1 || got.Deductions[0].Attachment == nil {
			t.Fatalf("deductions = %+v", got.Deductions)
		}
		if got.Deductions[0].Attachment.DataURI != "data:image/jpeg;base64,AAAA" {
			t.Errorf("attachment = %+v", got.Deductions[0].Attachment)
		}
	})

	t.Run("Save upserts", func(t *testing.T) {
		s := NewSession("s1", "Renamed 9/2025", base.Add(72*time.Hour))
		s.Deductions = nil
		if err := store.Save(alice, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := store.Get(alice, "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Title != "Renamed 9/2025" || len(got.Deductions) != 0 {
			t.Errorf("got %+v", got)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("CreatedAt = %v, want first-save %v", got.CreatedAt, base)
		}
	})

	t.Run("Get unknown returns ErrNotFound", func(t *testing.T) {
		if _, err := store.Get(alice, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List orders newest first", func(t *testing.T) {
		if err := store.Save(alice, NewSession("s0", "older", base.Add(-48*time.Hour))); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Save(alice, NewSession("s2", "newer", base.Add(48*time.Hour))); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		list, err := store.List(alice)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		var ids []string
		for _, s := range list {
			ids = append(ids, s.ID)
			if s.ID == "s1" && !s.CreatedAt.Equal(base) {
				t.Errorf("listed s1 CreatedAt = %v, want %v", s.CreatedAt, base)
			}
		}
		if strings.Join(ids, ",") != "s2,s1,s0" {
			t.Errorf("order = %v, want s2,s1,s0", ids)
		}
	})

	t.Run("principals are isolated", func(t *testing.T) {
		list, err := store.List(bob)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("bob sees %d sessions", len(list))
		}
		if _, err := store.Get(bob, "s1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("bob Get: expected ErrNotFound, got %v", err)
		}
		if err := store.Delete(bob, "s1"); err != nil {
			t.Fatalf("bob Delete failed: %v", err)
		}
		if _, err := store.Get(alice, "s1"); err != nil {
			t.Errorf("bob's delete removed alice's session: %v", err)
		}
	})

	t.Run("Save rejects oversized sessions", func(t *testing.T) {
		s := NewSession("big", "big", base)
		s.Deductions[0].Attachment = &models.ImageAttachment{
			Filename: "huge.jpg",
			Mime:     "image/jpeg",
			DataURI:  "data:image/jpeg;base64," + strings.Repeat("A", storage.MaxDocumentBytes),
		}
		if err := store.Save(alice, s); !errors.Is(err, storage.ErrTooLarge) {
			t.Errorf("expected ErrTooLarge, got %v", err)
		}
		if _, err := store.Get(alice, "big"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("oversized session was stored: %v", err)
		}
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		if err := store.Delete(alice, "s1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := store.Delete(alice, "s1"); err != nil {
			t.Fatalf("second Delete failed: %v", err)
		}
		if _, err := store.Get(alice, "s1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}
