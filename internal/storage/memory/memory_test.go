package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, New())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := New()
	ctx := auth.WithPrincipal(context.Background(), "alice")

	s := storagetest.NewSession("s1", "original", time.Now())
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.Title = "mutated after save"
	s.Items[0].Value = 999

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "original" || got.Items[0].Value != 100 {
		t.Errorf("store shares memory with caller: %+v", got)
	}

	got.Title = "mutated after get"
	again, _ := store.Get(ctx, "s1")
	if again.Title != "original" {
		t.Errorf("Get result shares memory with store: %q", again.Title)
	}
}
