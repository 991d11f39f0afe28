package editor

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/calculator"
	"github.com/mmynk/tithe/internal/imaging"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/storage"
	"github.com/mmynk/tithe/internal/storage/memory"
)

var fixedNow = time.Date(2025, 9, 14, 8, 30, 0, 0, time.UTC)

func testOptions() Options {
	return Options{Now: func() time.Time { return fixedNow }}
}

// fakeCompressor returns a canned result, or ErrDecode for sources that
// start with "bad".
type fakeCompressor struct {
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeCompressor) Compress(ctx context.Context, src []byte) (*imaging.Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if strings.HasPrefix(string(src), "bad") {
		return nil, imaging.ErrDecode
	}
	return &imaging.Result{
		DataURI: imaging.EncodeDataURI(imaging.Mime, src),
		Mime:    imaging.Mime,
		Ext:     imaging.Ext,
		Quality: 0.82,
		Bytes:   len(src),
	}, nil
}

// failingStore fails every write with errBackend.
type failingStore struct {
	storage.Store
}

var errBackend = errors.New("backend unavailable")

func (failingStore) Save(ctx context.Context, s *models.CalcSession) error { return errBackend }
func (failingStore) Delete(ctx context.Context, id string) error { return errBackend }

func principal() context.Context {
	return auth.WithPrincipal(context.Background(), "alice")
}

func TestNew_Defaults(t *testing.T) {
	e := New(memory.New(), &fakeCompressor{}, testOptions())
	d := e.Draft()

	if d.ID == "" {
		t.Error("expected an ID")
	}
	if d.Title != "New calculation 9/2025" {
		t.Errorf("Title = %q", d.Title)
	}
	if d.Percent != 10 {
		t.Errorf("Percent = %v", d.Percent)
	}
	if d.TimeTag != "2025-09" {
		t.Errorf("TimeTag = %q", d.TimeTag)
	}
	if len(d.Items) != 2 || d.Items[0].Value != 0 || d.Items[1].Value != 0 {
		t.Errorf("Items = %+v", d.Items)
	}
	if len(d.Deductions) != 0 {
		t.Errorf("Deductions = %+v", d.Deductions)
	}
	if !d.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v", d.CreatedAt)
	}
	if e.Totals() != (calculator.Totals{}) {
		t.Errorf("Totals = %+v", e.Totals())
	}
}

func TestEditor_RecomputesOnEveryEdit(t *testing.T) {
	e := New(memory.New(), &fakeCompressor{}, testOptions())
	d := e.Draft()

	if err := e.SetItem(d.Items[0].ID, 100); err != nil {
		t.Fatal(err)
	}
	if err := e.SetItemInput(d.Items[1].ID, "200"); err != nil {
		t.Fatal(err)
	}
	if got := e.Totals().Sum; got != 300 {
		t.Errorf("Sum = %v, want 300", got)
	}

	e.AddDeduction(5, "a")
	id := e.AddDeduction(10, "b")
	if got := e.Totals(); got.Net != 15 || got.Total != 315 {
		t.Errorf("Totals = %+v", got)
	}

	if err := e.UpdateDeduction(id, 35, "b"); err != nil {
		t.Fatal(err)
	}
	if got := e.Totals(); got.OverDeducted != 10 || got.RemainingToDeduct != 0 {
		t.Errorf("Totals = %+v", got)
	}

	e.SetPercent(20)
	if got := e.Totals(); math.Abs(got.PercentAmount-60) > 0.01 {
		t.Errorf("PercentAmount = %v", got.PercentAmount)
	}

	e.SetPercent(-5)
	if got := e.Draft().Percent; got != 0 {
		t.Errorf("negative percent stored as %v", got)
	}

	if err := e.SetItemInput(d.Items[1].ID, "abc"); err != nil {
		t.Fatal(err)
	}
	if got := e.Totals().Sum; got != 100 {
		t.Errorf("Sum after malformed input = %v, want 100", got)
	}
}

func TestEditor_MinimumItems(t *testing.T) {
	e := New(memory.New(), &fakeCompressor{}, testOptions())
	d := e.Draft()

	if err := e.RemoveItem(d.Items[0].ID); !errors.Is(err, ErrMinItems) {
		t.Errorf("expected ErrMinItems, got %v", err)
	}

	extra := e.AddItem(7)
	if err := e.RemoveItem(d.Items[0].ID); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if err := e.RemoveItem(extra); !errors.Is(err, ErrMinItems) {
		t.Errorf("expected ErrMinItems, got %v", err)
	}
	if n := len(e.Draft().Items); n != 2 {
		t.Errorf("items = %d, want 2", n)
	}
	if err := e.RemoveItem("nope"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestEditor_SetTimeTagSyncsTitle(t *testing.T) {
	e := New(memory.New(), &fakeCompressor{}, testOptions())
	e.SetTitle("Salary 9/2025")

	if err := e.SetTimeTag("11/2024"); err != nil {
		t.Fatal(err)
	}
	d := e.Draft()
	if d.TimeTag != "2024-11" || d.Title != "Salary 11/2024" {
		t.Errorf("got tag %q title %q", d.TimeTag, d.Title)
	}

	if err := e.SetTimeTag("someday"); !errors.Is(err, ErrInvalidTimeTag) {
		t.Errorf("expected ErrInvalidTimeTag, got %v", err)
	}
}

func TestEditor_AttachReceipt(t *testing.T) {
	e := New(memory.New(), &fakeCompressor{}, testOptions())
	e.SetTitle("Salary 9/2025")
	id := e.AddDeduction(5, "Gift/books")

	if err := e.AttachReceipt(context.Background(), id, []byte("photo-1")); err != nil {
		t.Fatalf("AttachReceipt failed: %v", err)
	}
	att := e.Draft().Deductions[0].Attachment
	if att == nil {
		t.Fatal("attachment missing")
	}
	if att.Filename != "Salary 9 2025 - Gift books - 2025-09-14.jpg" {
		t.Errorf("Filename = %q", att.Filename)
	}
	if att.Mime != "image/jpeg" || !att.AddedAt.Equal(fixedNow) {
		t.Errorf("attachment = %+v", att)
	}

	t.Run("decode failure keeps the previous receipt", func(t *testing.T) {
		err := e.AttachReceipt(context.Background(), id, []byte("bad bytes"))
		if !errors.Is(err, imaging.ErrDecode) {
			t.Fatalf("expected ErrDecode, got %v", err)
		}
		if got := e.Draft().Deductions[0].Attachment; got == nil || got.DataURI != att.DataURI {
			t.Errorf("previous receipt lost: %+v", got)
		}
	})

	t.Run("unknown deduction", func(t *testing.T) {
		err := e.AttachReceipt(context.Background(), "nope", []byte("photo"))
		if !errors.Is(err, ErrUnknownDeduction) {
			t.Errorf("expected ErrUnknownDeduction, got %v", err)
		}
	})

	t.Run("remove attachment keeps the deduction", func(t *testing.T) {
		if err := e.RemoveAttachment(id); err != nil {
			t.Fatal(err)
		}
		d := e.Draft()
		if len(d.Deductions) != 1 || d.Deductions[0].Attachment != nil || d.Deductions[0].Amount != 5 {
			t.Errorf("deductions = %+v", d.Deductions)
		}
	})
}

func TestEditor_AttachReceipts(t *testing.T) {
	comp := &fakeCompressor{delay: 10 * time.Millisecond}
	e := New(memory.New(), comp, testOptions())
	a := e.AddDeduction(1, "a")
	b := e.AddDeduction(2, "b")
	c := e.AddDeduction(3, "c")

	err := e.AttachReceipts(context.Background(), map[string][]byte{
		a: []byte("photo-a"),
		b: []byte("photo-b"),
		c: []byte("bad-c"),
	})
	if !errors.Is(err, imaging.ErrDecode) {
		t.Errorf("expected ErrDecode from c, got %v", err)
	}
	if comp.calls.Load() != 3 {
		t.Errorf("compressor called %d times", comp.calls.Load())
	}

	d := e.Draft()
	if d.AttachmentCount() != 2 {
		t.Errorf("AttachmentCount = %d, want 2", d.AttachmentCount())
	}
	if d.Deductions[2].Attachment != nil {
		t.Error("failed receipt was attached")
	}
}

func TestEditor_Save(t *testing.T) {
	store := memory.New()
	e := New(store, &fakeCompressor{}, testOptions())
	e.SetTitle("   ")
	if err := e.SetTimeTag("2025-3"); err != nil {
		t.Fatal(err)
	}
	e.SetTitle("  ")

	saved, err := e.Save(principal())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Title != "Untitled calculation" {
		t.Errorf("Title = %q", saved.Title)
	}
	if saved.TimeTag != "2025-03" {
		t.Errorf("TimeTag = %q", saved.TimeTag)
	}
	if e.Saved() == nil {
		t.Error("saved state not updated")
	}

	got, err := store.Get(principal(), saved.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Untitled calculation" || len(got.Items) != 2 {
		t.Errorf("stored %+v", got)
	}
}

func TestEditor_SaveFailureKeepsDraft(t *testing.T) {
	e := New(failingStore{memory.New()}, &fakeCompressor{}, testOptions())
	e.SetTitle("Keep me")
	e.AddDeduction(5, "x")

	_, err := e.Save(principal())
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(err, errBackend) {
		t.Fatalf("expected StoreError wrapping backend error, got %v", err)
	}
	if storeErr.Op != "save" {
		t.Errorf("Op = %q", storeErr.Op)
	}
	if e.Saved() != nil {
		t.Error("saved state changed although the store failed")
	}
	d := e.Draft()
	if d.Title != "Keep me" || len(d.Deductions) != 1 {
		t.Errorf("draft changed: %+v", d)
	}
}

func TestEditor_SaveWithoutPrincipal(t *testing.T) {
	e := New(memory.New(), &fakeCompressor{}, testOptions())
	if _, err := e.Save(context.Background()); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestEditor_OpenAndLoad(t *testing.T) {
	store := memory.New()
	stored := &models.CalcSession{
		ID:        "s1",
		Title:     "Old 4/2024",
		CreatedAt: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		Percent:   10,
		Items:     []models.CalcItem{{ID: "only", Value: 50}},
	}
	if err := store.Save(principal(), stored); err != nil {
		t.Fatal(err)
	}

	e, err := Open(principal(), store, &fakeCompressor{}, "s1", testOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	d := e.Draft()
	if d.TimeTag != "2024-04" {
		t.Errorf("TimeTag seeded from title = %q", d.TimeTag)
	}
	if len(d.Items) != 2 {
		t.Errorf("items padded to %d", len(d.Items))
	}
	if e.Totals().Sum != 50 {
		t.Errorf("Sum = %v", e.Totals().Sum)
	}
	if !d.CreatedAt.Equal(stored.CreatedAt) {
		t.Errorf("CreatedAt changed to %v", d.CreatedAt)
	}

	_, err = Open(principal(), store, &fakeCompressor{}, "missing", testOptions())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEditor_Delete(t *testing.T) {
	store := memory.New()
	e := New(store, &fakeCompressor{}, testOptions())
	saved, err := e.Save(principal())
	if err != nil {
		t.Fatal(err)
	}

	deny := ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
	if err := e.Delete(principal(), deny); !errors.Is(err, ErrDeleteNotConfirmed) {
		t.Errorf("expected ErrDeleteNotConfirmed, got %v", err)
	}
	if err := e.Delete(principal(), nil); !errors.Is(err, ErrDeleteNotConfirmed) {
		t.Errorf("expected ErrDeleteNotConfirmed for nil confirmer, got %v", err)
	}
	if _, err := store.Get(principal(), saved.ID); err != nil {
		t.Fatalf("session deleted without confirmation: %v", err)
	}

	var prompt string
	allow := ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return true, nil
	})
	if err := e.Delete(principal(), allow); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !strings.Contains(prompt, saved.Title) {
		t.Errorf("prompt %q does not name the session", prompt)
	}
	if !e.Deleted() || e.Saved() != nil {
		t.Error("editor state not updated after delete")
	}
	if _, err := store.Get(principal(), saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEditor_DeleteFailure(t *testing.T) {
	e := New(failingStore{memory.New()}, &fakeCompressor{}, testOptions())
	allow := ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

	err := e.Delete(principal(), allow)
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "delete" {
		t.Errorf("expected delete StoreError, got %v", err)
	}
	if e.Deleted() {
		t.Error("editor marked deleted although the store failed")
	}
}
