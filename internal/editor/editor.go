// Package editor holds a session draft while it is being edited.
//
// Every edit recomputes the totals. Receipts are compressed before they are
// attached and only attached on success. Save hands a normalized snapshot to
// the store and the editor's saved state changes only when the store accepts
// it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tithe/internal/archive"
	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/calculator"
	"github.com/mmynk/tithe/internal/imaging"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/storage"
	"github.com/mmynk/tithe/internal/timekey"
)

const (
	// MinItems is the smallest number of items a draft may hold.
	MinItems = 2

	DefaultTitle   = "New calculation"
	UntitledTitle  = "Untitled calculation"
	DefaultPercent = 10
)

// Compressor fits a receipt image under the attachment byte budget.
type Compressor interface {
	Compress(ctx context.Context, src []byte) (*imaging.Result, error)
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Options configure a new Editor.
type Options struct {
	// DefaultPercent is the rate of new drafts. Zero means DefaultPercent.
	DefaultPercent float64

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Editor owns one session draft. It is safe for concurrent use.
type Editor struct {
	store      storage.Store
	compressor Compressor
	now        func() time.Time

	mu      sync.Mutex
	draft   *models.CalcSession
	saved   *models.CalcSession
	totals  calculator.Totals
	deleted bool
}

func newEditor(store storage.Store, compressor Compressor, opts Options) *Editor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Editor{store: store, compressor: compressor, now: now}
}

// New starts a draft with two empty items, no deductions and the current
// month as its period.
func New(store storage.Store, compressor Compressor, opts Options) *Editor {
	e := newEditor(store, compressor, opts)
	percent := opts.DefaultPercent
	if percent <= 0 {
		percent = DefaultPercent
	}
	created := e.now().UTC()
	key := timekey.FromTime(created)

	e.draft = &models.CalcSession{
		ID:        uuid.New().String(),
		Title:     timekey.WithTitleSuffix(DefaultTitle, key),
		CreatedAt: created,
		Percent:   calculator.ClampPercent(percent),
		TimeTag:   key.String(),
		Items: []models.CalcItem{
			{ID: uuid.New().String()},
			{ID: uuid.New().String()},
		},
		Deductions: []models.Deduction{},
	}
	e.recompute()
	return e
}

// Load starts editing an existing session. Missing IDs and creation times
// are filled in, the period is resolved and the item list is padded to
// MinItems. The session counts as saved only if it came from the store.
func Load(store storage.Store, compressor Compressor, s *models.CalcSession, opts Options) *Editor {
	e := newEditor(store, compressor, opts)
	d := s.Clone()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = e.now().UTC()
	}
	d.Percent = calculator.ClampPercent(d.Percent)
	d.TimeTag = timekey.OfSession(d).String()
	for i := range d.Items {
		if d.Items[i].ID == "" {
			d.Items[i].ID = uuid.New().String()
		}
	}
	for len(d.Items) < MinItems {
		d.Items = append(d.Items, models.CalcItem{ID: uuid.New().String()})
	}
	for i := range d.Deductions {
		if d.Deductions[i].ID == "" {
			d.Deductions[i].ID = uuid.New().String()
		}
	}
	if d.Deductions == nil {
		d.Deductions = []models.Deduction{}
	}
	e.draft = d
	e.recompute()
	return e
}

// Open loads a stored session for editing.
func Open(ctx context.Context, store storage.Store, compressor Compressor, id string, opts Options) (*Editor, error) {
	s, err := store.Get(ctx, id)
	if err != nil {
		return nil, wrapStore("load", err)
	}
	e := Load(store, compressor, s, opts)
	e.saved = s
	return e, nil
}

// Draft returns a copy of the current draft.
func (e *Editor) Draft() *models.CalcSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

// Saved returns a copy of the last snapshot the store accepted, or nil.
func (e *Editor) Saved() *models.CalcSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saved.Clone()
}

// Totals returns the totals of the current draft.
func (e *Editor) Totals() calculator.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totals
}

// SetTitle replaces the title.
func (e *Editor) SetTitle(title string) {
	e.mutate(func(d *models.CalcSession) { d.Title = title })
}

// SetPercent sets the rate. Negative and non-finite rates become 0.
func (e *Editor) SetPercent(p float64) {
	e.mutate(func(d *models.CalcSession) { d.Percent = calculator.ClampPercent(p) })
}

// SetTimeTag sets the period from any accepted tag spelling and rewrites
// the title's "M/YYYY" suffix to match.
func (e *Editor) SetTimeTag(raw string) error {
	k, ok := timekey.Parse(raw)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTimeTag, raw)
	}
	e.mutate(func(d *models.CalcSession) {
		d.TimeTag = k.String()
		d.Title = timekey.WithTitleSuffix(d.Title, k)
	})
	return nil
}

// AddItem appends an item and returns its ID.
func (e *Editor) AddItem(value float64) string {
	id := uuid.New().String()
	e.mutate(func(d *models.CalcSession) {
		d.Items = append(d.Items, models.CalcItem{ID: id, Value: value})
	})
	return id
}

// SetItem changes an item's value.
func (e *Editor) SetItem(id string, value float64) error {
	return e.mutateErr(func(d *models.CalcSession) error {
		for i := range d.Items {
			if d.Items[i].ID == id {
				d.Items[i].Value = value
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	})
}

// SetItemInput changes an item from raw user input; malformed input is 0.
func (e *Editor) SetItemInput(id, raw string) error {
	return e.SetItem(id, calculator.ParseAmount(raw))
}

// RemoveItem deletes an item unless that would leave fewer than MinItems.
func (e *Editor) RemoveItem(id string) error {
	return e.mutateErr(func(d *models.CalcSession) error {
		idx := -1
		for i := range d.Items {
			if d.Items[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		if len(d.Items) <= MinItems {
			return ErrMinItems
		}
		d.Items = append(d.Items[:idx], d.Items[idx+1:]...)
		return nil
	})
}

// AddDeduction appends a deduction and returns its ID.
func (e *Editor) AddDeduction(amount float64, note string) string {
	id := uuid.New().String()
	e.mutate(func(d *models.CalcSession) {
		d.Deductions = append(d.Deductions, models.Deduction{ID: id, Amount: amount, Note: note})
	})
	return id
}

// UpdateDeduction changes a deduction's amount and note. Its receipt stays.
func (e *Editor) UpdateDeduction(id string, amount float64, note string) error {
	return e.withDeduction(id, func(d *models.Deduction) {
		d.Amount = amount
		d.Note = note
	})
}

// RemoveDeduction deletes a deduction with its receipt.
func (e *Editor) RemoveDeduction(id string) error {
	return e.mutateErr(func(d *models.CalcSession) error {
		for i := range d.Deductions {
			if d.Deductions[i].ID == id {
				d.Deductions = append(d.Deductions[:i], d.Deductions[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownDeduction, id)
	})
}

// RemoveAttachment drops a deduction's receipt and keeps the deduction.
func (e *Editor) RemoveAttachment(id string) error {
	return e.withDeduction(id, func(d *models.Deduction) { d.Attachment = nil })
}

// AttachReceipt compresses src and attaches it to the deduction. On any
// error the deduction keeps its previous receipt. Concurrent calls for the
// same deduction race; the last to finish wins.
func (e *Editor) AttachReceipt(ctx context.Context, deductionID string, src []byte) error {
	if !e.hasDeduction(deductionID) {
		return fmt.Errorf("%w: %s", ErrUnknownDeduction, deductionID)
	}

	res, err := e.compressor.Compress(ctx, src)
	if err != nil {
		slog.Warn("Receipt not attached", "deduction_id", deductionID, "error", err)
		return err
	}

	at := e.now().UTC()
	e.mu.Lock()
	title := e.draft.Title
	e.mu.Unlock()

	return e.withDeduction(deductionID, func(d *models.Deduction) {
		d.Attachment = &models.ImageAttachment{
			Filename: archive.AttachmentFilename(title, d.Note, at, res.Ext),
			Mime:     res.Mime,
			DataURI:  res.DataURI,
			AddedAt:  at,
		}
	})
}

// AttachReceiptDataURI is AttachReceipt for a data URI source.
func (e *Editor) AttachReceiptDataURI(ctx context.Context, deductionID, uri string) error {
	_, data, err := imaging.DecodeDataURI(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", imaging.ErrDecode, err)
	}
	return e.AttachReceipt(ctx, deductionID, data)
}

// AttachReceipts attaches several receipts concurrently, keyed by deduction
// ID. Receipts that succeed stay attached even if others fail; the first
// error is returned.
func (e *Editor) AttachReceipts(ctx context.Context, receipts map[string][]byte) error {
	var g errgroup.Group
	for id, src := range receipts {
		g.Go(func() error {
			if err := e.AttachReceipt(ctx, id, src); err != nil {
				return fmt.Errorf("deduction %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Save normalizes the period, fills a blank title and persists a snapshot
// of the draft. The saved state changes only if the store accepts it.
func (e *Editor) Save(ctx context.Context) (*models.CalcSession, error) {
	e.mu.Lock()
	snapshot := e.draft.Clone()
	origTitle, origTag := snapshot.Title, snapshot.TimeTag
	e.mu.Unlock()

	snapshot.Title = strings.TrimSpace(snapshot.Title)
	if snapshot.Title == "" {
		snapshot.Title = UntitledTitle
	}
	snapshot.TimeTag = timekey.OfSession(snapshot).String()

	if err := e.store.Save(ctx, snapshot); err != nil {
		slog.Error("Failed to save session", "session_id", snapshot.ID, "error", err)
		return nil, wrapStore("save", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saved = snapshot
	e.deleted = false
	if e.draft.Title == origTitle {
		e.draft.Title = snapshot.Title
	}
	if e.draft.TimeTag == origTag {
		e.draft.TimeTag = snapshot.TimeTag
	}
	slog.Info("Session saved", "session_id", snapshot.ID, "time_tag", snapshot.TimeTag)
	return snapshot.Clone(), nil
}

// Delete removes the session from the store once confirm approves.
func (e *Editor) Delete(ctx context.Context, confirm Confirmer) error {
	if confirm == nil {
		return ErrDeleteNotConfirmed
	}
	e.mu.Lock()
	id, title := e.draft.ID, e.draft.Title
	e.mu.Unlock()

	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Delete %q permanently?", title))
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeleteNotConfirmed
	}

	if err := e.store.Delete(ctx, id); err != nil {
		slog.Error("Failed to delete session", "session_id", id, "error", err)
		return wrapStore("delete", err)
	}

	e.mu.Lock()
	e.saved = nil
	e.deleted = true
	e.mu.Unlock()
	slog.Info("Session deleted", "session_id", id)
	return nil
}

// Deleted reports whether the session was deleted from the store.
func (e *Editor) Deleted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleted
}

func (e *Editor) mutate(fn func(d *models.CalcSession)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.draft)
	e.recompute()
}

func (e *Editor) mutateErr(fn func(d *models.CalcSession) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.draft); err != nil {
		return err
	}
	e.recompute()
	return nil
}

func (e *Editor) withDeduction(id string, fn func(d *models.Deduction)) error {
	return e.mutateErr(func(s *models.CalcSession) error {
		for i := range s.Deductions {
			if s.Deductions[i].ID == id {
				fn(&s.Deductions[i])
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownDeduction, id)
	})
}

func (e *Editor) hasDeduction(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.draft.Deductions {
		if d.ID == id {
			return true
		}
	}
	return false
}

// recompute must be called with mu held.
func (e *Editor) recompute() {
	e.totals = calculator.CalculateSession(e.draft)
}

// wrapStore passes auth failures through unchanged and wraps the rest.
func wrapStore(op string, err error) error {
	if errors.Is(err, auth.ErrUnauthenticated) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
