package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tithe/internal/archive"
	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/calculator"
	"github.com/mmynk/tithe/internal/editor"
	"github.com/mmynk/tithe/internal/events"
	"github.com/mmynk/tithe/internal/imaging"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/storage"
)

var _ SessionServiceHandler = (*SessionService)(nil)

var errInlineAttachment = errors.New("attachments can only be added by uploading a receipt")

// SessionService implements the Connect SessionService.
type SessionService struct {
	store      storage.Store
	compressor editor.Compressor
	publisher  events.Publisher
	opts       editor.Options
}

// NewSessionService creates a SessionService. publisher may be nil.
func NewSessionService(store storage.Store, compressor editor.Compressor, publisher events.Publisher, opts editor.Options) *SessionService {
	return &SessionService{
		store:      store,
		compressor: compressor,
		publisher:  publisher,
		opts:       opts,
	}
}

// Calculate derives totals from raw input without touching the store.
func (s *SessionService) Calculate(ctx context.Context, req *connect.Request[CalculateRequest]) (*connect.Response[CalculateResponse], error) {
	items := make([]models.CalcItem, len(req.Msg.Items))
	for i, raw := range req.Msg.Items {
		items[i] = models.CalcItem{Value: calculator.ParseAmount(raw)}
	}
	deductions := make([]models.Deduction, len(req.Msg.Deductions))
	for i, raw := range req.Msg.Deductions {
		deductions[i] = models.Deduction{Amount: calculator.ParseAmount(raw)}
	}
	percent := calculator.ParsePercent(req.Msg.Percent)

	t := calculator.Calculate(items, deductions, percent)
	slog.Debug("Calculated totals",
		"items", len(items),
		"deductions", len(deductions),
		"percent", percent,
		"total", t.Total,
	)
	return connect.NewResponse(&CalculateResponse{Totals: toTotals(t)}), nil
}

// ListSessions returns summaries of the caller's sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, req *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		slog.Error("ListSessions failed", "error", err)
		return nil, toConnectError(err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		if req.Msg.Search != "" && !strings.Contains(sess.Title, req.Msg.Search) {
			continue
		}
		summaries = append(summaries, toSummary(sess))
	}
	return connect.NewResponse(&ListSessionsResponse{Sessions: summaries}), nil
}

// GetSession returns a session with its receipts.
func (s *SessionService) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}
	sess, err := s.store.Get(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetSessionResponse{
		Session: sess,
		Totals:  toTotals(calculator.CalculateSession(sess)),
	}), nil
}

// SaveSession compresses any uploaded receipts, then stores the session.
// A session that already exists keeps its original creation time.
func (s *SessionService) SaveSession(ctx context.Context, req *connect.Request[SaveSessionRequest]) (*connect.Response[SaveSessionResponse], error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if req.Msg.Session == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("session is required"))
	}

	draft := req.Msg.Session.Clone()
	var existing *models.CalcSession
	if draft.ID != "" {
		existing, err = s.store.Get(ctx, draft.ID)
		switch {
		case err == nil:
			draft.CreatedAt = existing.CreatedAt
		case errors.Is(err, storage.ErrNotFound):
			existing = nil
		default:
			return nil, toConnectError(err)
		}
	}
	if err := keepStoredAttachments(draft, existing, req.Msg.Receipts); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	ed := editor.Load(s.store, s.compressor, draft, s.opts)

	if len(req.Msg.Receipts) > 0 {
		receipts := make(map[string][]byte, len(req.Msg.Receipts))
		for id, uri := range req.Msg.Receipts {
			_, data, err := imaging.DecodeDataURI(uri)
			if err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument,
					fmt.Errorf("receipt for deduction %s: %w: %v", id, imaging.ErrDecode, err))
			}
			receipts[id] = data
		}
		if err := ed.AttachReceipts(ctx, receipts); err != nil {
			return nil, toConnectError(err)
		}
	}

	saved, err := ed.Save(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	events.PublishBestEffort(ctx, s.publisher, events.Saved(owner, saved))

	return connect.NewResponse(&SaveSessionResponse{
		Session: saved,
		Totals:  toTotals(calculator.CalculateSession(saved)),
	}), nil
}

// keepStoredAttachments replaces each attachment of draft with the stored
// attachment of the same deduction. Receipts only enter through uploads,
// which are compressed and named server-side; any other attachment is
// rejected. Deductions with a pending upload are cleared for it.
func keepStoredAttachments(draft, stored *models.CalcSession, uploads map[string]string) error {
	known := make(map[string]*models.ImageAttachment)
	if stored != nil {
		for _, d := range stored.Deductions {
			if d.Attachment != nil {
				known[d.ID] = d.Attachment
			}
		}
	}

	for i := range draft.Deductions {
		d := &draft.Deductions[i]
		if d.Attachment == nil {
			continue
		}
		if _, uploading := uploads[d.ID]; uploading {
			d.Attachment = nil
			continue
		}
		att, ok := known[d.ID]
		if !ok {
			return fmt.Errorf("%w: deduction %q", errInlineAttachment, d.ID)
		}
		d.Attachment = att
	}
	return nil
}

// DeleteSession removes a session. The request must be confirmed.
func (s *SessionService) DeleteSession(ctx context.Context, req *connect.Request[DeleteSessionRequest]) (*connect.Response[DeleteSessionResponse], error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}

	ed, err := editor.Open(ctx, s.store, s.compressor, req.Msg.ID, s.opts)
	if err != nil {
		return nil, toConnectError(err)
	}
	confirmed := editor.ConfirmFunc(func(context.Context, string) (bool, error) {
		return req.Msg.Confirmed, nil
	})
	if err := ed.Delete(ctx, confirmed); err != nil {
		return nil, toConnectError(err)
	}
	events.PublishBestEffort(ctx, s.publisher, events.Deleted(owner, req.Msg.ID))

	return connect.NewResponse(&DeleteSessionResponse{}), nil
}

// ListBuckets returns the years and months the caller's sessions fall in.
func (s *SessionService) ListBuckets(ctx context.Context, req *connect.Request[ListBucketsRequest]) (*connect.Response[ListBucketsResponse], error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	b := archive.Bucket(sessions)
	return connect.NewResponse(&ListBucketsResponse{
		Years:  b.Years,
		Months: b.MonthKeys(),
	}), nil
}

// RemoveAttachment drops one receipt and saves the session.
func (s *SessionService) RemoveAttachment(ctx context.Context, req *connect.Request[RemoveAttachmentRequest]) (*connect.Response[RemoveAttachmentResponse], error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	ed, err := editor.Open(ctx, s.store, s.compressor, req.Msg.SessionID, s.opts)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := ed.RemoveAttachment(req.Msg.DeductionID); err != nil {
		return nil, toConnectError(err)
	}
	saved, err := ed.Save(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	events.PublishBestEffort(ctx, s.publisher, events.Saved(owner, saved))

	return connect.NewResponse(&RemoveAttachmentResponse{Session: saved}), nil
}
