package service

import (
	"time"

	"github.com/mmynk/tithe/internal/calculator"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/timekey"
)

// ─── Shared ─────────────────────────────────────────────────────────────────

type Totals struct {
	Sum               float64 `json:"sum"`
	PercentAmount     float64 `json:"percentAmount"`
	DeductionsSum     float64 `json:"deductionsSum"`
	Net               float64 `json:"net"`
	RemainingToDeduct float64 `json:"remainingToDeduct"`
	OverDeducted      float64 `json:"overDeducted"`
	Total             float64 `json:"total"`
}

func toTotals(t calculator.Totals) Totals {
	return Totals{
		Sum:               t.Sum,
		PercentAmount:     t.PercentAmount,
		DeductionsSum:     t.DeductionsSum,
		Net:               t.Net,
		RemainingToDeduct: t.RemainingToDeduct,
		OverDeducted:      t.OverDeducted,
		Total:             t.Total,
	}
}

// SessionSummary is a session without its receipt data.
type SessionSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TimeTag     string    `json:"timeTag"`
	CreatedAt   time.Time `json:"createdAt"`
	Percent     float64   `json:"percent"`
	Attachments int       `json:"attachments"`
	Totals      Totals    `json:"totals"`
}

func toSummary(s *models.CalcSession) SessionSummary {
	return SessionSummary{
		ID:          s.ID,
		Title:       s.Title,
		TimeTag:     timekey.OfSession(s).String(),
		CreatedAt:   s.CreatedAt,
		Percent:     s.Percent,
		Attachments: s.AttachmentCount(),
		Totals:      toTotals(calculator.CalculateSession(s)),
	}
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUser(u *models.User) *User {
	return &User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   time.Unix(u.CreatedAt, 0).UTC(),
	}
}

// ─── AuthService ────────────────────────────────────────────────────────────

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// ─── SessionService ─────────────────────────────────────────────────────────

// CalculateRequest carries raw user input. Blank or malformed numbers count
// as zero.
type CalculateRequest struct {
	Items      []string `json:"items"`
	Deductions []string `json:"deductions"`
	Percent    string   `json:"percent"`
}

type CalculateResponse struct {
	Totals Totals `json:"totals"`
}

type ListSessionsRequest struct {
	// Search keeps sessions whose title contains it (case-sensitive).
	Search string `json:"search,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type GetSessionRequest struct {
	ID string `json:"id"`
}

type GetSessionResponse struct {
	Session *models.CalcSession `json:"session"`
	Totals  Totals              `json:"totals"`
}

type SaveSessionRequest struct {
	Session *models.CalcSession `json:"session"`

	// Receipts maps deduction IDs to image data URIs. Each image is
	// compressed and attached before the session is saved.
	Receipts map[string]string `json:"receipts,omitempty"`
}

type SaveSessionResponse struct {
	Session *models.CalcSession `json:"session"`
	Totals  Totals              `json:"totals"`
}

type DeleteSessionRequest struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

type DeleteSessionResponse struct{}

type ListBucketsRequest struct{}

type ListBucketsResponse struct {
	Years  []int    `json:"years"`
	Months []string `json:"months"`
}

type RemoveAttachmentRequest struct {
	SessionID   string `json:"sessionId"`
	DeductionID string `json:"deductionId"`
}

type RemoveAttachmentResponse struct {
	Session *models.CalcSession `json:"session"`
}
