package events

import (
	"encoding/json"
	"time"

	"github.com/mmynk/tithe/internal/calculator"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/timekey"
)

// Type names a session lifecycle event. It is also the last segment of the
// routing key.
type Type string

const (
	SessionSaved   Type = "saved"
	SessionDeleted Type = "deleted"
)

// SessionEvent is published after the store accepted a save or delete.
// It carries totals but never receipt data.
type SessionEvent struct {
	Type        Type      `json:"type"`
	SessionID   string    `json:"session_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title,omitempty"`
	TimeTag     string    `json:"time_tag,omitempty"`
	Attachments int       `json:"attachments"`
	Sum         float64   `json:"sum"`
	Net         float64   `json:"net"`
	Total       float64   `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}

// Saved builds the event for a stored session.
func Saved(ownerID string, s *models.CalcSession) *SessionEvent {
	t := calculator.CalculateSession(s)
	return &SessionEvent{
		Type:        SessionSaved,
		SessionID:   s.ID,
		OwnerID:     ownerID,
		Title:       s.Title,
		TimeTag:     timekey.OfSession(s).String(),
		Attachments: s.AttachmentCount(),
		Sum:         t.Sum,
		Net:         t.Net,
		Total:       t.Total,
		Timestamp:   time.Now().UTC(),
	}
}

// Deleted builds the event for a removed session.
func Deleted(ownerID, sessionID string) *SessionEvent {
	return &SessionEvent{
		Type:      SessionDeleted,
		SessionID: sessionID,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *SessionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SessionEventFromJSON parses an event.
func SessionEventFromJSON(data []byte) (*SessionEvent, error) {
	var ev SessionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
