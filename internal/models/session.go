package models

import "time"

// CalcSession is one saved calculation.
// ID and CreatedAt are fixed when the session is created; every other field
// stays editable. Sessions are persisted and deleted as a whole.
type CalcSession struct {
	// ID is the unique identifier for the session (UUID format).
	ID string `json:"id"`

	// Title is the human-readable name, usually ending with an "M/YYYY" suffix.
	Title string `json:"title"`

	// CreatedAt is when the session was first created in memory.
	CreatedAt time.Time `json:"createdAt"`

	// Percent is the rate applied to the base sum. Never negative.
	Percent float64 `json:"percent"`

	// TimeTag is the canonical "YYYY-MM" period the session belongs to.
	// Older documents may carry other spellings; see package timekey.
	TimeTag string `json:"timeTag,omitempty"`

	// Items are the addends of the base sum. The editor keeps at least two.
	Items []CalcItem `json:"items"`

	// Deductions are subtracted from the percentage share.
	Deductions []Deduction `json:"deductions"`
}

// CalcItem is one addend of a session's base sum.
type CalcItem struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// Deduction is an amount subtracted from the percentage share.
// Removing its attachment sets Attachment to nil; the deduction stays.
type Deduction struct {
	ID         string           `json:"id"`
	Amount     float64          `json:"amount"`
	Note       string           `json:"note"`
	Attachment *ImageAttachment `json:"attachment,omitempty"`
}

// ImageAttachment is a receipt image embedded in the deduction record.
// Values are never mutated in place: replacing a receipt swaps the pointer.
type ImageAttachment struct {
	Filename string `json:"filename"`
	Mime     string `json:"mime"`

	// DataURI is "data:<mime>;base64,<payload>".
	DataURI string    `json:"dataUrl"`
	AddedAt time.Time `json:"addedAt"`
}

// HasAttachment reports whether the deduction carries a receipt.
func (d Deduction) HasAttachment() bool {
	return d.Attachment != nil
}

// AttachmentCount returns how many deductions of the session carry a receipt.
func (s *CalcSession) AttachmentCount() int {
	n := 0
	for _, d := range s.Deductions {
		if d.HasAttachment() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the session. Attachments are shared because
// they are immutable.
func (s *CalcSession) Clone() *CalcSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Items = append([]CalcItem(nil), s.Items...)
	out.Deductions = append([]Deduction(nil), s.Deductions...)
	return &out
}
