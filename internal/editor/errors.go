package editor

import (
	"errors"
	"fmt"
)

var (
	ErrMinItems           = errors.New("a session needs at least two items")
	ErrUnknownItem        = errors.New("unknown item")
	ErrUnknownDeduction   = errors.New("unknown deduction")
	ErrInvalidTimeTag     = errors.New("invalid time tag")
	ErrDeleteNotConfirmed = errors.New("delete was not confirmed")
)

// StoreError is a failed store call. The draft is left as it was, so the
// caller can retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s session: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
