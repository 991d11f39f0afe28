package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/editor"
	"github.com/mmynk/tithe/internal/imaging"
	"github.com/mmynk/tithe/internal/storage"
)

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		code = connect.CodeUnauthenticated
	case errors.Is(err, storage.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, imaging.ErrDecode),
		errors.Is(err, editor.ErrMinItems),
		errors.Is(err, editor.ErrUnknownItem),
		errors.Is(err, editor.ErrUnknownDeduction),
		errors.Is(err, editor.ErrInvalidTimeTag):
		code = connect.CodeInvalidArgument
	case errors.Is(err, editor.ErrDeleteNotConfirmed):
		code = connect.CodeFailedPrecondition
	}
	return connect.NewError(code, err)
}
