package auth

import (
	"context"
	"errors"
	"testing"
)

func TestRequirePrincipal(t *testing.T) {
	if _, err := RequirePrincipal(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	if _, err := RequirePrincipal(WithPrincipal(context.Background(), "")); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty principal should be unauthenticated, got %v", err)
	}

	id, err := RequirePrincipal(WithPrincipal(context.Background(), "user-1"))
	if err != nil || id != "user-1" {
		t.Errorf("got %q, %v", id, err)
	}
}
