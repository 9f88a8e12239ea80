package policies

import (
	"context"
	"errors"
)

// ErrUserNotFound is shared by directory implementations.
var ErrUserNotFound = errors.New("policies: user not found")

// UserDirectory exposes the identity adapter: display metadata only,
// never used for identity comparison.
type UserDirectory interface {
	DisplayNameOf(ctx context.Context, userID string) (string, error)
	SetDisplayName(ctx context.Context, userID, name string) error
}
