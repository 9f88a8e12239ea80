package memory

import (
	"context"
	"errors"

	"adboard/internal/app/uow"
	domainchat "adboard/internal/domain/chat"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ConversationsRepo domainchat.Repository
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight transaction boundary. No isolation is
// provided but the abstraction matches the application ports.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ConversationsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{conversations: f.ConversationsRepo}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	conversations domainchat.Repository
}

func (u *Unit) Conversations() domainchat.Repository {
	return u.conversations
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
