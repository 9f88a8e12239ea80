package uow

import (
	"context"

	domainchat "adboard/internal/domain/chat"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Conversations() domainchat.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
