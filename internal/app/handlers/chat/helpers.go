package chat

import (
	"context"

	"adboard/internal/app/dto"
	"adboard/internal/app/uow"
	domainchat "adboard/internal/domain/chat"
)

// unitScope wraps the load-mutate-save boundary shared by every chat
// handler: reuse a unit of work injected by the transaction middleware,
// or begin (and own) one when dispatched without it.
type unitScope struct {
	unit      uow.UnitOfWork
	managed   bool
	committed bool
}

func beginScope(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (*unitScope, context.Context, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &unitScope{unit: unit}, ctx, nil
	}
	if factory == nil {
		return nil, ctx, ErrUnitOfWorkRequired
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	return &unitScope{unit: unit, managed: true}, uow.ContextWithUnitOfWork(ctx, unit), nil
}

func (s *unitScope) Conversations() domainchat.Repository {
	return s.unit.Conversations()
}

// Close rolls back an owned, uncommitted scope. No-op otherwise.
func (s *unitScope) Close(ctx context.Context) {
	if s.managed && !s.committed {
		_ = s.unit.Rollback(ctx)
	}
}

// Commit finishes an owned scope; scopes managed by middleware commit
// there instead.
func (s *unitScope) Commit(ctx context.Context) error {
	if !s.managed {
		return nil
	}
	if err := s.unit.Commit(ctx); err != nil {
		return err
	}
	s.committed = true
	return nil
}

func mapMessage(msg domainchat.Message) dto.Message {
	return dto.Message{
		ID:        string(msg.ID),
		Seq:       msg.Seq,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Type:      string(msg.Type),
		Timestamp: msg.Timestamp,
		IsRead:    msg.IsRead,
	}
}

func mapMessages(msgs []domainchat.Message) []dto.Message {
	out := make([]dto.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, mapMessage(m))
	}
	return out
}

// mapSummary renders a conversation for the given requester; the peer
// display name is filled in separately by the list handler.
func mapSummary(conv *domainchat.Conversation, requesterID string) dto.ConversationSummary {
	summary := dto.ConversationSummary{
		ID:           string(conv.ID),
		AdID:         conv.AdID,
		Participants: []string{conv.Participants[0], conv.Participants[1]},
		UnreadCount:  conv.UnreadCountFor(requesterID),
		IsSuspicious: conv.IsSuspicious,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
	if conv.LastMessage != nil {
		last := mapMessage(*conv.LastMessage)
		summary.LastMessage = &last
	}
	return summary
}
