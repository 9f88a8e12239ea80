package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"adboard/internal/app/commands"
	"adboard/internal/app/dto"
	"adboard/internal/app/uow"
	domainchat "adboard/internal/domain/chat"
)

const getMessagesKey = "chat.get_messages"

// GetMessagesCommand retrieves one page of a conversation log. It rides
// the command bus because retrieval mutates: opening the thread marks
// everything unread from the other side as read, across the whole log.
type GetMessagesCommand struct {
	ConversationID string
	RequesterID    string
	Page           int
	Limit          int
}

func (c GetMessagesCommand) Key() string { return getMessagesKey }

type GetMessagesResult struct {
	Page            dto.ConversationPage
	ReadTransitions int
}

type GetMessagesHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *GetMessagesHandler) Handle(ctx context.Context, cmd GetMessagesCommand) (*GetMessagesResult, error) {
	if strings.TrimSpace(cmd.ConversationID) == "" {
		return nil, domainchat.ErrConversationNotFound
	}
	scope, ctx, err := beginScope(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close(ctx)

	conv, err := scope.Conversations().ByID(ctx, domainchat.ConversationID(cmd.ConversationID))
	if err != nil {
		return nil, err
	}
	// Non-participants get NotFound, not PermissionDenied: thread
	// existence is not disclosed outside the pair.
	if !conv.HasParticipant(cmd.RequesterID) {
		return nil, domainchat.ErrConversationNotFound
	}

	flipped := 0
	for attempt := 0; ; attempt++ {
		flipped, err = conv.MarkReadBy(cmd.RequesterID)
		if err != nil {
			return nil, err
		}
		if flipped == 0 {
			break
		}
		err = scope.Conversations().Save(ctx, conv)
		if err == nil {
			break
		}
		if !errors.Is(err, domainchat.ErrConcurrentUpdate) || attempt+1 >= saveAttempts {
			return nil, err
		}
		conv, err = scope.Conversations().ByID(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
	}

	window, info := conv.Page(cmd.Page, cmd.Limit)
	if err := scope.Commit(ctx); err != nil {
		return nil, err
	}
	return &GetMessagesResult{
		Page: dto.ConversationPage{
			Conversation: mapSummary(conv, cmd.RequesterID),
			Messages:     mapMessages(window),
			Pagination: dto.Pagination{
				Page:    info.Page,
				Limit:   info.Limit,
				Total:   info.Total,
				HasNext: info.HasNext,
			},
		},
		ReadTransitions: flipped,
	}, nil
}

var _ commands.Handler[GetMessagesCommand, *GetMessagesResult] = (*GetMessagesHandler)(nil)
