package chat

import (
	"context"
	"errors"
	"strings"

	"adboard/internal/app/commands"
	"adboard/internal/app/outbox"
	"adboard/internal/app/uow"
	domainchat "adboard/internal/domain/chat"
)

const (
	flagSuspiciousKey = "chat.flag_suspicious"
	deactivateKey     = "chat.deactivate"
)

// FlagSuspiciousCommand marks a thread as suspected spam. One-way and
// repeat-safe.
type FlagSuspiciousCommand struct {
	ConversationID string
	RequesterID    string
	Reason         string
}

func (c FlagSuspiciousCommand) Key() string { return flagSuspiciousKey }

type FlagSuspiciousHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *FlagSuspiciousHandler) Handle(ctx context.Context, cmd FlagSuspiciousCommand) (struct{}, error) {
	err := h.mutate(ctx, cmd.ConversationID, func(conv *domainchat.Conversation) error {
		return conv.FlagSuspicious(cmd.RequesterID, cmd.Reason)
	})
	return struct{}{}, err
}

func (h *FlagSuspiciousHandler) mutate(ctx context.Context, conversationID string, apply func(*domainchat.Conversation) error) error {
	return mutateConversation(ctx, h.UoWFactory, h.Outbox, h.Encoder, conversationID, apply)
}

// DeactivateCommand soft-deletes a thread: it stays stored but drops out
// of every listing view.
type DeactivateCommand struct {
	ConversationID string
	RequesterID    string
}

func (c DeactivateCommand) Key() string { return deactivateKey }

type DeactivateHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *DeactivateHandler) Handle(ctx context.Context, cmd DeactivateCommand) (struct{}, error) {
	err := mutateConversation(ctx, h.UoWFactory, nil, nil, cmd.ConversationID, func(conv *domainchat.Conversation) error {
		return conv.Deactivate(cmd.RequesterID)
	})
	return struct{}{}, err
}

// mutateConversation is the shared load-mutate-save loop for the small
// flag commands, draining any recorded events into the outbox.
func mutateConversation(ctx context.Context, factory uow.UoWFactory, box outbox.Outbox, encoder outbox.EventEncoder, conversationID string, apply func(*domainchat.Conversation) error) error {
	if strings.TrimSpace(conversationID) == "" {
		return domainchat.ErrConversationNotFound
	}
	scope, ctx, err := beginScope(ctx, factory, uow.TxOptions{})
	if err != nil {
		return err
	}
	defer scope.Close(ctx)

	conv, err := scope.Conversations().ByID(ctx, domainchat.ConversationID(conversationID))
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		if err := apply(conv); err != nil {
			return err
		}
		err = scope.Conversations().Save(ctx, conv)
		if err == nil {
			break
		}
		if !errors.Is(err, domainchat.ErrConcurrentUpdate) || attempt+1 >= saveAttempts {
			return err
		}
		conv, err = scope.Conversations().ByID(ctx, conv.ID)
		if err != nil {
			return err
		}
	}

	recorded := conv.PendingEvents()
	conv.ClearEvents()
	if box != nil {
		enc := encoder
		if enc == nil {
			enc = outbox.JSONEventEncoder{}
		}
		if err := outbox.RecordDomainEvents(ctx, box, enc, recorded); err != nil {
			return err
		}
	}
	return scope.Commit(ctx)
}

var _ commands.Handler[FlagSuspiciousCommand, struct{}] = (*FlagSuspiciousHandler)(nil)
var _ commands.Handler[DeactivateCommand, struct{}] = (*DeactivateHandler)(nil)
