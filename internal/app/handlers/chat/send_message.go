package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"adboard/internal/app/commands"
	"adboard/internal/app/dto"
	"adboard/internal/app/middleware"
	"adboard/internal/app/outbox"
	"adboard/internal/app/uow"
	domainchat "adboard/internal/domain/chat"
)

const sendMessageKey = "chat.send_message"

// saveAttempts bounds the optimistic-concurrency retry loop; a lost race
// re-fetches the aggregate and re-applies the mutation.
const saveAttempts = 3

// SendMessageCommand appends a message. When ConversationID is empty the
// thread is resolved (or lazily created) from AdID and RecipientID.
type SendMessageCommand struct {
	ConversationID  string
	AdID            string
	RecipientID     string
	SenderID        string
	Content         string
	Type            string
	IdempotencyKeyV string
}

func (c SendMessageCommand) Key() string { return sendMessageKey }

func (c SendMessageCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c SendMessageCommand) ResultPrototype() any { return &SendMessageResult{} }

type SendMessageResult struct {
	ConversationID string      `json:"conversation_id"`
	Message        dto.Message `json:"message"`
}

type SendMessageHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

var ErrUnitOfWorkRequired = errors.New("chat: unit of work required")

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (*SendMessageResult, error) {
	scope, ctx, err := beginScope(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer scope.Close(ctx)

	if strings.TrimSpace(cmd.Content) == "" {
		return nil, domainchat.ErrEmptyContent
	}
	kind, err := domainchat.ParseMessageType(cmd.Type)
	if err != nil {
		return nil, err
	}
	now := h.now()

	conv, err := h.resolveConversation(ctx, scope.Conversations(), cmd, now)
	if err != nil {
		return nil, err
	}
	// Creation events are durable once Insert succeeded; stash them so a
	// save-conflict re-fetch cannot drop them.
	recorded := conv.PendingEvents()
	conv.ClearEvents()

	var msg domainchat.Message
	for attempt := 0; ; attempt++ {
		msg, err = conv.Append(domainchat.AppendParams{
			MessageID: domainchat.MessageID(uuid.NewString()),
			SenderID:  cmd.SenderID,
			Content:   cmd.Content,
			Type:      kind,
			Now:       now,
		})
		if err != nil {
			return nil, err
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

	recorded = append(recorded, conv.PendingEvents()...)
	conv.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), recorded); err != nil {
		return nil, err
	}

	if err := scope.Commit(ctx); err != nil {
		return nil, err
	}
	return &SendMessageResult{
		ConversationID: string(conv.ID),
		Message:        mapMessage(msg),
	}, nil
}

// resolveConversation returns the existing thread or creates it for the
// normalized (ad, pair) key. A create that loses the uniqueness race
// re-fetches and returns the winning row.
func (h *SendMessageHandler) resolveConversation(ctx context.Context, repo domainchat.Repository, cmd SendMessageCommand, now time.Time) (*domainchat.Conversation, error) {
	if id := strings.TrimSpace(cmd.ConversationID); id != "" {
		conv, err := repo.ByID(ctx, domainchat.ConversationID(id))
		if err != nil {
			return nil, err
		}
		if !conv.HasParticipant(cmd.SenderID) {
			return nil, domainchat.ErrNotParticipant
		}
		return conv, nil
	}

	adID := strings.TrimSpace(cmd.AdID)
	recipient := strings.TrimSpace(cmd.RecipientID)
	if adID == "" {
		return nil, domainchat.ErrAdRequired
	}
	if recipient == "" {
		return nil, domainchat.ErrParticipantRequired
	}
	key := domainchat.PairKey(cmd.SenderID, recipient)
	conv, err := repo.ByKey(ctx, adID, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domainchat.ErrConversationNotFound) {
		return nil, err
	}

	conv, err = domainchat.NewConversation(domainchat.CreateParams{
		ID:           domainchat.ConversationID(uuid.NewString()),
		AdID:         adID,
		ParticipantA: cmd.SenderID,
		ParticipantB: recipient,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.Insert(ctx, conv); err != nil {
		if errors.Is(err, domainchat.ErrConversationExists) {
			return repo.ByKey(ctx, adID, key)
		}
		return nil, err
	}
	return conv, nil
}

func (h *SendMessageHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *SendMessageHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[SendMessageCommand, *SendMessageResult] = (*SendMessageHandler)(nil)
var _ middleware.IdempotentCommand = (*SendMessageCommand)(nil)
