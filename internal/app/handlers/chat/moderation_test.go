package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domainchat "adboard/internal/domain/chat"
	"adboard/internal/infra/storage/memory"
)

func TestFlagSuspicious_AccumulatesReasons(t *testing.T) {
	env := newTestEnv(t)
	created := env.mustSend(t, SendMessageCommand{AdID: "ad-1", RecipientID: "bob", SenderID: "alice", Content: "hi"})
	flag := &FlagSuspiciousHandler{
		UoWFactory: memory.Factory{ConversationsRepo: env.repo},
		Outbox:     env.outbox,
	}

	_, err := flag.Handle(context.Background(), FlagSuspiciousCommand{
		ConversationID: created.ConversationID, RequesterID: "bob", Reason: "spam link",
	})
	require.NoError(t, err)
	_, err = flag.Handle(context.Background(), FlagSuspiciousCommand{
		ConversationID: created.ConversationID, RequesterID: "alice", Reason: "phishing",
	})
	require.NoError(t, err)
	_, err = flag.Handle(context.Background(), FlagSuspiciousCommand{
		ConversationID: created.ConversationID, RequesterID: "alice", Reason: "phishing",
	})
	require.NoError(t, err)

	conv, err := env.repo.ByID(context.Background(), domainchat.ConversationID(created.ConversationID))
	require.NoError(t, err)
	require.True(t, conv.IsSuspicious)
	require.Equal(t, []string{"spam link", "phishing"}, conv.SuspiciousReasons)

	flaggedEvents := 0
	for _, rec := range env.outbox.Pending() {
		if rec.Name == domainchat.EventConversationFlagged {
			flaggedEvents++
		}
	}
	require.Equal(t, 1, flaggedEvents)
}

func TestFlagSuspicious_RequiresParticipant(t *testing.T) {
	env := newTestEnv(t)
	created := env.mustSend(t, SendMessageCommand{AdID: "ad-1", RecipientID: "bob", SenderID: "alice", Content: "hi"})
	flag := &FlagSuspiciousHandler{UoWFactory: memory.Factory{ConversationsRepo: env.repo}}

	_, err := flag.Handle(context.Background(), FlagSuspiciousCommand{
		ConversationID: created.ConversationID, RequesterID: "mallory", Reason: "x",
	})
	require.ErrorIs(t, err, domainchat.ErrNotParticipant)

	_, err = flag.Handle(context.Background(), FlagSuspiciousCommand{
		ConversationID: "missing", RequesterID: "alice",
	})
	require.ErrorIs(t, err, domainchat.ErrConversationNotFound)

	_, err = flag.Handle(context.Background(), FlagSuspiciousCommand{RequesterID: "alice"})
	require.ErrorIs(t, err, domainchat.ErrConversationNotFound)
}

func TestDeactivate_KeepsRecordButHidesIt(t *testing.T) {
	env := newTestEnv(t)
	created := env.mustSend(t, SendMessageCommand{AdID: "ad-1", RecipientID: "bob", SenderID: "alice", Content: "hi"})
	deactivate := &DeactivateHandler{UoWFactory: memory.Factory{ConversationsRepo: env.repo}}

	_, err := deactivate.Handle(context.Background(), DeactivateCommand{
		ConversationID: created.ConversationID, RequesterID: "mallory",
	})
	require.ErrorIs(t, err, domainchat.ErrNotParticipant)

	_, err = deactivate.Handle(context.Background(), DeactivateCommand{
		ConversationID: created.ConversationID, RequesterID: "bob",
	})
	require.NoError(t, err)

	// Soft delete: the record survives with its log intact.
	conv, err := env.repo.ByID(context.Background(), domainchat.ConversationID(created.ConversationID))
	require.NoError(t, err)
	require.False(t, conv.IsActive)
	require.Len(t, conv.Messages, 1)
}

func TestSetDisplayName(t *testing.T) {
	dir := &mockDirectory{}
	handler := &SetDisplayNameHandler{Directory: dir}

	result, err := handler.Handle(context.Background(), SetDisplayNameCommand{
		UserID: "alice", DisplayName: "  Alice M.  ",
	})
	require.NoError(t, err)
	require.Equal(t, "Alice M.", result.DisplayName)
	require.Equal(t, "Alice M.", dir.names["alice"])

	_, err = handler.Handle(context.Background(), SetDisplayNameCommand{UserID: "alice", DisplayName: "   "})
	require.ErrorIs(t, err, ErrDisplayNameRequired)
}
