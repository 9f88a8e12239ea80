package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"adboard/internal/app/commands"
	"adboard/internal/app/middleware"
	appoutbox "adboard/internal/app/outbox"
	"adboard/internal/app/policies"
	domainchat "adboard/internal/domain/chat"
	"adboard/internal/infra/notify"
	"adboard/internal/infra/storage/memory"
)

type captureNotifier struct {
	notices []policies.NewMessageNotice
}

func (n *captureNotifier) MessageAppended(_ context.Context, notice policies.NewMessageNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

// newChainedBus wires the full command pipeline the way the service
// does: idempotency, transaction boundary, outbox flush into the relay.
func newChainedBus(t *testing.T, env *testEnv, notifier policies.Notifier) commands.Bus {
	t.Helper()
	relay := &notify.Relay{Notifier: notifier}
	env.outbox.Dispatch = relay.HandleRecord
	factory := memory.Factory{ConversationsRepo: env.repo}

	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, SendMessageCommand{}.Key(), &SendMessageHandler{
		UoWFactory: factory,
		Outbox:     env.outbox,
	})
	return middleware.ChainCommands(
		bus,
		middleware.Idempotency(memory.NewIdempotencyStore(), nil),
		middleware.Transaction(factory, nil),
		middleware.OutboxFlush(env.outbox),
	)
}

func TestPipeline_DuplicateKeyReplaysStoredResult(t *testing.T) {
	env := newTestEnv(t)
	bus := newChainedBus(t, env, &captureNotifier{})

	cmd := SendMessageCommand{
		AdID: "ad-1", RecipientID: "bob", SenderID: "alice",
		Content: "hello", IdempotencyKeyV: "req-1",
	}
	first, err := commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, cmd)
	require.NoError(t, err)

	second, err := commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)
	require.Equal(t, first.Message.ID, second.Message.ID)

	// The retry was served from the idempotency record, not re-executed.
	conv, err := env.repo.ByID(context.Background(), domainchat.ConversationID(first.ConversationID))
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
}

func TestPipeline_DistinctKeysAppendSeparately(t *testing.T) {
	env := newTestEnv(t)
	bus := newChainedBus(t, env, &captureNotifier{})

	base := SendMessageCommand{AdID: "ad-1", RecipientID: "bob", SenderID: "alice", Content: "hello"}

	first := base
	first.IdempotencyKeyV = "req-1"
	result, err := commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, first)
	require.NoError(t, err)

	second := base
	second.IdempotencyKeyV = "req-2"
	_, err = commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, second)
	require.NoError(t, err)

	conv, err := env.repo.ByID(context.Background(), domainchat.ConversationID(result.ConversationID))
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
}

func TestPipeline_NotifierFiresAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	notifier := &captureNotifier{}
	bus := newChainedBus(t, env, notifier)

	result, err := commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, SendMessageCommand{
		AdID: "ad-1", RecipientID: "bob", SenderID: "alice", Content: "hello",
	})
	require.NoError(t, err)

	require.Len(t, notifier.notices, 1)
	require.Equal(t, result.ConversationID, notifier.notices[0].ConversationID)
	require.Equal(t, "alice", notifier.notices[0].SenderID)
	require.Equal(t, "bob", notifier.notices[0].RecipientID)
	require.Empty(t, env.outbox.Pending())
}

func TestPipeline_FailedCommandEmitsNothing(t *testing.T) {
	env := newTestEnv(t)
	notifier := &captureNotifier{}
	bus := newChainedBus(t, env, notifier)

	_, err := commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, SendMessageCommand{
		AdID: "ad-1", RecipientID: "bob", SenderID: "alice", Content: "   ",
	})
	require.ErrorIs(t, err, domainchat.ErrEmptyContent)
	require.Empty(t, notifier.notices)
	require.Empty(t, env.outbox.Pending())
}

var _ appoutbox.Outbox = (*memory.Outbox)(nil)
