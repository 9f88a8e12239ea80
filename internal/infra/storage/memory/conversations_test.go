package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainchat "adboard/internal/domain/chat"
)

func newStoredConversation(t *testing.T, repo *ConversationRepository, id, adID, a, b string) *domainchat.Conversation {
	t.Helper()
	conv, err := domainchat.NewConversation(domainchat.CreateParams{
		ID:           domainchat.ConversationID(id),
		AdID:         adID,
		ParticipantA: a,
		ParticipantB: b,
		Now:          time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), conv))
	return conv
}

func TestInsert_EnforcesPairUniqueness(t *testing.T) {
	repo := NewConversationRepository()
	newStoredConversation(t, repo, "conv-1", "ad-1", "alice", "bob")

	// Same ad and pair, reversed order: same identity.
	dup, err := domainchat.NewConversation(domainchat.CreateParams{
		ID: "conv-2", AdID: "ad-1", ParticipantA: "bob", ParticipantB: "alice", Now: time.Now(),
	})
	require.NoError(t, err)
	require.ErrorIs(t, repo.Insert(context.Background(), dup), domainchat.ErrConversationExists)

	// A different ad gives the pair a fresh thread.
	other, err := domainchat.NewConversation(domainchat.CreateParams{
		ID: "conv-3", AdID: "ad-2", ParticipantA: "alice", ParticipantB: "bob", Now: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), other))
}

func TestByKey_ResolvesNormalizedPair(t *testing.T) {
	repo := NewConversationRepository()
	stored := newStoredConversation(t, repo, "conv-1", "ad-1", "alice", "bob")

	found, err := repo.ByKey(context.Background(), "ad-1", domainchat.PairKey("bob", "alice"))
	require.NoError(t, err)
	require.Equal(t, stored.ID, found.ID)

	_, err = repo.ByKey(context.Background(), "ad-9", domainchat.PairKey("alice", "bob"))
	require.ErrorIs(t, err, domainchat.ErrConversationNotFound)
}

func TestSave_DetectsVersionConflict(t *testing.T) {
	repo := NewConversationRepository()
	newStoredConversation(t, repo, "conv-1", "ad-1", "alice", "bob")

	first, err := repo.ByID(context.Background(), "conv-1")
	require.NoError(t, err)
	second, err := repo.ByID(context.Background(), "conv-1")
	require.NoError(t, err)

	_, err = first.Append(domainchat.AppendParams{MessageID: "m1", SenderID: "alice", Content: "hi", Now: time.Now()})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), first))

	_, err = second.Append(domainchat.AppendParams{MessageID: "m2", SenderID: "bob", Content: "yo", Now: time.Now()})
	require.NoError(t, err)
	require.ErrorIs(t, repo.Save(context.Background(), second), domainchat.ErrConcurrentUpdate)

	// Re-fetch and re-apply wins the retry.
	fresh, err := repo.ByID(context.Background(), "conv-1")
	require.NoError(t, err)
	_, err = fresh.Append(domainchat.AppendParams{MessageID: "m2", SenderID: "bob", Content: "yo", Now: time.Now()})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), fresh))

	final, err := repo.ByID(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, final.Messages, 2)
}

func TestByID_ReturnsIsolatedCopies(t *testing.T) {
	repo := NewConversationRepository()
	newStoredConversation(t, repo, "conv-1", "ad-1", "alice", "bob")

	copy1, err := repo.ByID(context.Background(), "conv-1")
	require.NoError(t, err)
	_, err = copy1.Append(domainchat.AppendParams{MessageID: "m1", SenderID: "alice", Content: "hi", Now: time.Now()})
	require.NoError(t, err)

	copy2, err := repo.ByID(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Empty(t, copy2.Messages)
}

func TestListByParticipant_SortsByRecency(t *testing.T) {
	repo := NewConversationRepository()
	older := newStoredConversation(t, repo, "conv-1", "ad-1", "alice", "bob")
	newer := newStoredConversation(t, repo, "conv-2", "ad-2", "alice", "carol")
	newStoredConversation(t, repo, "conv-3", "ad-3", "bob", "carol")

	_, err := newer.Append(domainchat.AppendParams{MessageID: "m1", SenderID: "carol", Content: "hi", Now: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), newer))

	list, err := repo.ListByParticipant(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Equal(t, older.ID, list[1].ID)
}
