package memory

import (
	"context"
	"sort"
	"sync"

	domainchat "adboard/internal/domain/chat"
)

// ConversationRepository keeps conversation aggregates in memory with
// the same uniqueness and versioning contract as the Mongo store, so
// dev mode and tests observe identical race behavior.
type ConversationRepository struct {
	mu    sync.RWMutex
	byID  map[domainchat.ConversationID]*domainchat.Conversation
	byKey map[string]domainchat.ConversationID
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		byID:  make(map[domainchat.ConversationID]*domainchat.Conversation),
		byKey: make(map[string]domainchat.ConversationID),
	}
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.byID[id]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (r *ConversationRepository) ByKey(ctx context.Context, adID, pairKey string) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[compositeKey(adID, pairKey)]
	if !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	return cloneConversation(r.byID[id]), nil
}

func (r *ConversationRepository) Insert(ctx context.Context, conv *domainchat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := compositeKey(conv.AdID, conv.Key())
	if _, taken := r.byKey[key]; taken {
		return domainchat.ErrConversationExists
	}
	if _, taken := r.byID[conv.ID]; taken {
		return domainchat.ErrConversationExists
	}
	stored := cloneConversation(conv)
	stored.Version = 1
	r.byID[stored.ID] = stored
	r.byKey[key] = stored.ID
	conv.Version = stored.Version
	return nil
}

func (r *ConversationRepository) Save(ctx context.Context, conv *domainchat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[conv.ID]
	if !ok {
		return domainchat.ErrConversationNotFound
	}
	if current.Version != conv.Version {
		return domainchat.ErrConcurrentUpdate
	}
	stored := cloneConversation(conv)
	stored.Version = conv.Version + 1
	r.byID[conv.ID] = stored
	conv.Version = stored.Version
	return nil
}

func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainchat.Conversation, 0)
	for _, conv := range r.byID {
		if conv.HasParticipant(userID) {
			out = append(out, cloneConversation(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func compositeKey(adID, pairKey string) string {
	return adID + "/" + pairKey
}

func cloneConversation(conv *domainchat.Conversation) *domainchat.Conversation {
	dup := &domainchat.Conversation{
		ID:           conv.ID,
		AdID:         conv.AdID,
		Participants: conv.Participants,
		Messages:     append([]domainchat.Message(nil), conv.Messages...),
		IsActive:     conv.IsActive,
		IsSuspicious: conv.IsSuspicious,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		Version:      conv.Version,
	}
	if len(conv.SuspiciousReasons) > 0 {
		dup.SuspiciousReasons = append([]string(nil), conv.SuspiciousReasons...)
	}
	if conv.LastMessage != nil {
		last := *conv.LastMessage
		dup.LastMessage = &last
	}
	return dup
}

var _ domainchat.Repository = (*ConversationRepository)(nil)
