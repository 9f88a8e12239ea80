package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"adboard/internal/domain/shared/events"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrNotParticipant       = errors.New("chat: requester is not a participant")
	ErrEmptyContent         = errors.New("chat: message content required")
	ErrAdRequired           = errors.New("chat: ad id required")
	ErrParticipantRequired  = errors.New("chat: participant id required")
	ErrSameParticipant      = errors.New("chat: participants must be distinct")

	// ErrConversationExists signals a resolve-or-create race: another
	// request already inserted the row for the same (ad, pair) key.
	ErrConversationExists = errors.New("chat: conversation already exists")
	// ErrConcurrentUpdate signals a lost version-checked save; callers
	// re-fetch and re-apply.
	ErrConcurrentUpdate = errors.New("chat: concurrent update detected")
)

type ConversationID string

// DefaultPageLimit matches the page size the web client requests.
const DefaultPageLimit = 50

// Conversation is the two-participant, single-ad thread aggregate. The
// message log is embedded and append-only; LastMessage mirrors the tail
// of the log and moves only inside Append.
type Conversation struct {
	ID                ConversationID
	AdID              string
	Participants      [2]string
	Messages          []Message
	LastMessage       *Message
	IsActive          bool
	IsSuspicious      bool
	SuspiciousReasons []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
	events.EventRecorder
}

// Repository persists conversation aggregates.
type Repository interface {
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// ByKey resolves the normalized (ad, sorted pair) identity.
	ByKey(ctx context.Context, adID, pairKey string) (*Conversation, error)
	// Insert stores a new aggregate; ErrConversationExists when the
	// normalized key is already taken.
	Insert(ctx context.Context, conv *Conversation) error
	// Save replaces the aggregate if Version still matches, bumping it;
	// ErrConcurrentUpdate otherwise.
	Save(ctx context.Context, conv *Conversation) error
	ListByParticipant(ctx context.Context, userID string) ([]*Conversation, error)
}

// PairKey normalizes an unordered participant pair into the identity key
// used for resolve-or-create uniqueness.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "|" + pair[1]
}

type CreateParams struct {
	ID           ConversationID
	AdID         string
	ParticipantA string
	ParticipantB string
	Now          time.Time
}

func NewConversation(params CreateParams) (*Conversation, error) {
	adID := strings.TrimSpace(params.AdID)
	a := strings.TrimSpace(params.ParticipantA)
	b := strings.TrimSpace(params.ParticipantB)
	if adID == "" {
		return nil, ErrAdRequired
	}
	if a == "" || b == "" {
		return nil, ErrParticipantRequired
	}
	if a == b {
		return nil, ErrSameParticipant
	}
	now := params.Now.UTC()
	c := &Conversation{
		ID:           params.ID,
		AdID:         adID,
		Participants: [2]string{a, b},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Record(ConversationStarted{ConversationID: c.ID, AdID: adID, Participants: c.Participants, At: now})
	return c, nil
}

// Key returns the normalized pair key of this conversation.
func (c *Conversation) Key() string {
	return PairKey(c.Participants[0], c.Participants[1])
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.Participants[0] == userID || c.Participants[1] == userID)
}

// Peer returns the other side of the pair.
func (c *Conversation) Peer(userID string) (string, error) {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1], nil
	case c.Participants[1]:
		return c.Participants[0], nil
	default:
		return "", ErrNotParticipant
	}
}

type AppendParams struct {
	MessageID MessageID
	SenderID  string
	Content   string
	Type      MessageType
	Now       time.Time
}

// Append adds a message to the log, refreshes LastMessage and bumps
// UpdatedAt as one unit. Seq is derived from the current tail so two
// committed appends can never share an order slot.
func (c *Conversation) Append(params AppendParams) (Message, error) {
	if !c.HasParticipant(params.SenderID) {
		return Message{}, ErrNotParticipant
	}
	if strings.TrimSpace(params.Content) == "" {
		return Message{}, ErrEmptyContent
	}
	kind := params.Type
	if kind == "" {
		kind = TypeText
	}
	if _, err := ParseMessageType(string(kind)); err != nil {
		return Message{}, err
	}
	now := params.Now.UTC()
	msg := Message{
		ID:        params.MessageID,
		Seq:       c.nextSeq(),
		SenderID:  params.SenderID,
		Content:   params.Content,
		Type:      kind,
		Timestamp: now,
	}
	c.Messages = append(c.Messages, msg)
	last := msg
	c.LastMessage = &last
	c.UpdatedAt = now
	recipient, _ := c.Peer(params.SenderID)
	c.Record(MessageAppended{
		ConversationID: c.ID,
		MessageID:      msg.ID,
		Seq:            msg.Seq,
		AdID:           c.AdID,
		SenderID:       msg.SenderID,
		RecipientID:    recipient,
		At:             now,
	})
	return msg, nil
}

func (c *Conversation) nextSeq() int64 {
	if len(c.Messages) == 0 {
		return 1
	}
	return c.Messages[len(c.Messages)-1].Seq + 1
}

// MarkReadBy flips every unread message from the other participant to
// read and reports how many transitions happened. Own messages and
// already-read messages are untouched; the flip is one-way.
func (c *Conversation) MarkReadBy(readerID string) (int, error) {
	if !c.HasParticipant(readerID) {
		return 0, ErrNotParticipant
	}
	flipped := 0
	for i := range c.Messages {
		if c.Messages[i].SenderID != readerID && !c.Messages[i].IsRead {
			c.Messages[i].IsRead = true
			flipped++
		}
	}
	if flipped > 0 && c.LastMessage != nil && c.LastMessage.SenderID != readerID {
		c.LastMessage.IsRead = true
	}
	return flipped, nil
}

// UnreadCountFor counts messages awaiting the given participant.
func (c *Conversation) UnreadCountFor(userID string) int {
	count := 0
	for i := range c.Messages {
		if c.Messages[i].SenderID != userID && !c.Messages[i].IsRead {
			count++
		}
	}
	return count
}

func (c *Conversation) HasUnreadFor(userID string) bool {
	for i := range c.Messages {
		if c.Messages[i].SenderID != userID && !c.Messages[i].IsRead {
			return true
		}
	}
	return false
}

// FlagSuspicious sets the moderation flag. The transition is one-way and
// idempotent; re-flagging only accumulates new reasons.
func (c *Conversation) FlagSuspicious(requesterID, reason string) error {
	if !c.HasParticipant(requesterID) {
		return ErrNotParticipant
	}
	if !c.IsSuspicious {
		c.IsSuspicious = true
		c.Record(ConversationFlagged{ConversationID: c.ID, RequesterID: requesterID, Reason: reason, At: time.Now().UTC()})
	}
	reason = strings.TrimSpace(reason)
	if reason != "" && !containsString(c.SuspiciousReasons, reason) {
		c.SuspiciousReasons = append(c.SuspiciousReasons, reason)
	}
	return nil
}

// Deactivate hides the conversation from listing views. Applied to the
// whole record, as both participants' views read the same flag.
func (c *Conversation) Deactivate(requesterID string) error {
	if !c.HasParticipant(requesterID) {
		return ErrNotParticipant
	}
	c.IsActive = false
	return nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
