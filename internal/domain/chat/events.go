package chat

import "time"

const (
	EventConversationStarted = "chat.conversation_started"
	EventMessageAppended     = "chat.message_appended"
	EventConversationFlagged = "chat.conversation_flagged"
)

type ConversationStarted struct {
	ConversationID ConversationID `json:"conversation_id"`
	AdID           string         `json:"ad_id"`
	Participants   [2]string      `json:"participants"`
	At             time.Time      `json:"at"`
}

func (e ConversationStarted) EventName() string     { return EventConversationStarted }
func (e ConversationStarted) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationStarted) OccurredAt() time.Time { return e.At }

// MessageAppended is the notifier hook: it carries enough for the
// delivery side to alert the recipient without re-reading the log.
type MessageAppended struct {
	ConversationID ConversationID `json:"conversation_id"`
	MessageID      MessageID      `json:"message_id"`
	Seq            int64          `json:"seq"`
	AdID           string         `json:"ad_id"`
	SenderID       string         `json:"sender_id"`
	RecipientID    string         `json:"recipient_id"`
	At             time.Time      `json:"at"`
}

func (e MessageAppended) EventName() string     { return EventMessageAppended }
func (e MessageAppended) AggregateID() string   { return string(e.ConversationID) }
func (e MessageAppended) OccurredAt() time.Time { return e.At }

type ConversationFlagged struct {
	ConversationID ConversationID `json:"conversation_id"`
	RequesterID    string         `json:"requester_id"`
	Reason         string         `json:"reason,omitempty"`
	At             time.Time      `json:"at"`
}

func (e ConversationFlagged) EventName() string     { return EventConversationFlagged }
func (e ConversationFlagged) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationFlagged) OccurredAt() time.Time { return e.At }
