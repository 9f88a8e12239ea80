package policies

import (
	"context"
	"time"
)

// NewMessageNotice is what the delivery side needs to alert the offline
// participant about an appended message.
type NewMessageNotice struct {
	ConversationID string
	MessageID      string
	AdID           string
	SenderID       string
	RecipientID    string
	At             time.Time
}

// Notifier is the fire-and-forget hook into the external notification
// system; failures are logged, never surfaced to senders.
type Notifier interface {
	MessageAppended(ctx context.Context, notice NewMessageNotice) error
}
