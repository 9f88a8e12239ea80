package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	appoutbox "adboard/internal/app/outbox"
	"adboard/internal/app/policies"
	domainchat "adboard/internal/domain/chat"
)

// Relay consumes chat events off the broker and hands new-message
// notices to the notifier port. Delivery is at-least-once and
// fire-and-forget: notifier failures are logged, never replayed against
// the conversation store.
type Relay struct {
	Notifier policies.Notifier
	Logger   *slog.Logger
}

type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type messageAppendedData struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	AdID           string    `json:"ad_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	At             time.Time `json:"at"`
}

func (r *Relay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		r.log().Warn("undecodable chat event dropped", "topic", msg.Topic, "error", err)
		return nil
	}
	if envelope.Type != domainchat.EventMessageAppended+".v1" {
		return nil
	}
	var data messageAppendedData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		r.log().Warn("malformed message_appended payload dropped", "error", err)
		return nil
	}
	if r.Notifier == nil {
		return nil
	}
	notice := policies.NewMessageNotice{
		ConversationID: data.ConversationID,
		MessageID:      data.MessageID,
		AdID:           data.AdID,
		SenderID:       data.SenderID,
		RecipientID:    data.RecipientID,
		At:             data.At,
	}
	if err := r.Notifier.MessageAppended(ctx, notice); err != nil {
		r.log().Error("notifier delivery failed", "conversation_id", data.ConversationID, "recipient_id", data.RecipientID, "error", err)
	}
	return nil
}

// HandleRecord delivers straight from an outbox record, bypassing the
// broker. Used by the in-memory setup where Flush dispatches inline.
func (r *Relay) HandleRecord(ctx context.Context, record appoutbox.EventRecord) error {
	if record.Name != domainchat.EventMessageAppended || r.Notifier == nil {
		return nil
	}
	var data messageAppendedData
	if err := json.Unmarshal(record.Payload, &data); err != nil {
		r.log().Warn("malformed message_appended payload dropped", "error", err)
		return nil
	}
	notice := policies.NewMessageNotice{
		ConversationID: data.ConversationID,
		MessageID:      data.MessageID,
		AdID:           data.AdID,
		SenderID:       data.SenderID,
		RecipientID:    data.RecipientID,
		At:             data.At,
	}
	if err := r.Notifier.MessageAppended(ctx, notice); err != nil {
		r.log().Error("notifier delivery failed", "conversation_id", data.ConversationID, "recipient_id", data.RecipientID, "error", err)
	}
	return nil
}

func (r *Relay) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// LogNotifier is the default notifier: it records the notice and leaves
// real delivery (push/SMS/email) to the external system.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) MessageAppended(ctx context.Context, notice policies.NewMessageNotice) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("new chat message",
		"conversation_id", notice.ConversationID,
		"message_id", notice.MessageID,
		"recipient_id", notice.RecipientID,
		"sender_id", notice.SenderID,
	)
	return nil
}

var _ policies.Notifier = LogNotifier{}
