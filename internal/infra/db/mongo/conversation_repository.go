package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "adboard/internal/domain/chat"
)

// ConversationRepository persists conversation aggregates as single
// documents with the message log embedded. The unique (ad_id, pair_key)
// index is what makes resolve-or-create race-safe: the losing insert
// hits a duplicate key and re-fetches the winner.
type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	col := db.Collection("chat_conversations")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "ad_id", Value: 1}, {Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	return &ConversationRepository{col: col}
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) ByKey(ctx context.Context, adID, pairKey string) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, bson.M{"ad_id": adID, "pair_key": pairKey}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) Insert(ctx context.Context, conv *domainchat.Conversation) error {
	doc := newConversationDocument(conv)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrConversationExists
		}
		return err
	}
	conv.Version = doc.Version
	return nil
}

func (r *ConversationRepository) Save(ctx context.Context, conv *domainchat.Conversation) error {
	doc := newConversationDocument(conv)
	filter := bson.M{"_id": doc.ID, "version": conv.Version}
	doc.Version = conv.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrConcurrentUpdate
	}
	conv.Version = doc.Version
	return nil
}

func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*domainchat.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domainchat.Conversation
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type conversationDocument struct {
	ID                string            `bson:"_id"`
	AdID              string            `bson:"ad_id"`
	PairKey           string            `bson:"pair_key"`
	Participants      []string          `bson:"participants"`
	Messages          []messageDocument `bson:"messages"`
	LastMessage       *messageDocument  `bson:"last_message,omitempty"`
	IsActive          bool              `bson:"is_active"`
	IsSuspicious      bool              `bson:"is_suspicious"`
	SuspiciousReasons []string          `bson:"suspicious_reasons,omitempty"`
	CreatedAt         int64             `bson:"created_at"`
	UpdatedAt         int64             `bson:"updated_at"`
	Version           int64             `bson:"version"`
}

type messageDocument struct {
	ID        string `bson:"id"`
	Seq       int64  `bson:"seq"`
	SenderID  string `bson:"sender_id"`
	Content   string `bson:"content"`
	Type      string `bson:"type"`
	Timestamp int64  `bson:"timestamp"`
	IsRead    bool   `bson:"is_read"`
}

func newConversationDocument(conv *domainchat.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:                string(conv.ID),
		AdID:              conv.AdID,
		PairKey:           conv.Key(),
		Participants:      []string{conv.Participants[0], conv.Participants[1]},
		Messages:          make([]messageDocument, 0, len(conv.Messages)),
		IsActive:          conv.IsActive,
		IsSuspicious:      conv.IsSuspicious,
		SuspiciousReasons: conv.SuspiciousReasons,
		CreatedAt:         conv.CreatedAt.UnixMilli(),
		UpdatedAt:         conv.UpdatedAt.UnixMilli(),
		Version:           conv.Version,
	}
	for i := range conv.Messages {
		doc.Messages = append(doc.Messages, newMessageDocument(conv.Messages[i]))
	}
	if conv.LastMessage != nil {
		last := newMessageDocument(*conv.LastMessage)
		doc.LastMessage = &last
	}
	return doc
}

func newMessageDocument(msg domainchat.Message) messageDocument {
	return messageDocument{
		ID:        string(msg.ID),
		Seq:       msg.Seq,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Type:      string(msg.Type),
		Timestamp: msg.Timestamp.UnixMilli(),
		IsRead:    msg.IsRead,
	}
}

func (d conversationDocument) toAggregate() *domainchat.Conversation {
	conv := &domainchat.Conversation{
		ID:                domainchat.ConversationID(d.ID),
		AdID:              d.AdID,
		Messages:          make([]domainchat.Message, 0, len(d.Messages)),
		IsActive:          d.IsActive,
		IsSuspicious:      d.IsSuspicious,
		SuspiciousReasons: d.SuspiciousReasons,
		CreatedAt:         timestampToTime(d.CreatedAt),
		UpdatedAt:         timestampToTime(d.UpdatedAt),
		Version:           d.Version,
	}
	if len(d.Participants) == 2 {
		conv.Participants = [2]string{d.Participants[0], d.Participants[1]}
	}
	for i := range d.Messages {
		conv.Messages = append(conv.Messages, d.Messages[i].toMessage())
	}
	if d.LastMessage != nil {
		last := d.LastMessage.toMessage()
		conv.LastMessage = &last
	}
	return conv
}

func (d messageDocument) toMessage() domainchat.Message {
	return domainchat.Message{
		ID:        domainchat.MessageID(d.ID),
		Seq:       d.Seq,
		SenderID:  d.SenderID,
		Content:   d.Content,
		Type:      domainchat.MessageType(d.Type),
		Timestamp: timestampToTime(d.Timestamp),
		IsRead:    d.IsRead,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainchat.Repository = (*ConversationRepository)(nil)
