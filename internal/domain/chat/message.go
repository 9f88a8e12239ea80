package chat

import (
	"errors"
	"time"
)

var ErrInvalidMessageType = errors.New("chat: unknown message type")

type MessageID string

type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeLocation MessageType = "location"
	TypeContact  MessageType = "contact"
	TypeSystem   MessageType = "system"
)

// ParseMessageType resolves the wire value, defaulting empty input to text.
func ParseMessageType(raw string) (MessageType, error) {
	switch MessageType(raw) {
	case "":
		return TypeText, nil
	case TypeText, TypeImage, TypeLocation, TypeContact, TypeSystem:
		return MessageType(raw), nil
	default:
		return "", ErrInvalidMessageType
	}
}

// Message is one append-only entry in a conversation log. Ordering is
// defined by Seq, assigned at append time; Timestamp is informational.
type Message struct {
	ID        MessageID
	Seq       int64
	SenderID  string
	Content   string
	Type      MessageType
	Timestamp time.Time
	IsRead    bool
}
