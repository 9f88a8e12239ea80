package dto

import "time"

// ConversationSummary describes a thread in list and detail views; the
// message log itself travels separately.
type ConversationSummary struct {
	ID              string    `json:"id"`
	AdID            string    `json:"ad_id"`
	Participants    []string  `json:"participants"`
	PeerDisplayName string    `json:"peer_display_name,omitempty"`
	LastMessage     *Message  `json:"last_message,omitempty"`
	UnreadCount     int       `json:"unread_count"`
	IsSuspicious    bool      `json:"is_suspicious,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ConversationList is an ordered collection (most recently updated first).
type ConversationList struct {
	Items []ConversationSummary `json:"items"`
}

// Message contains a single message payload.
type Message struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
}

// Pagination mirrors the window the caller asked for.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// ConversationPage is the detail view: one window of the log in natural
// reading order plus the summary of its thread.
type ConversationPage struct {
	Conversation ConversationSummary `json:"conversation"`
	Messages     []Message           `json:"messages"`
	Pagination   Pagination          `json:"pagination"`
}
