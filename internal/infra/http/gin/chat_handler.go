package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"adboard/internal/app/commands"
	"adboard/internal/app/dto"
	ChatApp "adboard/internal/app/handlers/chat"
	"adboard/internal/app/policies"
	"adboard/internal/app/queries"
	domainchat "adboard/internal/domain/chat"
)

// ChatHTTP exposes the marketplace chat endpoints.
type ChatHTTP interface {
	SendMessage(c *gin.Context)
	ListConversations(c *gin.Context)
	GetConversation(c *gin.Context)
	FlagSuspicious(c *gin.Context)
	Deactivate(c *gin.Context)
	SetDisplayName(c *gin.Context)
}

type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	AdID           string `json:"ad_id"`
	RecipientID    string `json:"recipient_id"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

// SendMessage appends to an existing thread, or resolves one from
// (ad, recipient) when conversation_id is omitted.
func (h ChatHandler) SendMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := ChatApp.SendMessageCommand{
		ConversationID:  req.ConversationID,
		AdID:            req.AdID,
		RecipientID:     req.RecipientID,
		SenderID:        user.ID,
		Content:         req.Content,
		Type:            req.Type,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[ChatApp.SendMessageCommand, *ChatApp.SendMessageResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.respondChatError(c, err, "send message", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListConversations returns the requester's active threads, filtered by
// the view query parameter.
func (h ChatHandler) ListConversations(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
		return
	}
	filter, err := ChatApp.ParseFilter(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown filter"})
		return
	}
	query := ChatApp.ListConversationsQuery{RequesterID: user.ID, Filter: filter}
	result, err := queries.Ask[ChatApp.ListConversationsQuery, dto.ConversationList](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.respondChatError(c, err, "list conversations", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetConversation returns one message page. Opening the page marks the
// peer's unread messages as read.
func (h ChatHandler) GetConversation(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
		return
	}
	cmd := ChatApp.GetMessagesCommand{
		ConversationID: c.Param("id"),
		RequesterID:    user.ID,
		Page:           parsePositiveInt(c.Query("page"), 1),
		Limit:          parsePositiveInt(c.Query("limit"), domainchat.DefaultPageLimit),
	}
	result, err := commands.Dispatch[ChatApp.GetMessagesCommand, *ChatApp.GetMessagesResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.respondChatError(c, err, "get conversation", "conversation_id", cmd.ConversationID, "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, result.Page)
}

type flagSuspiciousRequest struct {
	Reason string `json:"reason"`
}

func (h ChatHandler) FlagSuspicious(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
		return
	}
	var req flagSuspiciousRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := ChatApp.FlagSuspiciousCommand{
		ConversationID: c.Param("id"),
		RequesterID:    user.ID,
		Reason:         req.Reason,
	}
	if _, err := commands.Dispatch[ChatApp.FlagSuspiciousCommand, struct{}](c.Request.Context(), h.Commands, cmd); err != nil {
		h.respondChatError(c, err, "flag suspicious", "conversation_id", cmd.ConversationID, "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "flagged"})
}

func (h ChatHandler) Deactivate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
		return
	}
	cmd := ChatApp.DeactivateCommand{
		ConversationID: c.Param("id"),
		RequesterID:    user.ID,
	}
	if _, err := commands.Dispatch[ChatApp.DeactivateCommand, struct{}](c.Request.Context(), h.Commands, cmd); err != nil {
		h.respondChatError(c, err, "deactivate conversation", "conversation_id", cmd.ConversationID, "user_id", user.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

type setDisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

func (h ChatHandler) SetDisplayName(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
		return
	}
	var req setDisplayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	cmd := ChatApp.SetDisplayNameCommand{UserID: user.ID, DisplayName: req.DisplayName}
	result, err := commands.Dispatch[ChatApp.SetDisplayNameCommand, *ChatApp.SetDisplayNameResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.respondChatError(c, err, "set display name", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("chat request failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch domainchat.Classify(err) {
	case domainchat.ClassInvalidArgument:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domainchat.ClassPermissionDenied:
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
	case domainchat.ClassNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		switch {
		case errors.Is(err, ChatApp.ErrUnknownFilter), errors.Is(err, ChatApp.ErrDisplayNameRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, policies.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}

func parsePositiveInt(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

var _ ChatHTTP = ChatHandler{}
