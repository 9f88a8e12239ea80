package chat

import (
	"context"
	"errors"
	"strings"

	"adboard/internal/app/commands"
	"adboard/internal/app/policies"
)

const setDisplayNameKey = "chat.set_display_name"

var ErrDisplayNameRequired = errors.New("chat: display name required")

// SetDisplayNameCommand updates how the requester appears to chat
// peers. Presentation only: identity comparisons never use it.
type SetDisplayNameCommand struct {
	UserID      string
	DisplayName string
}

func (c SetDisplayNameCommand) Key() string { return setDisplayNameKey }

type SetDisplayNameResult struct {
	DisplayName string `json:"display_name"`
}

type SetDisplayNameHandler struct {
	Directory policies.UserDirectory
}

func (h *SetDisplayNameHandler) Handle(ctx context.Context, cmd SetDisplayNameCommand) (*SetDisplayNameResult, error) {
	name := strings.TrimSpace(cmd.DisplayName)
	if name == "" {
		return nil, ErrDisplayNameRequired
	}
	if h.Directory == nil {
		return nil, errors.New("chat: user directory unavailable")
	}
	if err := h.Directory.SetDisplayName(ctx, cmd.UserID, name); err != nil {
		return nil, err
	}
	return &SetDisplayNameResult{DisplayName: name}, nil
}

var _ commands.Handler[SetDisplayNameCommand, *SetDisplayNameResult] = (*SetDisplayNameHandler)(nil)
