package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"adboard/internal/app/commands"
	"adboard/internal/app/queries"
)

type noteCommand struct {
	Author string
}

func (noteCommand) Key() string { return "test.note" }

type noteQuery struct {
	Author string
}

func (noteQuery) Key() string { return "test.note_query" }

var errAuthorRequired = errors.New("author required")

type authorValidator struct{}

func (authorValidator) Validate(_ context.Context, message any) error {
	switch m := message.(type) {
	case noteCommand:
		if m.Author == "" {
			return errAuthorRequired
		}
	case noteQuery:
		if m.Author == "" {
			return errAuthorRequired
		}
	}
	return nil
}

func TestValidation_BlocksInvalidCommands(t *testing.T) {
	base := commands.NewInMemoryBus()
	handled := 0
	commands.RegisterHandler(base, noteCommand{}.Key(), commands.HandlerFunc[noteCommand, struct{}](
		func(context.Context, noteCommand) (struct{}, error) {
			handled++
			return struct{}{}, nil
		}))
	bus := ChainCommands(base, Validation(authorValidator{}))

	_, err := bus.Dispatch(context.Background(), noteCommand{})
	require.ErrorIs(t, err, errAuthorRequired)
	require.Zero(t, handled)

	_, err = bus.Dispatch(context.Background(), noteCommand{Author: "alice"})
	require.NoError(t, err)
	require.Equal(t, 1, handled)
}

func TestQueryValidation_BlocksInvalidQueries(t *testing.T) {
	base := queries.NewInMemoryBus()
	queries.RegisterHandler(base, noteQuery{}.Key(), queries.HandlerFunc[noteQuery, string](
		func(context.Context, noteQuery) (string, error) {
			return "ok", nil
		}))
	bus := ChainQueries(base, QueryValidation(authorValidator{}))

	_, err := bus.Ask(context.Background(), noteQuery{})
	require.ErrorIs(t, err, errAuthorRequired)

	res, err := bus.Ask(context.Background(), noteQuery{Author: "alice"})
	require.NoError(t, err)
	require.Equal(t, "ok", res)
}
