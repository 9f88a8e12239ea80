package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	require.Equal(t, ClassInvalidArgument, Classify(ErrEmptyContent))
	require.Equal(t, ClassInvalidArgument, Classify(ErrSameParticipant))
	require.Equal(t, ClassInvalidArgument, Classify(ErrInvalidMessageType))
	require.Equal(t, ClassPermissionDenied, Classify(ErrNotParticipant))
	require.Equal(t, ClassNotFound, Classify(ErrConversationNotFound))
	require.Equal(t, ClassUnknown, Classify(errors.New("mongo timeout")))

	// Wrapped sentinels classify the same.
	require.Equal(t, ClassNotFound, Classify(fmt.Errorf("load: %w", ErrConversationNotFound)))
}
