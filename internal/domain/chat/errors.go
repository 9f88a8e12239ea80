package chat

import "errors"

// ErrorClass buckets domain errors for transport-layer mapping.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassInvalidArgument
	ClassPermissionDenied
	ClassNotFound
)

// Classify assigns a domain error to its taxonomy bucket. Unrecognized
// errors stay ClassUnknown and surface as internal failures.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrAdRequired),
		errors.Is(err, ErrParticipantRequired),
		errors.Is(err, ErrSameParticipant),
		errors.Is(err, ErrInvalidMessageType):
		return ClassInvalidArgument
	case errors.Is(err, ErrNotParticipant):
		return ClassPermissionDenied
	case errors.Is(err, ErrConversationNotFound):
		return ClassNotFound
	default:
		return ClassUnknown
	}
}
