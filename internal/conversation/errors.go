package conversation

import "errors"

var (
	// ErrEmptyMessage is returned for a blank inbound message.
	ErrEmptyMessage = errors.New("conversation: empty message")

	// ErrMessageTooLong is returned when a message exceeds the inbound
	// length limit.
	ErrMessageTooLong = errors.New("conversation: message too long")

	// ErrExtractionUnavailable marks an extraction collaborator failure
	// or timeout. The turn still proceeds with an empty payload.
	ErrExtractionUnavailable = errors.New("conversation: extraction unavailable")

	// ErrReplyUnavailable marks a reply generation failure after all
	// configured providers were tried.
	ErrReplyUnavailable = errors.New("conversation: reply unavailable")
)
