package protocol

import "errors"

// Grammar errors. A *GrammarError wraps exactly one of these.
var (
	// ErrNoTokens is returned for an empty header line.
	ErrNoTokens = errors.New("protocol: no tokens in message")

	// ErrUnknownCommand is returned when the first token is not in the command table.
	ErrUnknownCommand = errors.New("protocol: unknown command")

	// ErrTooFewTokens is returned when a line has fewer arguments than its form requires.
	ErrTooFewTokens = errors.New("protocol: too few arguments")

	// ErrTooManyTokens is returned when a line has more arguments than its form
	// allows, or more than MaxTokens tokens overall.
	ErrTooManyTokens = errors.New("protocol: too many arguments")

	// ErrNotAnInteger is returned when a number or length argument does not parse.
	ErrNotAnInteger = errors.New("protocol: argument is not an integer")

	// ErrNegativeLength is returned for a negative payload length.
	ErrNegativeLength = errors.New("protocol: negative length")
)

// Codec errors.
var (
	// ErrShortPayload is returned when a message carries fewer payload bytes
	// than its header declares.
	ErrShortPayload = errors.New("protocol: payload shorter than declared length")

	// ErrLineTooLong is returned when a header line exceeds MaxLineSize bytes.
	// The reader skips the rest of the offending line and stays usable.
	ErrLineTooLong = errors.New("protocol: message row too long")

	// ErrMessageTooLarge is returned when a declared payload exceeds the reader's limit.
	ErrMessageTooLarge = errors.New("protocol: message too large")

	// ErrFormMismatch is returned when a write method does not match the command's form.
	ErrFormMismatch = errors.New("protocol: command sent in wrong form")

	// ErrRetriesExhausted is returned when the channel keeps asking for a retry.
	ErrRetriesExhausted = errors.New("protocol: channel retries exhausted")
)

// GrammarError describes why a header line was rejected.
// Message is the human-readable text sent back to the peer in an ERROR reply.
type GrammarError struct {
	// Err is one of the grammar sentinel errors.
	Err error

	// Message is the peer-facing description.
	Message string
}

func (e *GrammarError) Error() string {
	return e.Message
}

func (e *GrammarError) Unwrap() error {
	return e.Err
}
