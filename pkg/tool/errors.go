package tool

import (
	"errors"
	"fmt"

	"github.com/backkem/mlle/pkg/protocol"
)

// Client errors.
var (
	// ErrVersionTooLow is returned when the LVE answers with a version below the client minimum.
	ErrVersionTooLow = errors.New("tool: protocol version from LVE too low")

	// ErrVersionTooHigh is returned when the LVE answers with a version above the client maximum.
	ErrVersionTooHigh = errors.New("tool: protocol version from LVE too high")

	// ErrNotSimplified is returned by License when the LVE only supports FEATURE.
	ErrNotSimplified = errors.New("tool: library vendor executable doesn't use simplified licensing, use command FEATURE instead")

	// ErrUnexpectedCommand is returned when the reply is not one of the expected commands.
	ErrUnexpectedCommand = errors.New("tool: unexpected command")

	// ErrNoLicense is matched by a *DeniedError.
	ErrNoLicense = errors.New("tool: not licensed")

	// ErrClosed is returned when the client is used after Close.
	ErrClosed = errors.New("tool: client closed")
)

// ErrorReply is an ERROR message received from the LVE.
type ErrorReply struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *ErrorReply) Error() string {
	return fmt.Sprintf("tool: Got ERROR command with message: %s", e.Message)
}

// DeniedError carries the reason of a NO reply.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "tool: " + e.Reason
}

// Is reports whether target is ErrNoLicense.
func (e *DeniedError) Is(target error) bool {
	return target == ErrNoLicense
}

// unexpected builds the error for a reply outside want.
func unexpected(got protocol.CommandID, want ...protocol.CommandID) error {
	if len(want) == 1 {
		return fmt.Errorf("%w: expected command %s, but got command %s", ErrUnexpectedCommand, want[0], got)
	}
	list := want[0].String()
	for _, id := range want[1:] {
		list += ", " + id.String()
	}
	return fmt.Errorf("%w %s: expected one of the following commands: %s", ErrUnexpectedCommand, got, list)
}
