package session

import (
	"errors"
	"fmt"

	"github.com/backkem/mlle/pkg/protocol"
)

// Session package errors.
var (
	// ErrNoSecret is returned when a server is configured without a library secret.
	ErrNoSecret = errors.New("session: no library secret provider")

	// ErrInvalidPath is returned for a file path that is absolute or leaves the library.
	ErrInvalidPath = errors.New("session: invalid relative path")
)

// ProtocolError is an ERROR reply: a protocol error code and the message
// sent to the tool.
type ProtocolError struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("session: %s error: %s", e.Code, e.Message)
}

// Peer-facing messages.
const (
	msgToolNotAllowed  = "Not a valid tool"
	msgLibPathMissing  = "Path to library is missing."
	msgLibPathNotExist = "Library path does not exist."
	msgLibPathNotDir   = "Library path is not a directory."
	msgLibPathOutside  = "Library path is outside the served directory."
	msgLineTooLong     = "Input error. Message row too long, more than %d characters."
	msgMessageTooLarge = "Input error. Message too large."
	msgParseInternal   = "Internal error in parsing."
	msgVersionTooLow   = "Minimum supported protocol version is %d"
	msgFileRead        = "Failed to read file %s."
	msgFileInvalid     = "Invalid file path %s."
	msgFileDecrypt     = "Failed to decrypt file %s, might be corrupted."
	msgKeyUnavailable  = "Library key is unavailable."
	msgInvalidState    = "Protocol error: Command %s is not valid in this state, expected command %s%s."
	msgNeverValid      = "Protocol error: Command %s can't be sent to the library vendor executable."
	msgLicenseSetup    = "Failed to set up licensing: %v"
	msgLicenseInternal = "License backend error: %v"
	msgCheckinFailed   = "Failed to return feature %s."
)
