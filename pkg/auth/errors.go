package auth

import "errors"

// Authorization errors.
var (
	// ErrToolNotAllowed is returned when a peer key is not on the allow-list.
	ErrToolNotAllowed = errors.New("auth: not a valid tool")

	// ErrNoPeerKey is returned when the channel carries no peer identity.
	ErrNoPeerKey = errors.New("auth: no peer key")

	// ErrInvalidFingerprint is returned for a malformed fingerprint entry.
	ErrInvalidFingerprint = errors.New("auth: invalid fingerprint")
)
