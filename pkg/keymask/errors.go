package keymask

import "errors"

// Key-mask errors.
var (
	// ErrMarkerAuth is returned when a directory marker fails to decrypt.
	// It wraps the underlying crypto error.
	ErrMarkerAuth = errors.New("keymask: marker authentication failed")

	// ErrMarkerTooShort is returned when a decrypted marker cannot hold a mask.
	ErrMarkerTooShort = errors.New("keymask: marker too short to carry a mask")

	// ErrMarkerOrder is returned when a directory marker is encrypted after
	// the directory's mask is already known.
	ErrMarkerOrder = errors.New("keymask: package.mo must be encrypted first")

	// ErrNoSource is returned when a decrypt-side engine has no marker source.
	ErrNoSource = errors.New("keymask: no marker source")

	// ErrInvalidSecret is returned when key material has the wrong size or encoding.
	ErrInvalidSecret = errors.New("keymask: invalid library secret")
)
