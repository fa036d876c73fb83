package crypto

import "errors"

// Errors returned by the blob codec.
var (
	// ErrInvalidKeyLength is returned when a blob key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidIVLength is returned when a caller-supplied IV is not one AES block.
	ErrInvalidIVLength = errors.New("crypto: invalid IV length, must be 16 bytes")

	// ErrBlobTooShort is returned when a blob cannot contain IV, ciphertext and MAC.
	ErrBlobTooShort = errors.New("crypto: blob too short")

	// ErrAuthentication is returned when the MAC or padding does not verify.
	ErrAuthentication = errors.New("crypto: authentication failed")
)
