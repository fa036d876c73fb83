package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 iteration limits accepted for passphrase-derived library keys.
const (
	// PBKDF2IterationsMin is the minimum allowed iteration count.
	PBKDF2IterationsMin = 10000

	// PBKDF2IterationsMax is the maximum allowed iteration count.
	PBKDF2IterationsMax = 10000000
)

// HKDFSHA256 derives key material using HKDF-SHA256 (RFC 5869).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive
//
// Returns the derived key material of the specified length.
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PBKDF2SHA256 derives a key from a passphrase using PBKDF2-HMAC-SHA256.
//
// Parameters:
//   - password: The passphrase to derive from
//   - salt: Salt value
//   - iterations: Number of iterations (PBKDF2IterationsMin..PBKDF2IterationsMax)
//   - keyLen: Number of bytes to derive
func PBKDF2SHA256(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}
