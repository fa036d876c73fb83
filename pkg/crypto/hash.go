// Package crypto provides the primitives used to protect library files.
//
// Protected files are stored as authenticated blobs: AES-256-CBC with PKCS#7
// padding and an HMAC-SHA256 tag over the IV and plaintext, both keyed by the
// same 32-byte key. The package also exposes HKDF/PBKDF2 helpers used to derive
// library keys and SHA-256 fingerprints used to pin peer identities.
package crypto

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
)

// SHA-256 constants.
const (
	// SHA256LenBits is the SHA-256 output length in bits.
	SHA256LenBits = 256

	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = 32
)

// SHA256 computes the SHA-256 digest of a message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// PublicKeyFingerprint returns the lowercase hex SHA-256 of the PKIX
// (SubjectPublicKeyInfo) encoding of pub.
//
// Supported key types are those accepted by x509.MarshalPKIXPublicKey.
func PublicKeyFingerprint(pub any) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:]), nil
}
