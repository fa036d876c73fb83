package keymask

import (
	"fmt"

	"github.com/backkem/mlle/pkg/crypto"
)

// HasMaskTrailer reports whether the plaintext of relPath ends in a mask,
// which is true for directory markers below the root.
func HasMaskTrailer(relPath string) bool {
	dir, base := SplitPath(relPath)
	return IsMarker(base) && dir != RootDir
}

// Encrypt encrypts the plaintext of the file at relPath under the library
// key, appending a fresh mask for directory markers.
func (e *Engine) Encrypt(relPath string, key [KeySize]byte, plaintext []byte) ([]byte, error) {
	defer clear(key[:])

	mask, err := e.MaskKey(relPath, &key)
	if err != nil {
		return nil, err
	}
	if mask == nil {
		return crypto.EncryptBlobWithRand(e.rand, key[:], plaintext)
	}

	buf := make([]byte, 0, len(plaintext)+KeySize)
	buf = append(buf, plaintext...)
	buf = append(buf, mask[:]...)
	clear(mask[:])
	defer clear(buf)
	return crypto.EncryptBlobWithRand(e.rand, key[:], buf)
}

// Decrypt demasks the library key for relPath and decrypts blob. The mask
// trailer of a directory marker is removed from the result.
func (e *Engine) Decrypt(relPath string, key [KeySize]byte, blob []byte) ([]byte, error) {
	defer clear(key[:])

	if _, err := e.DemaskKey(relPath, &key); err != nil {
		return nil, err
	}
	plain, err := crypto.DecryptBlob(key[:], blob)
	if err != nil {
		return nil, err
	}
	if HasMaskTrailer(relPath) {
		if len(plain) < KeySize {
			clear(plain)
			return nil, fmt.Errorf("%w: %s", ErrMarkerTooShort, relPath)
		}
		clear(plain[len(plain)-KeySize:])
		plain = plain[:len(plain)-KeySize]
	}
	return plain, nil
}
