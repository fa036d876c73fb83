// Authenticated blob codec for protected library files.
// Layout: IV (16 bytes) ‖ AES-256-CBC ciphertext (PKCS#7 padded) ‖ HMAC-SHA256 (32 bytes).
// The MAC covers IV ‖ plaintext and is keyed by the same 32-byte key as the cipher.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
)

// Blob layout constants.
const (
	// BlobKeySize is the AES-256 key size in bytes.
	BlobKeySize = 32

	// BlobIVSize is the CBC initialization vector size (one AES block).
	BlobIVSize = aes.BlockSize

	// BlobMACSize is the HMAC-SHA256 tag size appended to every blob.
	BlobMACSize = SHA256LenBytes

	// BlobOverhead is the minimum number of bytes a blob adds to its plaintext
	// (IV, one block of padding, MAC).
	BlobOverhead = BlobIVSize + aes.BlockSize + BlobMACSize
)

// EncryptBlob encrypts plaintext under key and returns IV ‖ ciphertext ‖ MAC.
// A fresh random IV is drawn for every call.
//
// Parameters:
//   - key: 32-byte AES-256 / HMAC key
//   - plaintext: data to protect (may be empty)
func EncryptBlob(key, plaintext []byte) ([]byte, error) {
	return EncryptBlobWithRand(rand.Reader, key, plaintext)
}

// EncryptBlobWithRand is EncryptBlob with an explicit randomness source for the IV.
func EncryptBlobWithRand(r io.Reader, key, plaintext []byte) ([]byte, error) {
	var iv [BlobIVSize]byte
	if _, err := io.ReadFull(r, iv[:]); err != nil {
		return nil, err
	}
	return EncryptBlobWithIV(key, iv[:], plaintext)
}

// EncryptBlobWithIV encrypts using a caller-supplied IV.
// Only deterministic tests should call this directly; reusing an IV under the
// same key leaks plaintext equality.
func EncryptBlobWithIV(key, iv, plaintext []byte) ([]byte, error) {
	if len(key) != BlobKeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(iv) != BlobIVSize {
		return nil, ErrInvalidIVLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, BlobIVSize+len(padded)+BlobMACSize)
	copy(out, iv)

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[BlobIVSize:BlobIVSize+len(padded)], padded)

	mac := NewHMACSHA256(key)
	mac.Write(iv)
	mac.Write(plaintext)
	copy(out[BlobIVSize+len(padded):], mac.Sum(nil))

	return out, nil
}

// DecryptBlob verifies and decrypts a blob produced by EncryptBlob.
//
// Returns ErrBlobTooShort when the blob cannot hold IV, one cipher block and MAC,
// and ErrAuthentication when padding or MAC verification fails. No plaintext is
// returned unless the MAC verified.
func DecryptBlob(key, blob []byte) ([]byte, error) {
	if len(key) != BlobKeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(blob) <= BlobIVSize+BlobMACSize {
		return nil, ErrBlobTooShort
	}

	iv := blob[:BlobIVSize]
	ct := blob[BlobIVSize : len(blob)-BlobMACSize]
	tag := blob[len(blob)-BlobMACSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, ErrBlobTooShort
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, ct)

	plaintext, padOK := pkcs7Unpad(buf, aes.BlockSize)

	mac := NewHMACSHA256(key)
	mac.Write(iv)
	mac.Write(plaintext)
	macOK := HMACEqual(mac.Sum(nil), tag)

	if !padOK || !macOK {
		clear(buf)
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// pkcs7Pad always appends between 1 and blockSize bytes.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// pkcs7Unpad strips padding. On malformed padding it returns the full buffer and
// false so the caller can still run the MAC in the same amount of work.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return data, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return data, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return data, false
		}
	}
	return data[:len(data)-n], true
}
