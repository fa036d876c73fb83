package keymask

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/backkem/mlle/pkg/crypto"
)

// SecretProvider supplies the library key K.
type SecretProvider interface {
	LibraryKey(ctx context.Context) ([KeySize]byte, error)
}

// StaticSecret is a library key held in memory.
type StaticSecret [KeySize]byte

// ParseStaticSecret decodes a 64 character hex string.
func ParseStaticSecret(s string) (StaticSecret, error) {
	var k StaticSecret
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(b) != KeySize {
		return k, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSecret, len(b), KeySize)
	}
	copy(k[:], b)
	clear(b)
	return k, nil
}

// LibraryKey returns the key.
func (s StaticSecret) LibraryKey(context.Context) ([KeySize]byte, error) {
	return s, nil
}

// String returns the key as hex.
func (s StaticSecret) String() string {
	return hex.EncodeToString(s[:])
}

// DerivedSecret derives a per-library key from a master secret with
// HKDF-SHA256, so one master can protect several libraries.
type DerivedSecret struct {
	Master  []byte
	Library string
	Salt    []byte
}

// derivedInfoPrefix separates library keys from other HKDF outputs.
const derivedInfoPrefix = "mlle library key:"

// LibraryKey returns HKDF(Master, Salt, prefix‖Library).
func (s DerivedSecret) LibraryKey(context.Context) ([KeySize]byte, error) {
	var k [KeySize]byte
	if len(s.Master) == 0 {
		return k, fmt.Errorf("%w: empty master secret", ErrInvalidSecret)
	}
	out, err := crypto.HKDFSHA256(s.Master, s.Salt, []byte(derivedInfoPrefix+s.Library), KeySize)
	if err != nil {
		return k, err
	}
	copy(k[:], out)
	clear(out)
	return k, nil
}

// PassphraseSecret stretches a passphrase into a library key with
// PBKDF2-HMAC-SHA256.
type PassphraseSecret struct {
	Passphrase string
	Salt       []byte

	// Iterations defaults to crypto.PBKDF2IterationsMin.
	Iterations int
}

// LibraryKey returns PBKDF2(Passphrase, Salt, Iterations).
func (s PassphraseSecret) LibraryKey(context.Context) ([KeySize]byte, error) {
	var k [KeySize]byte
	if s.Passphrase == "" || len(s.Salt) == 0 {
		return k, fmt.Errorf("%w: passphrase and salt are required", ErrInvalidSecret)
	}
	iter := s.Iterations
	if iter == 0 {
		iter = crypto.PBKDF2IterationsMin
	}
	if iter < crypto.PBKDF2IterationsMin || iter > crypto.PBKDF2IterationsMax {
		return k, fmt.Errorf("%w: %d iterations out of range", ErrInvalidSecret, iter)
	}
	out := crypto.PBKDF2SHA256([]byte(s.Passphrase), s.Salt, iter, KeySize)
	copy(k[:], out)
	clear(out)
	return k, nil
}

var (
	_ SecretProvider = StaticSecret{}
	_ SecretProvider = DerivedSecret{}
	_ SecretProvider = PassphraseSecret{}
)
