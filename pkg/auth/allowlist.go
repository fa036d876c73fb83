// Package auth decides which tools may use an LVE.
//
// Tools are identified by the SHA-256 fingerprint of their public key
// (hex of the DER SubjectPublicKeyInfo), the same value `mlle keygen`
// prints for a new identity.
package auth

import (
	"bufio"
	"crypto"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	mcrypto "github.com/backkem/mlle/pkg/crypto"
)

// Authorizer checks a peer's public key.
type Authorizer interface {
	Authorize(pub crypto.PublicKey) error
}

// AllowList authorizes keys whose fingerprint is listed.
// It is read-only after construction and safe for concurrent use.
type AllowList struct {
	fingerprints map[string]struct{}
	any          bool
}

// NewAllowList creates an allow-list from hex fingerprints.
// Colons and case are ignored.
func NewAllowList(fingerprints ...string) (*AllowList, error) {
	a := &AllowList{fingerprints: make(map[string]struct{}, len(fingerprints))}
	for _, fp := range fingerprints {
		norm, err := NormalizeFingerprint(fp)
		if err != nil {
			return nil, err
		}
		a.fingerprints[norm] = struct{}{}
	}
	return a, nil
}

// AllowAny returns an allow-list that accepts every key, including none.
// Intended for development setups.
func AllowAny() *AllowList {
	return &AllowList{any: true}
}

// LoadAllowList reads one fingerprint per line. Blank lines and lines
// starting with '#' are skipped.
func LoadAllowList(path string) (*AllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAllowList(f)
}

// ReadAllowList parses the format of LoadAllowList from r.
func ReadAllowList(r io.Reader) (*AllowList, error) {
	var fps []string
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if _, err := NormalizeFingerprint(s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fps = append(fps, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewAllowList(fps...)
}

// NormalizeFingerprint lower-cases fp and strips colons. The result must
// be 32 bytes of hex.
func NormalizeFingerprint(fp string) (string, error) {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(fp), ":", ""))
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != mcrypto.SHA256LenBytes {
		return "", fmt.Errorf("%w: %q", ErrInvalidFingerprint, fp)
	}
	return s, nil
}

// Authorize returns nil if pub's fingerprint is listed.
func (a *AllowList) Authorize(pub crypto.PublicKey) error {
	if a.any {
		return nil
	}
	if pub == nil {
		return ErrNoPeerKey
	}
	fp, err := mcrypto.PublicKeyFingerprint(pub)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrToolNotAllowed, err)
	}
	if _, ok := a.fingerprints[fp]; !ok {
		return ErrToolNotAllowed
	}
	return nil
}

// Len returns the number of listed fingerprints.
func (a *AllowList) Len() int {
	return len(a.fingerprints)
}

// Fingerprints returns the listed fingerprints in sorted order.
func (a *AllowList) Fingerprints() []string {
	out := make([]string, 0, len(a.fingerprints))
	for fp := range a.fingerprints {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

var _ Authorizer = (*AllowList)(nil)
