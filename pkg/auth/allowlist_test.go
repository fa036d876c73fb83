package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backkem/mlle/pkg/crypto"
)

func newKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	fp, err := crypto.PublicKeyFingerprint(&k.PublicKey)
	if err != nil {
		t.Fatalf("PublicKeyFingerprint() error: %v", err)
	}
	return k, fp
}

func TestAllowList(t *testing.T) {
	tool, fp := newKey(t)
	other, _ := newKey(t)

	// Upper case with colons, as some tools print fingerprints.
	var b strings.Builder
	for i := 0; i < len(fp); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strings.ToUpper(fp[i : i+2]))
	}

	a, err := NewAllowList(b.String())
	if err != nil {
		t.Fatalf("NewAllowList() error: %v", err)
	}
	if a.Len() != 1 || a.Fingerprints()[0] != fp {
		t.Errorf("Fingerprints() = %v", a.Fingerprints())
	}

	if err := a.Authorize(&tool.PublicKey); err != nil {
		t.Errorf("Authorize(listed) error: %v", err)
	}
	if err := a.Authorize(&other.PublicKey); !errors.Is(err, ErrToolNotAllowed) {
		t.Errorf("Authorize(unlisted) error = %v, want ErrToolNotAllowed", err)
	}
	if err := a.Authorize(nil); !errors.Is(err, ErrNoPeerKey) {
		t.Errorf("Authorize(nil) error = %v, want ErrNoPeerKey", err)
	}
}

func TestAllowAny(t *testing.T) {
	if err := AllowAny().Authorize(nil); err != nil {
		t.Errorf("AllowAny().Authorize(nil) error: %v", err)
	}
}

func TestNormalizeFingerprint(t *testing.T) {
	for _, bad := range []string{"", "abcd", strings.Repeat("zz", 32), strings.Repeat("ab", 33)} {
		if _, err := NormalizeFingerprint(bad); !errors.Is(err, ErrInvalidFingerprint) {
			t.Errorf("NormalizeFingerprint(%q) error = %v", bad, err)
		}
	}
}

func TestLoadAllowList(t *testing.T) {
	_, fp1 := newKey(t)
	_, fp2 := newKey(t)

	path := filepath.Join(t.TempDir(), "tools.allow")
	content := "# trusted tools\n" + fp1 + "\n\n  " + fp2 + "  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := LoadAllowList(path)
	if err != nil {
		t.Fatalf("LoadAllowList() error: %v", err)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}

	if _, err := ReadAllowList(strings.NewReader("# ok\nnot-hex\n")); !errors.Is(err, ErrInvalidFingerprint) {
		t.Errorf("ReadAllowList(bad) error = %v", err)
	}
}
