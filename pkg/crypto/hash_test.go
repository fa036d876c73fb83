package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
)

func TestPublicKeyFingerprint(t *testing.T) {
	k1, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	k2, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	fp1, err := PublicKeyFingerprint(&k1.PublicKey)
	if err != nil {
		t.Fatalf("PublicKeyFingerprint() error: %v", err)
	}
	if len(fp1) != 2*SHA256LenBytes {
		t.Errorf("fingerprint length = %d, want %d", len(fp1), 2*SHA256LenBytes)
	}

	again, _ := PublicKeyFingerprint(&k1.PublicKey)
	if again != fp1 {
		t.Error("fingerprint not stable")
	}

	fp2, _ := PublicKeyFingerprint(&k2.PublicKey)
	if fp1 == fp2 {
		t.Error("distinct keys share a fingerprint")
	}

	if _, err := PublicKeyFingerprint("not a key"); err == nil {
		t.Error("expected error for unsupported key type")
	}
}
