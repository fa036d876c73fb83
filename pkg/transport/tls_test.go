package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/mlle/pkg/crypto"
)

func mustIdentity(t *testing.T, name string) tls.Certificate {
	t.Helper()
	cert, err := GenerateIdentity(name, time.Hour)
	if err != nil {
		t.Fatalf("GenerateIdentity() error: %v", err)
	}
	return cert
}

func TestHandshakeExtractsPeerKeys(t *testing.T) {
	lve := mustIdentity(t, "lve")
	tool := mustIdentity(t, "tool")

	c0, c1 := net.Pipe()
	defer c0.Close()
	defer c1.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		ch  Channel
		err error
	}
	srv := make(chan result, 1)
	go func() {
		ch, err := ServerHandshake(ctx, c1, ServerTLSConfig(lve))
		srv <- result{ch, err}
	}()

	lveFP, _ := IdentityFingerprint(lve)
	client, err := ClientHandshake(ctx, c0, ClientTLSConfig(tool, lveFP))
	if err != nil {
		t.Fatalf("ClientHandshake() error: %v", err)
	}
	server := <-srv
	if server.err != nil {
		t.Fatalf("ServerHandshake() error: %v", server.err)
	}

	toolFP, _ := IdentityFingerprint(tool)
	gotTool, err := crypto.PublicKeyFingerprint(server.ch.PeerKey())
	if err != nil {
		t.Fatalf("PublicKeyFingerprint() error: %v", err)
	}
	if gotTool != toolFP {
		t.Error("server saw the wrong client key")
	}
	gotLVE, _ := crypto.PublicKeyFingerprint(client.PeerKey())
	if gotLVE != lveFP {
		t.Error("client saw the wrong server key")
	}
	if server.ch.Type() != ChannelTypeTLS {
		t.Errorf("Type() = %v, want TLS", server.ch.Type())
	}

	go client.Write([]byte("LIB 0\n"))
	buf := make([]byte, 6)
	if _, err := io.ReadFull(server.ch, buf); err != nil {
		t.Fatalf("ReadFull() error: %v", err)
	}
	if string(buf) != "LIB 0\n" {
		t.Errorf("server read %q", buf)
	}
}

func TestHandshakePinnedServerMismatch(t *testing.T) {
	lve := mustIdentity(t, "lve")
	other := mustIdentity(t, "other")
	tool := mustIdentity(t, "tool")

	c0, c1 := net.Pipe()
	defer c0.Close()
	defer c1.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go ServerHandshake(ctx, c1, ServerTLSConfig(lve))

	otherFP, _ := IdentityFingerprint(other)
	_, err := ClientHandshake(ctx, c0, ClientTLSConfig(tool, otherFP))
	if !errors.Is(err, ErrPeerKeyMismatch) {
		t.Errorf("ClientHandshake() error = %v, want ErrPeerKeyMismatch", err)
	}
}

func TestHandshakeRequiresClientCert(t *testing.T) {
	lve := mustIdentity(t, "lve")

	c0, c1 := net.Pipe()
	defer c0.Close()
	defer c1.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		ch, err := ClientHandshake(ctx, c0, &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12})
		if err == nil {
			io.Copy(io.Discard, ch)
		}
	}()

	if _, err := ServerHandshake(ctx, c1, ServerTLSConfig(lve)); err == nil {
		t.Error("ServerHandshake() accepted a client without certificate")
	}
}

func TestListenerTLS(t *testing.T) {
	lve := mustIdentity(t, "lve")
	tool := mustIdentity(t, "tool")

	keys := make(chan string, 1)
	l, err := NewListener(ListenerConfig{
		ListenAddr: "127.0.0.1:0",
		TLSConfig:  ServerTLSConfig(lve),
		Handler: func(ctx context.Context, ch Channel) {
			fp, _ := crypto.PublicKeyFingerprint(ch.PeerKey())
			keys <- fp
			io.Copy(io.Discard, ch)
		},
	})
	if err != nil {
		t.Fatalf("NewListener() error: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer l.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := DialTLS(ctx, l.Addr().String(), ClientTLSConfig(tool, ""))
	if err != nil {
		t.Fatalf("DialTLS() error: %v", err)
	}
	defer ch.Close()

	want, _ := IdentityFingerprint(tool)
	select {
	case got := <-keys:
		if got != want {
			t.Error("listener handler saw the wrong peer key")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestIdentityFiles(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "tool.crt")
	keyFile := filepath.Join(dir, "tool.key")

	cert := mustIdentity(t, "tool")
	if err := WriteIdentity(cert, certFile, keyFile); err != nil {
		t.Fatalf("WriteIdentity() error: %v", err)
	}

	loaded, err := LoadIdentity(certFile, keyFile)
	if err != nil {
		t.Fatalf("LoadIdentity() error: %v", err)
	}

	a, _ := IdentityFingerprint(cert)
	b, _ := IdentityFingerprint(loaded)
	if a != b {
		t.Error("fingerprint changed after write/load")
	}

	if err := WriteIdentity(tls.Certificate{}, certFile, keyFile); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("WriteIdentity(empty) error = %v, want ErrNoIdentity", err)
	}
}
