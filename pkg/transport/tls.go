package transport

import (
	"context"
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/backkem/mlle/pkg/crypto"
)

// DefaultHandshakeTimeout bounds a TLS handshake when no deadline is given.
const DefaultHandshakeTimeout = 10 * time.Second

type tlsChannel struct {
	*tls.Conn
	peer stdcrypto.PublicKey
}

func (c *tlsChannel) PeerKey() stdcrypto.PublicKey { return c.peer }
func (c *tlsChannel) Type() ChannelType            { return ChannelTypeTLS }

// GenerateIdentity creates a self-signed ECDSA P-256 certificate.
// Peers are identified by their public key, so the certificate carries no
// chain and is only a container for the key.
func GenerateIdentity(commonName string, validFor time.Duration) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return tls.Certificate{}, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// LoadIdentity loads a PEM certificate and key pair.
func LoadIdentity(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("transport: load identity: %w", err)
	}
	if cert.Leaf == nil {
		cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return tls.Certificate{}, err
		}
	}
	return cert, nil
}

// WriteIdentity stores cert and its private key as PEM files.
// The key file is created with mode 0600.
func WriteIdentity(cert tls.Certificate, certFile, keyFile string) error {
	if len(cert.Certificate) == 0 {
		return ErrNoIdentity
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		return err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return err
	}
	return os.WriteFile(keyFile, keyPEM, 0o600)
}

// IdentityFingerprint returns the SHA-256 SPKI fingerprint of cert's key.
func IdentityFingerprint(cert tls.Certificate) (string, error) {
	leaf := cert.Leaf
	if leaf == nil {
		if len(cert.Certificate) == 0 {
			return "", ErrNoIdentity
		}
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return "", err
		}
	}
	return crypto.PublicKeyFingerprint(leaf.PublicKey)
}

// ServerTLSConfig returns the LVE-side TLS configuration. A client
// certificate is required but not chain-verified; authorization happens on
// the extracted public key, so session resumption is disabled.
func ServerTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:           []tls.Certificate{cert},
		ClientAuth:             tls.RequireAnyClientCert,
		MinVersion:             tls.VersionTLS12,
		SessionTicketsDisabled: true,
	}
}

// ClientTLSConfig returns the tool-side TLS configuration. When
// pinnedServer is non-empty the server key must have that SPKI fingerprint.
func ClientTLSConfig(cert tls.Certificate, pinnedServer string) *tls.Config {
	cfg := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}
	if pinnedServer != "" {
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return ErrNoPeerCertificate
			}
			leaf, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return err
			}
			fp, err := crypto.PublicKeyFingerprint(leaf.PublicKey)
			if err != nil {
				return err
			}
			if fp != pinnedServer {
				return ErrPeerKeyMismatch
			}
			return nil
		}
	}
	return cfg
}

// ServerHandshake runs the server side of a TLS handshake over conn and
// returns a Channel carrying the client's public key.
func ServerHandshake(ctx context.Context, conn net.Conn, config *tls.Config) (Channel, error) {
	return handshake(ctx, tls.Server(conn, config))
}

// ClientHandshake runs the client side of a TLS handshake over conn.
func ClientHandshake(ctx context.Context, conn net.Conn, config *tls.Config) (Channel, error) {
	return handshake(ctx, tls.Client(conn, config))
}

// DialTLS connects to addr and completes a client handshake.
func DialTLS(ctx context.Context, addr string, config *tls.Config) (Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	ch, err := ClientHandshake(ctx, conn, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ch, nil
}

func handshake(ctx context.Context, conn *tls.Conn) (Channel, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHandshakeTimeout)
		defer cancel()
	}

	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("transport: tls handshake: %w", err)
	}

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, ErrNoPeerCertificate
	}

	return &tlsChannel{Conn: conn, peer: state.PeerCertificates[0].PublicKey}, nil
}
