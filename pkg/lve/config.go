package lve

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/backkem/mlle/pkg/config"
	"github.com/backkem/mlle/pkg/protocol"
	"github.com/backkem/mlle/pkg/session"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/pion/logging"
)

// EphemeralIdentityLifetime is the validity of a generated identity.
const EphemeralIdentityLifetime = 365 * 24 * time.Hour

// LoadIdentity loads the configured certificate, or generates an ephemeral
// one when none is configured.
func LoadIdentity(cfg *config.Config, log logging.LeveledLogger) (tls.Certificate, error) {
	if cfg.Listen.CertFile != "" {
		return transport.LoadIdentity(cfg.Listen.CertFile, cfg.Listen.KeyFile)
	}
	cert, err := transport.GenerateIdentity("mlle-lve", EphemeralIdentityLifetime)
	if err != nil {
		return tls.Certificate{}, err
	}
	if log != nil {
		fp, _ := transport.IdentityFingerprint(cert)
		log.Warnf("no certificate configured, using ephemeral identity %s", fp)
	}
	return cert, nil
}

// SessionConfig builds the per-session configuration.
func SessionConfig(cfg *config.Config, lf logging.LoggerFactory) (session.Config, error) {
	secret, err := cfg.SecretProvider()
	if err != nil {
		return session.Config{}, err
	}
	authorizer, err := cfg.Authorizer()
	if err != nil {
		return session.Config{}, err
	}
	if authorizer.Len() == 0 && !cfg.Auth.AllowAny && lf != nil {
		lf.NewLogger("lve").Warn("tool allow list is empty; every tool will be rejected")
	}
	factory, err := cfg.LicenseFactory()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Secret:         secret,
		Authorizer:     authorizer,
		LicenseFactory: factory,
		GlobalFeature:  cfg.License.GlobalFeature,
		BaseDir:        cfg.Library.BaseDir,
		Codec:          protocol.CodecConfig{MaxPayload: cfg.Listen.MaxPayload},
		LoggerFactory:  lf,
	}, nil
}

// ServiceConfig builds a Service configuration and binds the admin listener
// when one is configured.
func ServiceConfig(cfg *config.Config, identity tls.Certificate, lf logging.LoggerFactory) (Config, error) {
	sc, err := SessionConfig(cfg, lf)
	if err != nil {
		return Config{}, err
	}

	out := Config{
		Session:          sc,
		Identity:         identity,
		ListenAddr:       cfg.Listen.Addr,
		HandshakeTimeout: cfg.Listen.HandshakeTimeout,
		AcceptRate:       cfg.Listen.AcceptRate,
		AcceptBurst:      cfg.Listen.AcceptBurst,
		LoggerFactory:    lf,
	}
	if cfg.Admin.Addr != "" {
		ln, err := net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			return Config{}, fmt.Errorf("lve: admin listener: %w", err)
		}
		out.AdminListener = ln
	}
	if cfg.Discovery.Enabled {
		out.Discovery = &DiscoveryConfig{
			Instance:  cfg.Discovery.Instance,
			Vendor:    cfg.Discovery.Vendor,
			Libraries: cfg.Discovery.Libraries,
		}
	}
	return out, nil
}
