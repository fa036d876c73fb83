package lve

import (
	"context"
	"crypto/tls"
	"io"
	"os"
	"time"

	"github.com/backkem/mlle/pkg/session"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/pion/logging"
)

// StdioConfig configures ServeStdio.
type StdioConfig struct {
	// Session configures the session. Session.Secret is required.
	Session session.Config

	// Identity is the LVE certificate. Required.
	Identity tls.Certificate

	// In and Out carry the TLS stream. Default: os.Stdin and os.Stdout.
	In  io.ReadCloser
	Out io.WriteCloser

	// HandshakeTimeout bounds the TLS handshake.
	// Default: transport.DefaultHandshakeTimeout
	HandshakeTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// Default: logging.NewDefaultLoggerFactory()
	LoggerFactory logging.LoggerFactory
}

// ServeStdio runs one session over the standard streams and returns when
// it ends. The tool that spawned the process is the TLS client.
func ServeStdio(ctx context.Context, config StdioConfig) error {
	if len(config.Identity.Certificate) == 0 {
		return transport.ErrNoIdentity
	}
	if config.In == nil {
		config.In = os.Stdin
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = transport.DefaultHandshakeTimeout
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if config.Session.LoggerFactory == nil {
		config.Session.LoggerFactory = config.LoggerFactory
	}
	log := config.LoggerFactory.NewLogger("lve")

	server, err := session.NewServer(config.Session)
	if err != nil {
		return err
	}

	conn := transport.NewStdioConn(config.In, config.Out)
	hctx, cancel := context.WithTimeout(ctx, config.HandshakeTimeout)
	ch, err := transport.ServerHandshake(hctx, conn, transport.ServerTLSConfig(config.Identity))
	cancel()
	if err != nil {
		conn.Close()
		log.Errorf("handshake failed: %v", err)
		return err
	}

	log.Debug("single-shot session started")
	return server.Serve(ctx, ch)
}
