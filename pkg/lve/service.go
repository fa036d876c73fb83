// Package lve runs a library vendor executable.
//
// A Service is the persistent form: a TLS listener serving any number of
// concurrent sessions, with an optional admin HTTP endpoint and DNS-SD
// advertisement, all supervised by one errgroup. ServeStdio is the
// single-shot form: one session over the process's standard streams.
package lve

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/backkem/mlle/pkg/discovery"
	"github.com/backkem/mlle/pkg/metrics"
	"github.com/backkem/mlle/pkg/protocol"
	"github.com/backkem/mlle/pkg/session"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config configures a Service.
type Config struct {
	// Session configures every session. Session.Secret is required.
	// If Session.Observer is nil, the service's metrics collector is used.
	Session session.Config

	// Identity is the LVE certificate presented to tools. Required.
	Identity tls.Certificate

	// Listener is an optional pre-existing listener for the protocol.
	// If nil, ListenAddr is used.
	Listener net.Listener

	// ListenAddr is the protocol address (e.g. ":7340").
	ListenAddr string

	// HandshakeTimeout bounds the TLS handshake.
	HandshakeTimeout time.Duration

	// AcceptRate limits new connections per second. Zero disables limiting.
	AcceptRate float64

	// AcceptBurst is the limiter burst. Default: 1.
	AcceptBurst int

	// AdminListener enables the admin HTTP endpoint when set.
	AdminListener net.Listener

	// Discovery enables DNS-SD advertisement when set.
	Discovery *DiscoveryConfig

	// LoggerFactory is the factory for creating loggers.
	// Default: logging.NewDefaultLoggerFactory()
	LoggerFactory logging.LoggerFactory
}

// DiscoveryConfig configures the advertisement of a Service.
type DiscoveryConfig struct {
	Instance  string
	Vendor    string
	Libraries []string

	// ServerFactory overrides the mDNS implementation.
	ServerFactory discovery.MDNSServerFactory
}

// Service is a persistent LVE.
type Service struct {
	config     Config
	server     *session.Server
	collector  *metrics.Collector
	listener   *transport.Listener
	admin      *metrics.Admin
	advertiser *discovery.Advertiser
	txt        discovery.ServiceTXT
	log        logging.LeveledLogger

	running atomic.Bool
}

// NewService creates the service and binds its listener.
func NewService(config Config) (*Service, error) {
	if len(config.Identity.Certificate) == 0 {
		return nil, transport.ErrNoIdentity
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if config.Session.LoggerFactory == nil {
		config.Session.LoggerFactory = config.LoggerFactory
	}

	collector := metrics.NewCollector()
	if config.Session.Observer == nil {
		config.Session.Observer = collector
	}

	s := &Service{
		config:    config,
		collector: collector,
		log:       config.LoggerFactory.NewLogger("lve"),
	}

	server, err := session.NewServer(config.Session)
	if err != nil {
		return nil, err
	}
	s.server = server

	var limiter *rate.Limiter
	if config.AcceptRate > 0 {
		burst := config.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), burst)
	}

	s.listener, err = transport.NewListener(transport.ListenerConfig{
		Listener:         config.Listener,
		ListenAddr:       config.ListenAddr,
		TLSConfig:        transport.ServerTLSConfig(config.Identity),
		HandshakeTimeout: config.HandshakeTimeout,
		Handler:          s.handle,
		Limiter:          limiter,
		LoggerFactory:    config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	if config.AdminListener != nil {
		s.admin, err = metrics.NewAdmin(metrics.AdminConfig{
			Collector:     s.collector,
			Ready:         s.ready,
			LoggerFactory: config.LoggerFactory,
		})
		if err != nil {
			return nil, err
		}
	}

	if d := config.Discovery; d != nil {
		fp, err := transport.IdentityFingerprint(config.Identity)
		if err != nil {
			return nil, err
		}
		s.txt = discovery.ServiceTXT{
			Version:     protocol.MaxVersion,
			Vendor:      d.Vendor,
			Fingerprint: fp,
			Libraries:   d.Libraries,
		}
		s.advertiser, err = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Instance:      d.Instance,
			Port:          s.Port(),
			ServerFactory: d.ServerFactory,
			LoggerFactory: config.LoggerFactory,
		})
		if err != nil {
			return nil, fmt.Errorf("lve: %w", err)
		}
	}

	return s, nil
}

// Addr returns the protocol listener address.
func (s *Service) Addr() net.Addr {
	return s.listener.Addr()
}

// Port returns the protocol TCP port, or 0 for non-TCP listeners.
func (s *Service) Port() int {
	if a, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Collector returns the metrics collector.
func (s *Service) Collector() *metrics.Collector {
	return s.collector
}

// ActiveSessions returns the number of connections being served.
func (s *Service) ActiveSessions() int {
	return s.listener.ActiveConnections()
}

// Run serves until ctx is cancelled or a subsystem fails. Cancellation
// returns nil.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := s.listener.Start(gctx); err != nil {
		return err
	}
	s.running.Store(true)
	s.log.Infof("serving protocol version %d on %s", protocol.MaxVersion, s.listener.Addr())

	g.Go(func() error {
		<-gctx.Done()
		s.running.Store(false)
		return s.listener.Stop()
	})
	if s.admin != nil {
		g.Go(func() error {
			return s.admin.Serve(gctx, s.config.AdminListener)
		})
	}
	if s.advertiser != nil {
		g.Go(func() error {
			return s.advertiser.Run(gctx, s.txt)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Errorf("service stopped: %v", err)
		return err
	}
	s.log.Info("service stopped")
	return nil
}

func (s *Service) ready() error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	return nil
}

func (s *Service) handle(ctx context.Context, ch transport.Channel) {
	if err := s.server.Serve(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warnf("session ended: %v", err)
	}
}
