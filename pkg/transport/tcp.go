package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"golang.org/x/time/rate"
)

// ChannelHandler serves one accepted channel. It owns the channel until it
// returns; the listener closes the channel afterwards.
type ChannelHandler func(ctx context.Context, ch Channel)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Listener is an optional pre-existing listener to accept on.
	// If nil, a new TCP listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":7340").
	// Ignored if Listener is provided.
	ListenAddr string

	// TLSConfig enables a server handshake on every accepted connection.
	// If nil, connections are served as plain channels without peer identity.
	TLSConfig *tls.Config

	// HandshakeTimeout bounds the TLS handshake. Default: DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Handler is called for each established channel, in its own goroutine.
	// Required.
	Handler ChannelHandler

	// Limiter, if set, throttles how fast new connections are accepted.
	Limiter *rate.Limiter

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Listener accepts connections and hands each one, after the handshake, to
// a ChannelHandler. Every connection is served independently.
type Listener struct {
	config   ListenerConfig
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	// Connection tracking
	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewListener creates a Listener with the given configuration.
func NewListener(config ListenerConfig) (*Listener, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	l := &Listener{
		config:   config,
		listener: config.Listener,
		conns:    make(map[net.Conn]struct{}),
	}

	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport-tcp")
	}

	if l.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		l.listener = ln
	}

	return l, nil
}

// Start begins accepting connections. Cancelling ctx stops the listener.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("listening on %s (tls=%t)", l.listener.Addr(), l.config.TLSConfig != nil)
	}

	l.wg.Add(2)
	go l.acceptLoop()
	go func() {
		defer l.wg.Done()
		<-l.ctx.Done()
		l.listener.Close()
	}()

	return nil
}

// Stop closes the listener and all open connections, then waits for the
// handlers to return.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	started := l.started
	l.mu.Unlock()

	if l.log != nil {
		l.log.Info("stopping listener")
	}

	if started {
		l.cancel()
	}
	l.listener.Close()

	l.connsMu.Lock()
	for c := range l.conns {
		c.Close()
	}
	l.connsMu.Unlock()

	l.wg.Wait()
	return nil
}

// Addr returns the address the listener accepts on.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// ActiveConnections returns the number of connections currently served.
func (l *Listener) ActiveConnections() int {
	l.connsMu.Lock()
	defer l.connsMu.Unlock()
	return len(l.conns)
}

// acceptLoop accepts incoming connections.
func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		if l.config.Limiter != nil {
			if err := l.config.Limiter.Wait(l.ctx); err != nil {
				return
			}
		}

		conn, err := l.listener.Accept()
		if err != nil {
			if l.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if l.log != nil {
				l.log.Warnf("accept: %v", err)
			}
			continue
		}

		l.wg.Add(1)
		go l.handleConn(conn)
	}
}

// handleConn runs the handshake and the handler for one connection.
func (l *Listener) handleConn(conn net.Conn) {
	defer l.wg.Done()

	l.connsMu.Lock()
	l.conns[conn] = struct{}{}
	l.connsMu.Unlock()

	defer func() {
		conn.Close()
		l.connsMu.Lock()
		delete(l.conns, conn)
		l.connsMu.Unlock()
	}()

	var ch Channel
	if l.config.TLSConfig != nil {
		hctx, cancel := context.WithTimeout(l.ctx, l.config.HandshakeTimeout)
		var err error
		ch, err = ServerHandshake(hctx, conn, l.config.TLSConfig)
		cancel()
		if err != nil {
			if l.log != nil {
				l.log.Warnf("handshake with %s failed: %v", conn.RemoteAddr(), err)
			}
			return
		}
	} else {
		ch = NewConnChannel(conn, nil)
	}
	defer ch.Close()

	if l.log != nil {
		l.log.Debugf("channel established with %s (%s)", conn.RemoteAddr(), ch.Type())
	}

	l.config.Handler(l.ctx, ch)
}
