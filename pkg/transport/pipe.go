package transport

import (
	"crypto"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic record delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers records.
	// Default: 1ms
	ProcessInterval time.Duration

	// Key0 is the public key endpoint 1 sees as its peer (endpoint 0's identity).
	Key0 crypto.PublicKey

	// Key1 is the public key endpoint 0 sees as its peer (endpoint 1's identity).
	Key1 crypto.PublicKey
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe connects two in-memory channel endpoints through pion's test.Bridge.
//
// Every write is cut into records of at most MaxRecordSize bytes and each
// record is delivered as one bridge packet, so a reader sees the same record
// boundaries a TLS channel produces. Reads smaller than a record are served
// from the remainder of the current record.
//
// By default records are delivered by a background goroutine. Disable
// AutoProcess and call Tick or Process to control delivery order in tests.
type Pipe struct {
	bridge *test.Bridge
	ch0    *pipeConn
	ch1    *pipeConn

	mu              sync.Mutex
	closed          bool
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	p.ch0 = newPipeConn(p, p.bridge.GetConn0(), 0, config.Key1)
	p.ch1 = newPipeConn(p, p.bridge.GetConn1(), 1, config.Key0)

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				for p.bridge.Tick() > 0 {
				}
			}
		}
	}()
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoProcess
}

// Channel0 returns endpoint 0. Its PeerKey is PipeConfig.Key1.
func (p *Pipe) Channel0() Channel { return p.ch0 }

// Channel1 returns endpoint 1. Its PeerKey is PipeConfig.Key0.
func (p *Pipe) Channel1() Channel { return p.ch1 }

// Conn0 returns endpoint 0 as a net.Conn.
func (p *Pipe) Conn0() net.Conn { return p.ch0 }

// Conn1 returns endpoint 1 as a net.Conn.
func (p *Pipe) Conn1() net.Conn { return p.ch1 }

// Tick delivers one record in each direction (if available).
// Returns the number of records delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued records.
// Returns the number of records delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints of the pipe and stops auto-processing.
// Closing either endpoint closes the whole pipe so the peer sees end of stream.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// Listener returns a net.Listener whose single Accept yields endpoint 1.
// Further Accept calls block until the listener is closed.
func (p *Pipe) Listener() net.Listener {
	return &pipeListener{
		conn:    p.ch1,
		closeCh: make(chan struct{}),
	}
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // Endpoint ID (0 or 1)
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// pipeConn is one endpoint of a Pipe.
type pipeConn struct {
	pipe *Pipe
	conn net.Conn
	id   int
	peer crypto.PublicKey

	readMu  sync.Mutex
	record  []byte
	pending []byte

	writeMu sync.Mutex
}

func newPipeConn(p *Pipe, conn net.Conn, id int, peer crypto.PublicKey) *pipeConn {
	return &pipeConn{
		pipe:   p,
		conn:   conn,
		id:     id,
		peer:   peer,
		record: make([]byte, MaxRecordSize),
	}
}

func (c *pipeConn) Read(b []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.pending) == 0 {
		n, err := c.conn.Read(c.record)
		if err != nil {
			return 0, err
		}
		c.pending = c.record[:n]
	}
	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *pipeConn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(b) {
		end := written + MaxRecordSize
		if end > len(b) {
			end = len(b)
		}
		rec := make([]byte, end-written)
		copy(rec, b[written:end])
		if _, err := c.conn.Write(rec); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

func (c *pipeConn) Close() error                       { return c.pipe.Close() }
func (c *pipeConn) LocalAddr() net.Addr                { return PipeAddr{ID: c.id} }
func (c *pipeConn) RemoteAddr() net.Addr               { return PipeAddr{ID: 1 - c.id} }
func (c *pipeConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *pipeConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *pipeConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *pipeConn) PeerKey() crypto.PublicKey          { return c.peer }
func (c *pipeConn) Type() ChannelType                  { return ChannelTypePipe }

var (
	_ net.Conn = (*pipeConn)(nil)
	_ Channel  = (*pipeConn)(nil)
)

// pipeListener accepts exactly one connection, the pipe's endpoint 1.
type pipeListener struct {
	conn    *pipeConn
	closeCh chan struct{}

	mu       sync.Mutex
	accepted bool
	closed   bool
}

func (l *pipeListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.Addr(), Err: net.ErrClosed}
	}
	if l.accepted {
		l.mu.Unlock()
		<-l.closeCh
		return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.Addr(), Err: net.ErrClosed}
	}
	l.accepted = true
	l.mu.Unlock()

	return l.conn, nil
}

func (l *pipeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.closeCh)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr { return PipeAddr{ID: 1} }
