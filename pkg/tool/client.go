// Package tool is the Modelica tool's side of the library vendor executable
// protocol.
//
// A Client drives one session over an established channel:
//
//	c := tool.NewClient(ch)
//	if err := c.Open(ctx, "/opt/libs/Lib"); err != nil { ... }
//	src, err := c.File(ctx, "Lib/package.moc")
//
// Calls are serialized; every request waits for its reply.
package tool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/backkem/mlle/pkg/protocol"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/pion/logging"
)

// Config configures a Client.
type Config struct {
	// MinVersion and MaxVersion bound the protocol version accepted from the LVE.
	// Default: protocol.MinVersion and protocol.MaxVersion.
	MinVersion int64
	MaxVersion int64

	// Codec configures message framing.
	Codec protocol.CodecConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client speaks the tool side of the protocol over one channel.
type Client struct {
	ch     transport.Channel
	config Config
	r      *protocol.Reader
	w      *protocol.Writer
	log    logging.LeveledLogger

	mu      sync.Mutex
	version int64
	closed  bool
}

// NewClient creates a Client with default configuration.
func NewClient(ch transport.Channel) *Client {
	return NewClientWithConfig(ch, Config{})
}

// NewClientWithConfig creates a Client with the given configuration.
func NewClientWithConfig(ch transport.Channel, config Config) *Client {
	if config.MinVersion == 0 {
		config.MinVersion = protocol.MinVersion
	}
	if config.MaxVersion == 0 {
		config.MaxVersion = protocol.MaxVersion
	}
	c := &Client{
		ch:     ch,
		config: config,
		r:      protocol.NewReaderWithConfig(ch, config.Codec),
		w:      protocol.NewWriterWithConfig(ch, config.Codec),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("tool")
	}
	return c
}

// Open runs the session preamble: VERSION, TOOLS and LIB.
func (c *Client) Open(ctx context.Context, libPath string) error {
	if _, err := c.Version(ctx); err != nil {
		return err
	}
	if err := c.Tools(ctx); err != nil {
		return err
	}
	return c.Lib(ctx, libPath)
}

// Version offers MaxVersion and returns the version the LVE chose.
func (c *Client) Version(ctx context.Context) (int64, error) {
	var v int64
	err := c.roundTrip(ctx, func() error {
		return c.w.WriteNumber(protocol.CmdVersion, c.config.MaxVersion)
	}, func(cmd *protocol.Command) error {
		switch {
		case cmd.Number < c.config.MinVersion:
			return ErrVersionTooLow
		case cmd.Number > c.config.MaxVersion:
			return ErrVersionTooHigh
		}
		v = cmd.Number
		return nil
	}, protocol.CmdVersion)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.version = v
	c.mu.Unlock()
	return v, nil
}

// NegotiatedVersion returns the version agreed by Version, or 0.
func (c *Client) NegotiatedVersion() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Tools announces the tool.
func (c *Client) Tools(ctx context.Context) error {
	return c.roundTrip(ctx, func() error {
		return c.w.WriteSimple(protocol.CmdTools)
	}, nil, protocol.CmdYes)
}

// Lib sends the absolute path of the library on the LVE's file system.
func (c *Client) Lib(ctx context.Context, absPath string) error {
	return c.sendString(ctx, protocol.CmdLib, absPath, nil, protocol.CmdYes)
}

// Feature checks out a license feature. A NO reply is returned as a
// *DeniedError.
func (c *Client) Feature(ctx context.Context, name string) error {
	return c.sendString(ctx, protocol.CmdFeature, name, denied, protocol.CmdYes, protocol.CmdNo)
}

// ReturnFeature returns a checked out feature.
func (c *Client) ReturnFeature(ctx context.Context, name string) error {
	return c.sendString(ctx, protocol.CmdReturnFeature, name, nil, protocol.CmdYes)
}

// License requests the simplified license for a package. ErrNotSimplified
// means the LVE expects FEATURE instead.
func (c *Client) License(ctx context.Context, pkg string) error {
	return c.sendString(ctx, protocol.CmdLicense, pkg, simplified,
		protocol.CmdYes, protocol.CmdNotSimple, protocol.CmdNo)
}

// ReturnLicense returns the simplified license for a package.
func (c *Client) ReturnLicense(ctx context.Context, pkg string) error {
	return c.sendString(ctx, protocol.CmdReturnLicense, pkg, simplified,
		protocol.CmdYes, protocol.CmdNotSimple)
}

// File fetches a file relative to the library root. Encrypted files arrive
// decrypted.
func (c *Client) File(ctx context.Context, relPath string) ([]byte, error) {
	var data []byte
	err := c.sendString(ctx, protocol.CmdFile, relPath, func(cmd *protocol.Command) error {
		data = cmd.Data
		return nil
	}, protocol.CmdFileCont)
	return data, err
}

// Close closes the channel, which ends the session on the LVE.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ch.Close()
}

func denied(cmd *protocol.Command) error {
	if cmd.ID == protocol.CmdNo {
		return &DeniedError{Reason: string(cmd.Data)}
	}
	return nil
}

func simplified(cmd *protocol.Command) error {
	if cmd.ID == protocol.CmdNotSimple {
		return ErrNotSimplified
	}
	return denied(cmd)
}

func (c *Client) sendString(ctx context.Context, id protocol.CommandID, s string,
	handle func(*protocol.Command) error, want ...protocol.CommandID,
) error {
	return c.roundTrip(ctx, func() error {
		return c.w.WriteLength(id, []byte(s))
	}, handle, want...)
}

// deadliner is implemented by channels that support I/O deadlines.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// roundTrip sends one request and reads one reply. handle runs on an
// expected reply.
func (c *Client) roundTrip(ctx context.Context, send func() error,
	handle func(*protocol.Command) error, want ...protocol.CommandID,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if d, ok := c.ch.(deadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			_ = d.SetDeadline(deadline)
			defer d.SetDeadline(time.Time{})
		}
	}

	if err := send(); err != nil {
		return err
	}
	msg, err := c.r.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return errors.Join(ctx.Err(), err)
		}
		return err
	}
	cmd, err := protocol.ParseCommand(msg)
	if err != nil {
		return err
	}
	if c.log != nil {
		c.log.Tracef("reply %s", cmd)
	}

	if cmd.ID == protocol.CmdError {
		return &ErrorReply{Code: protocol.ErrorCode(cmd.Number), Message: string(cmd.Data)}
	}
	for _, id := range want {
		if cmd.ID == id {
			if handle == nil {
				return nil
			}
			return handle(cmd)
		}
	}
	return unexpected(cmd.ID, want...)
}
