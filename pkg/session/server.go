package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/backkem/mlle/pkg/auth"
	"github.com/backkem/mlle/pkg/keymask"
	"github.com/backkem/mlle/pkg/license"
	"github.com/backkem/mlle/pkg/protocol"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/pion/logging"
)

// Config configures a Server.
type Config struct {
	// Secret supplies the library key. Required.
	Secret keymask.SecretProvider

	// Authorizer checks the tool's public key at session start.
	// If nil, every tool is accepted.
	Authorizer auth.Authorizer

	// LicenseFactory creates the license backend of a session.
	// If nil, the dummy backend is used.
	LicenseFactory license.Factory

	// GlobalFeature, if set, is checked out at session start. A denial is
	// cached and answers every later file or feature request.
	GlobalFeature string

	// BaseDir, if set, confines LIB paths. Relative paths are resolved
	// against it and absolute paths must lie inside it.
	BaseDir string

	// Codec configures the wire codec of every session.
	Codec protocol.CodecConfig

	// Observer receives session events. Optional.
	Observer Observer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Server serves protocol sessions. A Server holds no per-session state and
// may serve any number of channels concurrently.
type Server struct {
	config Config
	log    logging.LeveledLogger
}

// NewServer creates a server with the given configuration.
func NewServer(config Config) (*Server, error) {
	if config.Secret == nil {
		return nil, ErrNoSecret
	}
	if config.LicenseFactory == nil {
		config.LicenseFactory = func(string) (license.Backend, error) {
			return license.NewDummy(), nil
		}
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}

	s := &Server{config: config}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}
	return s, nil
}

// Serve runs one session over ch until the channel ends, a transport error
// occurs or ctx is cancelled. It closes ch before returning. A clean end of
// stream returns nil.
func (s *Server) Serve(ctx context.Context, ch transport.Channel) error {
	sess := &session{
		server: s,
		ch:     ch,
		ctx:    newContext(),
		r:      protocol.NewReaderWithConfig(ch, s.config.Codec),
		w:      protocol.NewWriterWithConfig(ch, s.config.Codec),
	}
	return sess.run(ctx)
}

// session is the per-channel half of a Server.
type session struct {
	server *Server
	ch     transport.Channel
	ctx    *Context
	r      *protocol.Reader
	w      *protocol.Writer
}

func (s *session) logf(format string, args ...any) {
	if s.server.log != nil {
		s.server.log.Debugf("[%s] "+format, append([]any{s.ctx.ID}, args...)...)
	}
}

func (s *session) warnf(format string, args ...any) {
	if s.server.log != nil {
		s.server.log.Warnf("[%s] "+format, append([]any{s.ctx.ID}, args...)...)
	}
}

func (s *session) run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.ch.Close() })
	defer stop()
	defer s.ch.Close()

	s.authorize(ctx)

	obs := s.server.config.Observer
	obs.SessionStarted(Info{
		ID:         s.ctx.ID.String(),
		Channel:    s.ch.Type(),
		Started:    s.ctx.Started,
		Authorized: s.ctx.Authorized(),
	})
	defer obs.SessionEnded(s.ctx.ID.String())

	if s.server.log != nil {
		s.server.log.Infof("[%s] session started over %s (authorized=%t)", s.ctx.ID, s.ch.Type(), s.ctx.Authorized())
	}

	err := s.loop(ctx)

	if cerr := s.ctx.close(); cerr != nil {
		s.warnf("closing license backend: %v", cerr)
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	if s.server.log != nil {
		if err != nil {
			s.server.log.Infof("[%s] session ended: %v", s.ctx.ID, err)
		} else {
			s.server.log.Infof("[%s] session ended", s.ctx.ID)
		}
	}
	return err
}

func (s *session) loop(ctx context.Context) error {
	for {
		msg, err := s.r.ReadMessage()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, protocol.ErrLineTooLong):
			if err := s.replyError(protocol.ErrorCommandNotUnderstood,
				fmt.Sprintf(msgLineTooLong, protocol.MaxLineSize)); err != nil {
				return err
			}
			continue
		case errors.Is(err, protocol.ErrMessageTooLarge):
			// The payload that follows cannot be skipped reliably.
			if rerr := s.replyError(protocol.ErrorOther, msgMessageTooLarge); rerr != nil {
				s.logf("reply to oversized message: %v", rerr)
			}
			return err
		default:
			return err
		}

		cmd, err := protocol.ParseCommand(msg)
		if err != nil {
			var gerr *protocol.GrammarError
			text := msgParseInternal
			if errors.As(err, &gerr) {
				text = gerr.Message
			}
			s.logf("rejected message: %v", err)
			if err := s.replyError(protocol.ErrorCommandNotUnderstood, text); err != nil {
				return err
			}
			continue
		}

		if err := s.handle(ctx, cmd); err != nil {
			return err
		}
	}
}

// handle checks cmd against the state machine and dispatches it.
// Returned errors are transport errors and end the session.
func (s *session) handle(ctx context.Context, cmd *protocol.Command) error {
	s.server.config.Observer.CommandHandled(cmd.ID)

	next, ok := NextState(s.ctx.State, cmd.ID)
	if !ok {
		s.logf("%s not valid in state %s", cmd.ID, s.ctx.State)
		return s.replyError(protocol.ErrorCommandNotUnderstood, ExplainInvalid(s.ctx.State, cmd.ID))
	}

	advance, err := s.dispatch(ctx, cmd)
	if err != nil {
		return err
	}
	if advance {
		s.ctx.State = next
	}
	return nil
}

func (s *session) dispatch(ctx context.Context, cmd *protocol.Command) (bool, error) {
	switch cmd.ID {
	case protocol.CmdVersion:
		return s.handleVersion(cmd)
	case protocol.CmdTools:
		return true, s.handleTools()
	case protocol.CmdLib:
		return true, s.handleLib(cmd)
	case protocol.CmdFeature:
		return true, s.handleFeature(ctx, cmd)
	case protocol.CmdReturnFeature:
		return true, s.handleReturnFeature(ctx, cmd)
	case protocol.CmdLicense, protocol.CmdReturnLicense:
		return true, s.w.WriteSimple(protocol.CmdNotSimple)
	case protocol.CmdFile:
		return true, s.handleFile(ctx, cmd)
	default:
		return false, s.replyError(protocol.ErrorUndefined, "Internal error in protocol state management.")
	}
}

// replyError sends an ERROR reply.
func (s *session) replyError(code protocol.ErrorCode, msg string) error {
	s.server.config.Observer.ErrorReplied(code)
	return s.w.WriteError(code, msg)
}

// replyDenial sends a cached denial.
func (s *session) replyDenial() error {
	d := s.ctx.denial
	return s.replyError(d.Code, d.Message)
}
