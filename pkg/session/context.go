package session

import (
	"time"

	"github.com/backkem/mlle/pkg/keymask"
	"github.com/backkem/mlle/pkg/license"
	"github.com/google/uuid"
)

// Context is the state of one session. It is created when the channel is
// established and dropped when the session ends.
type Context struct {
	// ID identifies the session in logs and on the admin endpoint.
	ID uuid.UUID

	// Started is when the channel was accepted.
	Started time.Time

	// State is the current protocol state.
	State State

	// LibPath is the library root with trailing separators removed.
	LibPath string

	// Engine derives file keys for LibPath. Nil until LIB succeeds.
	Engine *keymask.Engine

	// denial is cached once and answers every later file or feature request.
	denial *ProtocolError

	backend license.Backend
}

func newContext() *Context {
	return &Context{
		ID:      uuid.New(),
		Started: time.Now(),
		State:   StateVersion,
	}
}

// Authorized reports whether no denial is cached.
func (c *Context) Authorized() bool {
	return c.denial == nil
}

// Denial returns the cached denial, or nil.
func (c *Context) Denial() *ProtocolError {
	return c.denial
}

// deny caches err unless a denial is already recorded.
func (c *Context) deny(err *ProtocolError) {
	if c.denial == nil {
		c.denial = err
	}
}

// licenseBackend builds the session's backend on first use.
func (c *Context) licenseBackend(factory license.Factory) (license.Backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}
	b, err := factory(c.LibPath)
	if err != nil {
		return nil, err
	}
	c.backend = b
	return b, nil
}

// close releases the license backend and the key-mask cache.
func (c *Context) close() error {
	if c.Engine != nil {
		c.Engine.Cache().Reset()
	}
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}
