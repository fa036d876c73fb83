package session

import (
	"time"

	"github.com/backkem/mlle/pkg/protocol"
	"github.com/backkem/mlle/pkg/transport"
)

// Info describes a running session.
type Info struct {
	ID         string
	Channel    transport.ChannelType
	Started    time.Time
	Authorized bool
}

// Observer receives session events. Implementations must be safe for
// concurrent use since every session reports to the same observer.
type Observer interface {
	SessionStarted(info Info)
	SessionEnded(id string)
	CommandHandled(id protocol.CommandID)
	ErrorReplied(code protocol.ErrorCode)
	FileServed(encrypted bool, size int)
}

// nopObserver discards events.
type nopObserver struct{}

func (nopObserver) SessionStarted(Info)               {}
func (nopObserver) SessionEnded(string)               {}
func (nopObserver) CommandHandled(protocol.CommandID) {}
func (nopObserver) ErrorReplied(protocol.ErrorCode)   {}
func (nopObserver) FileServed(bool, int)              {}
