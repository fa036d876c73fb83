// Package session implements the LVE side of a protocol session.
//
// A session runs one sequential loop over a secure channel: read a message
// through the wire codec, parse it, check it against the state machine and
// dispatch it to a handler that replies on the same channel. Every session
// owns its Context, key-mask cache and license backend; nothing mutable is
// shared between sessions.
//
// States advance VERSION → TOOLS → LIB → LICENSE. LICENSE is the serving
// state. The session ends when the channel closes.
package session

// State is the protocol state of a session.
type State int

const (
	// StateVersion expects the protocol version negotiation.
	StateVersion State = iota

	// StateTools expects the tool list, or the library path directly.
	StateTools

	// StateLib expects the library path.
	StateLib

	// StateLicense serves features and files.
	StateLicense
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateVersion:
		return "VERSION"
	case StateTools:
		return "TOOLS"
	case StateLib:
		return "LIB"
	case StateLicense:
		return "LICENSE"
	default:
		return "INVALID"
	}
}

// IsValid returns true if the state is a defined value.
func (s State) IsValid() bool {
	return s >= StateVersion && s <= StateLicense
}
