package transport

import "errors"

// Transport errors.
var (
	// ErrWouldBlock is returned by a channel that cannot complete a read or
	// write right now. Callers retry the identical operation.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrClosed is returned when an operation is attempted on a closed listener or channel.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no channel handler is configured.
	ErrNoHandler = errors.New("transport: no channel handler configured")

	// ErrAlreadyStarted is returned when Start is called on an already running listener.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrNoPeerCertificate is returned when a TLS peer presented no certificate.
	ErrNoPeerCertificate = errors.New("transport: peer presented no certificate")

	// ErrPeerKeyMismatch is returned when a pinned server key does not match.
	ErrPeerKeyMismatch = errors.New("transport: peer key does not match pinned key")

	// ErrNoIdentity is returned when a TLS endpoint is configured without a certificate.
	ErrNoIdentity = errors.New("transport: no certificate configured")
)
