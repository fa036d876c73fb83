package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed advertiser.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when the service is already advertised.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrNotStarted is returned when stopping a service that was not started.
	ErrNotStarted = errors.New("discovery: not started")

	// ErrInvalidPort is returned when the port number is out of range.
	ErrInvalidPort = errors.New("discovery: invalid port (must be 1-65535)")

	// ErrInvalidInstanceName is returned when the instance name is too long.
	ErrInvalidInstanceName = errors.New("discovery: invalid instance name (max 63 bytes)")

	// ErrInvalidTXTRecord is returned when a TXT record has invalid content.
	ErrInvalidTXTRecord = errors.New("discovery: invalid TXT record")

	// ErrServiceNotFound is returned when no matching service answered.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrNoAddress is returned when a resolved service carries no IP address.
	ErrNoAddress = errors.New("discovery: service has no address")

	// ErrTimeout is returned when a lookup times out.
	ErrTimeout = errors.New("discovery: operation timed out")
)
