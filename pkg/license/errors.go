package license

import "errors"

// License backend errors.
var (
	// ErrUnknownKind is returned for an unrecognized backend kind.
	ErrUnknownKind = errors.New("license: unknown backend kind")

	// ErrClosed is returned when a closed backend is used.
	ErrClosed = errors.New("license: backend closed")

	// ErrEmptyFeature is returned when a feature name is empty.
	ErrEmptyFeature = errors.New("license: empty feature name")
)
