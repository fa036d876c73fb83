package library

import "errors"

// Library errors.
var (
	// ErrNoSecret is returned when no library secret is configured.
	ErrNoSecret = errors.New("library: no secret provider")

	// ErrDstInsideSrc is returned when the output tree would be written into the input tree.
	ErrDstInsideSrc = errors.New("library: destination is inside the source tree")

	// ErrNotDirectory is returned when a tree root is not a directory.
	ErrNotDirectory = errors.New("library: not a directory")
)
