package config

import "errors"

// Configuration errors.
var (
	// ErrInvalid is returned when validation fails.
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrNoSecret is returned when no library key source is configured.
	ErrNoSecret = errors.New("config: no library secret configured")
)
