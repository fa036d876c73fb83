package lve

import "errors"

// ErrNotRunning is reported by the health check while the listener is down.
var ErrNotRunning = errors.New("lve: not running")
