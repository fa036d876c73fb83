package metrics

import "errors"

// ErrNoCollector is returned when the admin server has no collector.
var ErrNoCollector = errors.New("metrics: no collector configured")
