package license

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/logging"
)

// StaticConfig configures a Static backend.
type StaticConfig struct {
	// LibPath is the library the backend licenses. Used for logging.
	LibPath string

	// Features maps a licensed feature to the number of concurrent
	// checkouts allowed. Zero means unlimited.
	Features map[string]int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Static licenses a fixed feature list with optional seat limits.
type Static struct {
	libPath  string
	features map[string]int
	held     map[string]int
	closed   bool
	mu       sync.Mutex
	log      logging.LeveledLogger
}

// NewStatic creates a static backend. The feature map is copied.
func NewStatic(config StaticConfig) *Static {
	s := &Static{
		libPath:  config.LibPath,
		features: make(map[string]int, len(config.Features)),
		held:     make(map[string]int),
	}
	for f, n := range config.Features {
		s.features[f] = n
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("license")
	}
	return s
}

// CheckoutFeature grants feature if it is listed and a seat is free.
func (s *Static) CheckoutFeature(_ context.Context, feature string) (bool, string, error) {
	if feature == "" {
		return false, "", ErrEmptyFeature
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, "", ErrClosed
	}
	seats, ok := s.features[feature]
	if !ok {
		return false, ReasonNotLicensed, nil
	}
	if seats > 0 && s.held[feature] >= seats {
		return false, fmt.Sprintf("No free seats for feature %s", feature), nil
	}
	s.held[feature]++

	if s.log != nil {
		s.log.Debugf("checked out %s for %s (%d held)", feature, s.libPath, s.held[feature])
	}
	return true, "", nil
}

// CheckinFeature returns one seat of feature.
func (s *Static) CheckinFeature(_ context.Context, feature string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, "", ErrClosed
	}
	if s.held[feature] == 0 {
		return false, fmt.Sprintf("Feature %s is not checked out", feature), nil
	}
	s.held[feature]--
	if s.held[feature] == 0 {
		delete(s.held, feature)
	}
	return true, "", nil
}

// Held returns how many seats of feature are checked out.
func (s *Static) Held(feature string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[feature]
}

// Close returns every held seat.
func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.log != nil && len(s.held) > 0 {
		s.log.Debugf("returning %d features for %s", len(s.held), s.libPath)
	}
	clear(s.held)
	return nil
}

var _ Backend = (*Static)(nil)
