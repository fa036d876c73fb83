// Package license provides the license backends an LVE checks features
// against.
//
// A backend is created lazily per session with the library path and is
// closed when the session ends, returning every feature it still holds.
// Denials are not errors: CheckoutFeature reports false with a reason that
// is relayed to the tool. An error means the backend itself failed.
package license

import (
	"context"
	"fmt"
	"strings"
)

// Backend checks features in and out for one session.
type Backend interface {
	// CheckoutFeature acquires feature. On denial it returns false and a
	// human readable reason.
	CheckoutFeature(ctx context.Context, feature string) (bool, string, error)

	// CheckinFeature releases feature.
	CheckinFeature(ctx context.Context, feature string) (bool, string, error)

	// Close releases every feature still checked out.
	Close() error
}

// Factory creates the backend of one session.
type Factory func(libPath string) (Backend, error)

// Kind selects a backend implementation.
type Kind int

const (
	// KindUnknown is an unset or invalid kind.
	KindUnknown Kind = iota

	// KindDummy licenses only TestFeature.
	KindDummy

	// KindStatic licenses a configured feature list.
	KindStatic
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDummy:
		return "dummy"
	case KindStatic:
		return "static"
	default:
		return "unknown"
	}
}

// IsValid returns true if the kind is a defined value.
func (k Kind) IsValid() bool {
	return k == KindDummy || k == KindStatic
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dummy", "":
		return KindDummy, nil
	case "static":
		return KindStatic, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// NewFactory returns the factory for kind. features configures KindStatic
// and maps each feature to its seat count per session; zero means unlimited.
func NewFactory(kind Kind, features map[string]int) (Factory, error) {
	switch kind {
	case KindDummy:
		return func(string) (Backend, error) { return NewDummy(), nil }, nil
	case KindStatic:
		return func(libPath string) (Backend, error) {
			return NewStatic(StaticConfig{LibPath: libPath, Features: features}), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}
