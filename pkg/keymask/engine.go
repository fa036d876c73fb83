// Package keymask derives the effective key of every file in a protected
// library tree.
//
// Each directory may carry an encrypted marker file (package.moc) whose
// plaintext ends in 32 random bytes R(D). That trailer is the mask of the
// directory; a directory without a marker takes its parent's mask. A file's
// key is the library key XORed with the mask of its directory:
//
//	M(/) = 0
//	M(D) = R(D)          if D has a marker with trailing mask R(D)
//	M(D) = M(parent(D))  otherwise
//	key(D/f) = K ⊕ M(D)
//	key(D/package.moc) = K ⊕ M(parent(D))
//
// The root marker is encrypted under K and has no trailing mask. Masks do not
// accumulate, but reading R(D) still needs the mask of the nearest marked
// ancestor, so decrypting any file walks every marker up to the root.
package keymask

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/backkem/mlle/pkg/crypto"
	"github.com/pion/logging"
)

// KeySize is the size of library keys and masks.
const KeySize = crypto.BlobKeySize

// Outcome reports what DemaskKey did to the key.
type Outcome int

const (
	// OutcomeApplied means the directory mask was XORed into the key.
	OutcomeApplied Outcome = iota

	// OutcomeNoMask means the path is the root marker and the key is used verbatim.
	OutcomeNoMask
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "Applied"
	case OutcomeNoMask:
		return "NoMask"
	default:
		return "Unknown"
	}
}

// Config configures an Engine.
type Config struct {
	// Source reads marker blobs. Required for DemaskKey.
	Source MarkerSource

	// Cache holds directory masks. If nil, a new cache is created.
	Cache *Cache

	// Rand generates marker masks on the encrypt side.
	// Default: crypto/rand.Reader
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Engine walks a library tree and masks or demasks keys.
// An Engine belongs to one session or one encryption run and is not safe
// for concurrent use.
type Engine struct {
	source MarkerSource
	cache  *Cache
	rand   io.Reader
	reads  int
	log    logging.LeveledLogger
}

// NewEngine creates an engine with the given configuration.
func NewEngine(config Config) *Engine {
	e := &Engine{
		source: config.Source,
		cache:  config.Cache,
		rand:   config.Rand,
	}
	if e.cache == nil {
		e.cache = NewCache()
	}
	if e.rand == nil {
		e.rand = rand.Reader
	}
	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("keymask")
	}
	return e
}

// Cache returns the engine's mask cache.
func (e *Engine) Cache() *Cache { return e.cache }

// Reads returns how many marker reads the engine has issued.
func (e *Engine) Reads() int { return e.reads }

// DemaskKey turns the library key into the key of the file at relPath.
//
// key holds the library key on entry and the file key on return. Markers
// needed along the way are read through the engine's source once and their
// masks cached. A marker that fails authentication aborts the walk.
func (e *Engine) DemaskKey(relPath string, key *[KeySize]byte) (Outcome, error) {
	dir, base := SplitPath(relPath)

	if IsMarker(base) {
		if dir == RootDir {
			return OutcomeNoMask, nil
		}
		// A marker is keyed by the directory that contains it.
		dir = parentDir(dir)
	}

	mask, err := e.dirMask(dir, key)
	if err != nil {
		return OutcomeApplied, err
	}
	xorInto(key, &mask)
	return OutcomeApplied, nil
}

// dirMask returns M(dir), reading and decrypting markers on cache misses.
// base is the unmodified library key.
func (e *Engine) dirMask(dir string, base *[KeySize]byte) ([KeySize]byte, error) {
	var zero [KeySize]byte
	if dir == RootDir {
		return zero, nil
	}
	if m, ok := e.cache.Get(dir); ok {
		return m, nil
	}
	if e.source == nil {
		return zero, ErrNoSource
	}

	parent, err := e.dirMask(parentDir(dir), base)
	if err != nil {
		return zero, err
	}

	e.reads++
	blob, err := e.source.ReadMarker(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if e.log != nil {
			e.log.Tracef("no marker in %s, inheriting parent mask", dir)
		}
		e.cache.Put(dir, parent)
		return parent, nil
	}
	if err != nil {
		return zero, fmt.Errorf("keymask: read marker of %s: %w", dir, err)
	}

	markerKey := *base
	xorInto(&markerKey, &parent)
	plain, err := crypto.DecryptBlob(markerKey[:], blob)
	clear(markerKey[:])
	if err != nil {
		if e.log != nil {
			e.log.Warnf("marker of %s failed to decrypt: %v", dir, err)
		}
		return zero, fmt.Errorf("%w: %s: %w", ErrMarkerAuth, dir, err)
	}
	defer clear(plain)
	if len(plain) < KeySize {
		return zero, fmt.Errorf("%w: %s", ErrMarkerTooShort, dir)
	}

	var mask [KeySize]byte
	copy(mask[:], plain[len(plain)-KeySize:])
	e.cache.Put(dir, mask)

	if e.log != nil {
		e.log.Tracef("cached mask for %s", dir)
	}
	return mask, nil
}

// MaskKey turns the library key into the encryption key of the file at
// relPath.
//
// For the marker of a directory below the root a fresh random mask is
// generated, cached and returned; the caller appends it to the marker
// plaintext before encrypting. For every other file the returned mask is nil.
// A directory's marker must be encrypted before any file beneath it,
// otherwise ErrMarkerOrder is returned.
func (e *Engine) MaskKey(relPath string, key *[KeySize]byte) (*[KeySize]byte, error) {
	dir, base := SplitPath(relPath)

	if !IsMarker(base) {
		mask := e.inherited(dir)
		xorInto(key, &mask)
		return nil, nil
	}

	if _, ok := e.cache.Get(dir); ok {
		return nil, fmt.Errorf("%w: %s", ErrMarkerOrder, relPath)
	}

	if dir == RootDir {
		e.cache.Put(RootDir, [KeySize]byte{})
		return nil, nil
	}

	parent := e.inherited(parentDir(dir))
	r := new([KeySize]byte)
	if _, err := io.ReadFull(e.rand, r[:]); err != nil {
		return nil, fmt.Errorf("keymask: generate mask: %w", err)
	}

	e.cache.Put(dir, *r)
	xorInto(key, &parent)

	if e.log != nil {
		e.log.Debugf("generated mask for %s", dir)
	}
	return r, nil
}

// inherited returns the cached mask of dir, caching the parent's mask for
// directories seen without a marker.
func (e *Engine) inherited(dir string) [KeySize]byte {
	if m, ok := e.cache.Get(dir); ok {
		return m
	}
	var m [KeySize]byte
	if dir != RootDir {
		m = e.inherited(parentDir(dir))
	}
	e.cache.Put(dir, m)
	return m
}

func xorInto(dst, src *[KeySize]byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
