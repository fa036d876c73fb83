// Package library encrypts Modelica library trees and reads them back.
//
// Encryption turns every .mo file into a .moc file next to verbatim copies
// of all other files. Each directory's package.mo is encrypted before
// anything else in that directory so its mask exists before the files that
// depend on it.
package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backkem/mlle/pkg/keymask"
	"github.com/pion/logging"
)

// Extensions of plaintext and encrypted Modelica files.
const (
	SourceExtension    = ".mo"
	EncryptedExtension = ".moc"
)

// EncryptConfig configures EncryptTree.
type EncryptConfig struct {
	// Src is the plaintext library root.
	Src string

	// Dst is the output root. It is created if missing.
	Dst string

	// Secret supplies the library key. Required.
	Secret keymask.SecretProvider

	// Rand is the source of IVs and masks. Default: crypto/rand.Reader
	Rand io.Reader

	// Skip, if set, excludes entries. rel uses '/' separators.
	Skip func(rel string, isDir bool) bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Stats counts what EncryptTree wrote.
type Stats struct {
	Encrypted   int
	Copied      int
	Directories int
}

type treeEncrypter struct {
	config EncryptConfig
	engine *keymask.Engine
	key    [keymask.KeySize]byte
	stats  Stats
	log    logging.LeveledLogger
}

// EncryptTree encrypts the library at config.Src into config.Dst.
func EncryptTree(ctx context.Context, config EncryptConfig) (Stats, error) {
	if config.Secret == nil {
		return Stats{}, ErrNoSecret
	}
	src, err := filepath.Abs(config.Src)
	if err != nil {
		return Stats{}, err
	}
	dst, err := filepath.Abs(config.Dst)
	if err != nil {
		return Stats{}, err
	}
	if rel, err := filepath.Rel(src, dst); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Stats{}, ErrDstInsideSrc
	}
	info, err := os.Stat(src)
	if err != nil {
		return Stats{}, err
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("%w: %s", ErrNotDirectory, src)
	}

	key, err := config.Secret.LibraryKey(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("library: %w", err)
	}

	t := &treeEncrypter{
		config: config,
		engine: keymask.NewEngine(keymask.Config{Rand: config.Rand, LoggerFactory: config.LoggerFactory}),
		key:    key,
	}
	defer clear(t.key[:])
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("library")
	}
	config.Src, config.Dst = src, dst
	t.config = config

	if err := t.dir(ctx, ""); err != nil {
		return t.stats, err
	}
	if t.log != nil {
		t.log.Infof("encrypted %d files, copied %d files in %d directories",
			t.stats.Encrypted, t.stats.Copied, t.stats.Directories)
	}
	return t.stats, nil
}

// dir processes one directory: marker first, then files, then subdirectories.
func (t *treeEncrypter) dir(ctx context.Context, rel string) error {
	srcDir := filepath.Join(t.config.Src, filepath.FromSlash(rel))
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	info, err := os.Stat(srcDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(t.config.Dst, filepath.FromSlash(rel)), info.Mode().Perm()|0o700); err != nil {
		return err
	}
	t.stats.Directories++

	sort.SliceStable(entries, func(i, j int) bool {
		return rank(entries[i]) < rank(entries[j])
	})

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		child := path.Join(rel, e.Name())
		if t.config.Skip != nil && t.config.Skip(child, e.IsDir()) {
			continue
		}
		switch {
		case e.IsDir():
			err = t.dir(ctx, child)
		case e.Type().IsRegular():
			err = t.file(child)
		default:
			if t.log != nil {
				t.log.Warnf("skipping %s: not a regular file", child)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// rank orders a directory's entries: marker, files, directories.
func rank(e os.DirEntry) int {
	switch {
	case !e.IsDir() && strings.EqualFold(e.Name(), keymask.MarkerName):
		return 0
	case !e.IsDir():
		return 1
	default:
		return 2
	}
}

func (t *treeEncrypter) file(rel string) error {
	srcPath := filepath.Join(t.config.Src, filepath.FromSlash(rel))
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	if !IsSource(rel) {
		dst := filepath.Join(t.config.Dst, filepath.FromSlash(rel))
		t.stats.Copied++
		return os.WriteFile(dst, data, info.Mode().Perm())
	}

	blob, err := t.engine.Encrypt(rel, t.key, data)
	clear(data)
	if err != nil {
		return fmt.Errorf("library: encrypt %s: %w", rel, err)
	}
	dst := filepath.Join(t.config.Dst, filepath.FromSlash(EncryptedName(rel)))
	if t.log != nil {
		t.log.Debugf("encrypted %s", rel)
	}
	t.stats.Encrypted++
	return os.WriteFile(dst, blob, info.Mode().Perm())
}

// IsSource reports whether name has the plaintext Modelica extension.
func IsSource(name string) bool {
	return strings.EqualFold(path.Ext(name), SourceExtension)
}

// IsEncrypted reports whether name has the encrypted Modelica extension.
func IsEncrypted(name string) bool {
	return strings.EqualFold(path.Ext(name), EncryptedExtension)
}

// EncryptedName returns name with its .mo extension replaced by .moc.
func EncryptedName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + EncryptedExtension
}

// SourceName returns name with its .moc extension replaced by .mo.
func SourceName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + SourceExtension
}
