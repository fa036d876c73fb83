package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backkem/mlle/pkg/keymask"
	"github.com/pion/logging"
)

// Reader reads files from an encrypted library, decrypting .moc files.
// Marker masks are cached across calls. A Reader is not safe for
// concurrent use.
type Reader struct {
	root   string
	secret keymask.SecretProvider
	engine *keymask.Engine
}

// NewReader opens the encrypted library at root.
func NewReader(root string, secret keymask.SecretProvider, lf logging.LoggerFactory) (*Reader, error) {
	if secret == nil {
		return nil, ErrNoSecret
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}
	return &Reader{
		root:   root,
		secret: secret,
		engine: keymask.NewEngine(keymask.Config{
			Source:        keymask.DirSource{Root: root},
			LoggerFactory: lf,
		}),
	}, nil
}

// ReadFile returns the plaintext of the file at rel.
func (r *Reader) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	rel = keymask.NormalizePath(rel)
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	if !IsEncrypted(rel) {
		return data, nil
	}

	key, err := r.secret.LibraryKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	plain, err := r.engine.Decrypt(rel, key, data)
	if err != nil {
		return nil, fmt.Errorf("library: decrypt %s: %w", rel, err)
	}
	return plain, nil
}

// MarkerReads returns how many marker files the reader has read.
func (r *Reader) MarkerReads() int {
	return r.engine.Reads()
}

// DecryptTree writes the plaintext of every file of the encrypted library
// at src into dst, renaming .moc files back to .mo.
func DecryptTree(ctx context.Context, src, dst string, secret keymask.SecretProvider, lf logging.LoggerFactory) (int, error) {
	r, err := NewReader(src, secret, lf)
	if err != nil {
		return 0, err
	}

	n := 0
	err = filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		plain, err := r.ReadFile(ctx, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if IsEncrypted(rel) {
			out = SourceName(out)
		}
		n++
		return os.WriteFile(out, plain, 0o644)
	})
	return n, err
}
