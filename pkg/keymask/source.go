package keymask

import (
	"io/fs"
	"os"
	"path/filepath"
)

// MarkerSource reads the encrypted marker blob of a directory.
// A missing marker must be reported with an error matching fs.ErrNotExist.
type MarkerSource interface {
	ReadMarker(dir string) ([]byte, error)
}

// DirSource reads markers from a library tree on disk.
type DirSource struct {
	// Root is the library base directory.
	Root string
}

// ReadMarker reads Root/dir/package.moc.
func (s DirSource) ReadMarker(dir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(dir), MarkerNameEncrypted))
}

// FSSource reads markers from an fs.FS, such as an embedded library.
type FSSource struct {
	FS fs.FS
}

// ReadMarker reads dir/package.moc from the file system.
func (s FSSource) ReadMarker(dir string) ([]byte, error) {
	return fs.ReadFile(s.FS, dir+"/"+MarkerNameEncrypted)
}

var (
	_ MarkerSource = DirSource{}
	_ MarkerSource = FSSource{}
)
