package keymask

import (
	"path"
	"strings"
)

// Marker file names. Comparison is case-insensitive.
const (
	MarkerName          = "package.mo"
	MarkerNameEncrypted = "package.moc"
)

// RootDir is the cache key of the library root.
const RootDir = "/"

// NormalizePath converts both separator styles to '/' and cleans the result.
// The root maps to the empty string.
func NormalizePath(rel string) string {
	p := path.Clean(strings.ReplaceAll(rel, `\`, "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// SplitPath splits rel into its directory cache key and base name.
// Files at the top level belong to RootDir.
func SplitPath(rel string) (dir, base string) {
	p := NormalizePath(rel)
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return RootDir, p
	}
	return p[:i], p[i+1:]
}

// IsMarker reports whether base names a directory marker file.
func IsMarker(base string) bool {
	return strings.EqualFold(base, MarkerName) || strings.EqualFold(base, MarkerNameEncrypted)
}

// parentDir returns the cache key of dir's parent.
func parentDir(dir string) string {
	i := strings.LastIndexByte(dir, '/')
	if i < 0 {
		return RootDir
	}
	return dir[:i]
}
