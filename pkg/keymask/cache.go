package keymask

// Cache maps a normalized directory to its 32-byte mask.
//
// Entries are written once and never evicted. A Cache belongs to a single
// session and is not safe for concurrent use.
type Cache struct {
	masks map[string][KeySize]byte
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{masks: make(map[string][KeySize]byte)}
}

// Get returns the mask cached for dir.
func (c *Cache) Get(dir string) ([KeySize]byte, bool) {
	m, ok := c.masks[dir]
	return m, ok
}

// Put stores mask for dir. It returns false and leaves the cache unchanged
// if dir already has an entry.
func (c *Cache) Put(dir string, mask [KeySize]byte) bool {
	if _, ok := c.masks[dir]; ok {
		return false
	}
	c.masks[dir] = mask
	return true
}

// Len returns the number of cached directories.
func (c *Cache) Len() int {
	return len(c.masks)
}

// Reset drops every entry.
func (c *Cache) Reset() {
	clear(c.masks)
}
