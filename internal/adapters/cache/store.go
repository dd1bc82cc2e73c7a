package cache

// Store holds the content of views that have been loaded successfully.
// Entries are never evicted by the coalescing cache.
type Store interface {
	get(key string) (string, bool)
	set(key string, content string)
}
