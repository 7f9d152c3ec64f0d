package jsonldb

import "sync"

// Cache maps a log file path to its reconstructed state (id -> winning
// record). Entries are created lazily on first load and live until
// explicitly cleared; there is no automatic eviction, long-running
// processes must call Clear to bound memory.
//
// The mutex protects the path registry only. The state maps themselves
// are shared with callers and mutated by the merge engine; in-process
// callers doing concurrent saves on the same path must serialize
// themselves if they need strict consistency.
type Cache struct {
	mu      sync.Mutex
	entries map[string]map[string]*Record
}

func NewCache() *Cache {
	return &Cache{}
}

// DefaultCache is shared by all DB values that don't inject their own.
// Tests should inject a fresh Cache instead of resetting this one.
var DefaultCache = NewCache()

func (c *Cache) Get(path string) (map[string]*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.entries[path]
	return state, ok
}

func (c *Cache) Set(path string, state map[string]*Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]map[string]*Record{}
	}
	c.entries[path] = state
}

// Clear removes the given entries, or all entries when called with no
// arguments.
func (c *Cache) Clear(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(paths) == 0 {
		c.entries = nil
		return
	}
	for _, path := range paths {
		delete(c.entries, path)
	}
}

// ClearCache clears entries in DefaultCache. Call it when a log file
// might have changed out-of-band (another process wrote to it).
func ClearCache(paths ...string) {
	DefaultCache.Clear(paths...)
}
