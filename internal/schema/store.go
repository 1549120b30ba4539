// Package schema implements schema association resolution for jsonlink.
//
// It merges the built-in catalog with package-contributed and user-configured
// schemas into the association list pushed to the language server at startup,
// and serves schema content back to the server on demand through the
// vscode/content request.
package schema

import "sync"

// Store caches schema content by URI for the lifetime of the process.
//
// It is written during activation (manifest-contributed schema bodies) and
// lazily by the ContentProvider afterwards. A URI always resolves to the same
// content, so a duplicate check-then-populate under concurrent readers is
// idempotent; the mutex only protects the map itself. There is no eviction:
// the cache is bounded by the number of distinct schemas referenced in a
// session.
type Store struct {
	mu      sync.RWMutex
	content map[string]string
}

// NewStore creates an empty content store.
func NewStore() *Store {
	return &Store{content: make(map[string]string)}
}

// Get returns the cached content for uri, if present.
func (s *Store) Get(uri string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.content[uri]
	return c, ok
}

// Put caches content under uri.
func (s *Store) Put(uri, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[uri] = content
}

// Len returns the number of cached schemas.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.content)
}
