package cache

import "sync"

type basicStore struct {
	cache     map[string]string
	cacheLock sync.RWMutex
}

func (s *basicStore) get(key string) (string, bool) {
	s.cacheLock.RLock()
	defer s.cacheLock.RUnlock()

	content, ok := s.cache[key]
	return content, ok
}

func (s *basicStore) set(key string, content string) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	s.cache[key] = content
}

func NewBasicStore() Store {
	return &basicStore{
		cache: make(map[string]string),
	}
}
