package cache

import (
	"github.com/jellydator/ttlcache/v3"
)

type ttlStore struct {
	cache *ttlcache.Cache[string, string]
}

func (s *ttlStore) get(key string) (string, bool) {
	item := s.cache.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

func (s *ttlStore) set(key string, content string) {
	s.cache.Set(key, content, ttlcache.NoTTL)
}

// NewTTLStore returns a ttlcache backed store where entries never expire.
//
// No cleanup goroutine is started since nothing ever expires.
func NewTTLStore() Store {
	return &ttlStore{
		cache: ttlcache.New[string, string](
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}
