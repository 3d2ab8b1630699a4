package types

import (
	"time"
)

// CacheManager stores response payloads keyed by request identity.
// Expired entries are ignored by Get but never evicted by it.
type CacheManager interface {
	LifecycleManager
	Get(identity string) ([]byte, bool)
	Set(identity string, payload []byte, ttl time.Duration) error
	Delete(identity string) error
	Len() int
}

type CacheManagerCreator func(config interface{}) (CacheManager, error)

type CacheEntry struct {
	Identity string        `json:"identity"`
	Payload  []byte        `json:"payload"`
	TTL      time.Duration `json:"ttl"`
	StoredAt time.Time     `json:"stored_at"`
}

// Expired reports whether the entry age reached its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) >= e.TTL
}
