package ebird

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// responseCache is a per-URL TTL cache of raw response bodies. Expired
// entries are dropped lazily on lookup.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

func newResponseCache(ttl time.Duration, clk clockwork.Clock) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

func (rc *responseCache) lookup(key string) ([]byte, bool) {
	if rc.ttl <= 0 {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	e, ok := rc.entries[key]
	if !ok {
		return nil, false
	}
	if rc.clock.Now().After(e.expires) {
		delete(rc.entries, key)
		return nil, false
	}
	return e.body, true
}

func (rc *responseCache) store(key string, body []byte) {
	if rc.ttl <= 0 {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = cacheEntry{body: body, expires: rc.clock.Now().Add(rc.ttl)}
}
