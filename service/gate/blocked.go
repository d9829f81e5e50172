package gate

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gatekit/gatekit/internal/clock"
)

const (
	blockedCacheSize = 1024
	blockedTTL       = 5 * time.Minute
	sweepInterval    = time.Minute
)

// blockedCalls remembers tool call IDs a human already rejected, so a model
// retrying the same call does not re-prompt the reviewer.  Entries expire
// after a TTL; a background sweeper evicts stale ones between lookups.
type blockedCalls struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newBlockedCalls(ttl, sweep time.Duration) *blockedCalls {
	cache, _ := lru.New[string, time.Time](blockedCacheSize)
	ret := &blockedCalls{
		cache: cache,
		ttl:   ttl,
		done:  make(chan struct{}),
	}
	go ret.sweepLoop(sweep)
	return ret
}

// Add marks a call ID as rejected.
func (b *blockedCalls) Add(id string) {
	b.cache.Add(id, clock.Now())
}

// Has reports whether a call ID holds an unexpired rejection.
func (b *blockedCalls) Has(id string) bool {
	blockedAt, ok := b.cache.Get(id)
	if !ok {
		return false
	}
	if clock.Now().Sub(blockedAt) > b.ttl {
		b.cache.Remove(id)
		return false
	}
	return true
}

func (b *blockedCalls) Len() int {
	return b.cache.Len()
}

func (b *blockedCalls) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}

func (b *blockedCalls) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *blockedCalls) sweep() {
	now := clock.Now()
	for _, id := range b.cache.Keys() {
		if blockedAt, ok := b.cache.Peek(id); ok && now.Sub(blockedAt) > b.ttl {
			b.cache.Remove(id)
		}
	}
}
