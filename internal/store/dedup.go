// Package store remembers recently resolved messages so redelivered requests
// are answered without resolving again.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupStore is a bounded, thread-safe map from message id to value. A Bloom
// filter answers the common "never seen" case without touching the LRU.
type DedupStore[V any] struct {
	bloom                  *bloom.BloomFilter
	lru                    *lru.Cache[string, V]
	mutex                  sync.RWMutex
	capacity               int
	bloomFalsePositiveRate float64
}

// NewDedupStore creates a store holding at most capacity entries.
func NewDedupStore[V any](capacity int, bloomFalsePositiveRate float64) *DedupStore[V] {
	if capacity < 1 {
		capacity = 1
	}
	lruCache, _ := lru.New[string, V](capacity)

	return &DedupStore[V]{
		bloom:                  bloom.NewWithEstimates(uint(capacity), bloomFalsePositiveRate),
		lru:                    lruCache,
		capacity:               capacity,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}
}

// Get returns the value stored for id.
func (ds *DedupStore[V]) Get(id string) (V, bool) {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	var zero V
	if !ds.bloom.TestString(id) {
		return zero, false
	}
	return ds.lru.Get(id)
}

// Add stores value under id, evicting the least recently used entry when full.
func (ds *DedupStore[V]) Add(id string, value V) {
	if id == "" {
		return
	}

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.bloom.AddString(id)
	ds.lru.Add(id, value)
}

// Observe records id and reports whether it had been seen before.
func (ds *DedupStore[V]) Observe(id string) bool {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if ds.bloom.TestString(id) && ds.lru.Contains(id) {
		return true
	}

	var zero V
	ds.bloom.AddString(id)
	ds.lru.Add(id, zero)
	return false
}

// Size returns the number of ids currently stored.
func (ds *DedupStore[V]) Size() int {
	return ds.lru.Len()
}

// Clear removes every entry.
func (ds *DedupStore[V]) Clear() {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	// Bloom filters cannot delete, so the filter is rebuilt.
	ds.bloom = bloom.NewWithEstimates(uint(ds.capacity), ds.bloomFalsePositiveRate)
	ds.lru.Purge()
}
