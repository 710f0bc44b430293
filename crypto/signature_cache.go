// signature_cache.go implements an LRU cache for signature verification
// results.
//
// Verifying an event's signature is one of the more expensive per-event
// operations a node performs, and the same event is frequently re-seen
// through gossip (re-broadcast, anti-entropy pulls from multiple peers).
// Caching the verification outcome keyed by (event hash, signature)
// avoids redundant work.
//
// The cache is fully concurrent-safe and exposes hit/miss counters for
// observability.
package crypto

import (
	"sync"
	"sync/atomic"

	"github.com/continuity-consensus/core/dag"
)

// DefaultSigCacheSize is the default number of entries in the signature cache.
const DefaultSigCacheSize = 4096

// sigCacheNode is a doubly-linked list node for the LRU eviction list.
type sigCacheNode struct {
	key  dag.EventHash
	val  bool
	prev *sigCacheNode
	next *sigCacheNode
}

// SignatureCache is a concurrent-safe LRU cache for signature verification
// results, keyed by SigCacheKey.
type SignatureCache struct {
	mu       sync.RWMutex
	capacity int
	items    map[dag.EventHash]*sigCacheNode

	// Doubly-linked list: head is most recently used, tail is least.
	head *sigCacheNode
	tail *sigCacheNode

	// Atomic hit/miss counters for observability.
	hits   atomic.Int64
	misses atomic.Int64
}

// NewSignatureCache creates a new signature verification cache with the given
// maximum number of entries. If capacity <= 0, DefaultSigCacheSize is used.
func NewSignatureCache(capacity int) *SignatureCache {
	if capacity <= 0 {
		capacity = DefaultSigCacheSize
	}
	return &SignatureCache{
		capacity: capacity,
		items:    make(map[dag.EventHash]*sigCacheNode, capacity),
	}
}

// SigCacheKey derives a deterministic cache key from an event hash and
// its signature bytes.
func SigCacheKey(eventHash dag.EventHash, signature []byte) dag.EventHash {
	return Hash(eventHash[:], signature)
}

// Get looks up a cached verification result.
func (c *SignatureCache) Get(key dag.EventHash) (bool, bool) {
	c.mu.Lock()
	node, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return false, false
	}
	c.moveToHead(node)
	val := node.val
	c.mu.Unlock()

	c.hits.Add(1)
	return val, true
}

// Add inserts a verification result into the cache. If the cache is at
// capacity, the least recently used entry is evicted.
func (c *SignatureCache) Add(key dag.EventHash, valid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		existing.val = valid
		c.moveToHead(existing)
		return
	}

	node := &sigCacheNode{key: key, val: valid}
	c.items[key] = node
	c.pushHead(node)

	if len(c.items) > c.capacity {
		c.evictTail()
	}
}

// Contains checks whether a key exists in the cache without updating the
// LRU order.
func (c *SignatureCache) Contains(key dag.EventHash) bool {
	c.mu.RLock()
	_, ok := c.items[key]
	c.mu.RUnlock()
	return ok
}

// Len returns the number of entries currently in the cache.
func (c *SignatureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Hits returns the number of cache hits since creation.
func (c *SignatureCache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of cache misses since creation.
func (c *SignatureCache) Misses() int64 {
	return c.misses.Load()
}

// HitRate returns the cache hit rate as a fraction [0, 1].
func (c *SignatureCache) HitRate() float64 {
	h := c.hits.Load()
	m := c.misses.Load()
	total := h + m
	if total == 0 {
		return 0
	}
	return float64(h) / float64(total)
}

// Purge removes all entries from the cache and resets counters.
func (c *SignatureCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[dag.EventHash]*sigCacheNode, c.capacity)
	c.head = nil
	c.tail = nil
	c.hits.Store(0)
	c.misses.Store(0)
}

// Remove deletes a single entry from the cache. Returns true if the key
// was present and removed.
func (c *SignatureCache) Remove(key dag.EventHash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeNode(node)
	delete(c.items, key)
	return true
}

// --- internal linked-list operations (caller must hold c.mu) ---

func (c *SignatureCache) pushHead(node *sigCacheNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *SignatureCache) removeNode(node *sigCacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}

func (c *SignatureCache) moveToHead(node *sigCacheNode) {
	if c.head == node {
		return
	}
	c.removeNode(node)
	c.pushHead(node)
}

func (c *SignatureCache) evictTail() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	c.removeNode(evicted)
	delete(c.items, evicted.key)
}
