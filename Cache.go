package bptree

import "github.com/hashicorp/golang-lru/v2/simplelru"

//============================================= Btree LRU Node Cache
//
// Spec section 4.2. Capacity is fixed at construction except for the one
// special case compact() uses: temporarily dropping it to 0 so every
// read/write goes straight through the mmap. The original source reaches
// for the `lru_cache` crate for this contract; since neither pack repo
// (mari, mmcmap) ships a bounded evict-and-writeback cache of its own -
// mmcmap's Cache.go is an unbounded HAMT memoization, not an LRU - this
// project reaches for the closest Go ecosystem equivalent instead of
// hand-rolling one.

// newNodeCache constructs a cache with the given capacity. Capacity 0
// means "bypass the cache": newNodeCache still returns a valid
// *btreeNodeCache, but get always misses and put never stores.
func newNodeCache(capacity int) *btreeNodeCache {
	c := &btreeNodeCache{capacity: capacity}
	if capacity == 0 {
		return c
	}

	lru, _ := simplelru.NewLRU[Addr, *Node](capacity, func(_ Addr, evicted *Node) {
		c.evicted = evicted
	})
	c.lru = lru

	return c
}

// get looks up addr, promoting it to most-recently-used on a hit.
func (c *btreeNodeCache) get(addr Addr) (*Node, bool) {
	if c.lru == nil {
		return nil, false
	}

	return c.lru.Get(addr)
}

// put inserts node, returning the evicted node (if capacity was
// exceeded) so the caller can flush it. A no-op when capacity is 0.
func (c *btreeNodeCache) put(node *Node) (evicted *Node, didEvict bool) {
	if c.lru == nil {
		return nil, false
	}

	c.evicted = nil
	c.lru.Add(node.addr, node)
	if c.evicted != nil {
		evicted, didEvict = c.evicted, true
		c.evicted = nil
	}

	return evicted, didEvict
}

// setCapacity changes the cache's capacity, returning the previous one.
// Any change discards every resident entry without flushing it: capacity
// 0 drops the backing LRU entirely, and any other capacity starts a
// fresh, empty one, so no stale entry survives compact. Compact flushes
// the cache before reducing capacity to 0.
func (c *btreeNodeCache) setCapacity(newCap int) int {
	old := c.capacity
	c.capacity = newCap

	if newCap == 0 {
		c.lru = nil
		return old
	}

	lru, _ := simplelru.NewLRU[Addr, *Node](newCap, func(_ Addr, evicted *Node) {
		c.evicted = evicted
	})
	c.lru = lru

	return old
}

// all returns every resident node, in no particular order.
func (c *btreeNodeCache) all() []*Node {
	if c.lru == nil {
		return nil
	}

	keys := c.lru.Keys()
	nodes := make([]*Node, 0, len(keys))
	for _, k := range keys {
		if n, ok := c.lru.Peek(k); ok {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

//============================================= Btree-level cache operations

// FlushCache flushes every resident node without evicting it. Spec
// section 4.2: must be called before any external process reads the
// file consistently, and before compact.
func (bt *Btree) FlushCache() error {
	for _, node := range bt.cache.all() {
		if err := bt.flushNode(node); err != nil {
			return errWrap("flush cache", err)
		}
	}

	return nil
}
