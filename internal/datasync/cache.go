package datasync

import "sync"

type cacheEntry struct {
	collection Collection
	source     Source
}

// Cache is the shared in-memory view of all topics. It tracks how many live
// subscriptions are open per topic: while any are and a pushed value is held,
// fetch results do not replace it. Collections older than the stored one are
// never applied.
type Cache struct {
	mu      sync.RWMutex
	entries map[Topic]cacheEntry
	live    map[Topic]int
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[Topic]cacheEntry),
		live:    make(map[Topic]int),
	}
}

// Apply stores coll and reports whether it did. A collection taken before the
// stored one is dropped, and so is a fetch result while a live subscription
// holds a pushed value for the topic.
func (c *Cache) Apply(coll Collection, source Source) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.entries[coll.Topic]
	if ok && coll.At.Before(cur.collection.At) {
		return false
	}
	if ok && source != SourceLive && cur.source == SourceLive && c.live[coll.Topic] > 0 {
		return false
	}
	c.entries[coll.Topic] = cacheEntry{collection: coll, source: source}
	return true
}

// Get returns the authoritative collection for topic.
func (c *Cache) Get(topic Topic) (Collection, Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[topic]
	return e.collection, e.source, ok
}

// Live reports whether a live subscription is open for topic.
func (c *Cache) Live(topic Topic) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live[topic] > 0
}

func (c *Cache) acquireLive(topic Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[topic]++
}

func (c *Cache) releaseLive(topic Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live[topic] <= 1 {
		delete(c.live, topic)
		return
	}
	c.live[topic]--
}
