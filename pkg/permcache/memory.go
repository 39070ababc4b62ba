package permcache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries bounds the in-memory cache before LRU eviction kicks in.
const DefaultMaxEntries = 10000

// DefaultTTL is applied when Set receives a non-positive TTL.
const DefaultTTL = 5 * time.Minute

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// memoryCache is an in-memory Cache with LRU eviction, TTL expiry and
// secondary indexes for per-user and per-role invalidation. A background
// goroutine sweeps expired entries.
type memoryCache struct {
	mu      sync.Mutex
	items   map[Key]memoryItem
	lru     []Key // eviction order, oldest first
	byUser  map[uuid.UUID]map[Key]struct{}
	byRole  map[uuid.UUID]map[Key]struct{}
	maxSize int
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

// NewMemory creates an in-memory cache with the default size limit.
func NewMemory() Cache {
	return NewMemoryWithSize(DefaultMaxEntries)
}

// NewMemoryWithSize creates an in-memory cache evicting least recently used
// entries beyond maxSize.
func NewMemoryWithSize(maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}

	c := &memoryCache{
		items:   make(map[Key]memoryItem),
		byUser:  make(map[uuid.UUID]map[Key]struct{}),
		byRole:  make(map[uuid.UUID]map[Key]struct{}),
		maxSize: maxSize,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go c.cleanup()

	return c
}

func (c *memoryCache) Get(ctx context.Context, key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	if time.Now().After(item.expiresAt) {
		c.remove(key)
		return Entry{}, false
	}

	c.touch(key)
	return item.entry, true
}

func (c *memoryCache) Set(ctx context.Context, key Key, entry Entry, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		if len(c.lru) > 0 {
			c.remove(c.lru[0])
		}
	}

	c.items[key] = memoryItem{entry: entry, expiresAt: time.Now().Add(ttl)}
	c.index(c.byUser, key.UserID, key)
	for _, roleID := range entry.Roles {
		c.index(c.byRole, roleID, key)
	}
	c.touch(key)
}

func (c *memoryCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.byUser[userID] {
		c.remove(key)
	}
}

func (c *memoryCache) InvalidateByRole(ctx context.Context, roleID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.byRole[roleID] {
		c.remove(key)
	}
}

func (c *memoryCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[Key]memoryItem)
	c.byUser = make(map[uuid.UUID]map[Key]struct{})
	c.byRole = make(map[uuid.UUID]map[Key]struct{})
	c.lru = c.lru[:0]
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

func (c *memoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			c.remove(key)
		}
	}
}

// remove drops the key from the table, both indexes and the LRU queue.
// Must be called with the lock held.
func (c *memoryCache) remove(key Key) {
	item, ok := c.items[key]
	if !ok {
		return
	}
	delete(c.items, key)
	c.unindex(c.byUser, key.UserID, key)
	for _, roleID := range item.entry.Roles {
		c.unindex(c.byRole, roleID, key)
	}
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
}

// touch moves the key to the most recently used end. Must be called with the
// lock held.
func (c *memoryCache) touch(key Key) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append(c.lru, key)
}

func (c *memoryCache) index(idx map[uuid.UUID]map[Key]struct{}, id uuid.UUID, key Key) {
	keys, ok := idx[id]
	if !ok {
		keys = make(map[Key]struct{})
		idx[id] = keys
	}
	keys[key] = struct{}{}
}

func (c *memoryCache) unindex(idx map[uuid.UUID]map[Key]struct{}, id uuid.UUID, key Key) {
	if keys, ok := idx[id]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(idx, id)
		}
	}
}
