package domain

import (
	"sync"

	"github.com/gammazero/deque"
)

// CacheEntry is implemented by the records kept in the bounded caches.
type CacheEntry[T any] interface {
	CacheSymbol() string
	CacheKey() string
	CacheTimestamp() int64
	Clone() T
}

// ArrayCache is an append-only ring bounded by total count. The oldest entry is evicted first.
// Readers always get copies, so eviction never happens under an iterating reader.
type ArrayCache[T CacheEntry[T]] struct {
	mu       sync.RWMutex
	capacity int
	items    deque.Deque[T]
}

func NewArrayCache[T CacheEntry[T]](capacity int) *ArrayCache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ArrayCache[T]{
		capacity: capacity,
		items:    deque.Deque[T]{},
	}
}

func (c *ArrayCache[T]) Append(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.items.Len() >= c.capacity {
		c.items.PopFront()
	}
	c.items.PushBack(item)
}

func (c *ArrayCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items.Len()
}

func (c *ArrayCache[T]) All() []T {
	return c.Limit("", 0)
}

// Limit returns the n most recent entries of symbol in chronological order.
// An empty symbol matches every entry, n <= 0 returns all matches.
func (c *ArrayCache[T]) Limit(symbol string, n int) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]T, 0)
	for i := c.items.Len() - 1; i >= 0; i-- {
		item := c.items.At(i)
		if symbol != "" && item.CacheSymbol() != symbol {
			continue
		}
		result = append(result, item.Clone())
		if n > 0 && len(result) == n {
			break
		}
	}

	reverse(result)
	return result
}

type cacheKey struct {
	symbol string
	id     string
}

// KeyedCache is a ring bounded by total count where re-adding an existing (symbol, id)
// replaces the entry in place and keeps its insertion position.
type KeyedCache[T CacheEntry[T]] struct {
	mu       sync.RWMutex
	capacity int
	keys     deque.Deque[cacheKey]
	entries  map[cacheKey]T
}

func NewKeyedCache[T CacheEntry[T]](capacity int) *KeyedCache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &KeyedCache[T]{
		capacity: capacity,
		keys:     deque.Deque[cacheKey]{},
		entries:  make(map[cacheKey]T),
	}
}

func (c *KeyedCache[T]) Append(item T) {
	key := cacheKey{symbol: item.CacheSymbol(), id: item.CacheKey()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = item
		return
	}

	if c.keys.Len() >= c.capacity {
		evicted := c.keys.PopFront()
		delete(c.entries, evicted)
	}
	c.keys.PushBack(key)
	c.entries[key] = item
}

func (c *KeyedCache[T]) Get(symbol, id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.entries[cacheKey{symbol: symbol, id: id}]
	if !ok {
		var zero T
		return zero, false
	}
	return item.Clone(), true
}

func (c *KeyedCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys.Len()
}

func (c *KeyedCache[T]) All() []T {
	return c.Limit("", 0)
}

// Limit returns the n most recently inserted entries of symbol in insertion order.
func (c *KeyedCache[T]) Limit(symbol string, n int) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]T, 0)
	for i := c.keys.Len() - 1; i >= 0; i-- {
		key := c.keys.At(i)
		if symbol != "" && key.symbol != symbol {
			continue
		}
		result = append(result, c.entries[key].Clone())
		if n > 0 && len(result) == n {
			break
		}
	}

	reverse(result)
	return result
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
