package operator

import (
	"container/list"
	"sync"

	"spiral/pkg/ir"
)

// MemoCache is a thread-safe LRU cache for pure-operator call results,
// grounded directly on backend/pkg/engine/condition_cache.go's
// container/list + map + RWMutex LRU — the same shape, keyed on a
// qualified operator name plus its argument hashes (ir.Hash) instead of
// a raw condition string, and caching an *ir.Value result instead of a
// compiled *vm.Program.
type MemoCache struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
	mu       sync.RWMutex
}

type memoEntry struct {
	key   string
	value *ir.Value
}

// NewMemoCache creates a memo cache with the given capacity.
func NewMemoCache(capacity int) *MemoCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// Get retrieves a cached result.
func (mc *MemoCache) Get(key string) (*ir.Value, bool) {
	// A write lock: a hit reorders the LRU list.
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, found := mc.cache[key]; found {
		mc.lruList.MoveToFront(element)
		entry := element.Value.(*memoEntry)
		return entry.value, true
	}
	return nil, false
}

// Put stores a result in the cache.
func (mc *MemoCache) Put(key string, value *ir.Value) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, found := mc.cache[key]; found {
		mc.lruList.MoveToFront(element)
		element.Value.(*memoEntry).value = value
		return
	}

	entry := &memoEntry{key: key, value: value}
	element := mc.lruList.PushFront(entry)
	mc.cache[key] = element

	if mc.lruList.Len() > mc.capacity {
		mc.evictOldest()
	}
}

func (mc *MemoCache) evictOldest() {
	oldest := mc.lruList.Back()
	if oldest != nil {
		mc.lruList.Remove(oldest)
		entry := oldest.Value.(*memoEntry)
		delete(mc.cache, entry.key)
	}
}

// Len returns the current number of cached entries.
func (mc *MemoCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.lruList.Len()
}

// Clear removes all cached entries.
func (mc *MemoCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.cache = make(map[string]*list.Element)
	mc.lruList = list.New()
}
