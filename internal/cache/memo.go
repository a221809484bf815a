// Package cache provides the populate-once, read-many maps shared by the
// metadata, pluralizer and type caches.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// LookupObserver is notified about every lookup with its hit or miss outcome.
type LookupObserver func(hit bool)

// Memo is a concurrency-safe map that computes each key at most once per
// publication. Concurrent misses on the same key may both compute; the first
// value stored wins and is returned to every caller afterwards.
type Memo[V any] struct {
	shards   [shardCount]shard[V]
	observer atomic.Pointer[LookupObserver]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New creates an empty memo.
func New[V any]() *Memo[V] {
	m := &Memo[V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

// SetObserver installs a lookup observer. Pass nil to remove it. It may be
// called while lookups are in flight.
func (m *Memo[V]) SetObserver(observer LookupObserver) {
	if observer == nil {
		m.observer.Store(nil)
		return
	}
	m.observer.Store(&observer)
}

func (m *Memo[V]) shardFor(key string) *shard[V] {
	return &m.shards[xxhash.Sum64String(key)%shardCount]
}

// Get returns the stored value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// GetOrAdd returns the stored value for key, computing and publishing it on a miss.
// compute runs without holding any lock so it may itself consult other memos.
func (m *Memo[V]) GetOrAdd(key string, compute func() V) V {
	if v, ok := m.Get(key); ok {
		m.notify(true)
		return v
	}
	m.notify(false)

	computed := compute()

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok {
		return existing
	}
	s.items[key] = computed
	return computed
}

// Len returns the number of stored keys.
func (m *Memo[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Clear drops every stored value.
func (m *Memo[V]) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		s.items = make(map[string]V)
		s.mu.Unlock()
	}
}

func (m *Memo[V]) notify(hit bool) {
	if observer := m.observer.Load(); observer != nil {
		(*observer)(hit)
	}
}
