// Package registry holds concurrent keyed pool entries and the queues of
// entries waiting to be resolved from chain.
package registry

import (
	"hash/maphash"
	"sync"

	"github.com/defistate/defistate-mirror-go/protocols"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 64

// Cloner is implemented by state types that can produce an independent copy.
type Cloner[S any] interface {
	Clone() S
}

// Entry is the per-pool record. A nil Config or State means not yet resolved.
type Entry[S any] struct {
	Config *protocols.PoolConfig
	State  *S
}

type slot[S any] struct {
	mu    sync.Mutex
	entry Entry[S]
}

type shard[K comparable, S any] struct {
	mu    sync.RWMutex
	slots map[K]*slot[S]
}

// Store is a sharded map of entries. Each entry has its own mutex, so writers
// to different keys never wait on each other beyond a brief shard lookup.
// Entries are never deleted.
type Store[K comparable, S Cloner[S]] struct {
	seed   maphash.Seed
	shards []shard[K, S]
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	shards int
}

// WithShards sets the number of shards. Values below 1 are ignored.
func WithShards(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.shards = n
		}
	}
}

// New creates an empty store.
func New[K comparable, S Cloner[S]](opts ...StoreOption) *Store[K, S] {
	o := storeOptions{shards: DefaultShards}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store[K, S]{
		seed:   maphash.MakeSeed(),
		shards: make([]shard[K, S], o.shards),
	}
	for i := range s.shards {
		s.shards[i].slots = make(map[K]*slot[S])
	}
	return s
}

func (s *Store[K, S]) shardFor(key K) *shard[K, S] {
	return &s.shards[maphash.Comparable(s.seed, key)%uint64(len(s.shards))]
}

func (s *Store[K, S]) slotFor(key K, create bool) *slot[S] {
	sh := s.shardFor(key)
	sh.mu.RLock()
	sl, ok := sh.slots[key]
	sh.mu.RUnlock()
	if ok || !create {
		return sl
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sl, ok = sh.slots[key]; !ok {
		sl = new(slot[S])
		sh.slots[key] = sl
	}
	return sl
}

// Update runs fn with exclusive access to the entry for key, creating an empty
// entry first if none exists. fn must not retain the pointer.
func (s *Store[K, S]) Update(key K, fn func(*Entry[S])) {
	sl := s.slotFor(key, true)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	fn(&sl.entry)
}

// Snapshot returns a deep copy of the entry for key.
func (s *Store[K, S]) Snapshot(key K) (Entry[S], bool) {
	sl := s.slotFor(key, false)
	if sl == nil {
		return Entry[S]{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return cloneEntry(sl.entry), true
}

// Keys returns every key in the store, in no particular order.
func (s *Store[K, S]) Keys() []K {
	var keys []K
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k := range sh.slots {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Len returns the number of entries.
func (s *Store[K, S]) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.slots)
		sh.mu.RUnlock()
	}
	return n
}

func cloneEntry[S Cloner[S]](e Entry[S]) Entry[S] {
	var out Entry[S]
	if e.Config != nil {
		cfg := e.Config.Clone()
		out.Config = &cfg
	}
	if e.State != nil {
		st := (*e.State).Clone()
		out.State = &st
	}
	return out
}
