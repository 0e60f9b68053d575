package axnext

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryCacheShards = 16

// MemoryCacheStore is a sharded in-memory CacheStore.
type MemoryCacheStore struct {
	shards []*cacheShard
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

var (
	_ CacheStore = (*MemoryCacheStore)(nil)
	_ Sweeper    = (*MemoryCacheStore)(nil)
)

// NewMemoryCacheStore returns an empty store.
func NewMemoryCacheStore() *MemoryCacheStore {
	shards := make([]*cacheShard, memoryCacheShards)
	for i := range shards {
		shards[i] = &cacheShard{store: make(map[string]*CacheEntry)}
	}
	return &MemoryCacheStore{shards: shards}
}

func (s *MemoryCacheStore) shard(key string) *cacheShard {
	return s.shards[xxhash.Sum64String(key)%memoryCacheShards]
}

func (s *MemoryCacheStore) Get(_ context.Context, key string) (*CacheEntry, bool, error) {
	shard := s.shard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	entry, ok := shard.store[key]
	return entry, ok, nil
}

func (s *MemoryCacheStore) Set(_ context.Context, key string, entry *CacheEntry) error {
	shard := s.shard(key)
	shard.mu.Lock()
	shard.store[key] = entry
	shard.mu.Unlock()
	return nil
}

func (s *MemoryCacheStore) Delete(_ context.Context, key string) error {
	shard := s.shard(key)
	shard.mu.Lock()
	delete(shard.store, key)
	shard.mu.Unlock()
	return nil
}

func (s *MemoryCacheStore) Clear(_ context.Context) error {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*CacheEntry)
		shard.mu.Unlock()
	}
	return nil
}

// Sweep drops entries that are no longer visible at now.
func (s *MemoryCacheStore) Sweep(now time.Time) int {
	removed := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, entry := range shard.store {
			if !entry.Visible(now) {
				delete(shard.store, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryCacheStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}
