package sync

import (
	"hash/fnv"
	"sync"
)

// ShardedMutex provides fine-grained locking using sharded mutexes.
// Counter stores serialize updates per identifier, not with one global lock:
// operations are distributed across N shards based on a hash of the key, so
// concurrent requests for unrelated identifiers rarely contend.
type ShardedMutex struct {
	shards [64]sync.Mutex
}

// NewShardedMutex creates a ShardedMutex with 64 shards.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the lock for the given key's shard.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// shardFor returns the shard index for the given key.
// Empty keys default to shard 0.
func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck // fnv never errors
	return int(h.Sum32() % uint32(len(m.shards)))
}
