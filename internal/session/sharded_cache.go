package session

import (
	"hash/fnv"
	"log/slog"

	"jewelry_checkout/internal/checkout"
)

type ShardedCache struct {
	shards    []*LRUCache
	numShards uint32
}

// NewShardedCache создает новый сегментированный кэш сессий
func NewShardedCache(capacityPerShard int, numShards int) SessionCache {
	if numShards <= 0 {
		slog.Warn("numShards for session cache is zero or negative, defaulting to 1", "provided_value", numShards)
		numShards = 1
	}

	sc := &ShardedCache{
		shards:    make([]*LRUCache, numShards),
		numShards: uint32(numShards),
	}

	for i := 0; i < numShards; i++ {
		sc.shards[i] = NewLRUCache(capacityPerShard)
	}

	return sc
}

// getShardIndex вычисляет, в какой сегмент попадет ключ
func (sc *ShardedCache) getShardIndex(id string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(id))
	return hash.Sum32() % sc.numShards
}

// Get находит нужный shard и возвращает из него сессию
func (sc *ShardedCache) Get(id string) (*checkout.Session, bool) {
	shardIndex := sc.getShardIndex(id)
	shard := sc.shards[shardIndex]

	return shard.Get(id)
}

// Set находит нужный shard и записывает в него сессию
func (sc *ShardedCache) Set(id string, sess *checkout.Session) {
	shardIndex := sc.getShardIndex(id)
	shard := sc.shards[shardIndex]

	shard.Set(id, sess)
}

// Delete находит нужный shard и удаляет из него сессию
func (sc *ShardedCache) Delete(id string) {
	shardIndex := sc.getShardIndex(id)
	shard := sc.shards[shardIndex]

	shard.Delete(id)
}
