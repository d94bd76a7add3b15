// Package store holds the in-memory keyspace. Expiry is lazy: an expired
// entry stays in memory until the next Get of its key removes it.
package store

import "github.com/loganszeto/respkv/internal/util"

type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	SetWithTTL(key, value string, ttlMs int64)
	Len() int
}

type Options struct {
	// Shards is rounded up to a power of two. Zero means DefaultShards.
	Shards int
	Clock  util.Clock
}

func NewStore(opts Options) Store {
	return NewMemTable(opts)
}
