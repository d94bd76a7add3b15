package store

import (
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/loganszeto/respkv/internal/util"
)

const DefaultShards = 16

type entry struct {
	v           string
	expires     bool
	expiresAtMs int64
}

type shard struct {
	mu sync.Mutex
	m  map[string]entry
}

// MemTable is a sharded map. A key always hashes to the same shard, so all
// access to one key is serialized by that shard's mutex.
type MemTable struct {
	shards []*shard
	mask   uint32
	clock  util.Clock
}

func NewMemTable(opts Options) *MemTable {
	n := opts.Shards
	if n <= 0 {
		n = DefaultShards
	}
	size := 1
	for size < n {
		size <<= 1
	}
	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	t := &MemTable{
		shards: make([]*shard, size),
		mask:   uint32(size - 1),
		clock:  clock,
	}
	for i := range t.shards {
		t.shards[i] = &shard{m: make(map[string]entry)}
	}
	return t
}

func (t *MemTable) shardFor(key string) *shard {
	return t.shards[murmur3.Sum32([]byte(key))&t.mask]
}

func (t *MemTable) Get(key string) (string, bool) {
	now := t.clock.NowMs()
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.m[key]
	if !ok {
		return "", false
	}
	if ent.expires && IsExpired(ent.expiresAtMs, now) {
		delete(s.m, key)
		return "", false
	}
	return ent.v, true
}

func (t *MemTable) Set(key, value string) {
	t.put(key, entry{v: value})
}

func (t *MemTable) SetWithTTL(key, value string, ttlMs int64) {
	t.put(key, entry{
		v:           value,
		expires:     true,
		expiresAtMs: ExpiresAt(t.clock.NowMs(), ttlMs),
	})
}

func (t *MemTable) put(key string, ent entry) {
	s := t.shardFor(key)
	s.mu.Lock()
	s.m[key] = ent
	s.mu.Unlock()
}

// Len counts stored entries, including expired ones no Get has removed yet.
func (t *MemTable) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}
