package securestore

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is the durable side of a Store.  Values are opaque sealed bytes.
type Backend interface {
	// Load returns every stored value of a session.
	Load(ctx context.Context, sid string) (map[string][]byte, error)
	// Put writes one value.
	Put(ctx context.Context, sid, key string, val []byte) error
	// Reset drops every value of a session and then writes keep.
	Reset(ctx context.Context, sid string, keep map[string][]byte) error
}

// RedisBackend keeps one hash per session under Prefix+sid.  Every write
// refreshes the hash TTL so abandoned sessions disappear on their own.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisBackend(rdb *redis.Client, ttl time.Duration) *RedisBackend {
	if rdb == nil {
		panic("nil redis client")
	}
	return &RedisBackend{rdb: rdb, prefix: "ss:", ttl: ttl}
}

func (b *RedisBackend) key(sid string) string { return b.prefix + sid }

func (b *RedisBackend) Load(ctx context.Context, sid string) (map[string][]byte, error) {
	vals, err := b.rdb.HGetAll(ctx, b.key(sid)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(vals))
	for k, v := range vals {
		out[k] = []byte(v)
	}
	return out, nil
}

func (b *RedisBackend) Put(ctx context.Context, sid, key string, val []byte) error {
	_, err := b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, b.key(sid), key, val)
		if b.ttl > 0 {
			p.Expire(ctx, b.key(sid), b.ttl)
		}
		return nil
	})
	return err
}

func (b *RedisBackend) Reset(ctx context.Context, sid string, keep map[string][]byte) error {
	_, err := b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, b.key(sid))
		if len(keep) == 0 {
			return nil
		}
		args := make([]any, 0, len(keep)*2)
		for k, v := range keep {
			args = append(args, k, v)
		}
		p.HSet(ctx, b.key(sid), args...)
		if b.ttl > 0 {
			p.Expire(ctx, b.key(sid), b.ttl)
		}
		return nil
	})
	return err
}

// MemoryBackend keeps sessions in process memory.  It is used when Redis
// is unavailable and in tests.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[string]map[string][]byte{}}
}

func (b *MemoryBackend) Load(_ context.Context, sid string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string][]byte, len(b.data[sid]))
	for k, v := range b.data[sid] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (b *MemoryBackend) Put(_ context.Context, sid, key string, val []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.data[sid]
	if !ok {
		m = map[string][]byte{}
		b.data[sid] = m
	}
	m[key] = append([]byte(nil), val...)
	return nil
}

func (b *MemoryBackend) Reset(_ context.Context, sid string, keep map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := make(map[string][]byte, len(keep))
	for k, v := range keep {
		m[k] = append([]byte(nil), v...)
	}
	b.data[sid] = m
	return nil
}

// Raw exposes the stored bytes of one key.  Tests use it to tamper with
// sealed values.
func (b *MemoryBackend) Raw(sid, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[sid][key]
	return v, ok
}

// Corrupt overwrites a stored value without sealing it.
func (b *MemoryBackend) Corrupt(sid, key string, val []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data[sid] == nil {
		b.data[sid] = map[string][]byte{}
	}
	b.data[sid][key] = val
}
