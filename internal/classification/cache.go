package classification

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ReplyCache stores validated AI replies keyed by a hash of the request.
type ReplyCache interface {
	GetReply(ctx context.Context, key string) (map[string]string, bool, error)
	SetReply(ctx context.Context, key string, reply map[string]string) error
}

type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache keeps replies in process. A cleanupInterval of zero disables the
// background janitor.
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{cache: gocache.New(ttl, cleanupInterval)}
}

func (m *MemoryCache) GetReply(_ context.Context, key string) (map[string]string, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	reply, ok := v.(map[string]string)
	return reply, ok, nil
}

func (m *MemoryCache) SetReply(_ context.Context, key string, reply map[string]string) error {
	m.cache.SetDefault(key, reply)
	return nil
}

func (m *MemoryCache) ItemCount() int {
	return m.cache.ItemCount()
}
