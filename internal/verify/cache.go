package verify

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores lookup results by term. A miss returns ok=false
type Cache interface {
	Get(ctx context.Context, term string) ([]Definition, bool, error)
	Set(ctx context.Context, term string, defs []Definition) error
}

// CachedLookuper serves repeated lookups from a cache. Only successful lookups are cached,
// including empty (not found) ones; unavailable lookups always go to the lexicon
type CachedLookuper struct {
	next   Lookuper
	cache  Cache
	logger *zap.Logger
}

// NewCachedLookuper wraps next with cache
func NewCachedLookuper(next Lookuper, cache Cache, logger *zap.Logger) *CachedLookuper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLookuper{next: next, cache: cache, logger: logger.Named("verify.cache")}
}

func (c *CachedLookuper) Lookup(ctx context.Context, term string) ([]Definition, error) {
	key := entry.Key(term)

	defs, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("term", term), zap.Error(err))
	} else if ok {
		return defs, nil
	}

	defs, err = c.next.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, defs); err != nil {
		c.logger.Warn("cache write failed", zap.String("term", term), zap.Error(err))
	}
	return defs, nil
}

// MemoryCache is a TTL-bound LRU of lookup results
type MemoryCache struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	ll    *list.List // most recent at front
	items map[string]*list.Element
	now   func() time.Time
}

type memoryItem struct {
	term string
	defs []Definition
	exp  time.Time
}

// NewMemoryCache creates a cache holding up to maxTerms results for ttl
func NewMemoryCache(maxTerms int, ttl time.Duration) *MemoryCache {
	if maxTerms <= 0 {
		maxTerms = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryCache{
		cap:   maxTerms,
		ttl:   ttl,
		ll:    list.New(),
		items: make(map[string]*list.Element, maxTerms),
		now:   time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, term string) ([]Definition, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[term]
	if !ok {
		return nil, false, nil
	}

	item := el.Value.(memoryItem)
	if !m.now().Before(item.exp) {
		m.ll.Remove(el)
		delete(m.items, term)
		return nil, false, nil
	}

	m.ll.MoveToFront(el)
	return append([]Definition(nil), item.defs...), true, nil
}

func (m *MemoryCache) Set(_ context.Context, term string, defs []Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{term: term, defs: append([]Definition(nil), defs...), exp: m.now().Add(m.ttl)}
	if el, ok := m.items[term]; ok {
		el.Value = item
		m.ll.MoveToFront(el)
		return nil
	}

	m.items[term] = m.ll.PushFront(item)
	for m.ll.Len() > m.cap {
		tail := m.ll.Back()
		m.ll.Remove(tail)
		delete(m.items, tail.Value.(memoryItem).term)
	}
	return nil
}

// Len returns the number of cached terms, expired ones included
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// RedisCache keeps lookup results in Redis so they survive across runs
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisCache{client: client, prefix: "riskwatch:lookup:", ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, term string) ([]Definition, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+term).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var defs []Definition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, false, fmt.Errorf("decode cached lookup: %w", err)
	}
	return defs, true, nil
}

func (r *RedisCache) Set(ctx context.Context, term string, defs []Definition) error {
	if defs == nil {
		defs = []Definition{}
	}
	raw, err := json.Marshal(defs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+term, raw, r.ttl).Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
