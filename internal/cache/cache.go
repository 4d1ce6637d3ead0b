// internal/cache/cache.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valpere/AutoScrapexter/internal/aggregator"
	"github.com/valpere/AutoScrapexter/internal/pipeline"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

const defaultPrefix = "autoscrapexter:live:"

// Config locates the Redis server backing the live-results cache.
type Config struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	Prefix   string        `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// DefaultConfig returns a disabled cache with a 10 minute TTL.
func DefaultConfig() Config {
	return Config{Addr: "localhost:6379", TTL: 10 * time.Minute, Prefix: defaultPrefix}
}

// Stats counts cache lookups.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// LiveCache stores aggregation results in Redis.
type LiveCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// NewLiveCache creates the cache. It does not contact the server.
func NewLiveCache(cfg Config) *LiveCache {
	return NewLiveCacheWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)
}

// NewLiveCacheWithClient wraps an existing client.
func NewLiveCacheWithClient(client *redis.Client, cfg Config) *LiveCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return &LiveCache{client: client, ttl: cfg.TTL, prefix: cfg.Prefix}
}

type keyMaterial struct {
	Query    string      `json:"q"`
	Filters  interface{} `json:"f"`
	Sources  []string    `json:"s"`
	MaxPages int         `json:"p"`
}

// Key derives the cache key for req. Queries that differ only in case,
// accents or spacing share a key, as do permutations of the source list.
func (c *LiveCache) Key(req aggregator.Request) string {
	srcs := append([]string(nil), req.Sources...)
	sort.Strings(srcs)
	material, _ := json.Marshal(keyMaterial{
		Query:    strings.Join(strings.Fields(pipeline.FoldKey(req.Query)), " "),
		Filters:  req.Filters,
		Sources:  srcs,
		MaxPages: req.MaxPages,
	})
	sum := sha256.Sum256(material)
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get returns the cached result for key. A miss is (nil, false, nil).
func (c *LiveCache) Get(ctx context.Context, key string) (*aggregator.Result, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.errs.Add(1)
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}

	var res aggregator.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.errs.Add(1)
		return nil, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	c.hits.Add(1)
	return &res, true, nil
}

// Set stores res under key for the configured TTL.
func (c *LiveCache) Set(ctx context.Context, key string, res *aggregator.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.errs.Add(1)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Invalidate removes every cached result.
func (c *LiveCache) Invalidate(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cache: %w", err)
	}
	return removed, nil
}

// Stats returns lookup counters.
func (c *LiveCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Errors: c.errs.Load()}
}

// Ping checks the server.
func (c *LiveCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *LiveCache) Close() error {
	return c.client.Close()
}

// Fetcher runs a live aggregation.
type Fetcher interface {
	Aggregate(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

// CachedFetcher serves repeated live fetches from the cache. Results with
// a failed source are not cached.
type CachedFetcher struct {
	next   Fetcher
	cache  *LiveCache
	logger utils.Logger
}

// NewCachedFetcher wraps next.
func NewCachedFetcher(next Fetcher, cache *LiveCache, logger utils.Logger) *CachedFetcher {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &CachedFetcher{next: next, cache: cache, logger: logger.WithField("component", "live_cache")}
}

// Aggregate returns a cached result or delegates and caches a clean one.
// Cache errors fall through to the live fetch.
func (f *CachedFetcher) Aggregate(ctx context.Context, req aggregator.Request) (*aggregator.Result, error) {
	key := f.cache.Key(req)
	if res, ok, err := f.cache.Get(ctx, key); err != nil {
		f.logger.Warnf("cache lookup failed: %v", err)
	} else if ok {
		f.logger.Debugf("cache hit for %q", req.Query)
		return res, nil
	}

	res, err := f.next.Aggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	if cacheable(res) {
		if err := f.cache.Set(ctx, key, res); err != nil {
			f.logger.Warnf("cache write failed: %v", err)
		}
	}
	return res, nil
}

func cacheable(res *aggregator.Result) bool {
	if res == nil || len(res.Sources) == 0 {
		return false
	}
	for _, s := range res.Sources {
		if !s.Success {
			return false
		}
	}
	return true
}
