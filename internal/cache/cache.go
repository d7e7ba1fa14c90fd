// Package cache implements a tiered, freshness-aware cache sitting in front
// of external data providers. Every entry carries a freshness class that
// determines its TTL, and live-sensitive classes are bypassed entirely while
// the market is trading, regardless of TTL. Freshness rules live here and
// nowhere else, so every call site gets the same policy.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/lookout/internal/config"
)

// Class classifies data recency for cache policy decisions.
type Class int

const (
	// Live data is never served from cache.
	Live Class = iota
	// Intraday data tolerates short staleness (minutes).
	Intraday
	// Historical data refreshes daily.
	Historical
	// Static data changes rarely (company profiles and similar).
	Static
)

// String returns a human-readable name for the class.
func (c Class) String() string {
	switch c {
	case Live:
		return "live"
	case Intraday:
		return "intraday"
	case Historical:
		return "historical"
	case Static:
		return "static"
	default:
		return "unknown"
	}
}

// Mode is the process-wide cache policy.
type Mode int

const (
	// ModeSmart applies the class TTLs and the trading-hours bypass.
	ModeSmart Mode = iota
	// ModeAggressive extends TTLs and disables the bypass, trading freshness
	// for hit rate.
	ModeAggressive
	// ModeDisabled turns every Get into a miss.
	ModeDisabled
)

// aggressiveTTLFactor is how much ModeAggressive stretches each class TTL.
const aggressiveTTLFactor = 4

// ParseMode maps a policy name from configuration to a Mode.
func ParseMode(s string) Mode {
	switch s {
	case "aggressive":
		return ModeAggressive
	case "disabled":
		return ModeDisabled
	default:
		return ModeSmart
	}
}

// HoursChecker reports whether a point in time is inside the trading window.
// Implemented by market.Hours.
type HoursChecker interface {
	InTradingWindow(t time.Time) bool
}

// Store is the persistent tier. Implementations must be safe for concurrent
// use; last-writer-wins on Save is acceptable.
type Store interface {
	Load(key string) (payload []byte, expiresAt time.Time, ok bool, err error)
	Save(key string, class Class, payload []byte, insertedAt, expiresAt time.Time) error
	DeleteExpired(now time.Time) (int, error)
	Count() (int, error)
	Close() error
}

type entry struct {
	payload    []byte
	class      Class
	insertedAt time.Time
	expiresAt  time.Time
}

// TieredCache is an in-memory cache with an optional persistent tier behind
// it. Values are msgpack-encoded on Put and decoded into the caller's
// destination on Get.
type TieredCache struct {
	mode  Mode
	ttls  map[Class]time.Duration
	hours HoursChecker
	store Store
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a tiered cache. store may be nil for a purely in-memory cache;
// hours may be nil when no trading-hours gate is wanted (tests, offline use).
func New(cfg config.CacheConfig, hours HoursChecker, store Store, log zerolog.Logger) *TieredCache {
	return &TieredCache{
		mode: ParseMode(cfg.Policy),
		ttls: map[Class]time.Duration{
			Live:       0,
			Intraday:   cfg.TTLIntraday,
			Historical: cfg.TTLHistorical,
			Static:     cfg.TTLStatic,
		},
		hours:   hours,
		store:   store,
		log:     log.With().Str("component", "cache").Logger(),
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// TTL returns the effective TTL for a class under the current mode.
func (c *TieredCache) TTL(class Class) time.Duration {
	ttl := c.ttls[class]
	if c.mode == ModeAggressive {
		ttl *= aggressiveTTLFactor
	}
	return ttl
}

// Get looks up key and decodes the stored payload into dest on a hit.
// The policy gate runs before any TTL check: live data never hits, and
// intraday data never hits during trading hours under the smart policy.
func (c *TieredCache) Get(key string, class Class, dest interface{}) bool {
	if c.mode == ModeDisabled {
		return false
	}
	if class == Live {
		return false
	}
	now := c.now()
	if c.bypassActive(class, now) {
		c.log.Debug().Str("key", key).Str("class", class.String()).Msg("trading hours bypass, forcing live fetch")
		return false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		if now.Before(e.expiresAt) {
			return c.decode(key, e.payload, dest)
		}
		// Lazy eviction of the expired entry.
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}

	if c.store == nil {
		return false
	}
	payload, expiresAt, ok, err := c.store.Load(key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache store read failed")
		return false
	}
	if !ok || !now.Before(expiresAt) {
		return false
	}

	// Promote the warm entry to the memory tier.
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, class: class, insertedAt: now, expiresAt: expiresAt}
	c.mu.Unlock()

	return c.decode(key, payload, dest)
}

// Put stores value under key with a fresh expiry, overwriting any previous
// entry. Live data is refused outright; a value that must always be live has
// no business in the cache.
func (c *TieredCache) Put(key string, class Class, value interface{}) {
	if c.mode == ModeDisabled || class == Live {
		return
	}

	payload, err := msgpack.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to encode cache value")
		return
	}

	now := c.now()
	expiresAt := now.Add(c.TTL(class))

	c.mu.Lock()
	c.entries[key] = entry{payload: payload, class: class, insertedAt: now, expiresAt: expiresAt}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(key, class, payload, now, expiresAt); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache store write failed")
		}
	}
}

// Sweep removes expired entries from both tiers. Returns how many entries
// were dropped. Wired to a periodic schedule; the cache works correctly
// without it thanks to lazy eviction.
func (c *TieredCache) Sweep() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		n, err := c.store.DeleteExpired(now)
		if err != nil {
			c.log.Warn().Err(err).Msg("cache store sweep failed")
		} else {
			removed += n
		}
	}

	if removed > 0 {
		c.log.Debug().Int("removed", removed).Msg("cache sweep removed expired entries")
	}
	return removed
}

// Stats describes the cache contents for the status API.
type Stats struct {
	Entries   int            `json:"entries"`
	ByClass   map[string]int `json:"by_class"`
	Expired   int            `json:"expired"`
	Persisted int            `json:"persisted"`
}

// Stats returns a snapshot of the cache contents.
func (c *TieredCache) Stats() Stats {
	now := c.now()
	stats := Stats{ByClass: make(map[string]int)}

	c.mu.RLock()
	for _, e := range c.entries {
		stats.Entries++
		stats.ByClass[e.class.String()]++
		if !now.Before(e.expiresAt) {
			stats.Expired++
		}
	}
	c.mu.RUnlock()

	if c.store != nil {
		if n, err := c.store.Count(); err == nil {
			stats.Persisted = n
		}
	}
	return stats
}

// bypassActive reports whether the trading-hours gate forces a miss for the
// class. Only the smart policy carries the gate.
func (c *TieredCache) bypassActive(class Class, now time.Time) bool {
	if c.mode != ModeSmart || c.hours == nil {
		return false
	}
	if class != Live && class != Intraday {
		return false
	}
	return c.hours.InTradingWindow(now)
}

func (c *TieredCache) decode(key string, payload []byte, dest interface{}) bool {
	if err := msgpack.Unmarshal(payload, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to decode cache value")
		return false
	}
	return true
}

// Key builds a canonical cache key from a data source name and its
// parameters, e.g. Key("finnhub_candles", "AAPL", "2024-01-01", "2024-12-31").
func Key(source string, parts ...string) string {
	all := append([]string{source}, parts...)
	return strings.Join(all, "_")
}
