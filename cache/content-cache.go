package cache

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/always-cache/always-fetch/pkg/locator"
)

// ContentCache maps resource identities to retrieved text with an absolute expiry.
// Expired entries are dropped lazily when read, or in bulk by Prune.
type ContentCache struct {
	provider CacheProvider
	now      func() time.Time
	log      zerolog.Logger
}

// NewContentCache wraps provider. A nil now means time.Now, a nil logger disables logging.
func NewContentCache(provider CacheProvider, now func() time.Time, logger *zerolog.Logger) *ContentCache {
	if now == nil {
		now = time.Now
	}
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "cache").Logger()
	}
	return &ContentCache{provider: provider, now: now, log: log}
}

// Get returns the unexpired content stored for key.
// Provider failures are logged and reported as a miss.
func (c *ContentCache) Get(key locator.Key) (string, bool) {
	k := key.String()
	b, ok, err := c.provider.Get(k, c.now())
	if err != nil {
		c.log.Warn().Err(err).Str("key", k).Msg("Cache read failed")
		return "", false
	}
	if !ok {
		c.log.Trace().Str("key", k).Msg("Cache miss")
		return "", false
	}
	c.log.Trace().Str("key", k).Msg("Cache hit")
	return string(b), true
}

// Set stores content under key until now+maxAge, replacing any previous entry.
func (c *ContentCache) Set(key locator.Key, content string, maxAge time.Duration) error {
	k := key.String()
	expires := c.now().Add(maxAge)
	c.log.Trace().Str("key", k).Time("expires", expires).Msg("Cache write")
	return c.provider.Put(k, expires, []byte(content))
}

// Purge removes the entry for key, if any.
func (c *ContentCache) Purge(key locator.Key) error {
	return c.provider.Purge(key.String())
}

// Prune removes every expired entry and returns how many were removed.
func (c *ContentCache) Prune() (int, error) {
	n, err := c.provider.PurgeExpired(c.now())
	if err == nil {
		c.log.Debug().Int("removed", n).Msg("Cache pruned")
	}
	return n, err
}

// Entries lists all stored entries, expired ones included.
func (c *ContentCache) Entries() ([]CacheEntry, error) {
	return c.provider.All("")
}

func (c *ContentCache) Close() error {
	return c.provider.Close()
}
