package cache

import (
	"bytes"
	"encoding/gob"
	"time"
)

// CacheProvider is an interface for a cache provider.
// It stores and retrieves []byte values, which represent retrieved page text.
// It also keeps track of expiration times of cache entries.
// Keys are opaque strings; callers use locator.Key.String().
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the cached value for the given key, if it exists.
	// It also returns a boolean indicating whether retrieval was successful.
	// If the cache entry has expired at now, the boolean is false and the
	// provider purges the entry.
	Get(key string, now time.Time) ([]byte, bool, error)
	// Put stores the given value in the cache under the given key,
	// replacing any previous entry. It also sets an expiration time for the entry.
	Put(key string, expires time.Time, bytes []byte) error
	// All returns all cache entries that have the specific key prefix.
	// Expired entries that have not been purged yet are included.
	All(prefix string) ([]CacheEntry, error)
	// Purge removes the cache entry for the given key.
	Purge(key string) error
	// PurgeExpired removes all entries that have expired at now and returns
	// the number of removed entries.
	PurgeExpired(now time.Time) (int, error)
	Close() error
}

type CacheEntry struct {
	Key     string
	Expires time.Time
	Bytes   []byte
}

// Expired reports whether the entry is no longer valid at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return expired(e.Expires, now)
}

// an entry is valid strictly before its expiry instant
func expired(expires, now time.Time) bool {
	return !now.Before(expires)
}

// storedEntry is the serialized form used by the leveldb and redis providers.
type storedEntry struct {
	Expires int64 // unix nanoseconds
	Bytes   []byte
}

func encodeEntry(expires time.Time, b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(storedEntry{Expires: expires.UnixNano(), Bytes: b}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(b []byte) (storedEntry, error) {
	var se storedEntry
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&se)
	return se, err
}
