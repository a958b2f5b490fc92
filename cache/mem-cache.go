package cache

import (
	"strings"
	"sync"
	"time"
)

type memCacheEntry struct {
	expires time.Time
	bytes   []byte
}

// MemCache keeps entries in a map for the lifetime of the process.
type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]memCacheEntry
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]memCacheEntry),
	}
}

func (m MemCache) Get(key string, now time.Time) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry, ok := m.db[key]
	if !ok {
		return nil, false, nil
	}
	if expired(entry.expires, now) {
		delete(m.db, key)
		return nil, false, nil
	}
	return entry.bytes, true, nil
}

func (m MemCache) Put(key string, expires time.Time, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = memCacheEntry{expires, bytes}
	return nil
}

func (m MemCache) All(prefix string) ([]CacheEntry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries := make([]CacheEntry, 0)
	for key, val := range m.db {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, CacheEntry{
				Key:     key,
				Bytes:   val.bytes,
				Expires: val.expires,
			})
		}
	}
	return entries, nil
}

func (m MemCache) Purge(key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

func (m MemCache) PurgeExpired(now time.Time) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := 0
	for key, entry := range m.db {
		if expired(entry.expires, now) {
			delete(m.db, key)
			n++
		}
	}
	return n, nil
}

func (m MemCache) Close() error { return nil }
