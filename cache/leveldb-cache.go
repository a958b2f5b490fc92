package cache

import (
	"bytes"
	"errors"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelDBEntryPrefix = "e:"

// LevelDBCache stores gob-encoded entries in a leveldb directory.
type LevelDBCache struct {
	db *leveldb.DB
}

func NewLevelDBCache(path string) (LevelDBCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return LevelDBCache{}, err
	}
	return LevelDBCache{db: db}, nil
}

func (l LevelDBCache) Get(key string, now time.Time) ([]byte, bool, error) {
	b, err := l.db.Get([]byte(levelDBEntryPrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	se, err := decodeEntry(b)
	if err != nil {
		return nil, false, err
	}
	if expired(time.Unix(0, se.Expires), now) {
		return nil, false, l.Purge(key)
	}
	return se.Bytes, true, nil
}

func (l LevelDBCache) Put(key string, expires time.Time, b []byte) error {
	v, err := encodeEntry(expires, b)
	if err != nil {
		return err
	}
	return l.db.Put([]byte(levelDBEntryPrefix+key), v, nil)
}

func (l LevelDBCache) All(prefix string) ([]CacheEntry, error) {
	entries := make([]CacheEntry, 0)
	err := l.scan(prefix, func(key string, se storedEntry) {
		entries = append(entries, CacheEntry{
			Key:     key,
			Expires: time.Unix(0, se.Expires),
			Bytes:   se.Bytes,
		})
	})
	return entries, err
}

func (l LevelDBCache) Purge(key string) error {
	return l.db.Delete([]byte(levelDBEntryPrefix+key), nil)
}

func (l LevelDBCache) PurgeExpired(now time.Time) (int, error) {
	batch := new(leveldb.Batch)
	err := l.scan("", func(key string, se storedEntry) {
		if expired(time.Unix(0, se.Expires), now) {
			batch.Delete([]byte(levelDBEntryPrefix + key))
		}
	})
	if err != nil {
		return 0, err
	}
	if err := l.db.Write(batch, nil); err != nil {
		return 0, err
	}
	return batch.Len(), nil
}

func (l LevelDBCache) Close() error {
	return l.db.Close()
}

// scan calls fn for every decodable entry whose key has the given prefix.
func (l LevelDBCache) scan(prefix string, fn func(key string, se storedEntry)) error {
	it := l.db.NewIterator(util.BytesPrefix([]byte(levelDBEntryPrefix+prefix)), nil)
	defer it.Release()
	for it.Next() {
		se, err := decodeEntry(it.Value())
		if err != nil {
			continue
		}
		fn(string(bytes.TrimPrefix(it.Key(), []byte(levelDBEntryPrefix))), se)
	}
	return it.Error()
}
