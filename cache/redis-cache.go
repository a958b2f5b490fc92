package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisKeyPrefix = "always-fetch:"
	redisOpTimeout        = 5 * time.Second
	redisScanCount        = 100
)

// globEscaper quotes the characters SCAN MATCH treats as a pattern.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisCache shares entries between processes through a redis server.
// Entries also get a server-side expiry so redis reclaims them on its own.
type RedisCache struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces all keys, defaults to DefaultRedisKeyPrefix.
	KeyPrefix string
}

// NewRedisCache connects to redis and verifies the connection with a PING.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return RedisCache{}, err
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return RedisCache{client: client, prefix: prefix}, nil
}

func (r RedisCache) Get(key string, now time.Time) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
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
		return nil, false, r.client.Del(ctx, r.prefix+key).Err()
	}
	return se.Bytes, true, nil
}

func (r RedisCache) Put(key string, expires time.Time, b []byte) error {
	v, err := encodeEntry(expires, b)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.prefix+key, v, 0)
		pipe.PExpireAt(ctx, r.prefix+key, expires)
		return nil
	})
	return err
}

func (r RedisCache) All(prefix string) ([]CacheEntry, error) {
	entries := make([]CacheEntry, 0)
	err := r.scan(prefix, func(ctx context.Context, key string) error {
		b, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		se, err := decodeEntry(b)
		if err != nil {
			return nil
		}
		entries = append(entries, CacheEntry{Key: key, Expires: time.Unix(0, se.Expires), Bytes: se.Bytes})
		return nil
	})
	return entries, err
}

func (r RedisCache) Purge(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r RedisCache) PurgeExpired(now time.Time) (int, error) {
	entries, err := r.All("")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if entry.Expired(now) {
			if err := r.Purge(entry.Key); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (r RedisCache) Close() error {
	return r.client.Close()
}

// scan calls fn with every key (without the namespace prefix) that starts with prefix.
func (r RedisCache) scan(prefix string, fn func(ctx context.Context, key string) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	iter := r.client.Scan(ctx, 0, globEscaper.Replace(r.prefix+prefix)+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		if err := fn(ctx, strings.TrimPrefix(iter.Val(), r.prefix)); err != nil {
			return err
		}
	}
	return iter.Err()
}
