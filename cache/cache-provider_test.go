package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func providers(t *testing.T) map[string]CacheProvider {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	level, err := NewLevelDBCache(filepath.Join(dir, "leveldb"))
	if err != nil {
		t.Fatal(err)
	}
	ps := map[string]CacheProvider{
		"memory":  NewMemCache(),
		"sqlite":  sqlite,
		"leveldb": level,
	}
	if addr := os.Getenv("ALWAYS_FETCH_REDIS_ADDR"); addr != "" {
		r, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr, KeyPrefix: "always-fetch-test:" + t.Name() + ":"})
		if err != nil {
			t.Fatal(err)
		}
		ps["redis"] = r
	}
	t.Cleanup(func() {
		for _, p := range ps {
			p.Close()
		}
	})
	return ps
}

func TestProviders(t *testing.T) {
	// Real time keeps redis' server-side expiry consistent with the lazy check.
	now := time.Now().Truncate(time.Millisecond)

	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("putGet", func(t *testing.T) {
				if err := p.Put("a", now.Add(time.Hour), []byte("hello")); err != nil {
					t.Fatal(err)
				}
				b, ok, err := p.Get("a", now)
				if err != nil || !ok || string(b) != "hello" {
					t.Fatalf("Get = %q, %v, %v", b, ok, err)
				}
			})

			t.Run("missing", func(t *testing.T) {
				_, ok, err := p.Get("missing", now)
				if err != nil || ok {
					t.Fatalf("Get = %v, %v", ok, err)
				}
			})

			t.Run("overwrite", func(t *testing.T) {
				p.Put("b", now.Add(time.Hour), []byte("old"))
				p.Put("b", now.Add(time.Hour), []byte("new"))
				b, _, _ := p.Get("b", now)
				if string(b) != "new" {
					t.Fatalf("value is %q", b)
				}
			})

			t.Run("expiresAtInstant", func(t *testing.T) {
				expires := now.Add(time.Hour)
				p.Put("c", expires, []byte("x"))
				if _, ok, _ := p.Get("c", expires.Add(-time.Millisecond)); !ok {
					t.Fatal("entry expired early")
				}
				if _, ok, _ := p.Get("c", expires); ok {
					t.Fatal("entry still valid at its expiry instant")
				}
				// The expired read purged the entry.
				if _, ok, _ := p.Get("c", now); ok {
					t.Fatal("expired entry was not purged")
				}
			})

			t.Run("purge", func(t *testing.T) {
				p.Put("d", now.Add(time.Hour), []byte("x"))
				if err := p.Purge("d"); err != nil {
					t.Fatal(err)
				}
				if _, ok, _ := p.Get("d", now); ok {
					t.Fatal("purged entry still present")
				}
				if err := p.Purge("never-stored"); err != nil {
					t.Fatalf("purging a missing key failed: %v", err)
				}
			})

			t.Run("allAndPurgeExpired", func(t *testing.T) {
				p.Put("http://h:80/1", now.Add(time.Minute), []byte("1"))
				p.Put("http://h:80/2", now.Add(2*time.Hour), []byte("2"))
				p.Put("https://h:443/3", now.Add(time.Minute), []byte("3"))

				entries, err := p.All("http://h:80/")
				if err != nil {
					t.Fatal(err)
				}
				var keys []string
				for _, e := range entries {
					keys = append(keys, e.Key)
				}
				sort.Strings(keys)
				if len(keys) != 2 || keys[0] != "http://h:80/1" || keys[1] != "http://h:80/2" {
					t.Fatalf("All returned %v", keys)
				}

				n, err := p.PurgeExpired(now.Add(90 * time.Minute))
				if err != nil {
					t.Fatal(err)
				}
				// a and b from earlier subtests expire after an hour as well
				if n < 2 {
					t.Fatalf("PurgeExpired removed %d entries", n)
				}
				if _, ok, _ := p.Get("http://h:80/2", now); !ok {
					t.Fatal("unexpired entry was pruned")
				}
				if _, ok, _ := p.Get("http://h:80/1", now); ok {
					t.Fatal("expired entry survived pruning")
				}
			})
		})
	}
}

func TestSQLitePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	expires := time.Now().Add(time.Hour)

	s, err := NewSQLiteCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("k", expires, []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteCache(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	b, ok, err := s.Get("k", time.Now())
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get after reopen = %q, %v, %v", b, ok, err)
	}
}

func TestLevelDBPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leveldb")
	expires := time.Now().Add(time.Hour)

	l, err := NewLevelDBCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Put("k", expires, []byte("v")); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, err = NewLevelDBCache(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	b, ok, err := l.Get("k", time.Now())
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get after reopen = %q, %v, %v", b, ok, err)
	}
}
