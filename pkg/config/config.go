// Package config loads always-fetch settings from YAML or TOML files.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	alwaysfetch "github.com/always-cache/always-fetch"
	"github.com/always-cache/always-fetch/cache"
	"github.com/always-cache/always-fetch/pkg/connpool"
	"github.com/always-cache/always-fetch/pkg/http1"
	"github.com/always-cache/always-fetch/pkg/redirect"
)

// Cache providers.
const (
	ProviderMemory  = "memory"
	ProviderSQLite  = "sqlite"
	ProviderLevelDB = "leveldb"
	ProviderRedis   = "redis"
)

const (
	defaultSQLitePath  = "always-fetch.db"
	defaultLevelDBPath = "always-fetch.ldb"
	defaultRedisAddr   = "localhost:6379"
	defaultServerAddr  = ":8080"
)

type Config struct {
	UserAgent    string `yaml:"userAgent" toml:"userAgent"`
	MaxRedirects int    `yaml:"maxRedirects" toml:"maxRedirects"`

	Timeouts struct {
		Dial string `yaml:"dial" toml:"dial"`
		Read string `yaml:"read" toml:"read"`
	} `yaml:"timeouts" toml:"timeouts"`

	Pool struct {
		MaxIdlePerHost int    `yaml:"maxIdlePerHost" toml:"maxIdlePerHost"`
		MaxIdle        int    `yaml:"maxIdle" toml:"maxIdle"`
		IdleTimeout    string `yaml:"idleTimeout" toml:"idleTimeout"`
	} `yaml:"pool" toml:"pool"`

	Cache struct {
		Provider      string `yaml:"provider" toml:"provider"`
		Path          string `yaml:"path" toml:"path"`
		RedisAddr     string `yaml:"redisAddr" toml:"redisAddr"`
		RedisPassword string `yaml:"redisPassword" toml:"redisPassword"`
		RedisDB       int    `yaml:"redisDB" toml:"redisDB"`
	} `yaml:"cache" toml:"cache"`

	Server struct {
		Addr string `yaml:"addr" toml:"addr"`
	} `yaml:"server" toml:"server"`

	// compiled
	dialTimeout time.Duration
	readTimeout time.Duration
	idleTimeout time.Duration
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	// the zero value always validates
	_ = cfg.compile()
	return cfg
}

// Load reads path as YAML (.yaml, .yml) or TOML (.toml).
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("%s: unsupported config format %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// compile applies defaults and validates.
func (cfg *Config) compile() error {
	if cfg.UserAgent == "" {
		cfg.UserAgent = http1.DefaultUserAgent
	}
	if cfg.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects: must not be negative")
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = redirect.DefaultMaxHops
	}

	var err error
	if cfg.dialTimeout, err = duration(cfg.Timeouts.Dial, connpool.DefaultDialTimeout); err != nil {
		return fmt.Errorf("timeouts.dial: %w", err)
	}
	if cfg.readTimeout, err = duration(cfg.Timeouts.Read, http1.DefaultReadTimeout); err != nil {
		return fmt.Errorf("timeouts.read: %w", err)
	}
	if cfg.idleTimeout, err = duration(cfg.Pool.IdleTimeout, connpool.DefaultIdleTimeout); err != nil {
		return fmt.Errorf("pool.idleTimeout: %w", err)
	}

	if cfg.Pool.MaxIdlePerHost < 0 {
		return fmt.Errorf("pool.maxIdlePerHost: must not be negative")
	}
	if cfg.Pool.MaxIdle < 0 {
		return fmt.Errorf("pool.maxIdle: must not be negative")
	}

	cfg.Cache.Provider = strings.ToLower(cfg.Cache.Provider)
	if cfg.Cache.Provider == "" {
		cfg.Cache.Provider = ProviderMemory
	}
	if err := cfg.checkProvider(); err != nil {
		return fmt.Errorf("cache.provider: %w", err)
	}
	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = defaultRedisAddr
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultServerAddr
	}
	return nil
}

func (cfg *Config) checkProvider() error {
	switch cfg.Cache.Provider {
	case ProviderMemory, ProviderSQLite, ProviderLevelDB, ProviderRedis:
		return nil
	}
	return fmt.Errorf("unknown provider %q", cfg.Cache.Provider)
}

// duration parses s, returning def when s is empty.
func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

func (cfg Config) DialTimeout() time.Duration { return cfg.dialTimeout }
func (cfg Config) ReadTimeout() time.Duration { return cfg.readTimeout }
func (cfg Config) IdleTimeout() time.Duration { return cfg.idleTimeout }

// OpenCache opens the configured cache provider.
func (cfg Config) OpenCache(ctx context.Context) (cache.CacheProvider, error) {
	if err := cfg.checkProvider(); err != nil {
		return nil, fmt.Errorf("cache.provider: %w", err)
	}
	switch cfg.Cache.Provider {
	case ProviderSQLite:
		path := cfg.Cache.Path
		if path == "" {
			path = defaultSQLitePath
		}
		return cache.NewSQLiteCache(path)
	case ProviderLevelDB:
		path := cfg.Cache.Path
		if path == "" {
			path = defaultLevelDBPath
		}
		return cache.NewLevelDBCache(path)
	case ProviderRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}
	return cache.NewMemCache(), nil
}

// ClientConfig converts cfg into the settings of an alwaysfetch.Client.
func (cfg Config) ClientConfig(provider cache.CacheProvider, logger *zerolog.Logger) alwaysfetch.Config {
	return alwaysfetch.Config{
		Cache:               provider,
		Logger:              logger,
		UserAgent:           cfg.UserAgent,
		MaxRedirects:        cfg.MaxRedirects,
		DialTimeout:         cfg.dialTimeout,
		ReadTimeout:         cfg.readTimeout,
		MaxIdleConnsPerHost: cfg.Pool.MaxIdlePerHost,
		MaxIdleConns:        cfg.Pool.MaxIdle,
		IdleConnTimeout:     cfg.idleTimeout,
	}
}
