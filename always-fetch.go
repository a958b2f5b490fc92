// Package alwaysfetch resolves URLs into text.
//
// A Client retrieves about:, http:, https:, file:, data: and view-source:
// URLs. HTTP resources travel over pooled HTTP/1.1 connections, follow up to
// five redirects per retrieval and are cached according to their
// Cache-Control max-age.
//
//	client := alwaysfetch.New(alwaysfetch.Config{})
//	defer client.Close()
//	text, err := client.Retrieve(ctx, "https://example.org/")
package alwaysfetch

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/always-cache/always-fetch/cache"
	"github.com/always-cache/always-fetch/pkg/connpool"
	"github.com/always-cache/always-fetch/pkg/http1"
	"github.com/always-cache/always-fetch/pkg/locator"
	"github.com/always-cache/always-fetch/pkg/redirect"
	"github.com/always-cache/always-fetch/rfc9211"
)

type Config struct {
	// Storage for cache entries. An in-memory cache is used if nil.
	Cache cache.CacheProvider
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Product token sent as User-Agent, "AlwaysFetch/1.0" if empty.
	UserAgent string
	// Redirects one retrieval may follow, 5 if zero.
	MaxRedirects int
	DialTimeout  time.Duration
	// ReadTimeout bounds one request/response exchange.
	ReadTimeout         time.Duration
	MaxIdleConnsPerHost int
	MaxIdleConns        int
	IdleConnTimeout     time.Duration
	// Base TLS settings, e.g. custom root CAs. The server name is always the URL host.
	TLSConfig *tls.Config
	// Clock for cache expiry and connection idling, time.Now if nil.
	Now func() time.Time
}

// Client is safe for concurrent use. Every retrieval owns its redirect budget.
type Client struct {
	cache        *cache.ContentCache
	pool         *connpool.Pool
	transport    *http1.Transport
	maxRedirects int
	log          zerolog.Logger
}

// Result describes a completed retrieval.
type Result struct {
	Content string
	// FinalURL is the URL the content came from after redirects.
	FinalURL locator.URL
	// Redirects is the number of redirects followed.
	Redirects int
	// Navigation identifies the retrieval in log lines.
	Navigation  uuid.UUID
	CacheStatus *rfc9211.CacheStatus
}

func New(config Config) *Client {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	provider := config.Cache
	if provider == nil {
		provider = cache.NewMemCache()
	}

	pool := connpool.New(connpool.Config{
		MaxIdlePerHost: config.MaxIdleConnsPerHost,
		MaxIdle:        config.MaxIdleConns,
		IdleTimeout:    config.IdleConnTimeout,
		DialTimeout:    config.DialTimeout,
		TLSConfig:      config.TLSConfig,
		Now:            config.Now,
		Logger:         &logger,
	})

	return &Client{
		cache: cache.NewContentCache(provider, config.Now, &logger),
		pool:  pool,
		transport: &http1.Transport{
			Pool:        pool,
			UserAgent:   config.UserAgent,
			ReadTimeout: config.ReadTimeout,
		},
		maxRedirects: config.MaxRedirects,
		log:          logger,
	}
}

// Retrieve returns the text behind raw.
func (c *Client) Retrieve(ctx context.Context, raw string) (string, error) {
	res, err := c.Fetch(ctx, raw)
	return res.Content, err
}

// RetrieveURL returns the text behind an already parsed URL.
func (c *Client) RetrieveURL(ctx context.Context, u locator.URL) (string, error) {
	res, err := c.FetchURL(ctx, u)
	return res.Content, err
}

// Fetch is like Retrieve but also reports how the content was obtained.
func (c *Client) Fetch(ctx context.Context, raw string) (Result, error) {
	u, err := locator.Parse(raw)
	if err != nil {
		return Result{}, err
	}
	return c.FetchURL(ctx, u)
}

func (c *Client) FetchURL(ctx context.Context, u locator.URL) (Result, error) {
	nav := c.newNavigation()
	ctx = nav.log.WithContext(ctx)

	content, err := nav.dispatch(ctx, c, u)
	res := Result{
		Content:     content,
		FinalURL:    nav.final,
		Redirects:   nav.budget.Used(),
		Navigation:  nav.id,
		CacheStatus: nav.status,
	}
	if err != nil {
		nav.log.Debug().Err(err).Str("url", u.String()).Int("redirects", res.Redirects).Msg("Retrieval failed")
		return Result{Navigation: nav.id, Redirects: res.Redirects}, err
	}
	nav.log.Debug().
		Str("url", u.String()).
		Stringer("final", res.FinalURL).
		Int("redirects", res.Redirects).
		Stringer("cacheStatus", res.CacheStatus).
		Int("bytes", len(content)).
		Msg("Retrieved")
	return res, nil
}

// Cache exposes the content cache, e.g. for pruning.
func (c *Client) Cache() *cache.ContentCache {
	return c.cache
}

// Close closes idle connections and the cache provider.
func (c *Client) Close() error {
	c.pool.Close()
	return c.cache.Close()
}

func (c *Client) newNavigation() *navigation {
	id := uuid.New()
	return &navigation{
		id:     id,
		budget: redirect.NewBudget(c.maxRedirects),
		log:    c.log.With().Str("nav", id.String()).Logger(),
		status: rfc9211.New(""),
	}
}
