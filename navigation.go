package alwaysfetch

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/always-cache/always-fetch/pkg/fetcherr"
	"github.com/always-cache/always-fetch/pkg/locator"
	"github.com/always-cache/always-fetch/pkg/redirect"
	"github.com/always-cache/always-fetch/rfc9111"
	"github.com/always-cache/always-fetch/rfc9211"
)

// navigation is the state of one top-level retrieval.
type navigation struct {
	id     uuid.UUID
	budget *redirect.Budget
	log    zerolog.Logger
	status *rfc9211.CacheStatus
	final  locator.URL
}

func (n *navigation) dispatch(ctx context.Context, c *Client, u locator.URL) (string, error) {
	switch u := u.(type) {
	case locator.About:
		n.bypass(u)
		return "", nil
	case locator.HTTP:
		return n.fetchHTTP(ctx, c, u)
	case locator.File:
		n.bypass(u)
		return readFile(u.Path)
	case locator.Data:
		n.bypass(u)
		return decodeData(u.Raw)
	case locator.ViewSource:
		// the inner content is returned as is
		return n.dispatch(ctx, c, u.Inner)
	}
	return "", fetcherr.New(fetcherr.InvalidScheme, "unsupported URL %T", u)
}

// bypass records a retrieval the cache never sees.
func (n *navigation) bypass(u locator.URL) {
	n.final = u
	n.status.Forward(rfc9211.CacheStatusFwdBypass)
	n.status.Detail(string(u.Scheme()))
}

// fetchHTTP consults the cache and the network for u and every redirect target.
func (n *navigation) fetchHTTP(ctx context.Context, c *Client, u locator.HTTP) (string, error) {
	for {
		key := u.Key()
		if content, ok := c.cache.Get(key); ok {
			n.final = u
			n.status.Hit()
			return content, nil
		}

		resp, err := c.transport.RoundTrip(ctx, u)
		if err != nil {
			return "", err
		}

		if location := resp.Header.Get("location"); redirect.IsRedirect(resp.StatusCode, location) {
			if err := n.budget.Spend(); err != nil {
				return "", err
			}
			next, err := redirect.Next(u, location)
			if err != nil {
				return "", err
			}
			n.log.Debug().
				Int("status", resp.StatusCode).
				Str("from", u.String()).
				Str("to", next.String()).
				Int("hop", n.budget.Used()).
				Msg("Following redirect")
			u = next
			continue
		}

		if !utf8.Valid(resp.Body) {
			return "", fetcherr.New(fetcherr.DecodeError, "body of %s is not valid UTF-8", u)
		}
		content := string(resp.Body)
		n.final = u
		n.status.Forward(rfc9211.CacheStatusFwdUriMiss)

		if ttl, ok := rfc9111.Storable(resp.StatusCode, resp.Header.Get("cache-control")); ok {
			// a failed cache write never fails the retrieval
			if err := c.cache.Set(key, content, ttl); err != nil {
				n.log.Warn().Err(err).Str("url", u.String()).Msg("Cache write failed")
			} else {
				n.status.Stored(ttl)
			}
		} else if resp.StatusCode != 200 {
			n.status.Detail(fmt.Sprintf("status-%d", resp.StatusCode))
		}
		return content, nil
	}
}
