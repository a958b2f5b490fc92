// Package redirect turns 3xx responses into the next URL of a navigation.
package redirect

import (
	"strings"

	"github.com/always-cache/always-fetch/pkg/fetcherr"
	"github.com/always-cache/always-fetch/pkg/locator"
)

// DefaultMaxHops is the number of redirects one navigation may follow.
const DefaultMaxHops = 5

// Budget counts the redirects followed by one navigation. It is not safe for
// concurrent use; every navigation owns its own.
type Budget struct {
	max  int
	used int
}

// NewBudget returns a budget of hops redirects. A non-positive value means DefaultMaxHops.
func NewBudget(hops int) *Budget {
	if hops <= 0 {
		hops = DefaultMaxHops
	}
	return &Budget{max: hops}
}

// Spend takes one hop, or fails with TooManyRedirects when none are left.
func (b *Budget) Spend() error {
	if b.used >= b.max {
		return fetcherr.New(fetcherr.TooManyRedirects, "more than %d redirects", b.max)
	}
	b.used++
	return nil
}

func (b *Budget) Used() int { return b.used }

func (b *Budget) Max() int { return b.max }

// IsRedirect reports whether a response should be followed.
func IsRedirect(status int, location string) bool {
	return status >= 300 && status < 400 && location != ""
}

// Resolve makes location absolute relative to from.
//
//	/x         -> scheme://authority/x
//	x          -> scheme://authority/x
//	http://... -> unchanged
func Resolve(from locator.HTTP, location string) string {
	if isAbsolute(location) {
		return location
	}
	base := string(from.Scheme()) + "://" + from.Authority()
	if strings.HasPrefix(location, "/") {
		return base + location
	}
	return base + "/" + location
}

// Next resolves location and parses it. Only http and https targets are followed.
func Next(from locator.HTTP, location string) (locator.HTTP, error) {
	target := Resolve(from, location)
	u, err := locator.Parse(target)
	if err != nil {
		return locator.HTTP{}, fetcherr.Wrap(fetcherr.ProtocolError, err, "unusable redirect location %q", location)
	}
	next, ok := u.(locator.HTTP)
	if !ok {
		return locator.HTTP{}, fetcherr.New(fetcherr.ProtocolError, "redirect to non-http location %q", target)
	}
	return next, nil
}

// isAbsolute reports whether s starts with a scheme followed by "://".
func isAbsolute(s string) bool {
	scheme, _, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return false
	}
	for i, r := range scheme {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && ('0' <= r && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
