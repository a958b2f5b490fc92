// Package rfc9111 implements the parts of HTTP Caching (RFC 9111) a private
// page cache needs: Cache-Control parsing and the decision whether, and for
// how long, a response may be stored.
//
// Each file is named after the RFC section it implements and quotes the
// relevant text with a "§" prefix.
package rfc9111

import "time"

// Storable returns the time-to-live for a response with the given status and
// Cache-Control field value, and whether it may be stored at all.
//
// Only complete 200 responses are stored, and only when they carry a usable
// max-age and no no-store directive.
func Storable(statusCode int, cacheControl string) (time.Duration, bool) {
	cc := ParseCacheControl([]string{cacheControl})
	if mustNotStore(statusCode, cc) {
		return 0, false
	}
	return cc.MaxAge()
}
