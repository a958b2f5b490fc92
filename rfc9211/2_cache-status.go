// Package rfc9211 builds Cache-Status values (RFC 9211) describing how a
// retrieval was served.
package rfc9211

import (
	"strconv"
	"time"
)

// DefaultCacheName identifies this cache in Cache-Status values.
const DefaultCacheName = "AlwaysFetch"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache was configured to not handle this request.
	CacheStatusFwdBypass CacheStatusFwdReason = "bypass"

	// The cache did not contain any responses that matched the
	// request URI.
	CacheStatusFwdUriMiss CacheStatusFwdReason = "uri-miss"
)

// CacheStatus is a single Cache-Status list member.
//
// §  2.1.  The hit Parameter
// §
// §     "hit", when true, indicates that the request was satisfied by the
// §     cache; that is, it was not forwarded, and the response was obtained
// §     from the cache.
// §
// §  2.2.  The fwd Parameter
// §
// §     "fwd" indicates that the request went forward towards the origin and
// §     why.
type CacheStatus struct {
	name      string
	status    CacheStatusStatus
	fwdReason CacheStatusFwdReason
	stored    bool
	ttl       time.Duration
	detail    string
}

// New returns an empty status for the named cache.
func New(name string) *CacheStatus {
	if name == "" {
		name = DefaultCacheName
	}
	return &CacheStatus{name: name}
}

func (cs *CacheStatus) Hit() {
	cs.status = CacheStatusHit
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.status = CacheStatusFwd
	cs.fwdReason = reason
}

// §  2.5.  The stored Parameter
// §
// §     "stored" indicates whether the cache stored the response in a way
// §     that could be useful for future requests.
//
// §  2.4.  The ttl Parameter
// §
// §     "ttl" indicates the response's remaining freshness lifetime as
// §     calculated by the cache, as an integer number of seconds.
func (cs *CacheStatus) Stored(ttl time.Duration) {
	cs.stored = true
	cs.ttl = ttl
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) IsHit() bool { return cs.status == CacheStatusHit }

func (cs *CacheStatus) IsStored() bool { return cs.stored }

func (cs *CacheStatus) String() string {
	if cs.status == "" {
		return cs.name
	}
	status := cs.name + "; " + string(cs.status)
	if cs.status == CacheStatusFwd && cs.fwdReason != "" {
		status += "=" + string(cs.fwdReason)
	}
	if cs.stored {
		status += "; stored; ttl=" + strconv.FormatInt(int64(cs.ttl/time.Second), 10)
	}
	if cs.detail != "" {
		status += "; detail=" + cs.detail
	}
	return status
}
