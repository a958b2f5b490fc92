package rfc9111

// §  3. Storing Responses in Caches
// §
// §  A cache MUST NOT store a response to a request unless:
func mustNotStore(statusCode int, cc CacheControl) bool {
	// §  *  the request method is understood by the cache;
	//
	// only GET is ever sent
	//
	// §  *  the response status code is final (see Section 15 of [HTTP]);
	// §  *  if the response status code is 206 or 304, or the must-understand
	// §     cache directive (see Section 5.2.2.3) is present: the cache
	// §     understands the response status code;
	//
	// the only status code understood here is 200, redirects are followed and
	// everything else is passed through uncached
	if !statusCodeIsUnderstood(statusCode) {
		return true
	}
	// §  *  the no-store cache directive is not present in the response (see
	// §     Section 5.2.2.5);
	if cc.NoStore() {
		return true
	}
	// §  *  the response contains at least one of the following:
	// §      -  a public response directive (see Section 5.2.2.9);
	// §      -  a private response directive, if the cache is not shared (see
	// §         Section 5.2.2.7);
	// §      -  an Expires header field (see Section 5.3);
	// §      -  a max-age response directive (see Section 5.2.2.1);
	//
	// a response is kept exactly as long as its max-age says, so max-age is the
	// only one of these that counts
	_, ok := cc.MaxAge()
	return !ok
}

func statusCodeIsUnderstood(statusCode int) bool {
	return statusCode == 200
}
