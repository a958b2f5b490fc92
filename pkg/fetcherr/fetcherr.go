// Package fetcherr defines the failure kinds surfaced by a retrieval.
//
// Every failure that leaves the retrieval core is an *Error carrying one Kind.
// Callers decide on fallbacks (e.g. showing a blank page); the core never
// swallows a failure itself.
//
//	text, err := client.Retrieve(ctx, "https://example.org/")
//	if fetcherr.Is(err, fetcherr.TooManyRedirects) {
//	    // ...
//	}
package fetcherr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// InvalidScheme means the URL could not be parsed or names an unknown scheme.
	InvalidScheme Kind = "INVALID_SCHEME"
	// ConnectionFailure means the socket or TLS session could not be established.
	ConnectionFailure Kind = "CONNECTION_FAILURE"
	// Timeout means a dial, read or write deadline expired.
	Timeout Kind = "TIMEOUT"
	// ProtocolError means the server sent a malformed status line, header block or chunk.
	ProtocolError Kind = "PROTOCOL_ERROR"
	// TooManyRedirects means the redirect budget of the navigation is exhausted.
	TooManyRedirects Kind = "TOO_MANY_REDIRECTS"
	// DecodeError means a payload was not valid base64, gzip, percent-encoding or UTF-8.
	DecodeError Kind = "DECODE_ERROR"
	// FileReadError means a local file could not be read as UTF-8 text.
	FileReadError Kind = "FILE_READ_ERROR"
)

// Error is a retrieval failure with a kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether the first *Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Temporary reports whether a caller may reasonably retry the retrieval.
// Only connection failures and timeouts qualify; the core itself does not retry them.
func Temporary(err error) bool {
	switch KindOf(err) {
	case ConnectionFailure, Timeout:
		return true
	}
	return false
}
