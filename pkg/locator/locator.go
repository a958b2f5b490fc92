// Package locator parses URL strings into a tagged variant over the supported schemes.
//
// Only the schemes about, http, https, file, data and view-source are known.
// HTTP locators are plain comparable values, so two independently parsed URLs
// naming the same resource compare equal with ==.
package locator

import (
	"net"
	"strconv"
	"strings"

	"github.com/always-cache/always-fetch/pkg/fetcherr"
)

type Scheme string

const (
	SchemeAbout      Scheme = "about"
	SchemeHTTP       Scheme = "http"
	SchemeHTTPS      Scheme = "https"
	SchemeFile       Scheme = "file"
	SchemeData       Scheme = "data"
	SchemeViewSource Scheme = "view-source"
)

const (
	blankPage        = "about:blank"
	viewSourcePrefix = "view-source:"
	schemeSeparator  = "://"
)

// URL is one of About, HTTP, File, Data or ViewSource.
type URL interface {
	Scheme() Scheme
	String() string
	isURL()
}

// About is the literal blank page.
type About struct{}

// HTTP addresses a resource on an http or https server.
// Path always starts with "/".
type HTTP struct {
	Secure bool
	Host   string
	Port   int
	Path   string
}

// File addresses a local file.
type File struct {
	Path string
}

// Data holds an inline payload. Raw is everything after the scheme, i.e. the
// media type, an optional ";base64" flag, a comma and the payload.
type Data struct {
	Raw string
}

// ViewSource requests the source of another URL.
type ViewSource struct {
	Inner URL
}

func (About) Scheme() Scheme      { return SchemeAbout }
func (File) Scheme() Scheme       { return SchemeFile }
func (Data) Scheme() Scheme       { return SchemeData }
func (ViewSource) Scheme() Scheme { return SchemeViewSource }

func (u HTTP) Scheme() Scheme {
	if u.Secure {
		return SchemeHTTPS
	}
	return SchemeHTTP
}

func (About) String() string        { return blankPage }
func (u File) String() string       { return "file://" + u.Path }
func (u Data) String() string       { return "data:" + u.Raw }
func (u ViewSource) String() string { return viewSourcePrefix + u.Inner.String() }
func (u HTTP) String() string       { return string(u.Scheme()) + schemeSeparator + u.Authority() + u.Path }

func (About) isURL()      {}
func (HTTP) isURL()       {}
func (File) isURL()       {}
func (Data) isURL()       {}
func (ViewSource) isURL() {}

// DefaultPort returns the well-known port for http or https.
func DefaultPort(secure bool) int {
	if secure {
		return 443
	}
	return 80
}

// Authority is the host, followed by ":port" when the port is not the scheme default.
func (u HTTP) Authority() string {
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if u.Port == DefaultPort(u.Secure) {
		return host
	}
	return host + ":" + strconv.Itoa(u.Port)
}

// Address is the dialable "host:port" form.
func (u HTTP) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// Key is the cache identity of an HTTP resource.
func (u HTTP) Key() Key {
	return Key{Scheme: u.Scheme(), Host: u.Host, Port: u.Port, Path: u.Path}
}

// Key identifies a cacheable resource by value.
type Key struct {
	Scheme Scheme
	Host   string
	Port   int
	Path   string
}

// String renders the key in a stable form suitable for storage backends.
func (k Key) String() string {
	return string(k.Scheme) + schemeSeparator + net.JoinHostPort(k.Host, strconv.Itoa(k.Port)) + k.Path
}

// Parse parses raw into a URL. Any failure is reported as fetcherr.InvalidScheme.
func Parse(raw string) (URL, error) {
	if raw == blankPage {
		return About{}, nil
	}
	if rest, ok := strings.CutPrefix(raw, viewSourcePrefix); ok {
		inner, err := Parse(rest)
		if err != nil {
			return nil, err
		}
		return ViewSource{Inner: inner}, nil
	}

	var scheme, rest string
	switch {
	case strings.Contains(raw, schemeSeparator):
		scheme, rest, _ = strings.Cut(raw, schemeSeparator)
	case strings.HasPrefix(raw, "data"), strings.HasPrefix(raw, "file:"):
		var found bool
		scheme, rest, found = strings.Cut(raw, ":")
		if !found {
			return nil, fetcherr.New(fetcherr.InvalidScheme, "no scheme in %q", raw)
		}
	default:
		return nil, fetcherr.New(fetcherr.InvalidScheme, "no scheme in %q", raw)
	}

	switch Scheme(scheme) {
	case SchemeHTTP:
		return parseHTTP(rest, false)
	case SchemeHTTPS:
		return parseHTTP(rest, true)
	case SchemeFile:
		return File{Path: rest}, nil
	case SchemeData:
		return Data{Raw: rest}, nil
	}
	return nil, fetcherr.New(fetcherr.InvalidScheme, "unsupported scheme %q", scheme)
}

// MustParse is like Parse but panics on error. Use it for literals only.
func MustParse(raw string) URL {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func parseHTTP(rest string, secure bool) (HTTP, error) {
	if !strings.Contains(rest, "/") {
		rest += "/"
	}
	authority, path, _ := strings.Cut(rest, "/")
	u := HTTP{Secure: secure, Port: DefaultPort(secure), Path: "/" + path}

	host, port, err := splitAuthority(authority)
	if err != nil {
		return HTTP{}, err
	}
	if host == "" {
		return HTTP{}, fetcherr.New(fetcherr.InvalidScheme, "empty host in %q", rest)
	}
	u.Host = host
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return HTTP{}, fetcherr.Wrap(fetcherr.InvalidScheme, err, "invalid port %q", port)
		}
		u.Port = n
	}
	return u, nil
}

// splitAuthority separates "host", "host:port" and "[v6]:port".
func splitAuthority(authority string) (host, port string, err error) {
	if strings.HasPrefix(authority, "[") {
		end := strings.Index(authority, "]")
		if end < 0 {
			return "", "", fetcherr.New(fetcherr.InvalidScheme, "unterminated IPv6 literal %q", authority)
		}
		host = authority[1:end]
		rest := authority[end+1:]
		if rest == "" {
			return host, "", nil
		}
		port, ok := strings.CutPrefix(rest, ":")
		if !ok {
			return "", "", fetcherr.New(fetcherr.InvalidScheme, "garbage after IPv6 literal %q", authority)
		}
		return host, port, nil
	}
	host, port, _ = strings.Cut(authority, ":")
	return host, port, nil
}
