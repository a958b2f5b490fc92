package http1

import (
	"bytes"
	"io"

	"github.com/always-cache/always-fetch/pkg/locator"
)

const DefaultUserAgent = "AlwaysFetch/1.0"

// WriteRequest writes a GET request for u in one write.
func WriteRequest(w io.Writer, u locator.HTTP, userAgent string) error {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	var buf bytes.Buffer
	buf.WriteString("GET " + u.Path + " HTTP/1.1\r\n")
	buf.WriteString("Host: " + u.Authority() + "\r\n")
	buf.WriteString("User-Agent: " + userAgent + "\r\n")
	buf.WriteString("Accept-Encoding: gzip\r\n")
	buf.WriteString("\r\n")
	_, err := w.Write(buf.Bytes())
	return err
}
