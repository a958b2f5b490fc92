// Package http1 speaks just enough HTTP/1.1 to GET a page over a pooled connection.
package http1

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/always-cache/always-fetch/pkg/connpool"
	"github.com/always-cache/always-fetch/pkg/fetcherr"
	"github.com/always-cache/always-fetch/pkg/redirect"
)

const (
	maxLineLength  = 64 << 10
	maxHeaderLines = 1000
)

// Header maps lower-cased field names to values. Repeated fields are joined with ", ".
type Header map[string]string

func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

func (h Header) add(name, value string) {
	if prev, ok := h[name]; ok {
		h[name] = prev + ", " + value
		return
	}
	h[name] = value
}

type Framing string

const (
	FramingChunked       Framing = "chunked"
	FramingContentLength Framing = "content-length"
	FramingNone          Framing = "none"
	FramingClose         Framing = "close"
)

// Response is a fully read and decoded response.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Header     Header
	// Body is de-framed and, for gzip content, decompressed.
	Body    []byte
	Framing Framing
	// KeepAlive reports whether the connection may carry another request.
	KeepAlive bool
}

// ReadResponse reads one response from r, body included.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, ioError(err, "read status line")
	}
	resp, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	if resp.Header, err = readHeader(r); err != nil {
		return nil, err
	}

	framed := true
	switch {
	case hasToken(resp.Header.Get("transfer-encoding"), "chunked"):
		resp.Framing = FramingChunked
		resp.Body, framed, err = readChunked(r)
	case resp.Header.Get("content-length") != "":
		resp.Framing = FramingContentLength
		resp.Body, err = readContentLength(r, resp.Header.Get("content-length"))
	case bodyless(resp.StatusCode):
		resp.Framing = FramingNone
	default:
		resp.Framing = FramingClose
		framed = false
		resp.Body, err = io.ReadAll(r)
		if err != nil {
			err = ioError(err, "read body until close")
		}
	}
	if err != nil {
		return nil, err
	}
	resp.KeepAlive = framed && !hasToken(resp.Header.Get("connection"), "close")

	// Empty bodies have nothing to decode and redirect bodies are never used.
	if len(resp.Body) == 0 || redirect.IsRedirect(resp.StatusCode, resp.Header.Get("location")) {
		return resp, nil
	}
	if resp.Body, err = decodeContent(resp.Header.Get("content-encoding"), resp.Body); err != nil {
		return nil, err
	}
	return resp, nil
}

func parseStatusLine(line string) (*Response, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, fetcherr.New(fetcherr.ProtocolError, "malformed status line %q", line)
	}
	if !strings.HasPrefix(parts[0], "HTTP/") {
		return nil, fetcherr.New(fetcherr.ProtocolError, "malformed HTTP version %q", parts[0])
	}
	code := parts[1]
	if len(code) != 3 || strings.Trim(code, "0123456789") != "" {
		return nil, fetcherr.New(fetcherr.ProtocolError, "malformed status code %q", code)
	}
	status, _ := strconv.Atoi(code)
	resp := &Response{Proto: parts[0], StatusCode: status}
	if len(parts) == 3 {
		resp.Reason = parts[2]
	}
	return resp, nil
}

func readHeader(r *bufio.Reader) (Header, error) {
	h := make(Header)
	for i := 0; ; i++ {
		if i > maxHeaderLines {
			return nil, fetcherr.New(fetcherr.ProtocolError, "more than %d header lines", maxHeaderLines)
		}
		line, err := readLine(r)
		if err != nil {
			return nil, ioError(err, "read header")
		}
		if line == "" {
			return h, nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fetcherr.New(fetcherr.ProtocolError, "header line without colon %q", line)
		}
		h.add(strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value))
	}
}

// readChunked de-frames a chunked body. complete is false when the stream
// ended right after the last chunk, without the final CRLF.
func readChunked(r *bufio.Reader) (body []byte, complete bool, err error) {
	var buf bytes.Buffer
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, false, ioError(err, "read chunk size")
		}
		sizeField, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseUint(strings.TrimSpace(sizeField), 16, 63)
		if err != nil {
			return nil, false, fetcherr.Wrap(fetcherr.ProtocolError, err, "malformed chunk size %q", line)
		}
		if size == 0 {
			break
		}
		if _, err := io.CopyN(&buf, r, int64(size)); err != nil {
			return nil, false, ioError(err, "read chunk")
		}
		crlf, err := readLine(r)
		if err != nil {
			return nil, false, ioError(err, "read chunk terminator")
		}
		if crlf != "" {
			return nil, false, fetcherr.New(fetcherr.ProtocolError, "chunk of %d bytes not followed by CRLF", size)
		}
	}
	// The last chunk ends the body; a peer that closes here sent no trailer section.
	if _, err := r.Peek(1); errors.Is(err, io.EOF) {
		return buf.Bytes(), false, nil
	}
	// Trailer fields are read and dropped.
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, false, ioError(err, "read trailer")
		}
		if line == "" {
			return buf.Bytes(), true, nil
		}
	}
}

func readContentLength(r *bufio.Reader, field string) ([]byte, error) {
	// Identical repeated values were joined by the header reader.
	first, _, _ := strings.Cut(field, ",")
	n, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil || n < 0 {
		return nil, fetcherr.New(fetcherr.ProtocolError, "invalid content-length %q", field)
	}
	// The buffer grows with the bytes that arrive, not with the announced length.
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, n); err != nil {
		return nil, ioError(err, "read %d byte body", n)
	}
	return body.Bytes(), nil
}

func decodeContent(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fetcherr.Wrap(fetcherr.DecodeError, err, "open gzip stream")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fetcherr.Wrap(fetcherr.DecodeError, err, "decompress gzip body")
		}
		return out, nil
	}
	return nil, fetcherr.New(fetcherr.DecodeError, "unsupported content-encoding %q", encoding)
}

func bodyless(status int) bool {
	return status/100 == 1 || status == 204 || status == 304
}

// hasToken reports whether the comma separated list contains token, ignoring case.
func hasToken(list, token string) bool {
	for _, field := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(field), token) {
			return true
		}
	}
	return false
}

// readLine reads up to and excluding the line terminator. A bare LF is accepted.
func readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > maxLineLength {
			return "", fetcherr.New(fetcherr.ProtocolError, "line longer than %d bytes", maxLineLength)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return "", err
		}
		break
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

// ioError classifies a transport read or write failure.
func ioError(err error, format string, args ...any) error {
	var fe *fetcherr.Error
	switch {
	case errors.As(err, &fe):
		return err
	case connpool.IsTimeout(err):
		return fetcherr.Wrap(fetcherr.Timeout, err, format, args...)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fetcherr.Wrap(fetcherr.ProtocolError, io.ErrUnexpectedEOF, format, args...)
	}
	return fetcherr.Wrap(fetcherr.ConnectionFailure, err, format, args...)
}
