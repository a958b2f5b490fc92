package http1

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/always-cache/always-fetch/pkg/connpool"
	"github.com/always-cache/always-fetch/pkg/fetcherr"
	"github.com/always-cache/always-fetch/pkg/locator"
)

const DefaultReadTimeout = 30 * time.Second

// Transport performs single GET exchanges over pooled connections.
// The logger is taken from the request context (see zerolog.Ctx).
type Transport struct {
	Pool      *connpool.Pool
	UserAgent string
	// ReadTimeout bounds the whole exchange on one connection, request write included.
	ReadTimeout time.Duration
}

// RoundTrip fetches u. If a pooled connection turns out to be stale, the
// request is retried once on a freshly dialed connection.
func (t *Transport) RoundTrip(ctx context.Context, u locator.HTTP) (*Response, error) {
	log := zerolog.Ctx(ctx)
	ep := connpool.Endpoint{Secure: u.Secure, Host: u.Host, Port: u.Port}

	var resp *Response
	err := fetcherr.Retry(ctx, 2, 0, func(attempt int) error {
		var (
			conn *connpool.Conn
			err  error
		)
		if attempt == 0 {
			conn, err = t.Pool.Get(ctx, ep)
		} else {
			conn, err = t.Pool.Dial(ctx, ep)
		}
		if err != nil {
			return err
		}

		var stale bool
		resp, stale, err = t.exchange(ctx, conn, u)
		if err != nil {
			t.Pool.Discard(conn)
			if stale && conn.Reused() {
				log.Trace().Err(err).Str("url", u.String()).Msg("Stale pooled connection, redialing")
				return fetcherr.Retryable(err)
			}
			return err
		}
		if resp.KeepAlive {
			t.Pool.Put(conn)
		} else {
			t.Pool.Discard(conn)
		}
		return nil
	})
	if err != nil {
		return nil, ctxError(ctx, err)
	}

	log.Trace().
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Str("framing", string(resp.Framing)).
		Bool("keepAlive", resp.KeepAlive).
		Int("bytes", len(resp.Body)).
		Msg("Response")
	return resp, nil
}

// exchange writes the request and reads the response on conn. stale is true
// when the failure happened before any response byte arrived.
func (t *Transport) exchange(ctx context.Context, conn *connpool.Conn, u locator.HTTP) (resp *Response, stale bool, err error) {
	conn.SetDeadline(t.deadline(ctx))
	defer conn.SetDeadline(time.Time{})

	// Cancellation interrupts blocked I/O by expiring the deadline.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := WriteRequest(conn, u, t.UserAgent); err != nil {
		err = ctxError(ctx, ioError(err, "write request to %s", u.Address()))
		return nil, retryable(ctx, err), err
	}
	if _, err := conn.Reader.Peek(1); err != nil {
		err = ctxError(ctx, ioError(err, "await response from %s", u.Address()))
		return nil, retryable(ctx, err), err
	}
	resp, err = ReadResponse(conn.Reader)
	if err != nil {
		return nil, false, ctxError(ctx, err)
	}
	// A cancellation that raced the read may still expire the deadline.
	if !stop() {
		resp.KeepAlive = false
	}
	return resp, false, nil
}

func (t *Transport) deadline(ctx context.Context) time.Time {
	timeout := t.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// retryable reports whether a failure on a pooled connection is worth one more
// attempt. A slow server or a cancelled request is not.
func retryable(ctx context.Context, err error) bool {
	return ctx.Err() == nil && !fetcherr.Is(err, fetcherr.Timeout)
}

// ctxError reports a cancelled context instead of the I/O error it caused.
func ctxError(ctx context.Context, err error) error {
	switch ctx.Err() {
	case nil:
		return err
	case context.DeadlineExceeded:
		return fetcherr.Wrap(fetcherr.Timeout, ctx.Err(), "request deadline")
	}
	return fetcherr.Wrap(fetcherr.ConnectionFailure, ctx.Err(), "request cancelled")
}
