// Package connpool keeps idle client connections keyed by endpoint.
//
// A connection is handed to exactly one caller at a time. Callers return it
// with Put when the response left it reusable, or Discard it otherwise.
package connpool

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/always-cache/always-fetch/pkg/fetcherr"
)

const (
	DefaultMaxIdlePerHost = 2
	DefaultMaxIdle        = 32
	DefaultIdleTimeout    = 90 * time.Second
	DefaultDialTimeout    = 10 * time.Second
)

// Endpoint identifies the far end of a connection.
type Endpoint struct {
	Secure bool
	Host   string
	Port   int
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	if e.Secure {
		return "tls://" + e.Address()
	}
	return "tcp://" + e.Address()
}

type Config struct {
	MaxIdlePerHost int
	MaxIdle        int
	IdleTimeout    time.Duration
	DialTimeout    time.Duration
	// TLSConfig is cloned for every TLS dial; ServerName is always set to the endpoint host.
	TLSConfig *tls.Config
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *zerolog.Logger
}

// Conn is a pooled connection with its buffered reader.
type Conn struct {
	net.Conn
	Reader *bufio.Reader

	endpoint  Endpoint
	reused    bool
	idleSince time.Time
}

// Reused reports whether the connection served an earlier request.
func (c *Conn) Reused() bool { return c.reused }

func (c *Conn) Endpoint() Endpoint { return c.endpoint }

type Pool struct {
	cfg    Config
	dialer net.Dialer
	log    zerolog.Logger

	mutex  sync.Mutex
	idle   map[Endpoint][]*Conn
	nIdle  int
	closed bool
}

func New(cfg Config) *Pool {
	if cfg.MaxIdlePerHost <= 0 {
		cfg.MaxIdlePerHost = DefaultMaxIdlePerHost
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = DefaultMaxIdle
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	var log zerolog.Logger
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "connpool").Logger()
	} else {
		log = zerolog.Nop()
	}
	return &Pool{
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
		log:    log,
		idle:   make(map[Endpoint][]*Conn),
	}
}

// Get returns an idle connection to ep, or dials a new one.
func (p *Pool) Get(ctx context.Context, ep Endpoint) (*Conn, error) {
	if c := p.pull(ep); c != nil {
		p.log.Trace().Str("endpoint", ep.String()).Msg("Reusing idle connection")
		return c, nil
	}
	return p.Dial(ctx, ep)
}

// Dial always opens a fresh connection, bypassing the idle list.
func (p *Pool) Dial(ctx context.Context, ep Endpoint) (*Conn, error) {
	raw, err := p.dialer.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, dialError(err, "dial %s", ep.Address())
	}
	netConn := raw
	if ep.Secure {
		tlsConn := tls.Client(raw, p.tlsConfig(ep.Host))
		hsCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
		err := tlsConn.HandshakeContext(hsCtx)
		cancel()
		if err != nil {
			raw.Close()
			return nil, dialError(err, "tls handshake with %s", ep.Address())
		}
		netConn = tlsConn
	}
	p.log.Trace().Str("endpoint", ep.String()).Msg("Dialed connection")
	return &Conn{Conn: netConn, Reader: bufio.NewReader(netConn), endpoint: ep}, nil
}

// Put returns c to the idle list. When the per-host or global bound is
// exceeded the oldest idle connection is closed.
func (p *Pool) Put(c *Conn) {
	if c == nil {
		return
	}
	c.reused = true
	c.idleSince = p.cfg.Now()

	var evicted []*Conn
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		c.Close()
		return
	}
	conns := append(p.idle[c.endpoint], c)
	p.nIdle++
	if len(conns) > p.cfg.MaxIdlePerHost {
		evicted = append(evicted, conns[0])
		conns = conns[1:]
		p.nIdle--
	}
	p.idle[c.endpoint] = conns
	for p.nIdle > p.cfg.MaxIdle {
		if old := p.removeOldestLocked(); old != nil {
			evicted = append(evicted, old)
		}
	}
	p.mutex.Unlock()

	for _, old := range evicted {
		p.log.Trace().Str("endpoint", old.endpoint.String()).Msg("Evicting idle connection over bound")
		old.Close()
	}
}

// Discard closes c without pooling it.
func (p *Pool) Discard(c *Conn) {
	if c != nil {
		c.Close()
	}
}

// CloseIdle closes every idle connection. The pool stays usable.
func (p *Pool) CloseIdle() {
	p.mutex.Lock()
	idle := p.idle
	p.idle = make(map[Endpoint][]*Conn)
	p.nIdle = 0
	p.mutex.Unlock()

	for _, conns := range idle {
		for _, c := range conns {
			c.Close()
		}
	}
}

// Close closes every idle connection. Connections put back later are closed immediately.
func (p *Pool) Close() error {
	p.mutex.Lock()
	p.closed = true
	p.mutex.Unlock()
	p.CloseIdle()
	return nil
}

// IdleCount returns the number of idle connections to ep.
func (p *Pool) IdleCount(ep Endpoint) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.idle[ep])
}

// pull takes the most recently used idle connection to ep. Idle lists are
// ordered oldest first, so expired connections form a prefix.
func (p *Pool) pull(ep Endpoint) *Conn {
	now := p.cfg.Now()
	var c *Conn

	p.mutex.Lock()
	conns := p.idle[ep]
	n := 0
	for n < len(conns) && now.Sub(conns[n].idleSince) > p.cfg.IdleTimeout {
		n++
	}
	expired := append([]*Conn(nil), conns[:n]...)
	conns = conns[n:]
	p.nIdle -= n
	if len(conns) > 0 {
		c = conns[len(conns)-1]
		conns = conns[:len(conns)-1]
		p.nIdle--
	}
	if len(conns) == 0 {
		delete(p.idle, ep)
	} else {
		p.idle[ep] = conns
	}
	p.mutex.Unlock()

	for _, old := range expired {
		p.log.Trace().Str("endpoint", ep.String()).Msg("Closing expired idle connection")
		old.Close()
	}
	return c
}

func (p *Pool) removeOldestLocked() *Conn {
	var (
		oldest   *Conn
		oldestEp Endpoint
	)
	for ep, conns := range p.idle {
		if len(conns) > 0 && (oldest == nil || conns[0].idleSince.Before(oldest.idleSince)) {
			oldest = conns[0]
			oldestEp = ep
		}
	}
	if oldest == nil {
		return nil
	}
	conns := p.idle[oldestEp][1:]
	if len(conns) == 0 {
		delete(p.idle, oldestEp)
	} else {
		p.idle[oldestEp] = conns
	}
	p.nIdle--
	return oldest
}

func (p *Pool) tlsConfig(host string) *tls.Config {
	var cfg *tls.Config
	if p.cfg.TLSConfig != nil {
		cfg = p.cfg.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	cfg.ServerName = host
	return cfg
}

func dialError(err error, format string, args ...any) error {
	if IsTimeout(err) {
		return fetcherr.Wrap(fetcherr.Timeout, err, format, args...)
	}
	return fetcherr.Wrap(fetcherr.ConnectionFailure, err, format, args...)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
