// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DialFunc opens the transport for one connection attempt.
type DialFunc func(addr string, timeout time.Duration) (net.Conn, error)

type clientConfig struct {
	addr                  string
	dial                  DialFunc
	tlsConfig             *tls.Config
	connectTimeout        time.Duration
	autoReconnect         bool
	replayUnbound         bool
	failWhenBusy          bool
	streamRecvWindow      int32
	connRecvWindow        int32
	windowUpdateThreshold int32
	logger                *zap.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithLogger routes internal diagnostics to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithDialer replaces the transport dialer; useful for tests and for
// exotic transports.
func WithDialer(d DialFunc) Option {
	return func(c *clientConfig) { c.dial = d }
}

// WithTLSConfig enables TLS. The ALPN protocol list is forced to "h2".
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *clientConfig) { c.tlsConfig = cfg }
}

// WithConnectTimeout bounds how long a connection may take to reach the
// established phase, handshake included.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.connectTimeout = d }
}

// WithAutoReconnect controls whether a lost connection is re-dialed
// when the next request needs one. Defaults to on; when off, requests
// after a disconnect fail with ErrConnLost.
func WithAutoReconnect(on bool) Option {
	return func(c *clientConfig) { c.autoReconnect = on }
}

// WithReplayUnbound opts in to automatic retry of requests that were
// queued but never assigned a stream when the connection died. Requests
// already on the wire are never retried.
func WithReplayUnbound(on bool) Option {
	return func(c *clientConfig) { c.replayUnbound = on }
}

// WithFailWhenBusy makes starts fail with ErrConcurrencyLimit instead
// of queueing when the peer's concurrent stream limit is reached.
func WithFailWhenBusy() Option {
	return func(c *clientConfig) { c.failWhenBusy = true }
}

// WithStreamRecvWindow sets the per-stream receive window announced in
// our SETTINGS.
func WithStreamRecvWindow(n int32) Option {
	return func(c *clientConfig) { c.streamRecvWindow = n }
}

// WithConnRecvWindow sets the connection-scope receive window; any
// excess over the protocol default is announced with a WINDOW_UPDATE
// right after the preface.
func WithConnRecvWindow(n int32) Option {
	return func(c *clientConfig) { c.connRecvWindow = n }
}

// WithWindowUpdateThreshold tunes how many consumed bytes accumulate
// before a WINDOW_UPDATE goes on the wire.
func WithWindowUpdateThreshold(n int32) Option {
	return func(c *clientConfig) { c.windowUpdateThreshold = n }
}

// Client multiplexes requests over one HTTP/2 connection, redialing it
// as needed. All methods are safe for concurrent use.
type Client struct {
	cfg    clientConfig
	logger *zap.Logger

	mu            sync.Mutex
	cc            *conn
	closed        bool
	dialing       bool
	dialDone      chan struct{} // closed when the in-flight dial finishes
	dialErr       error
	everConnected bool
}

// NewClient connects to addr and returns a client once the connection
// is established.
func NewClient(addr string, opts ...Option) (*Client, error) {
	cfg := clientConfig{
		addr:                  addr,
		connectTimeout:        10 * time.Second,
		autoReconnect:         true,
		streamRecvWindow:      defaultInitialWindowSize,
		connRecvWindow:        defaultInitialWindowSize,
		windowUpdateThreshold: defaultWindowUpdateThreshold,
		logger:                zap.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.streamRecvWindow <= 0 || cfg.streamRecvWindow > maxWindow {
		return nil, fmt.Errorf("httpbis: stream receive window %d out of range", cfg.streamRecvWindow)
	}
	if cfg.connRecvWindow < defaultInitialWindowSize || cfg.connRecvWindow > maxWindow {
		return nil, fmt.Errorf("httpbis: connection receive window %d out of range", cfg.connRecvWindow)
	}
	cl := &Client{
		cfg:    cfg,
		logger: cfg.logger.Named("httpbis").With(zap.String("addr", addr)),
	}
	if cl.cfg.dial == nil {
		cl.cfg.dial = cl.defaultDial
	}
	if _, err := cl.getConn(); err != nil {
		return nil, err
	}
	return cl, nil
}

func (cl *Client) defaultDial(addr string, timeout time.Duration) (net.Conn, error) {
	if cl.cfg.tlsConfig != nil {
		cfg := cl.cfg.tlsConfig.Clone()
		cfg.NextProtos = []string{NextProtoTLS}
		d := &net.Dialer{Timeout: timeout}
		tc, err := tls.DialWithDialer(d, "tcp", addr, cfg)
		if err != nil {
			return nil, err
		}
		if p := tc.ConnectionState().NegotiatedProtocol; p != NextProtoTLS {
			tc.Close()
			return nil, fmt.Errorf("httpbis: peer negotiated %q, want %q", p, NextProtoTLS)
		}
		return tc, nil
	}
	return net.DialTimeout("tcp", addr, timeout)
}

// getConn returns a usable connection, dialing one if permitted. Only
// one dial runs at a time; latecomers wait for its outcome.
func (cl *Client) getConn() (*conn, error) {
	for {
		cl.mu.Lock()
		if cl.closed {
			cl.mu.Unlock()
			return nil, ErrClientClosed
		}
		if cc := cl.cc; cc != nil && cc.canTakeNewRequest() {
			cl.mu.Unlock()
			return cc, nil
		}
		if cl.everConnected && !cl.cfg.autoReconnect {
			cl.mu.Unlock()
			return nil, ErrConnLost
		}
		if !cl.dialing {
			cl.dialing = true
			cl.dialDone = make(chan struct{})
			go cl.dialAndSet()
		}
		done := cl.dialDone
		cl.mu.Unlock()

		<-done
		cl.mu.Lock()
		err := cl.dialErr
		cl.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

func (cl *Client) dialAndSet() {
	cc, err := cl.dialConn()
	cl.mu.Lock()
	cl.dialing = false
	cl.dialErr = err
	if err == nil {
		cl.cc = cc
		cl.everConnected = true
	}
	close(cl.dialDone)
	closed := cl.closed
	cl.mu.Unlock()
	if closed && cc != nil {
		cc.nc.Close()
	}
}

func (cl *Client) dialConn() (*conn, error) {
	nc, err := cl.cfg.dial(cl.cfg.addr, cl.cfg.connectTimeout)
	if err != nil {
		cl.logger.Debug("dial failed", zap.Error(err))
		return nil, err
	}
	c := newConn(cl, nc)
	if err := c.handshake(cl.cfg.connectTimeout); err != nil {
		nc.Close()
		cl.logger.Debug("handshake failed", zap.Error(err))
		return nil, err
	}
	go c.readFrames()
	go c.loop()
	return c, nil
}

// connTerminated is called once from a connection's teardown. Requests
// that never bound to a stream are replayed on a fresh connection when
// the application opted in, and failed otherwise.
func (cl *Client) connTerminated(c *conn, cause error, unbound []*opStart) {
	cl.mu.Lock()
	if cl.cc == c {
		cl.cc = nil
	}
	replay := cl.cfg.replayUnbound && !cl.closed
	cl.mu.Unlock()

	for _, op := range unbound {
		if replay {
			go cl.resubmit(op)
		} else {
			op.errc <- cause
		}
	}
}

func (cl *Client) resubmit(op *opStart) {
	for {
		cc, err := cl.getConn()
		if err != nil {
			op.errc <- err
			return
		}
		if err := cc.do(op); err == nil {
			return // the new loop owns the op now
		}
	}
}

// StartRequest dispatches headers (and an optional eager body) and
// returns a handle to the exchange. With endStream false the request
// body stays open for a BodySender.
func (cl *Client) StartRequest(h Headers, body []byte, endStream bool) (*StreamHandle, error) {
	if err := h.validateRequest(); err != nil {
		return nil, err
	}
	hd := newStreamHandle()
	op := &opStart{
		hd:      hd,
		headers: h,
		body:    body,
		eos:     endStream,
		noWait:  cl.cfg.failWhenBusy,
		errc:    make(chan error, 1),
	}
	for {
		cc, err := cl.getConn()
		if err != nil {
			return nil, err
		}
		if err := cc.do(op); err != nil {
			// The connection died before taking the op. Nothing was
			// dispatched, so trying the next connection is safe.
			continue
		}
		err = <-op.errc
		if errors.Is(err, ErrDraining) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return hd, nil
	}
}

// StartGet issues a GET for path against authority.
func (cl *Client) StartGet(path, authority string) (*StreamHandle, error) {
	return cl.StartRequest(RequestHeaders("GET", path, authority), nil, true)
}

// StartPost issues a POST with a complete body.
func (cl *Client) StartPost(path, authority string, body []byte) (*StreamHandle, error) {
	return cl.StartRequest(RequestHeaders("POST", path, authority), body, true)
}

// StartPostSink issues a POST whose body will be streamed through the
// returned sender.
func (cl *Client) StartPostSink(path, authority string) (*StreamHandle, *BodySender, error) {
	hd, err := cl.StartRequest(RequestHeaders("POST", path, authority), nil, false)
	if err != nil {
		return nil, nil, err
	}
	return hd, &BodySender{hd: hd}, nil
}

// WaitForConnect blocks until a connection is established, dialing one
// if needed.
func (cl *Client) WaitForConnect(ctx context.Context) error {
	type res struct{ err error }
	resc := make(chan res, 1)
	go func() {
		_, err := cl.getConn()
		resc <- res{err}
	}()
	select {
	case r := <-resc:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DumpState snapshots the live connection. It fails with ErrConnLost
// when there is none; it never dials.
func (cl *Client) DumpState() (ConnStateSnapshot, error) {
	cl.mu.Lock()
	cc := cl.cc
	closed := cl.closed
	cl.mu.Unlock()
	if closed {
		return ConnStateSnapshot{}, ErrClientClosed
	}
	if cc == nil {
		return ConnStateSnapshot{}, ErrConnLost
	}
	op := &opSnapshot{resc: make(chan ConnStateSnapshot, 1)}
	if err := cc.do(op); err != nil {
		return ConnStateSnapshot{}, ErrConnLost
	}
	return <-op.resc, nil
}

// Close tears the client down. In-flight exchanges fail; new calls
// fail with ErrClientClosed.
func (cl *Client) Close() error {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return nil
	}
	cl.closed = true
	cc := cl.cc
	cl.cc = nil
	cl.mu.Unlock()
	if cc != nil {
		// Break the transport; the loop observes the read error and
		// fails the remaining streams.
		cc.nc.Close()
	}
	return nil
}
