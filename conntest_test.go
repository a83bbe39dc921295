// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

// In-memory test harness: the client dials a fake net.Conn whose two
// halves are pipes, and the test drives the server side of the
// connection with a bare Framer. The server's SETTINGS are preloaded
// into the client's read side before the dial returns, so NewClient's
// handshake completes without a concurrent server goroutine.

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

var errFakeConnClosed = errors.New("fake conn closed")

type fakeNetConn struct {
	in  *pipe // client reads, server writes
	out *pipe // client writes, server reads

	closeOnce sync.Once
}

func newFakeNetConn() *fakeNetConn {
	nc := &fakeNetConn{in: new(pipe), out: new(pipe)}
	nc.in.b = new(bytes.Buffer)
	nc.out.b = new(bytes.Buffer)
	return nc
}

func (c *fakeNetConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *fakeNetConn) Write(p []byte) (int, error) { return c.out.Write(p) }

func (c *fakeNetConn) Close() error {
	c.closeOnce.Do(func() {
		c.in.BreakWithError(errFakeConnClosed)
		c.out.CloseWithError(io.EOF)
	})
	return nil
}

type fakeAddr struct{}

func (fakeAddr) Network() string { return "fake" }
func (fakeAddr) String() string  { return "fake" }

func (c *fakeNetConn) LocalAddr() net.Addr                { return fakeAddr{} }
func (c *fakeNetConn) RemoteAddr() net.Addr               { return fakeAddr{} }
func (c *fakeNetConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeNetConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeNetConn) SetWriteDeadline(t time.Time) error { return nil }

// testConn is the server side of one accepted connection.
type testConn struct {
	t    *testing.T
	nc   *fakeNetConn
	fr   *http2.Framer
	hbuf bytes.Buffer
	henc *hpack.Encoder
}

func newTestConnPair(t *testing.T, settings []http2.Setting) *testConn {
	nc := newFakeNetConn()
	tc := &testConn{t: t, nc: nc}
	tc.fr = http2.NewFramer(nc.in, nc.out)
	tc.fr.ReadMetaHeaders = hpack.NewDecoder(initialHeaderTableSize, nil)
	tc.henc = hpack.NewEncoder(&tc.hbuf)
	// Preload our SETTINGS so the client handshake never blocks.
	if err := tc.fr.WriteSettings(settings...); err != nil {
		t.Fatalf("preloading server SETTINGS: %v", err)
	}
	return tc
}

// closeConn simulates the server dropping the transport.
func (tc *testConn) closeConn() {
	tc.nc.in.CloseWithError(io.EOF)
}

// wantClosed waits for the client to close its side.
func (tc *testConn) wantClosed() {
	tc.t.Helper()
	if _, err := tc.readFrameErr(); err == nil {
		tc.t.Fatalf("want closed connection, got a frame")
	}
}

func (tc *testConn) readFrameErr() (http2.Frame, error) {
	type res struct {
		f   http2.Frame
		err error
	}
	ch := make(chan res, 1)
	go func() {
		f, err := tc.fr.ReadFrame()
		ch <- res{f, err}
	}()
	select {
	case r := <-ch:
		return r.f, r.err
	case <-time.After(5 * time.Second):
		return nil, errors.New("timeout waiting for frame")
	}
}

func (tc *testConn) readFrame() http2.Frame {
	tc.t.Helper()
	f, err := tc.readFrameErr()
	if err != nil {
		tc.t.Fatalf("reading frame: %v", err)
	}
	return f
}

// greet consumes the client preface, its SETTINGS (which we ack) and
// its ack of ours. Any WINDOW_UPDATE announced between them is
// returned.
func (tc *testConn) greet() (connWindowIncrement uint32) {
	tc.t.Helper()
	buf := make([]byte, len(clientPreface))
	if _, err := io.ReadFull(tc.nc.out, buf); err != nil {
		tc.t.Fatalf("reading client preface: %v", err)
	}
	if string(buf) != ClientPreface {
		tc.t.Fatalf("client preface = %q, want %q", buf, ClientPreface)
	}
	sawSettings := false
	for {
		switch f := tc.readFrame().(type) {
		case *http2.SettingsFrame:
			if f.IsAck() {
				if !sawSettings {
					tc.t.Fatalf("client SETTINGS ack before its SETTINGS")
				}
				return connWindowIncrement
			}
			sawSettings = true
			if err := tc.fr.WriteSettingsAck(); err != nil {
				tc.t.Fatalf("writing SETTINGS ack: %v", err)
			}
		case *http2.WindowUpdateFrame:
			connWindowIncrement = f.Increment
		default:
			tc.t.Fatalf("unexpected %T during greeting", f)
		}
	}
}

func (tc *testConn) wantHeaders(wantStreamID uint32) *http2.MetaHeadersFrame {
	tc.t.Helper()
	f, ok := tc.readFrame().(*http2.MetaHeadersFrame)
	if !ok || f.StreamID != wantStreamID {
		tc.t.Fatalf("want HEADERS on stream %d, got %v", wantStreamID, f)
	}
	return f
}

type dataSnap struct {
	streamID  uint32
	endStream bool
	data      []byte
}

func (tc *testConn) wantData() dataSnap {
	tc.t.Helper()
	f, ok := tc.readFrame().(*http2.DataFrame)
	if !ok {
		tc.t.Fatalf("want DATA, got %T", f)
	}
	d := make([]byte, len(f.Data()))
	copy(d, f.Data())
	return dataSnap{streamID: f.StreamID, endStream: f.StreamEnded(), data: d}
}

// collectData reads DATA frames until n payload bytes have arrived,
// checking that no frame exceeds the peer frame size.
func (tc *testConn) collectData(wantStreamID uint32, n int) []byte {
	tc.t.Helper()
	var got []byte
	for len(got) < n {
		d := tc.wantData()
		if d.streamID != wantStreamID {
			tc.t.Fatalf("DATA on stream %d, want %d", d.streamID, wantStreamID)
		}
		if len(d.data) > defaultMaxFrameSize {
			tc.t.Fatalf("DATA frame of %d bytes exceeds frame size %d", len(d.data), defaultMaxFrameSize)
		}
		got = append(got, d.data...)
	}
	if len(got) != n {
		tc.t.Fatalf("got %d body bytes, want %d", len(got), n)
	}
	return got
}

func (tc *testConn) wantWindowUpdate() (streamID, inc uint32) {
	tc.t.Helper()
	f, ok := tc.readFrame().(*http2.WindowUpdateFrame)
	if !ok {
		tc.t.Fatalf("want WINDOW_UPDATE, got %T", f)
	}
	return f.StreamID, f.Increment
}

func (tc *testConn) wantRSTStream(wantStreamID uint32) http2.ErrCode {
	tc.t.Helper()
	f, ok := tc.readFrame().(*http2.RSTStreamFrame)
	if !ok || f.StreamID != wantStreamID {
		tc.t.Fatalf("want RST_STREAM on stream %d, got %v", wantStreamID, f)
	}
	return f.ErrCode
}

func (tc *testConn) wantSettingsAck() {
	tc.t.Helper()
	f, ok := tc.readFrame().(*http2.SettingsFrame)
	if !ok || !f.IsAck() {
		tc.t.Fatalf("want SETTINGS ack, got %v", f)
	}
}

func (tc *testConn) wantPingAck(data [8]byte) {
	tc.t.Helper()
	f, ok := tc.readFrame().(*http2.PingFrame)
	if !ok || !f.IsAck() || f.Data != data {
		tc.t.Fatalf("want PING ack with %v, got %v", data, f)
	}
}

func (tc *testConn) writeHeaders(streamID uint32, endStream bool, h Headers) {
	tc.t.Helper()
	tc.hbuf.Reset()
	for _, f := range h {
		tc.henc.WriteField(f)
	}
	err := tc.fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: tc.hbuf.Bytes(),
		EndStream:     endStream,
		EndHeaders:    true,
	})
	if err != nil {
		tc.t.Fatalf("writing HEADERS: %v", err)
	}
}

func (tc *testConn) writeData(streamID uint32, endStream bool, data []byte) {
	tc.t.Helper()
	if err := tc.fr.WriteData(streamID, endStream, data); err != nil {
		tc.t.Fatalf("writing DATA: %v", err)
	}
}

func (tc *testConn) writeWindowUpdate(streamID, incr uint32) {
	tc.t.Helper()
	if err := tc.fr.WriteWindowUpdate(streamID, incr); err != nil {
		tc.t.Fatalf("writing WINDOW_UPDATE: %v", err)
	}
}

func (tc *testConn) writeRSTStream(streamID uint32, code http2.ErrCode) {
	tc.t.Helper()
	if err := tc.fr.WriteRSTStream(streamID, code); err != nil {
		tc.t.Fatalf("writing RST_STREAM: %v", err)
	}
}

func (tc *testConn) writeGoAway(maxStreamID uint32, code http2.ErrCode) {
	tc.t.Helper()
	if err := tc.fr.WriteGoAway(maxStreamID, code, nil); err != nil {
		tc.t.Fatalf("writing GOAWAY: %v", err)
	}
}

func (tc *testConn) writeSettings(settings ...http2.Setting) {
	tc.t.Helper()
	if err := tc.fr.WriteSettings(settings...); err != nil {
		tc.t.Fatalf("writing SETTINGS: %v", err)
	}
}

func (tc *testConn) writePing(data [8]byte) {
	tc.t.Helper()
	if err := tc.fr.WritePing(false, data); err != nil {
		tc.t.Fatalf("writing PING: %v", err)
	}
}

// respond writes a complete 200 response with the given body.
func (tc *testConn) respond(streamID uint32, body []byte) {
	tc.t.Helper()
	tc.writeHeaders(streamID, len(body) == 0, OK200())
	if len(body) > 0 {
		tc.writeData(streamID, true, body)
	}
}

// testClient bundles a Client with the server sides of its connections.
type testClient struct {
	t  *testing.T
	cl *Client
	tc *testConn // current connection's server side, after greet

	// connWindowInc is the connection-scope WINDOW_UPDATE the client
	// announced during the most recent greeting, zero if none.
	connWindowInc uint32

	mu       sync.Mutex
	settings []http2.Setting
	connc    chan *testConn
}

func newTestClient(t *testing.T, opts ...Option) *testClient {
	return newTestClientSettings(t, nil, opts...)
}

func newTestClientSettings(t *testing.T, settings []http2.Setting, opts ...Option) *testClient {
	t.Helper()
	tcl := &testClient{
		t:        t,
		settings: settings,
		connc:    make(chan *testConn, 4),
	}
	dial := func(addr string, timeout time.Duration) (net.Conn, error) {
		tcl.mu.Lock()
		s := tcl.settings
		tcl.mu.Unlock()
		tc := newTestConnPair(t, s)
		tcl.connc <- tc
		return tc.nc, nil
	}
	cl, err := NewClient("test.invalid:443", append([]Option{WithDialer(dial)}, opts...)...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	tcl.cl = cl
	t.Cleanup(func() { cl.Close() })
	tcl.accept()
	return tcl
}

// accept picks up the server side of the most recent dial and performs
// the greeting. It returns the connection-scope WINDOW_UPDATE announced
// during the handshake, if any.
func (tcl *testClient) accept() uint32 {
	tcl.t.Helper()
	select {
	case tc := <-tcl.connc:
		tcl.tc = tc
		tcl.connWindowInc = tc.greet()
		return tcl.connWindowInc
	case <-time.After(5 * time.Second):
		tcl.t.Fatalf("timeout waiting for client to dial")
		return 0
	}
}

// snapshot fetches the connection state, failing the test on error.
func (tcl *testClient) snapshot() ConnStateSnapshot {
	tcl.t.Helper()
	snap, err := tcl.cl.DumpState()
	if err != nil {
		tcl.t.Fatalf("DumpState: %v", err)
	}
	return snap
}
