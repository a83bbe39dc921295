// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

import (
	"bytes"
	"context"
	"io"
	"sync"

	"golang.org/x/net/http2"
)

// StreamHandle is the application's view of one request/response
// exchange. It is safe for concurrent use. The response header block is
// delivered exactly once, through Response; body bytes stream through
// Body; trailers, if any, are available after the body reports EOF.
type StreamHandle struct {
	body pipe // inbound body; written by the conn loop

	respc chan respAndError // capacity 1, written exactly once

	mu       sync.Mutex
	c        *conn
	cs       *stream // loop-owned; the handle never dereferences its fields
	id       uint32
	infos    []Headers // 1xx blocks, in arrival order
	trailers Headers
	resp     Headers
	respErr  error
	respSeen bool

	completeOnce sync.Once
}

type respAndError struct {
	h   Headers
	err error
}

func newStreamHandle() *StreamHandle {
	hd := &StreamHandle{
		respc: make(chan respAndError, 1),
	}
	hd.body.b = new(bytes.Buffer)
	return hd
}

// bind is called once by the conn loop when the request is assigned a
// stream identifier.
func (hd *StreamHandle) bind(c *conn, cs *stream, id uint32) {
	hd.mu.Lock()
	hd.c = c
	hd.cs = cs
	hd.id = id
	hd.mu.Unlock()
}

// entry returns the loop-side stream entry, or nil before binding.
// Only the conn loop may look inside the result.
func (hd *StreamHandle) entry() *stream {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	return hd.cs
}

func (hd *StreamHandle) connAndID() (*conn, uint32) {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	return hd.c, hd.id
}

// StreamID returns the assigned stream identifier, zero before the
// request is bound to a connection.
func (hd *StreamHandle) StreamID() uint32 {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	return hd.id
}

// deliverResponse hands the final (non-informational) header block to
// the application. Later callers of complete lose; the first outcome,
// success or failure, is the one Response reports.
func (hd *StreamHandle) deliverResponse(h Headers) {
	hd.completeOnce.Do(func() {
		hd.respc <- respAndError{h: h}
	})
}

// fail terminates the exchange with err: the response (if still
// pending) and the body reader both observe it.
func (hd *StreamHandle) fail(err error) {
	hd.completeOnce.Do(func() {
		hd.respc <- respAndError{err: err}
	})
	hd.body.BreakWithError(err)
}

func (hd *StreamHandle) addInformational(h Headers) {
	hd.mu.Lock()
	hd.infos = append(hd.infos, h)
	hd.mu.Unlock()
}

func (hd *StreamHandle) setTrailers(h Headers) {
	hd.mu.Lock()
	hd.trailers = h
	hd.mu.Unlock()
}

// Response blocks until the final header block arrives or the stream
// fails, and afterwards keeps returning the same outcome.
func (hd *StreamHandle) Response() (Headers, error) {
	hd.mu.Lock()
	if hd.respSeen {
		defer hd.mu.Unlock()
		return hd.resp, hd.respErr
	}
	hd.mu.Unlock()

	re := <-hd.respc
	hd.respc <- re // concurrent callers take their own turn
	hd.mu.Lock()
	defer hd.mu.Unlock()
	hd.respSeen = true
	hd.resp, hd.respErr = re.h, re.err
	return hd.resp, hd.respErr
}

// Informational returns the 1xx header blocks received so far.
func (hd *StreamHandle) Informational() []Headers {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	out := make([]Headers, len(hd.infos))
	copy(out, hd.infos)
	return out
}

// Trailers returns the trailer block, nil if none arrived. Meaningful
// only after Body reports EOF.
func (hd *StreamHandle) Trailers() Headers {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	return hd.trailers
}

// Body returns the response body stream. Reading it replenishes the
// receive windows.
func (hd *StreamHandle) Body() *BodyReader { return &BodyReader{hd: hd} }

// Cancel resets the stream with code. Resetting an already-finished
// stream is a no-op.
func (hd *StreamHandle) Cancel(code http2.ErrCode) error {
	c, _ := hd.connAndID()
	if c == nil {
		hd.fail(StreamError{Code: code})
		return nil
	}
	op := &opCancel{hd: hd, code: code, errc: make(chan error, 1)}
	if err := c.do(op); err != nil {
		return nil // connection already torn the stream down
	}
	return <-op.errc
}

// Close abandons the exchange, resetting the stream with CANCEL if it
// is still live.
func (hd *StreamHandle) Close() error {
	return hd.Cancel(http2.ErrCodeCancel)
}

// BodyReader streams the response body. Bytes handed to the caller are
// reported back to the connection so receive window credit can be
// replenished (coalesced per the configured threshold).
type BodyReader struct {
	hd *StreamHandle
}

func (r *BodyReader) Read(p []byte) (int, error) {
	n, err := r.hd.body.Read(p)
	if n > 0 {
		if c, _ := r.hd.connAndID(); c != nil {
			// Best effort: a dead connection has no window to refill.
			c.do(&opConsumed{hd: r.hd, n: n})
		}
	}
	return n, err
}

// ReadAll drains the body and returns it with any terminal error other
// than EOF.
func (r *BodyReader) ReadAll() ([]byte, error) {
	var buf bytes.Buffer
	tmp := make([]byte, 8<<10)
	for {
		n, err := r.Read(tmp)
		buf.Write(tmp[:n])
		if err != nil {
			if err == io.EOF {
				return buf.Bytes(), nil
			}
			return buf.Bytes(), err
		}
	}
}

// BodySender feeds the request body of a sink-style request. SendData
// always accepts and buffers; Ready and WaitReady let cooperative
// producers stop writing ahead of the peer's flow-control credit.
type BodySender struct {
	hd *StreamHandle
}

// SendData buffers p for transmission. It never blocks on flow control
// and copies p before returning. After the stream has been reset or the
// connection lost, the data is silently dropped; the failure reaches
// the application through the handle.
func (s *BodySender) SendData(p []byte) error { return s.send(p, false) }

// SendLast buffers p and marks the end of the request body.
func (s *BodySender) SendLast(p []byte) error { return s.send(p, true) }

// CloseSend ends the request body with no further payload.
func (s *BodySender) CloseSend() error { return s.send(nil, true) }

func (s *BodySender) send(p []byte, eos bool) error {
	c, _ := s.hd.connAndID()
	if c == nil {
		return ErrConnLost
	}
	owned := make([]byte, len(p))
	copy(owned, p)
	op := &opSendData{hd: s.hd, data: owned, eos: eos, errc: make(chan error, 1)}
	if err := c.do(op); err != nil {
		// Dropped quietly; the reset/teardown is reported elsewhere.
		return nil
	}
	return <-op.errc
}

// Ready returns a channel that is closed once both window scopes show
// positive pump credit, or the stream reaches a terminal state.
func (s *BodySender) Ready() <-chan struct{} {
	readyc := make(chan struct{})
	c, _ := s.hd.connAndID()
	if c == nil {
		close(readyc)
		return readyc
	}
	if err := c.do(&opReady{hd: s.hd, readyc: readyc}); err != nil {
		close(readyc)
	}
	return readyc
}

// WaitReady blocks until the sink can accept more bytes or ctx ends.
func (s *BodySender) WaitReady(ctx context.Context) error {
	select {
	case <-s.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
