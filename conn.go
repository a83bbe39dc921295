// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// conn is the state of a single physical HTTP/2 connection.
//
// All stream table mutation, window accounting and phase transitions
// happen on one goroutine, the loop. The frame reader goroutine and the
// application cross into it through channels; nothing here is guarded
// by locks.
type conn struct {
	client *Client
	logger *zap.Logger
	role   role

	nc net.Conn
	bw *bufio.Writer
	fr *http2.Framer

	hbuf bytes.Buffer // HPACK encoder writes into this
	henc *hpack.Encoder

	// readFrames goroutine fields:
	readFrameCh chan frameAndProcessed
	readErrCh   chan error // buffered for 1; written before readFrameCh closes

	opc     chan connOp   // unbuffered: a send observed means the loop has it
	donec   chan struct{} // closed when the loop has fully torn down
	termErr error         // set before donec is closed

	drainingFlag atomic.Bool // mirrors phase for canTakeNewRequest

	// Everything below is owned by the loop; use loopG.check():
	loopG             goroutineLock
	phase             ConnPhase
	table             *streamTable
	out               outWindow
	in                inWindow
	peerMaxFrameSize  uint32
	peerInitialWindow int32
	goAway            *GoAwayError
	werr              error // first write error; sticky
	stopping          bool  // loop should exit after the current message
}

// frameAndProcessed coordinates the readFrames and loop goroutines: the
// framing layer only keeps the most recently read frame alive, so the
// reader must not read again until the loop signals processed.
type frameAndProcessed struct {
	f         http2.Frame
	processed chan struct{}
}

type stickyErrWriter struct {
	w   io.Writer
	err *error
}

func (sew stickyErrWriter) Write(p []byte) (n int, err error) {
	if *sew.err != nil {
		return 0, *sew.err
	}
	n, err = sew.w.Write(p)
	*sew.err = err
	return
}

func newConn(cl *Client, nc net.Conn) *conn {
	c := &conn{
		client:            cl,
		logger:            cl.logger,
		role:              roleClient,
		nc:                nc,
		readFrameCh:       make(chan frameAndProcessed),
		readErrCh:         make(chan error, 1),
		opc:               make(chan connOp),
		donec:             make(chan struct{}),
		phase:             PhaseConnecting,
		out:               newOutWindow(defaultInitialWindowSize),
		in:                newInWindow(cl.cfg.connRecvWindow, cl.cfg.windowUpdateThreshold),
		peerMaxFrameSize:  defaultMaxFrameSize,
		peerInitialWindow: defaultInitialWindowSize,
	}
	c.table = newStreamTable(c.role, defaultMaxConcurrentStreams)
	c.bw = bufio.NewWriter(stickyErrWriter{nc, &c.werr})
	c.fr = http2.NewFramer(c.bw, bufio.NewReader(nc))
	c.fr.ReadMetaHeaders = hpack.NewDecoder(initialHeaderTableSize, nil)
	c.henc = hpack.NewEncoder(&c.hbuf)
	return c
}

// handshake sends the client preface and our SETTINGS, then waits for
// the peer's. A connection that does not reach Established within the
// configured bound is abandoned; the caller treats that exactly like a
// post-establishment disconnect.
func (c *conn) handshake(timeout time.Duration) error {
	if timeout > 0 {
		c.nc.SetDeadline(time.Now().Add(timeout))
		defer c.nc.SetDeadline(time.Time{})
	}
	if _, err := c.bw.Write(clientPreface); err != nil {
		return err
	}
	settings := []http2.Setting{
		{ID: http2.SettingEnablePush, Val: 0},
	}
	if w := c.client.cfg.streamRecvWindow; w != defaultInitialWindowSize {
		settings = append(settings, http2.Setting{ID: http2.SettingInitialWindowSize, Val: uint32(w)})
	}
	if err := c.fr.WriteSettings(settings...); err != nil {
		return err
	}
	if extra := c.client.cfg.connRecvWindow - defaultInitialWindowSize; extra > 0 {
		if err := c.fr.WriteWindowUpdate(0, uint32(extra)); err != nil {
			return err
		}
	}
	if err := c.bw.Flush(); err != nil {
		return err
	}

	// The peer speaks first with its obligatory SETTINGS frame.
	f, err := c.fr.ReadFrame()
	if err != nil {
		return err
	}
	sf, ok := f.(*http2.SettingsFrame)
	if !ok || sf.IsAck() {
		return fmt.Errorf("httpbis: expected initial SETTINGS frame, got %T", f)
	}
	if err := c.applySettings(sf); err != nil {
		return err
	}
	if err := c.fr.WriteSettingsAck(); err != nil {
		return err
	}
	if err := c.bw.Flush(); err != nil {
		return err
	}
	c.phase = PhaseEstablished
	c.logger.Debug("connection established", zap.Uint32("peer_max_frame_size", c.peerMaxFrameSize))
	return nil
}

// canTakeNewRequest is read by the client outside the loop.
func (c *conn) canTakeNewRequest() bool {
	select {
	case <-c.donec:
		return false
	default:
	}
	return !c.drainingFlag.Load()
}

// do hands op to the loop. The op channel is unbuffered, so a send that
// completes means the loop has picked the op up; otherwise the
// connection is gone and the caller gets its terminal error.
func (c *conn) do(op connOp) error {
	c.loopG.checkNotOn() // the loop must never submit to itself
	select {
	case c.opc <- op:
		return nil
	case <-c.donec:
		return c.termErr
	}
}

// readFrames runs on its own goroutine, feeding the loop.
func (c *conn) readFrames() {
	processed := make(chan struct{}, 1)
	for {
		f, err := c.fr.ReadFrame()
		if err != nil {
			c.readErrCh <- err // BEFORE the close
			close(c.readFrameCh)
			return
		}
		select {
		case c.readFrameCh <- frameAndProcessed{f, processed}:
			<-processed
		case <-c.donec:
			return
		}
	}
}

// loop serializes every state transition for this connection.
func (c *conn) loop() {
	c.loopG = newGoroutineLock()
	defer c.cleanup()
	for {
		select {
		case op := <-c.opc:
			c.processOp(op)
		case fp, ok := <-c.readFrameCh:
			if !ok {
				err := <-c.readErrCh
				c.terminate(c.eofError(err))
				return
			}
			c.logger.Debug("read frame", zap.Stringer("type", fp.f.Header().Type), zap.Uint32("stream", fp.f.Header().StreamID))
			err := c.processFrame(fp.f)
			fp.processed <- struct{}{}
			switch ev := err.(type) {
			case nil:
				// nothing
			case StreamError:
				c.resetStreamInLoop(ev)
			case ConnectionError:
				c.fr.WriteGoAway(0, http2.ErrCode(ev), nil)
				c.terminate(ev)
			default:
				c.terminate(err)
			}
		}
		c.flush()
		if c.werr != nil && !c.stopping {
			c.terminate(c.werr)
		}
		if c.stopping {
			return
		}
	}
}

// eofError names the terminal error for a reader-side disconnect.
func (c *conn) eofError(err error) error {
	if c.goAway != nil {
		// Drained GOAWAY followed by peer EOF: graceful.
		return *c.goAway
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrConnLost
	}
	return fmt.Errorf("%w: %v", ErrConnLost, err)
}

// terminate decides the loop exits after the current message.
func (c *conn) terminate(err error) {
	c.loopG.check()
	if c.stopping {
		return
	}
	c.stopping = true
	c.termErr = err
}

// cleanup fails every still-open stream exactly once, clears the table,
// and hands never-bound requests back to the client for replay.
func (c *conn) cleanup() {
	c.phase = PhaseTerminated
	c.drainingFlag.Store(true)
	c.nc.Close()
	if c.termErr == nil {
		c.termErr = ErrConnLost
	}
	cause := c.termErr
	c.logger.Debug("connection terminated", zap.Error(cause))

	for id, st := range c.table.streams {
		delete(c.table.streams, id)
		st.state = stateClosed
		if !st.terminated() {
			st.cause = causeConnLost
		}
		st.hd.fail(cause)
		st.notifyReady()
	}
	unbound := c.table.drainWaiters()
	close(c.donec)
	c.client.connTerminated(c, cause, unbound)
}

func (c *conn) flush() {
	c.loopG.check()
	if c.werr == nil && c.bw.Buffered() > 0 {
		c.bw.Flush()
	}
}

// ----------------------------------------------------------------------
// Application operations.

type connOp interface{}

// opStart carries one request until it is bound to a stream identifier.
// Requests that never bind are the ones the client may safely replay
// after a reconnect.
type opStart struct {
	hd      *StreamHandle
	headers Headers
	body    []byte
	eos     bool
	noWait  bool // fail instead of queueing at the concurrency limit
	errc    chan error
}

type opSendData struct {
	hd   *StreamHandle
	data []byte // owned by the op
	eos  bool
	errc chan error
}

type opConsumed struct {
	hd *StreamHandle
	n  int
}

type opReady struct {
	hd     *StreamHandle
	readyc chan struct{}
}

type opCancel struct {
	hd   *StreamHandle
	code http2.ErrCode
	errc chan error
}

type opSnapshot struct {
	resc chan ConnStateSnapshot
}

func (c *conn) processOp(op connOp) {
	c.loopG.check()
	switch op := op.(type) {
	case *opStart:
		c.processStart(op)
	case *opSendData:
		op.errc <- c.processSendData(op)
	case *opConsumed:
		c.processConsumed(op)
	case *opReady:
		c.processReady(op)
	case *opCancel:
		op.errc <- c.processCancel(op)
	case *opSnapshot:
		op.resc <- c.snapshot()
	default:
		panic(fmt.Sprintf("httpbis: unknown conn op %T", op))
	}
}

func (c *conn) processStart(op *opStart) {
	if c.phase != PhaseEstablished {
		op.errc <- ErrDraining
		return
	}
	if !c.table.hasCapacity() {
		if op.noWait {
			op.errc <- ErrConcurrencyLimit
			return
		}
		// The caller waits; the request binds once a stream closes.
		c.table.enqueueWaiter(op)
		return
	}
	c.startStream(op)
}

func (c *conn) startStream(op *opStart) {
	st := &stream{
		state: stateOpen,
		out:   newOutWindow(c.peerInitialWindow),
		in:    newInWindow(c.client.cfg.streamRecvWindow, c.client.cfg.windowUpdateThreshold),
		hd:    op.hd,
	}
	id := c.table.allocate(st)
	op.hd.bind(c, st, id)

	endStream := op.eos && len(op.body) == 0
	if err := c.writeHeaders(id, op.headers, endStream); err != nil {
		c.table.remove(id)
		op.errc <- err
		c.terminate(err)
		return
	}
	if endStream {
		st.eosSent = true
		st.closeLocal()
	}
	if len(op.body) > 0 || (op.eos && !endStream) {
		c.enqueueOutbound(st, op.body, op.eos)
		c.pumpStream(st)
	}
	op.errc <- nil
}

// writeHeaders encodes the header list and emits HEADERS plus however
// many CONTINUATION frames the peer's frame size requires.
func (c *conn) writeHeaders(id uint32, h Headers, endStream bool) error {
	c.hbuf.Reset()
	for _, f := range h {
		c.henc.WriteField(f)
	}
	block := c.hbuf.Bytes()
	first := true
	for len(block) > 0 || first {
		frag := block
		if len(frag) > int(c.peerMaxFrameSize) {
			frag = frag[:c.peerMaxFrameSize]
		}
		block = block[len(frag):]
		endHeaders := len(block) == 0
		var err error
		if first {
			err = c.fr.WriteHeaders(http2.HeadersFrameParam{
				StreamID:      id,
				BlockFragment: frag,
				EndStream:     endStream,
				EndHeaders:    endHeaders,
			})
			first = false
		} else {
			err = c.fr.WriteContinuation(id, endHeaders, frag)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// enqueueOutbound accepts body bytes into the stream's sink. Credit is
// adjusted immediately on the pump view; settlement against the peer's
// window happens as the pump drains.
func (c *conn) enqueueOutbound(st *stream, p []byte, eos bool) {
	if len(p) > 0 {
		owned := make([]byte, len(p))
		copy(owned, p)
		// Small payloads grow the back chunk in place instead of
		// fragmenting the queue into tiny DATA frames.
		coalesced := false
		if len(owned) < 1024 && !st.outq.empty() {
			coalesced = st.outq.backMut(func(b *[]byte) {
				*b = append(*b, owned...)
			})
		}
		if !coalesced {
			st.outq.pushBack(owned)
		}
		st.out.enqueue(len(p))
		c.out.enqueue(len(p))
	}
	if eos {
		st.eosQueued = true
	}
}

func (c *conn) processSendData(op *opSendData) error {
	st := op.hd.entry()
	if st == nil || st.terminated() || st.state == stateClosed {
		// The stream is gone; the sink discards quietly. The reset or
		// teardown already reached the handle through its own path.
		return nil
	}
	if st.eosQueued || st.eosSent {
		return errStreamDone
	}
	c.enqueueOutbound(st, op.data, op.eos)
	return c.pumpStream(st)
}

func (c *conn) processConsumed(op *opConsumed) {
	st := op.hd.entry()
	if st == nil {
		return
	}
	// Credit at most what is still tracked as delivered-but-unread.
	// failStream and handle teardown zero unreadIn after refunding it
	// themselves, so a read racing either path cannot credit twice.
	n := int32(op.n)
	if n > st.unreadIn {
		n = st.unreadIn
	}
	if n <= 0 {
		return
	}
	st.unreadIn -= n
	c.refundConnIn(n)
	if st.state == stateClosed || st.state == stateHalfClosedRemote {
		return
	}
	if inc := st.in.add(n); inc > 0 {
		c.fr.WriteWindowUpdate(st.id, uint32(inc))
	}
}

// refundConnIn replenishes connection-scope receive credit for n bytes
// that have been consumed, discarded, or will never be delivered.
func (c *conn) refundConnIn(n int32) {
	c.loopG.check()
	if inc := c.in.add(n); inc > 0 {
		c.fr.WriteWindowUpdate(0, uint32(inc))
	}
}

func (c *conn) processReady(op *opReady) {
	st := op.hd.entry()
	if st == nil || st.terminated() || st.eosSent {
		close(op.readyc) // poller will discover the terminal state
		return
	}
	if c.sinkReady(st) {
		close(op.readyc)
		return
	}
	st.readyWaiters = append(st.readyWaiters, op.readyc)
}

// sinkReady reports whether the sink may accept more bytes now: both
// the connection-scope and stream-scope pump views must be positive.
func (c *conn) sinkReady(st *stream) bool {
	return c.out.pumpAvail() > 0 && st.out.pumpAvail() > 0
}

func (c *conn) processCancel(op *opCancel) error {
	st := op.hd.entry()
	if st == nil {
		return nil
	}
	if c.table.get(st.id) == nil {
		// Already finished. Closing the handle abandons whatever body
		// bytes were never read, so hand their credit back now.
		if n := st.unreadIn; n > 0 {
			st.unreadIn = 0
			c.refundConnIn(n)
		}
		return nil
	}
	c.fr.WriteRSTStream(st.id, op.code)
	c.failStream(st, causeResetBySelf, StreamError{StreamID: st.id, Code: op.code})
	return nil
}

// ----------------------------------------------------------------------
// Inbound protocol events.

func (c *conn) processFrame(f http2.Frame) error {
	c.loopG.check()
	switch f := f.(type) {
	case *http2.MetaHeadersFrame:
		return c.processHeaders(f)
	case *http2.DataFrame:
		return c.processData(f)
	case *http2.WindowUpdateFrame:
		return c.processWindowUpdate(f)
	case *http2.RSTStreamFrame:
		return c.processResetStream(f)
	case *http2.SettingsFrame:
		return c.processSettings(f)
	case *http2.GoAwayFrame:
		return c.processGoAway(f)
	case *http2.PingFrame:
		return c.processPing(f)
	case *http2.PushPromiseFrame:
		// We sent SETTINGS_ENABLE_PUSH = 0.
		return ConnectionError(http2.ErrCodeProtocol)
	default:
		c.logger.Debug("ignoring frame", zap.Stringer("type", f.Header().Type))
		return nil
	}
}

func (c *conn) processHeaders(f *http2.MetaHeadersFrame) error {
	id := f.StreamID
	st := c.table.get(id)
	if st == nil {
		if c.table.knownID(id) {
			return nil // stale frame for a stream we already removed
		}
		return ConnectionError(http2.ErrCodeProtocol)
	}
	h := make(Headers, len(f.Fields))
	copy(h, f.Fields)

	if !st.gotFinalHeaders {
		if h.isInformational() {
			// A provisional block never concludes the stream and does
			// not move it past Open.
			if f.StreamEnded() {
				return StreamError{id, http2.ErrCodeProtocol}
			}
			st.hd.addInformational(h)
			return nil
		}
		st.gotFinalHeaders = true
		st.hd.deliverResponse(h)
	} else {
		// A second non-informational block is the trailer set; it must
		// end the stream.
		if !f.StreamEnded() {
			return StreamError{id, http2.ErrCodeProtocol}
		}
		st.hd.setTrailers(h)
	}
	if f.StreamEnded() {
		st.closeRemote()
		c.maybeFinish(st)
		st.hd.body.CloseWithError(io.EOF)
	}
	return nil
}

func (c *conn) processData(f *http2.DataFrame) error {
	id := f.StreamID
	data := f.Data()
	n := int32(len(data))

	// Connection-level accounting happens even for streams we no
	// longer track; the bytes were sent and consumed the window.
	if !c.in.take(n) {
		return ConnectionError(http2.ErrCodeFlowControl)
	}
	st := c.table.get(id)
	if st == nil {
		if c.table.knownID(id) {
			// Already reset or finished locally; refund the credit.
			c.refundConnIn(n)
			return nil
		}
		return ConnectionError(http2.ErrCodeProtocol)
	}
	if !st.canReceiveData() {
		c.refundConnIn(n)
		return c.invalidTransition(invalidStateError{
			streamID: id, state: st.state, frame: "DATA", streamScope: true,
		})
	}
	if !st.in.take(n) {
		c.refundConnIn(n)
		return StreamError{id, http2.ErrCodeFlowControl}
	}
	if len(data) > 0 {
		if _, err := st.hd.body.Write(data); err != nil {
			c.refundConnIn(n)
			return StreamError{id, http2.ErrCodeInternal}
		}
		st.unreadIn += n
	}
	if f.StreamEnded() {
		st.closeRemote()
		c.maybeFinish(st)
		st.hd.body.CloseWithError(io.EOF)
	}
	return nil
}

// invalidTransition maps an event-in-wrong-state to its protocol scope.
func (c *conn) invalidTransition(e invalidStateError) error {
	c.logger.Error("invalid state transition", zap.Error(e))
	if e.streamScope {
		return StreamError{e.streamID, http2.ErrCodeStreamClosed}
	}
	return ConnectionError(http2.ErrCodeProtocol)
}

func (c *conn) processWindowUpdate(f *http2.WindowUpdateFrame) error {
	if f.StreamID == 0 {
		if err := c.out.grant(int32(f.Increment)); err != nil {
			return ConnectionError(http2.ErrCodeFlowControl)
		}
		return c.pumpAll()
	}
	st := c.table.get(f.StreamID)
	if st == nil {
		// "A receiver could receive a WINDOW_UPDATE frame on a "half
		// closed (remote)" or "closed" stream. A receiver MUST NOT
		// treat this as an error."
		return nil
	}
	if err := st.out.grant(int32(f.Increment)); err != nil {
		return StreamError{f.StreamID, http2.ErrCodeFlowControl}
	}
	return c.pumpStream(st)
}

func (c *conn) processResetStream(f *http2.RSTStreamFrame) error {
	st := c.table.get(f.StreamID)
	if st == nil {
		return nil
	}
	c.failStream(st, causeResetByPeer, StreamError{StreamID: f.StreamID, Code: f.ErrCode})
	return nil
}

func (c *conn) processSettings(f *http2.SettingsFrame) error {
	if f.IsAck() {
		return nil
	}
	if err := c.applySettings(f); err != nil {
		return err
	}
	c.fr.WriteSettingsAck()
	c.admitWaiters()
	return c.pumpAll()
}

func (c *conn) applySettings(f *http2.SettingsFrame) error {
	return f.ForeachSetting(func(s http2.Setting) error {
		switch s.ID {
		case http2.SettingMaxFrameSize:
			c.peerMaxFrameSize = s.Val
		case http2.SettingMaxConcurrentStreams:
			c.table.peerLimit = s.Val
		case http2.SettingInitialWindowSize:
			if s.Val > maxWindow {
				return ConnectionError(http2.ErrCodeFlowControl)
			}
			// "When the value of SETTINGS_INITIAL_WINDOW_SIZE changes,
			// a receiver MUST adjust the size of all stream flow
			// control windows that it maintains by the difference
			// between the new value and the old value."
			delta := int32(s.Val) - c.peerInitialWindow
			c.peerInitialWindow = int32(s.Val)
			for _, st := range c.table.streams {
				if err := st.out.adjust(delta); err != nil {
					return ConnectionError(http2.ErrCodeFlowControl)
				}
			}
		default:
			c.logger.Debug("unhandled setting", zap.Stringer("setting", s))
		}
		return nil
	})
}

func (c *conn) processGoAway(f *http2.GoAwayFrame) error {
	c.phase = PhaseDraining
	c.drainingFlag.Store(true)
	c.goAway = &GoAwayError{
		LastStreamID: f.LastStreamID,
		Code:         f.ErrCode,
		DebugData:    string(f.DebugData()),
	}
	c.logger.Debug("peer sent GOAWAY", zap.Uint32("last_stream", f.LastStreamID), zap.Stringer("code", f.ErrCode))

	// Streams past the peer's high-water mark were never processed;
	// they fail now. Streams at or below it run to completion.
	for _, st := range c.table.streams {
		if st.id > f.LastStreamID {
			c.failStream(st, causeConnLost, *c.goAway)
		}
	}
	c.maybeFinishDrain()
	return nil
}

func (c *conn) processPing(f *http2.PingFrame) error {
	if f.IsAck() {
		// "An endpoint MUST NOT respond to PING frames containing
		// this flag."
		return nil
	}
	return c.fr.WritePing(true, f.Data)
}

// ----------------------------------------------------------------------
// Stream teardown and bookkeeping.

// resetStreamInLoop handles a stream-scoped protocol error raised while
// processing an inbound frame: RST_STREAM goes on the wire and the
// local entry fails.
func (c *conn) resetStreamInLoop(se StreamError) {
	c.loopG.check()
	c.fr.WriteRSTStream(se.StreamID, se.Code)
	if st := c.table.get(se.StreamID); st != nil {
		c.failStream(st, causeResetBySelf, se)
	}
}

// failStream terminates st with err, discards its outbound backlog, and
// reconciles both window scopes so no permanent deficit remains.
func (c *conn) failStream(st *stream, cause terminationCause, err error) {
	c.loopG.check()
	st.outq.discard()
	c.out.dropInFlight(st.out.resetInFlight())
	st.state = stateClosed
	st.cause = cause
	// Bytes delivered to the handle but never read back through
	// opConsumed will not be reported now that the body is broken.
	if n := st.unreadIn; n > 0 {
		st.unreadIn = 0
		c.refundConnIn(n)
	}
	c.table.remove(st.id)
	st.hd.fail(err)
	st.notifyReady()
	c.admitWaiters()
	c.maybeFinishDrain()
}

// maybeFinish removes a stream whose both directions are done.
func (c *conn) maybeFinish(st *stream) {
	c.loopG.check()
	if st.state != stateClosed {
		return
	}
	if st.cause == causeNone {
		st.cause = causeCompleted
	}
	c.table.remove(st.id)
	st.notifyReady()
	c.admitWaiters()
	c.maybeFinishDrain()
}

// admitWaiters binds queued starts while capacity lasts.
func (c *conn) admitWaiters() {
	c.loopG.check()
	for c.phase == PhaseEstablished && c.table.hasCapacity() {
		op := c.table.dequeueWaiter()
		if op == nil {
			return
		}
		c.startStream(op)
	}
}

// maybeFinishDrain ends the loop once a draining connection has no
// streams left to serve.
func (c *conn) maybeFinishDrain() {
	if c.phase == PhaseDraining && c.table.count() == 0 {
		c.terminate(*c.goAway)
	}
}

// ----------------------------------------------------------------------
// Diagnostics.

// StreamStateSnapshot is a point-in-time copy of one stream's counters.
type StreamStateSnapshot struct {
	State             StreamState
	InWindowSize      int32
	OutWindowSize     int32
	PumpOutWindowSize int64
}

// ConnStateSnapshot is a point-in-time copy of the connection state,
// taken on the loop so it is internally consistent.
type ConnStateSnapshot struct {
	Phase             ConnPhase
	InWindowSize      int32
	OutWindowSize     int32
	PumpOutWindowSize int64
	Streams           map[uint32]StreamStateSnapshot
}

func (c *conn) snapshot() ConnStateSnapshot {
	c.loopG.check()
	snap := ConnStateSnapshot{
		Phase:             c.phase,
		InWindowSize:      c.in.avail,
		OutWindowSize:     int32(c.out.avail),
		PumpOutWindowSize: c.out.pumpAvail(),
		Streams:           make(map[uint32]StreamStateSnapshot, c.table.count()),
	}
	for id, st := range c.table.streams {
		snap.Streams[id] = StreamStateSnapshot{
			State:             st.state,
			InWindowSize:      st.in.avail,
			OutWindowSize:     int32(st.out.avail),
			PumpOutWindowSize: st.out.pumpAvail(),
		}
	}
	return snap
}
