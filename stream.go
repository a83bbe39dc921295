// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

// stream is the per-stream entry owned by the connection loop. All
// fields are loop-private; the application sees only the handle.
type stream struct {
	id    uint32
	state StreamState
	cause terminationCause

	out outWindow // peer's credit for our DATA
	in  inWindow  // our credit for peer DATA

	outq      chunkQueue // buffered outbound body
	eosQueued bool       // END_STREAM waits in the sink
	eosSent   bool       // END_STREAM went to the framer

	gotFinalHeaders bool // a non-informational header block arrived

	// unreadIn counts bytes delivered to the handle's body pipe that
	// the application has not reported consumed yet. On a reset they
	// will never be read, so this is what the connection-scope receive
	// window gets refunded.
	unreadIn int32

	hd *StreamHandle

	// readyWaiters are closed when the sink can accept more bytes
	// (or the stream terminates, so pollers don't hang).
	readyWaiters []chan struct{}
}

// closeLocal marks our sending direction finished.
func (st *stream) closeLocal() {
	switch st.state {
	case stateIdle, stateOpen:
		st.state = stateHalfClosedLocal
	case stateHalfClosedRemote:
		st.state = stateClosed
	}
}

// closeRemote marks the peer's sending direction finished.
func (st *stream) closeRemote() {
	switch st.state {
	case stateIdle, stateOpen:
		st.state = stateHalfClosedRemote
	case stateHalfClosedLocal:
		st.state = stateClosed
	}
}

// canReceiveData reports whether an inbound DATA frame is legal in the
// current state.
//
// "If a DATA frame is received whose stream is not in "open" or "half
// closed (local)" state, the recipient MUST respond with a stream error
// (Section 5.4.2) of type STREAM_CLOSED."
func (st *stream) canReceiveData() bool {
	return st.state == stateOpen || st.state == stateHalfClosedLocal
}

// notifyReady wakes everyone polling the sink. Called whenever the pump
// view grows or the stream terminates.
func (st *stream) notifyReady() {
	for _, c := range st.readyWaiters {
		close(c)
	}
	st.readyWaiters = nil
}

// terminated reports whether a terminal cause has been recorded.
func (st *stream) terminated() bool { return st.cause != causeNone }
