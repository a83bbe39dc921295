// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

// Flow control.
//
// Each connection and each stream carries one outWindow (credit the
// peer granted us to send) and one inWindow (credit we granted the
// peer). Both are owned by the connection's serialized loop; there is
// no locking here.

// outWindow tracks peer-granted send credit for one scope (connection
// or stream).
//
// avail is the credit granted by the peer and not yet consumed by DATA
// actually handed to the framer. queued is the in-flight adjustment:
// bytes already accepted into the outbound buffer but not yet settled
// against avail. The pump-facing view avail-queued may go negative; it
// answers "how much more may the sink accept", while avail answers "how
// much remains grantable against the wire".
type outWindow struct {
	avail  int64
	queued int64
}

func newOutWindow(n int32) outWindow { return outWindow{avail: int64(n)} }

// grant adds peer credit (WINDOW_UPDATE). It fails if the result would
// exceed the 31-bit protocol ceiling; the caller maps the failure to a
// stream- or connection-scoped flow control error.
func (w *outWindow) grant(n int32) error {
	if int64(n) > maxWindow-w.avail {
		return errFlowControlOverflow
	}
	w.avail += int64(n)
	return nil
}

// adjust applies a SETTINGS_INITIAL_WINDOW_SIZE delta, which may be
// negative. Per spec a shrink may legally drive avail below zero; only
// growth past the ceiling is a protocol error.
//
// "A SETTINGS frame can alter the initial flow control window size for
// all current streams." (RFC 7540, 6.9.2)
func (w *outWindow) adjust(delta int32) error {
	if delta > 0 && int64(delta) > maxWindow-w.avail {
		return errFlowControlOverflow
	}
	w.avail += int64(delta)
	return nil
}

// enqueue records n bytes accepted into the outbound buffer ahead of
// settlement. The pump view shrinks immediately; avail does not move
// until the bytes are committed for transmission.
func (w *outWindow) enqueue(n int) { w.queued += int64(n) }

// commit settles n buffered bytes against the peer's credit as they are
// handed to the framer. It reports false, without mutating anything, if
// the peer has not granted enough credit.
func (w *outWindow) commit(n int) bool {
	if int64(n) > w.avail {
		return false
	}
	w.avail -= int64(n)
	w.queued -= int64(n)
	return true
}

// pumpAvail is the in-flight-inclusive view: how many more bytes the
// sink may accept before it should report "not ready". May be negative
// after a reset discarded bytes committed beyond what the peer granted.
func (w *outWindow) pumpAvail() int64 { return w.avail - w.queued }

// resetInFlight discards the in-flight adjustment and returns the
// number of bytes it covered. After a stream reset the tracker must
// reflect only real peer-granted credit, not stale commitments, so that
// later sends see full remaining credit rather than a poisoned deficit.
func (w *outWindow) resetInFlight() int64 {
	n := w.queued
	w.queued = 0
	return n
}

// dropInFlight forgets n in-flight bytes without touching avail. The
// connection-scope window uses it when one stream's backlog is
// discarded.
func (w *outWindow) dropInFlight(n int64) { w.queued -= n }

// inWindow tracks credit we granted the peer for one scope.
//
// avail is what the peer may still send. unsent is replenishment the
// application has consumed but we have not yet announced: small
// increments are coalesced so a chatty reader doesn't inflate wire
// overhead with tiny WINDOW_UPDATE frames.
type inWindow struct {
	avail     int32
	unsent    int32
	threshold int32 // emit once unsent reaches this; tuning policy, not protocol
}

func newInWindow(n, threshold int32) inWindow {
	return inWindow{avail: n, threshold: threshold}
}

// take consumes credit for n inbound bytes. It reports false if the
// peer sent past the window it was granted, a flow control violation.
func (w *inWindow) take(n int32) bool {
	if n > w.avail {
		return false
	}
	w.avail -= n
	return true
}

// add records n consumed bytes eligible for replenishment and returns
// the increment to put on the wire now, or 0 if it should keep
// coalescing. Crossing the threshold (or half the currently granted
// window, whichever is smaller) flushes everything accumulated.
func (w *inWindow) add(n int32) (wireIncrement int32) {
	w.unsent += n
	limit := w.threshold
	if half := (w.avail + w.unsent) / 2; half < limit {
		limit = half
	}
	if w.unsent < limit {
		return 0
	}
	inc := w.unsent
	w.unsent = 0
	w.avail += inc
	return inc
}

// size is the peer-visible window: granted plus pending replenishment.
func (w *inWindow) size() int32 { return w.avail + w.unsent }
