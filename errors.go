// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

import (
	"errors"
	"fmt"

	"golang.org/x/net/http2"
)

var (
	// ErrClientClosed is returned for requests issued after Client.Close.
	ErrClientClosed = errors.New("httpbis: client is closed")

	// ErrConnLost is the cause delivered to every stream still open when
	// the physical connection dies or a connection-scoped protocol error
	// tears it down.
	ErrConnLost = errors.New("httpbis: connection lost")

	// ErrConcurrencyLimit is returned from request starts when the
	// peer's SETTINGS_MAX_CONCURRENT_STREAMS is reached and the client
	// opted out of waiting for capacity.
	ErrConcurrencyLimit = errors.New("httpbis: peer concurrent stream limit reached")

	// ErrDraining is returned when a request reaches a connection that
	// has received GOAWAY and is no longer accepting new streams.
	ErrDraining = errors.New("httpbis: connection is draining")

	// errStreamDone is the internal marker for sends on a stream that
	// already carried END_STREAM.
	errStreamDone = errors.New("httpbis: write after end of stream")
)

// StreamError is a stream-scoped failure: the stream identified by
// StreamID was reset with Code, either by the peer or by us. It is
// delivered to the owning handle exactly once and never retried.
type StreamError struct {
	StreamID uint32
	Code     http2.ErrCode
}

func (e StreamError) Error() string {
	return fmt.Sprintf("httpbis: stream %d reset, code %v", e.StreamID, e.Code)
}

// ConnectionError is a connection-scoped protocol violation. Processing
// one tears down every stream in the table.
type ConnectionError http2.ErrCode

func (e ConnectionError) Error() string {
	return fmt.Sprintf("httpbis: connection error, code %v", http2.ErrCode(e))
}

// GoAwayError reports a peer-initiated connection drain.
type GoAwayError struct {
	LastStreamID uint32
	Code         http2.ErrCode
	DebugData    string
}

func (e GoAwayError) Error() string {
	return fmt.Sprintf("httpbis: peer sent GOAWAY, code %v, last stream %d", e.Code, e.LastStreamID)
}

// errFlowControlOverflow reports a WINDOW_UPDATE or SETTINGS change that
// would push a window past the 31-bit protocol ceiling. The scope of the
// offending counter decides whether it becomes a StreamError or a
// ConnectionError.
var errFlowControlOverflow = errors.New("httpbis: flow control window exceeds 2^31-1")

// invalidStateError is an inbound event targeting a stream in a state
// that cannot accept it. streamScope says whether the protocol treats it
// as a stream error (RST_STREAM) or as connection-fatal.
type invalidStateError struct {
	streamID    uint32
	state       StreamState
	frame       string
	streamScope bool
}

func (e invalidStateError) Error() string {
	return fmt.Sprintf("httpbis: %s frame on stream %d in state %v", e.frame, e.streamID, e.state)
}
