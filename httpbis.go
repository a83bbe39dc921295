// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package httpbis implements the connection core of an HTTP/2 client:
// stream multiplexing, flow-control accounting, outbound data buffering,
// and connection lifecycle (including reconnection).
//
// Byte-level framing and header compression are delegated to
// golang.org/x/net/http2 and golang.org/x/net/http2/hpack; this package
// owns the state machine and the arithmetic between the application API
// and the framing layer.
package httpbis

import "golang.org/x/net/http2"

// ClientPreface is the string that must be sent by new
// connections from clients.
const ClientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

var clientPreface = []byte(ClientPreface)

const (
	// http://http2.github.io/http2-spec/#SettingValues
	initialHeaderTableSize = 4096

	// defaultInitialWindowSize is the flow control window every
	// connection and stream starts with, per spec.
	defaultInitialWindowSize = 65535

	// defaultMaxFrameSize is the largest DATA payload either side may
	// send before SETTINGS_MAX_FRAME_SIZE says otherwise.
	defaultMaxFrameSize = 16384

	// maxWindow is the protocol ceiling for any flow control window.
	maxWindow = 1<<31 - 1

	// defaultMaxConcurrentStreams is used until the peer's SETTINGS
	// arrive. "Infinite", per spec; a bound keeps bookkeeping sane.
	defaultMaxConcurrentStreams = 1000

	// defaultWindowUpdateThreshold is how many consumed-but-unannounced
	// inbound bytes we accumulate before emitting a WINDOW_UPDATE.
	// Small deliveries are coalesced so wire overhead stays low.
	defaultWindowUpdateThreshold = 4 << 10

	// NextProtoTLS is the ALPN protocol name negotiated for HTTP/2
	// over TLS.
	NextProtoTLS = "h2"
)

// role says which side of the connection we are. It fixes stream
// identifier parity: client-initiated streams are odd, server-initiated
// streams are even.
type role int

const (
	roleClient role = iota
	roleServer
)

// firstStreamID returns the lowest identifier this role may allocate.
func (r role) firstStreamID() uint32 {
	if r == roleClient {
		return 1
	}
	return 2
}

// initiatedBy reports whether id carries this role's parity.
func (r role) initiatedBy(id uint32) bool {
	if r == roleClient {
		return id%2 == 1
	}
	return id%2 == 0 && id != 0
}

// ConnPhase is the lifecycle phase of one physical connection.
type ConnPhase int

const (
	PhaseConnecting ConnPhase = iota
	PhaseEstablished
	PhaseDraining // GOAWAY received: no new streams, existing ones continue
	PhaseTerminated
)

func (p ConnPhase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseEstablished:
		return "established"
	case PhaseDraining:
		return "draining"
	case PhaseTerminated:
		return "terminated"
	}
	return "unknown"
}

// StreamState is the protocol state of one stream.
// http://http2.github.io/http2-spec/#rfc.section.5.1
type StreamState int

const (
	stateIdle StreamState = iota
	stateOpen
	stateHalfClosedLocal
	stateHalfClosedRemote
	stateClosed
)

func (s StreamState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOpen:
		return "open"
	case stateHalfClosedLocal:
		return "half-closed-local"
	case stateHalfClosedRemote:
		return "half-closed-remote"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// terminationCause records how a stream finished.
type terminationCause int

const (
	causeNone terminationCause = iota
	causeCompleted
	causeResetByPeer
	causeResetBySelf
	causeConnLost
)

// ErrCode is re-exported from the framing layer so callers don't need a
// second import for reset codes.
type ErrCode = http2.ErrCode
