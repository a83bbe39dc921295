// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

// streamTable maps stream identifiers to live entries and owns
// identifier allocation for the local role. It is loop-private state;
// removal happens exactly once, always on the loop goroutine.
type streamTable struct {
	role    role
	streams map[uint32]*stream

	nextID    uint32 // next identifier to hand out, correct parity
	peerLimit uint32 // peer's SETTINGS_MAX_CONCURRENT_STREAMS

	// waitq holds request starts admitted past the concurrency limit;
	// they bind to an identifier only once capacity frees up.
	waitq []*opStart
}

func newStreamTable(r role, peerLimit uint32) *streamTable {
	return &streamTable{
		role:      r,
		streams:   make(map[uint32]*stream),
		nextID:    r.firstStreamID(),
		peerLimit: peerLimit,
	}
}

func (t *streamTable) count() int { return len(t.streams) }

// hasCapacity reports whether a new locally-initiated stream may open
// now without exceeding the peer's advertised concurrent-stream limit.
func (t *streamTable) hasCapacity() bool {
	return uint32(len(t.streams)) < t.peerLimit && t.nextID < 1<<31
}

// allocate binds st to the next identifier of our parity, strictly
// increasing, and installs it. The caller must have checked capacity.
func (t *streamTable) allocate(st *stream) uint32 {
	id := t.nextID
	t.nextID += 2
	st.id = id
	t.streams[id] = st
	return id
}

func (t *streamTable) get(id uint32) *stream { return t.streams[id] }

// remove deletes the entry for id and returns it, or nil if it was
// already removed. Entries leave the table exactly once.
func (t *streamTable) remove(id uint32) *stream {
	st, ok := t.streams[id]
	if !ok {
		return nil
	}
	delete(t.streams, id)
	return st
}

// knownID reports whether id could refer to a stream that once existed:
// our parity and below the allocation cursor. Frames for such streams
// arrive legitimately after removal; frames for never-opened identifiers
// are protocol errors.
func (t *streamTable) knownID(id uint32) bool {
	return t.role.initiatedBy(id) && id < t.nextID
}

// enqueueWaiter parks a start until capacity frees up.
func (t *streamTable) enqueueWaiter(op *opStart) { t.waitq = append(t.waitq, op) }

// dequeueWaiter pops the oldest parked start, or nil.
func (t *streamTable) dequeueWaiter() *opStart {
	if len(t.waitq) == 0 {
		return nil
	}
	op := t.waitq[0]
	copy(t.waitq, t.waitq[1:])
	t.waitq[len(t.waitq)-1] = nil
	t.waitq = t.waitq[:len(t.waitq)-1]
	return op
}

// drainWaiters empties the wait queue, returning every start that was
// never bound to an identifier. Used at teardown so the client can
// replay or fail them.
func (t *streamTable) drainWaiters() []*opStart {
	w := t.waitq
	t.waitq = nil
	return w
}
