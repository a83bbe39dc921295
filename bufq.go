// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

// chunkQueue is an ordered queue of byte chunks buffering outbound body
// data for one stream. The total remaining length is tracked
// incrementally so len is O(1); it is never recomputed by scanning
// except when building a queue from an existing slice of chunks.
type chunkQueue struct {
	chunks [][]byte
	start  int // index of the front chunk within chunks
	total  int
}

// newChunkQueue builds a queue from existing chunks. This is the only
// place total is derived by a full scan.
func newChunkQueue(chunks ...[]byte) *chunkQueue {
	q := &chunkQueue{chunks: chunks}
	for _, c := range chunks {
		q.total += len(c)
	}
	return q
}

func (q *chunkQueue) len() int { return q.total }

func (q *chunkQueue) empty() bool { return q.start == len(q.chunks) }

func (q *chunkQueue) pushBack(c []byte) {
	q.total += len(c)
	q.chunks = append(q.chunks, c)
}

// popFront removes and returns the front chunk, or nil.
func (q *chunkQueue) popFront() []byte {
	if q.start == len(q.chunks) {
		return nil
	}
	c := q.chunks[q.start]
	q.chunks[q.start] = nil
	q.start++
	if q.start == len(q.chunks) {
		q.chunks = q.chunks[:0]
		q.start = 0
	}
	q.total -= len(c)
	return c
}

// popBack removes and returns the back chunk, or nil.
func (q *chunkQueue) popBack() []byte {
	if q.start == len(q.chunks) {
		return nil
	}
	c := q.chunks[len(q.chunks)-1]
	q.chunks[len(q.chunks)-1] = nil
	q.chunks = q.chunks[:len(q.chunks)-1]
	if q.start == len(q.chunks) {
		q.chunks = q.chunks[:0]
		q.start = 0
	}
	q.total -= len(c)
	return c
}

// backMut gives fn mutable access to the back chunk for in-place growth
// or trimming. The queue's total is reconciled against the chunk's
// length delta on every exit path, including a panic inside fn, so the
// length invariant holds no matter how fn leaves the chunk. It reports
// whether a back chunk existed.
func (q *chunkQueue) backMut(fn func(c *[]byte)) bool {
	if q.start == len(q.chunks) {
		return false
	}
	back := &q.chunks[len(q.chunks)-1]
	before := len(*back)
	defer func() {
		q.total += len(*back) - before
	}()
	fn(back)
	return true
}

// takeFront removes and returns up to max bytes from the front of the
// queue, taken from the front chunk only. A front chunk larger than max
// is sliced in place (a zero-copy advance), never copied or split into
// new allocations.
func (q *chunkQueue) takeFront(max int) []byte {
	if max <= 0 || q.start == len(q.chunks) {
		return nil
	}
	front := q.chunks[q.start]
	if len(front) <= max {
		return q.popFront()
	}
	taken := front[:max]
	q.chunks[q.start] = front[max:]
	q.total -= max
	return taken
}

// discard drops all buffered chunks and returns how many bytes were
// thrown away. Used when a stream resets mid-send.
func (q *chunkQueue) discard() int {
	n := q.total
	q.chunks = q.chunks[:0]
	q.start = 0
	q.total = 0
	return n
}
