// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

import (
	"bytes"
	"math/rand"
	"testing"
)

func queueBytes(q *chunkQueue) []byte {
	var all []byte
	for i := q.start; i < len(q.chunks); i++ {
		all = append(all, q.chunks[i]...)
	}
	return all
}

func TestChunkQueuePushPop(t *testing.T) {
	var q chunkQueue
	if !q.empty() || q.len() != 0 {
		t.Fatalf("fresh queue not empty")
	}
	q.pushBack([]byte("ab"))
	q.pushBack([]byte("cde"))
	if q.len() != 5 {
		t.Fatalf("len = %d, want 5", q.len())
	}
	if got := q.popFront(); string(got) != "ab" {
		t.Fatalf("popFront = %q, want ab", got)
	}
	if got := q.popBack(); string(got) != "cde" {
		t.Fatalf("popBack = %q, want cde", got)
	}
	if !q.empty() || q.len() != 0 {
		t.Fatalf("queue not empty after draining")
	}
}

func TestChunkQueueTakeFrontSplits(t *testing.T) {
	var q chunkQueue
	q.pushBack([]byte("abcdef"))
	if got := q.takeFront(4); string(got) != "abcd" {
		t.Fatalf("takeFront(4) = %q, want abcd", got)
	}
	if q.len() != 2 {
		t.Fatalf("len = %d, want 2", q.len())
	}
	// Larger than what remains: the rest of the chunk.
	if got := q.takeFront(100); string(got) != "ef" {
		t.Fatalf("takeFront(100) = %q, want ef", got)
	}
	if !q.empty() {
		t.Fatalf("queue not empty")
	}
	if got := q.takeFront(1); got != nil {
		t.Fatalf("takeFront on empty = %q, want nil", got)
	}
}

func TestChunkQueueBackMutReconciles(t *testing.T) {
	var q chunkQueue
	if q.backMut(func(b *[]byte) {}) {
		t.Fatalf("backMut on empty queue should report false")
	}
	q.pushBack([]byte("ab"))
	ok := q.backMut(func(b *[]byte) {
		*b = append(*b, "cd"...)
	})
	if !ok {
		t.Fatalf("backMut = false, want true")
	}
	if q.len() != 4 {
		t.Fatalf("len = %d after growth, want 4", q.len())
	}
	q.backMut(func(b *[]byte) {
		*b = (*b)[:1]
	})
	if q.len() != 1 {
		t.Fatalf("len = %d after shrink, want 1", q.len())
	}
	if got := q.popFront(); string(got) != "a" {
		t.Fatalf("popFront = %q, want a", got)
	}
}

func TestChunkQueueDiscard(t *testing.T) {
	q := newChunkQueue([]byte("abc"), []byte("de"))
	if q.len() != 5 {
		t.Fatalf("len = %d after construction, want 5", q.len())
	}
	q.takeFront(1)
	if n := q.discard(); n != 4 {
		t.Fatalf("discard = %d, want 4", n)
	}
	if !q.empty() || q.len() != 0 {
		t.Fatalf("queue not empty after discard")
	}
	q.pushBack([]byte("x"))
	if q.len() != 1 {
		t.Fatalf("queue unusable after discard")
	}
}

// TestChunkQueueRandomized cross-checks the queue against a flat byte
// slice model under a random op mix.
func TestChunkQueueRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var q chunkQueue
	var model []byte
	for i := 0; i < 2000; i++ {
		switch rng.Intn(4) {
		case 0:
			n := rng.Intn(64)
			chunk := make([]byte, n)
			rng.Read(chunk)
			if n > 0 {
				q.pushBack(chunk)
				model = append(model, chunk...)
			}
		case 1:
			n := rng.Intn(48) + 1
			got := q.takeFront(n)
			if len(got) > n {
				t.Fatalf("takeFront(%d) returned %d bytes", n, len(got))
			}
			want := model[:min(len(got), len(model))]
			if !bytes.Equal(got, want) {
				t.Fatalf("takeFront mismatch at op %d", i)
			}
			model = model[len(got):]
		case 2:
			if !q.empty() {
				got := q.popFront()
				if !bytes.Equal(got, model[:len(got)]) {
					t.Fatalf("popFront mismatch at op %d", i)
				}
				model = model[len(got):]
			}
		case 3:
			q.backMut(func(b *[]byte) {
				*b = append(*b, 0xEE)
			})
			if !q.empty() {
				model = append(model, 0xEE)
			}
		}
		if q.len() != len(model) {
			t.Fatalf("len = %d, model has %d (op %d)", q.len(), len(model), i)
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
