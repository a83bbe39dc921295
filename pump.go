// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

// Outbound data pump. The pump drains a stream's chunk queue into DATA
// frames, settling the credit that was pre-charged to the pump view
// when the bytes were enqueued. It writes as much as the smaller of the
// two window scopes and the peer's frame size allow, then suspends; a
// WINDOW_UPDATE or SETTINGS grant resumes it.

// pumpStream pushes out what the windows permit for one stream, then
// wakes sink pollers if credit remains.
func (c *conn) pumpStream(st *stream) error {
	c.loopG.check()
	for !st.eosSent {
		n := st.outq.len()
		if n == 0 {
			if !st.eosQueued {
				break
			}
			// A bare END_STREAM carries no payload and is never
			// subject to flow control, even at zero credit.
			if err := c.fr.WriteData(st.id, true, nil); err != nil {
				return err
			}
			st.eosSent = true
			st.closeLocal()
			c.maybeFinish(st)
			break
		}
		allowed := int64(c.peerMaxFrameSize)
		if a := c.out.avail; a < allowed {
			allowed = a
		}
		if a := st.out.avail; a < allowed {
			allowed = a
		}
		if int64(n) < allowed {
			allowed = int64(n)
		}
		if allowed <= 0 {
			break // suspended until a grant arrives
		}
		chunk := st.outq.takeFront(int(allowed))
		// Both scopes or neither: allowed was clamped to each avail,
		// so the commits cannot fail.
		if !c.out.commit(len(chunk)) || !st.out.commit(len(chunk)) {
			panic("httpbis: window commit after clamp failed")
		}
		eos := st.eosQueued && st.outq.len() == 0
		if err := c.fr.WriteData(st.id, eos, chunk); err != nil {
			return err
		}
		if eos {
			st.eosSent = true
			st.closeLocal()
			c.maybeFinish(st)
		}
	}
	if !st.eosSent && c.sinkReady(st) {
		st.notifyReady()
	}
	return nil
}

// pumpAll revisits every stream after a connection-scope grant.
func (c *conn) pumpAll() error {
	c.loopG.check()
	for _, st := range c.table.streams {
		if err := c.pumpStream(st); err != nil {
			return err
		}
		if c.out.avail <= 0 {
			break
		}
	}
	return nil
}
