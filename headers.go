// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/http2/hpack"
)

// Headers is a decoded header list, pseudo-headers first, in wire order.
// The connection core treats the content opaquely except for the
// :status class check and the pseudo-fields needed to open a stream.
type Headers []hpack.HeaderField

// RequestHeaders builds the pseudo-header block for a new request.
func RequestHeaders(method, path, authority string) Headers {
	return Headers{
		{Name: ":method", Value: method},
		{Name: ":scheme", Value: "http"},
		{Name: ":authority", Value: authority},
		{Name: ":path", Value: path},
	}
}

// OK200 is the minimal successful response header block, used by tests
// and servers.
func OK200() Headers {
	return Headers{{Name: ":status", Value: "200"}}
}

// Get returns the first value of the named field, or "".
func (h Headers) Get(name string) string {
	for _, f := range h {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Add appends a field. Regular (non-pseudo) fields must be lowercase on
// the wire; we lower them here so callers can't get it wrong.
func (h *Headers) Add(name, value string) {
	*h = append(*h, hpack.HeaderField{Name: strings.ToLower(name), Value: value})
}

func (h Headers) method() string    { return h.Get(":method") }
func (h Headers) path() string      { return h.Get(":path") }
func (h Headers) authority() string { return h.Get(":authority") }

// Status returns the :status code, or 0 if absent or malformed.
func (h Headers) Status() int {
	v := h.Get(":status")
	if v == "" {
		return 0
	}
	code, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return code
}

// isInformational reports whether this is a provisional (1xx) response
// block. Informational blocks never conclude a stream.
func (h Headers) isInformational() bool {
	s := h.Status()
	return s >= 100 && s < 200
}

// validateRequest checks the header list is a legal request block:
// exactly the needed pseudo-fields, no pseudo-field after a regular one,
// and every regular field valid per RFC 7230 token rules.
func (h Headers) validateRequest() error {
	if h.method() == "" || h.path() == "" {
		return fmt.Errorf("httpbis: request requires :method and :path")
	}
	sawRegular := false
	for _, f := range h {
		if strings.HasPrefix(f.Name, ":") {
			if sawRegular {
				return fmt.Errorf("httpbis: pseudo-header %q after regular header", f.Name)
			}
			continue
		}
		sawRegular = true
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return fmt.Errorf("httpbis: invalid header field name %q", f.Name)
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return fmt.Errorf("httpbis: invalid value for header field %q", f.Name)
		}
	}
	return nil
}
