// Copyright 2026 The rust-http2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpbis

import "testing"

func TestHeadersGetAdd(t *testing.T) {
	h := RequestHeaders("GET", "/p", "example.com")
	h.Add("X-Custom", "v")
	if got := h.Get(":method"); got != "GET" {
		t.Errorf(":method = %q, want GET", got)
	}
	if got := h.Get("x-custom"); got != "v" {
		t.Errorf("x-custom = %q, want v (names must be lowered)", got)
	}
	if got := h.Get("missing"); got != "" {
		t.Errorf("missing field = %q, want empty", got)
	}
}

func TestHeadersStatusClass(t *testing.T) {
	for _, tt := range []struct {
		status string
		want   bool
	}{
		{"100", true},
		{"103", true},
		{"199", true},
		{"200", false},
		{"500", false},
		{"abc", false},
	} {
		h := Headers{{Name: ":status", Value: tt.status}}
		if got := h.isInformational(); got != tt.want {
			t.Errorf("isInformational(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
	if got := (Headers{}).Status(); got != 0 {
		t.Errorf("Status of empty headers = %d, want 0", got)
	}
}

func TestValidateRequest(t *testing.T) {
	good := RequestHeaders("GET", "/p", "example.com")
	if err := good.validateRequest(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	if err := (Headers{{Name: ":method", Value: "GET"}}).validateRequest(); err == nil {
		t.Errorf("request without :path accepted")
	}

	late := RequestHeaders("GET", "/p", "example.com")
	late.Add("normal", "v")
	late = append(late, RequestHeaders("GET", "/q", "example.com")...)
	if err := late.validateRequest(); err == nil {
		t.Errorf("pseudo-header after regular header accepted")
	}

	bad := RequestHeaders("GET", "/p", "example.com")
	bad = append(bad, Headers{{Name: "bad header", Value: "v"}}...)
	if err := bad.validateRequest(); err == nil {
		t.Errorf("header name with a space accepted")
	}

	badv := RequestHeaders("GET", "/p", "example.com")
	badv.Add("name", "bad\x00value")
	if err := badv.validateRequest(); err == nil {
		t.Errorf("header value with NUL accepted")
	}
}
