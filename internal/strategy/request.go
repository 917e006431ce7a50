// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import "net/http"

// Request is the view of an inbound request the strategies need.
type Request interface {
	Path() string
	Header(name string) string
	Cookie(name string) (string, bool)
}

type httpRequest struct {
	r *http.Request
}

// FromHTTP adapts a net/http request. A nil request yields a nil Request.
func FromHTTP(r *http.Request) Request {
	if r == nil {
		return nil
	}
	return httpRequest{r: r}
}

func (h httpRequest) Path() string {
	if h.r.URL == nil {
		return ""
	}
	return h.r.URL.Path
}

func (h httpRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

func (h httpRequest) Cookie(name string) (string, bool) {
	c, err := h.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func headerMarker(r Request, name string) Marker {
	if r == nil {
		return Marker{}
	}
	v := r.Header(name)
	if v == "" {
		return Marker{}
	}
	return Marker{Source: SourceHeader, Name: name, Value: v}
}

func cookieMarker(r Request, name string) Marker {
	if r == nil || name == "" {
		return Marker{}
	}
	v, ok := r.Cookie(name)
	if !ok || v == "" {
		return Marker{}
	}
	return Marker{Source: SourceCookie, Name: name, Value: v}
}
