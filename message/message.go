/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package message defines the protocol-neutral Request/Response model that
// h1, h2 and ws all parse into and serialize from, so that router and
// dispatch never need to know which wire protocol produced a request.
package message

import (
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"
)

// Protocol identifies which engine produced or must serialize a message.
type Protocol uint8

const (
	ProtocolHTTP1 Protocol = iota
	ProtocolHTTP2
	ProtocolWebSocket
	ProtocolHTTP3
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP1:
		return "http/1.1"
	case ProtocolHTTP2:
		return "h2"
	case ProtocolWebSocket:
		return "websocket"
	case ProtocolHTTP3:
		return "h3"
	default:
		return "unknown"
	}
}

// Header is an ordered, case-insensitive multi-map, preserving duplicate
// header lines the way the wire sent them instead of silently merging.
type Header struct {
	keys []string
	vals [][]string
}

func NewHeader() *Header { return &Header{} }

func (h *Header) indexOf(key string) int {
	key = strings.ToLower(key)
	for i, k := range h.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Add appends a value, keeping any existing values for key.
func (h *Header) Add(key, val string) {
	if i := h.indexOf(key); i >= 0 {
		h.vals[i] = append(h.vals[i], val)
		return
	}
	h.keys = append(h.keys, strings.ToLower(key))
	h.vals = append(h.vals, []string{val})
}

// Set replaces any existing values for key with val.
func (h *Header) Set(key, val string) {
	if i := h.indexOf(key); i >= 0 {
		h.vals[i] = []string{val}
		return
	}
	h.Add(key, val)
}

// Get returns the first value for key, or "" if absent.
func (h *Header) Get(key string) string {
	if i := h.indexOf(key); i >= 0 && len(h.vals[i]) > 0 {
		return h.vals[i][0]
	}
	return ""
}

// Values returns all values for key, in the order they were added.
func (h *Header) Values(key string) []string {
	if i := h.indexOf(key); i >= 0 {
		return h.vals[i]
	}
	return nil
}

// Has reports whether key was set at all.
func (h *Header) Has(key string) bool { return h.indexOf(key) >= 0 }

// Del removes key entirely.
func (h *Header) Del(key string) {
	key = strings.ToLower(key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			h.vals = append(h.vals[:i], h.vals[i+1:]...)
			return
		}
	}
}

// Range calls fn for every (key, value) pair in insertion order.
func (h *Header) Range(fn func(key, val string)) {
	for i, k := range h.keys {
		for _, v := range h.vals[i] {
			fn(k, v)
		}
	}
}

// Request is the neutral view of an inbound request, regardless of which
// wire protocol decoded it.
type Request struct {
	Protocol   Protocol
	Method     string
	Path       string
	RawQuery   string
	Header     *Header
	Body       io.ReadCloser
	RemoteAddr string

	// PathParams holds the values the router extracted from typed path
	// segments, keyed by template placeholder name.
	PathParams map[string]string

	// RouteTemplate is the path template the router matched this request
	// against (e.g. "/widgets/{id:int}"), set once routing succeeds; empty
	// until then, which dispatch.ExceptionRegistry treats as "no route".
	RouteTemplate string

	jsonCache atomic.Value // holds *jsonResult once JSON has decoded the body
}

// NewRequest builds an empty Request for protocol p.
func NewRequest(p Protocol) *Request {
	return &Request{Protocol: p, Header: NewHeader(), PathParams: map[string]string{}}
}

// jsonResult is the cached outcome of decoding a Request's body as JSON,
// success or failure, so JSON's atomic.Value always holds one concrete type.
type jsonResult struct {
	value map[string]interface{}
	err   error
}

// JSON decodes the body as a JSON object on first call and caches the
// result (success or error) in jsonCache, so repeat calls from different
// middlewares are free and never re-read or re-decode the body. Not safe to
// call concurrently for the same Request before the first call completes,
// same as the rest of Request -- one goroutine serves one request at a time.
func (r *Request) JSON() (map[string]interface{}, error) {
	if cached := r.jsonCache.Load(); cached != nil {
		res := cached.(*jsonResult)
		return res.value, res.err
	}

	res := &jsonResult{}
	switch {
	case r.Body == nil:
		res.err = io.EOF
	default:
		buf, err := io.ReadAll(r.Body)
		switch {
		case err != nil:
			res.err = err
		case len(buf) == 0:
			res.err = io.EOF
		default:
			res.err = json.Unmarshal(buf, &res.value)
		}
	}
	r.jsonCache.Store(res)
	return res.value, res.err
}

// PushAs enumerates the resource classes a Response can advertise via
// HTTP/2 Server Push, mirroring the <link rel=preload as=...> vocabulary
// so a handler's push hints translate directly from browser terminology.
type PushAs string

const (
	PushAsScript PushAs = "script"
	PushAsStyle  PushAs = "style"
	PushAsImage  PushAs = "image"
	PushAsFont   PushAs = "font"
	PushAsFetch  PushAs = "fetch"
)

// PushPromise describes one resource a handler wants pushed alongside the
// primary response, consumed by h2 when the negotiated protocol supports
// server push and ignored otherwise.
type PushPromise struct {
	Path   string
	As     PushAs
	Header *Header
}

// Response is the neutral outbound message a handler populates; conn
// serializes it via h1, h2 or ws depending on the connection's protocol.
type Response struct {
	Status  int
	Header  *Header
	Body    io.Reader
	Pushes  []PushPromise
}

// NewResponse builds an empty Response with the given status code.
func NewResponse(status int) *Response {
	return &Response{Status: status, Header: NewHeader()}
}

// Push registers a resource for push alongside this response.
func (r *Response) Push(path string, as PushAs) {
	r.Pushes = append(r.Pushes, PushPromise{Path: path, As: as, Header: NewHeader()})
}
