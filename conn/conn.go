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

// Package conn drives one accepted socket end to end: it decides which
// wire protocol applies (via ALPN for TLS, or an Upgrade header for
// cleartext), pumps bytes through h1/h2/ws accordingly, and enforces
// keep-alive and idle/request timeouts.
package conn

import (
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/larrymotalavigne/httpy/h1"
	"github.com/larrymotalavigne/httpy/h2"
	"github.com/larrymotalavigne/httpy/internal/xlog"
	"github.com/larrymotalavigne/httpy/message"
	"github.com/larrymotalavigne/httpy/ws"
)

// Handler answers one request with a response; conn.Driver wires this to
// dispatch.Chain(router-resolved handler).
type Handler func(req *message.Request) *message.Response

// WSHandler takes over a connection once a WebSocket upgrade completes; it
// owns the frame loop until it returns.
type WSHandler func(req *message.Request, rw *ws.Conn)

// Timeouts bounds how long a connection may sit idle or a single request
// may take to arrive, per spec.md §5's "Timer/Cancellation" requirement.
type Timeouts struct {
	Idle    time.Duration
	Request time.Duration
}

// Driver serves one accepted net.Conn for as long as keep-alive allows.
type Driver struct {
	Handler   Handler
	WSHandler WSHandler
	Timeouts  Timeouts
	Logger    xlog.Logger

	// WSProtocols lists the application subprotocols this server accepts
	// during a WebSocket upgrade negotiation.
	WSProtocols []string
}

// Serve drives raw until the peer disconnects, an unrecoverable protocol
// error occurs, or a timeout fires.
func (d *Driver) Serve(raw net.Conn) {
	defer raw.Close()

	if tc, ok := raw.(*tls.Conn); ok {
		if d.Timeouts.Request > 0 {
			_ = tc.SetDeadline(time.Now().Add(d.Timeouts.Request))
		}
		if err := tc.Handshake(); err != nil {
			d.log().Entry(xlog.ErrorLevel, "tls handshake failed").Field("error", err.Error()).Log()
			return
		}
		if tc.ConnectionState().NegotiatedProtocol == "h2" {
			d.serveH2(tc)
			return
		}
	}

	d.serveH1(raw)
}

func (d *Driver) log() xlog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return xlog.New(nil)
}

// deadlineConn wraps a connection's reads so the idle deadline applies
// until the first byte of a request arrives, then switches to the request
// deadline for the rest of it, per spec's "on first byte, switch to
// request_deadline" rule. It also keeps a running count of bytes read, which
// the caller snapshots after each arm, so it can tell a stalled partial request (deserves 408) apart from
// a connection that was simply idle (no request started, just close).
type deadlineConn struct {
	net.Conn
	idle, request time.Duration
	switched      bool
	read          int64
}

func newDeadlineConn(raw net.Conn, idle, request time.Duration) *deadlineConn {
	return &deadlineConn{Conn: raw, idle: idle, request: request}
}

// arm resets per-request progress tracking and applies the idle deadline;
// call it once before parsing each new request off the connection.
func (d *deadlineConn) arm() {
	d.switched = false
	if d.idle > 0 {
		_ = d.Conn.SetReadDeadline(time.Now().Add(d.idle))
	}
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	n, err := d.Conn.Read(p)
	if n > 0 {
		d.read += int64(n)
		if !d.switched && d.request > 0 {
			d.switched = true
			_ = d.Conn.SetReadDeadline(time.Now().Add(d.request))
		}
	}
	return n, err
}

// serveH1 pumps successive HTTP/1.1 requests off raw, holding the
// connection open across requests per keep-alive rules, until the peer
// asks to close, an Upgrade succeeds (handing off to ws or h2c), or a
// deadline elapses.
func (d *Driver) serveH1(raw net.Conn) {
	dc := newDeadlineConn(raw, d.Timeouts.Idle, d.Timeouts.Request)
	reader := h1.NewReader(dc)

	for {
		dc.arm()
		before := dc.read

		parser := h1.NewParser()
		status, err := parser.Feed(reader)
		if err != nil {
			return
		}
		if status == h1.Invalid {
			d.writeError(raw, 400)
			return
		}
		if status == h1.NeedMore {
			if dc.read > before {
				// bytes arrived for this request but it never completed
				// before the deadline fired: a stalled request, not an
				// idle connection.
				d.writeError(raw, 408)
			}
			return
		}

		req := parser.Request()

		if d.isWebSocketUpgrade(req) {
			if d.handleWebSocketUpgrade(raw, req) {
				return
			}
			continue
		}
		if d.isH2CUpgrade(req) {
			d.handleH2CUpgrade(raw, req)
			return
		}

		if d.Timeouts.Request > 0 {
			_ = raw.SetWriteDeadline(time.Now().Add(d.Timeouts.Request))
		}
		resp := d.Handler(req)
		alive := keepAlive(req)
		if !resp.Header.Has("Connection") {
			if alive {
				resp.Header.Set("Connection", "keep-alive")
			} else {
				resp.Header.Set("Connection", "close")
			}
		}
		if err := h1.WriteResponse(raw, resp); err != nil {
			return
		}

		if !alive {
			return
		}
	}
}

func keepAlive(req *message.Request) bool {
	conn := strings.ToLower(req.Header.Get("Connection"))
	if conn == "close" {
		return false
	}
	return true
}

func (d *Driver) writeError(raw net.Conn, status int) {
	resp := message.NewResponse(status)
	resp.Header.Set("Connection", "close")
	_ = h1.WriteResponse(raw, resp)
}

func (d *Driver) isWebSocketUpgrade(req *message.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}

func (d *Driver) isH2CUpgrade(req *message.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "h2c") && req.Header.Has("HTTP2-Settings")
}

// handleWebSocketUpgrade completes the RFC 6455 handshake and, on success,
// hands the connection to WSHandler. It returns true when the connection
// should be torn down by the caller (the handler finished or writing the
// 101 response failed), false when the upgrade is declined with 400 (no
// WSHandler configured, or ws.Accept rejected the handshake); the caller
// then keeps pumping HTTP/1.1 requests even though that 400 carries
// Connection: close.
func (d *Driver) handleWebSocketUpgrade(raw net.Conn, req *message.Request) bool {
	if d.WSHandler == nil {
		d.writeError(raw, 400)
		return false
	}
	hs, err := ws.Accept(req, d.WSProtocols)
	if err != nil {
		d.writeError(raw, 400)
		return false
	}

	resp := message.NewResponse(101)
	resp.Header = hs.ResponseHeader()
	if err := h1.WriteResponse(raw, resp); err != nil {
		return true
	}

	_ = raw.SetDeadline(time.Time{})
	d.WSHandler(req, ws.NewConn(raw))
	return true
}

func (d *Driver) handleH2CUpgrade(raw net.Conn, req *message.Request) {
	resp := message.NewResponse(101)
	resp.Header.Set("Connection", "Upgrade")
	resp.Header.Set("Upgrade", "h2c")
	if err := h1.WriteResponse(raw, resp); err != nil {
		return
	}
	d.serveH2(raw)
}

func (d *Driver) serveH2(rw net.Conn) {
	c := h2.NewConn(rw, func(req *message.Request) *message.Response { return d.Handler(req) })
	c.IdleTimeout = d.Timeouts.Idle
	_ = c.WriteSettings()
	_ = c.Serve()
}
