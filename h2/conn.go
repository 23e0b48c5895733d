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

package h2

import (
	"bytes"
	"io"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/larrymotalavigne/httpy/hpack"
	"github.com/larrymotalavigne/httpy/message"
	"github.com/larrymotalavigne/httpy/xtimer"
)

const defaultInitialWindow = 65535

// Handler processes one complete request and returns the response to
// serialize back, mirroring dispatch.Chain's signature so conn can hand
// each stream straight to the middleware/router pipeline.
type Handler func(req *message.Request) *message.Response

// Conn drives one HTTP/2 connection: it owns the wire Framer, the
// per-stream state machines and both flow-control windows, and dispatches
// completed requests to Handler, writing frames back as responses arrive.
type Conn struct {
	framer *http2.Framer
	mu     sync.Mutex

	streams map[uint32]*Stream
	lastRemoteStream uint32
	nextPushStream   uint32

	connSendWindow int32
	connRecvWindow int32
	peerInitialWindow int32

	maxHeaderListSize uint32
	dec               *hpack.Decoder
	enc               *hpack.Encoder

	handler Handler

	goaway bool

	// IdleTimeout, set before Serve, closes the connection once that long
	// passes without a frame being read. io.ReadWriter has no deadline of
	// its own, so this is enforced with a xtimer.Wheel that force-closes
	// the connection (via closer) when it fires, unblocking the read that's
	// waiting on the next frame.
	IdleTimeout time.Duration

	closer io.Closer
	wheel  *xtimer.Wheel
	idle   *xtimer.Handle
}

// NewConn wraps rw (already past the connection preface) as an HTTP/2
// connection driver.
func NewConn(rw io.ReadWriter, handler Handler) *Conn {
	c := &Conn{
		streams:           map[uint32]*Stream{},
		connSendWindow:    defaultInitialWindow,
		connRecvWindow:    defaultInitialWindow,
		peerInitialWindow: defaultInitialWindow,
		maxHeaderListSize: 16 << 20,
		handler:           handler,
		nextPushStream:    2,
	}
	if closer, ok := rw.(io.Closer); ok {
		c.closer = closer
	}
	c.framer = http2.NewFramer(rw, rw)
	c.framer.MaxHeaderListSize = c.maxHeaderListSize
	c.dec = hpack.NewDecoder(4096, c.maxHeaderListSize)
	c.enc = hpack.NewEncoder()
	return c
}

// WriteSettings sends the connection's initial SETTINGS frame; callers
// invoke this immediately after NewConn, before Serve.
func (c *Conn) WriteSettings(settings ...http2.Setting) error {
	return c.framer.WriteSettings(settings...)
}

// Serve reads and dispatches frames until the peer closes the connection, a
// connection-fatal error occurs, or IdleTimeout elapses with no frame read.
func (c *Conn) Serve() error {
	if c.IdleTimeout > 0 && c.closer != nil {
		tick := c.IdleTimeout / 8
		if tick <= 0 {
			tick = time.Millisecond
		}
		c.wheel = xtimer.NewWheel(tick, 8)
		go c.wheel.Run()
		defer c.wheel.Stop()
		c.armIdle()
	}

	for {
		f, err := c.framer.ReadFrame()
		if err != nil {
			return err
		}
		if c.wheel != nil {
			c.armIdle()
		}
		if err := c.dispatch(f); err != nil {
			if _, ok := err.(*StreamError); ok {
				se := err.(*StreamError)
				c.mu.Lock()
				_ = c.framer.WriteRSTStream(se.StreamID, http2.ErrCode(se.Code))
				if s, ok := c.streams[se.StreamID]; ok {
					s.reset()
				}
				c.mu.Unlock()
				continue
			}
			return err
		}
	}
}

// armIdle (re)schedules the idle-timeout close, canceling whatever was
// previously pending; call it once up front and again after every frame.
func (c *Conn) armIdle() {
	if c.idle != nil {
		c.idle.Cancel()
	}
	c.idle = c.wheel.Schedule(c.IdleTimeout, func() {
		_ = c.closer.Close()
	})
}

func (c *Conn) dispatch(f http2.Frame) error {
	switch fr := f.(type) {
	case *http2.SettingsFrame:
		return c.onSettings(fr)
	case *http2.PingFrame:
		return c.onPing(fr)
	case *http2.WindowUpdateFrame:
		return c.onWindowUpdate(fr)
	case *http2.HeadersFrame:
		return c.onHeaders(fr)
	case *http2.ContinuationFrame:
		return c.onContinuation(fr)
	case *http2.DataFrame:
		return c.onData(fr)
	case *http2.RSTStreamFrame:
		return c.onRSTStream(fr)
	case *http2.GoAwayFrame:
		c.mu.Lock()
		c.goaway = true
		c.mu.Unlock()
		return nil
	case *http2.PriorityFrame:
		return nil
	default:
		return nil
	}
}

func (c *Conn) onSettings(fr *http2.SettingsFrame) error {
	if fr.IsAck() {
		return nil
	}
	c.mu.Lock()
	err := fr.ForeachSetting(func(s http2.Setting) error {
		switch s.ID {
		case http2.SettingInitialWindowSize:
			c.peerInitialWindow = int32(s.Val)
		case http2.SettingHeaderTableSize:
			c.dec.SetMaxDynamicTableSize(s.Val)
		}
		return nil
	})
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.framer.WriteSettingsAck()
}

func (c *Conn) onPing(fr *http2.PingFrame) error {
	if fr.IsAck() {
		return nil
	}
	return c.framer.WritePing(true, fr.Data)
}

// onWindowUpdate applies the peer's credit grant and, since that credit may
// be exactly what a deferred writeResponse was blocked on, immediately
// retries any stream left with pendingBody.
func (c *Conn) onWindowUpdate(fr *http2.WindowUpdateFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fr.StreamID == 0 {
		c.connSendWindow += int32(fr.Increment)
		return c.flushAllPendingLocked()
	}
	if s, ok := c.streams[fr.StreamID]; ok {
		s.sendWindow += int32(fr.Increment)
		return c.flushPendingLocked(s)
	}
	return nil
}

func (c *Conn) onRSTStream(fr *http2.RSTStreamFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.streams[fr.StreamID]; ok {
		s.reset()
		s.pendingBody = nil
	}
	return nil
}

func (c *Conn) streamFor(id uint32) *Stream {
	s, ok := c.streams[id]
	if !ok {
		s = newStream(id, c.peerInitialWindow)
		c.streams[id] = s
	}
	return s
}

func (c *Conn) onHeaders(fr *http2.HeadersFrame) error {
	c.mu.Lock()
	s := c.streamFor(fr.StreamID)
	if !s.canReceiveHeaders() {
		c.mu.Unlock()
		return &StreamError{StreamID: fr.StreamID, Code: ErrCodeStreamClosed, Reason: "HEADERS on non-receivable stream"}
	}
	if fr.StreamID > c.lastRemoteStream {
		c.lastRemoteStream = fr.StreamID
	}
	s.headerBuf.Write(fr.HeaderBlockFragment())
	s.endStream = fr.StreamEnded()
	s.endHeaders = fr.HeadersEnded()
	c.mu.Unlock()

	if s.endHeaders {
		return c.finishHeaders(s)
	}
	return nil
}

func (c *Conn) onContinuation(fr *http2.ContinuationFrame) error {
	c.mu.Lock()
	s, ok := c.streams[fr.StreamID]
	if !ok {
		c.mu.Unlock()
		return &StreamError{StreamID: fr.StreamID, Code: ErrCodeProtocol, Reason: "CONTINUATION on unknown stream"}
	}
	s.headerBuf.Write(fr.HeaderBlockFragment())
	s.endHeaders = fr.HeadersEnded()
	c.mu.Unlock()

	if s.endHeaders {
		return c.finishHeaders(s)
	}
	return nil
}

func (c *Conn) finishHeaders(s *Stream) error {
	if err := c.dec.DecodeFragment(s.headerBuf.Bytes()); err != nil {
		return &StreamError{StreamID: s.ID, Code: ErrCodeCompression, Reason: err.Error()}
	}
	pseudo, header, err := c.dec.Finish()
	if err != nil {
		return &StreamError{StreamID: s.ID, Code: ErrCodeCompression, Reason: err.Error()}
	}

	req := message.NewRequest(message.ProtocolHTTP2)
	req.Method = pseudo.Method
	req.Path = pseudo.Path
	req.Header = header
	s.req = req
	s.headerBuf.Reset()
	s.openOnHeaders(s.endStream)

	if s.endStream {
		return c.dispatchRequest(s)
	}
	return nil
}

func (c *Conn) onData(fr *http2.DataFrame) error {
	c.mu.Lock()
	s, ok := c.streams[fr.StreamID]
	if !ok || !s.canReceiveData() {
		c.mu.Unlock()
		return &StreamError{StreamID: fr.StreamID, Code: ErrCodeStreamClosed, Reason: "DATA on non-open stream"}
	}
	data := fr.Data()
	s.bodyBuf.Write(data)
	s.recvWindow -= int32(len(data))
	c.connRecvWindow -= int32(len(data))
	endStream := fr.StreamEnded()
	if endStream {
		s.closeRemote()
	}
	needConnUpdate := c.connRecvWindow < defaultInitialWindow/2
	needStreamUpdate := s.recvWindow < defaultInitialWindow/2
	if needConnUpdate {
		c.connRecvWindow += defaultInitialWindow
	}
	if needStreamUpdate {
		s.recvWindow += defaultInitialWindow
	}
	c.mu.Unlock()

	if needConnUpdate {
		_ = c.framer.WriteWindowUpdate(0, defaultInitialWindow)
	}
	if needStreamUpdate {
		_ = c.framer.WriteWindowUpdate(fr.StreamID, defaultInitialWindow)
	}

	if endStream {
		return c.dispatchRequest(s)
	}
	return nil
}

func (c *Conn) dispatchRequest(s *Stream) error {
	if s.req == nil {
		return &StreamError{StreamID: s.ID, Code: ErrCodeProtocol, Reason: "END_STREAM without headers"}
	}
	if s.bodyBuf.Len() > 0 {
		s.req.Body = io.NopCloser(bytes.NewReader(s.bodyBuf.Bytes()))
	}
	resp := c.handler(s.req)
	return c.writeResponse(s, resp)
}

// writeResponse encodes resp's headers and body onto the wire, issuing one
// PUSH_PROMISE per resp.Pushes entry before the HEADERS frame as RFC 7540
// §8.2 requires. Body bytes that don't fit under the stream's or
// connection's current send window are left in s.pendingBody and drained
// later by flushPendingLocked as WINDOW_UPDATE frames grant more credit, so
// DATA written on a stream never exceeds the cumulative credit it has been
// given (RFC 7540 §6.9).
func (c *Conn) writeResponse(s *Stream, resp *message.Response) error {
	for _, push := range resp.Pushes {
		if err := c.writePush(s, push); err != nil {
			return err
		}
	}

	payload, err := c.enc.EncodeResponse(resp.Status, resp.Header)
	if err != nil {
		return err
	}
	var body []byte
	if resp.Body != nil {
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
	}
	endStream := len(body) == 0

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      s.ID,
		BlockFragment: payload,
		EndHeaders:    true,
		EndStream:     endStream,
	}); err != nil {
		return err
	}
	if endStream {
		s.closeLocal()
		return nil
	}

	s.pendingBody = body
	s.pendingEndStream = true
	return c.flushPendingLocked(s)
}

// flushPendingLocked writes as much of s.pendingBody as the stream's and
// connection's send windows currently allow, in frames no larger than the
// 16384-byte default MAX_FRAME_SIZE, decrementing both windows by what it
// actually sends. Whatever doesn't fit stays in s.pendingBody for the next
// WINDOW_UPDATE to unblock. Callers must hold c.mu.
func (c *Conn) flushPendingLocked(s *Stream) error {
	for len(s.pendingBody) > 0 {
		if s.State == StateClosed {
			s.pendingBody = nil
			return nil
		}
		avail := s.sendWindow
		if c.connSendWindow < avail {
			avail = c.connSendWindow
		}
		if avail <= 0 {
			return nil
		}
		n := len(s.pendingBody)
		if n > 16384 {
			n = 16384
		}
		if int32(n) > avail {
			n = int(avail)
		}
		last := n == len(s.pendingBody) && s.pendingEndStream
		if err := c.framer.WriteData(s.ID, last, s.pendingBody[:n]); err != nil {
			return err
		}
		s.sendWindow -= int32(n)
		c.connSendWindow -= int32(n)
		s.pendingBody = s.pendingBody[n:]
		if last {
			s.closeLocal()
		}
	}
	return nil
}

// flushAllPendingLocked retries every stream still holding deferred body
// bytes after a connection-level WINDOW_UPDATE, since that credit could be
// what any of them was waiting on. Callers must hold c.mu.
func (c *Conn) flushAllPendingLocked() error {
	for _, s := range c.streams {
		if len(s.pendingBody) > 0 {
			if err := c.flushPendingLocked(s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Conn) writePush(s *Stream, push message.PushPromise) error {
	c.mu.Lock()
	pushID := c.nextPushStream
	c.nextPushStream += 2
	pushStream := newStream(pushID, c.peerInitialWindow)
	pushStream.State = StateReservedLocal
	pushStream.Parent = s.ID
	c.streams[pushID] = pushStream
	c.mu.Unlock()

	push.Header.Set(":method", "GET")
	payload, err := c.enc.EncodeRequest(hpack.PseudoRequest{Method: "GET", Path: push.Path, Scheme: "https"}, push.Header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framer.WritePushPromise(http2.PushPromiseParam{
		StreamID:      s.ID,
		PromiseID:     pushID,
		BlockFragment: payload,
		EndHeaders:    true,
	})
}
