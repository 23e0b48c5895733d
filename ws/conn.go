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

package ws

import (
	"io"
)

// Conn is the post-handshake WebSocket session a conn.Driver hands off to
// an application's WSHandler: reassembled messages in, framed messages
// out, with ping/pong and the close handshake handled internally.
type Conn struct {
	rw   io.ReadWriter
	re   Reassembler
	closed bool
}

// NewConn wraps an upgraded connection for message-level read/write.
func NewConn(rw io.ReadWriter) *Conn { return &Conn{rw: rw} }

// ReadMessage blocks for the next complete text/binary message, answering
// any interleaved ping automatically with a pong and honoring a peer-
// initiated close by replying in kind before returning io.EOF.
func (c *Conn) ReadMessage() (opcode Opcode, payload []byte, err error) {
	for {
		f, err := ReadFrame(c.rw)
		if err != nil {
			return 0, nil, err
		}

		op, msg, ok, err := c.re.Feed(f)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			continue
		}

		switch op {
		case OpPing:
			if writeErr := WriteFrame(c.rw, Frame{Fin: true, Opcode: OpPong, Payload: msg}); writeErr != nil {
				return 0, nil, writeErr
			}
			continue
		case OpPong:
			continue
		case OpClose:
			code, reason := DecodeClose(msg)
			_ = WriteFrame(c.rw, Frame{Fin: true, Opcode: OpClose, Payload: EncodeClose(code, reason)})
			c.closed = true
			return OpClose, msg, io.EOF
		default:
			return op, msg, nil
		}
	}
}

// WriteText sends a single unfragmented text message.
func (c *Conn) WriteText(payload []byte) error {
	return WriteFrame(c.rw, Frame{Fin: true, Opcode: OpText, Payload: payload})
}

// WriteBinary sends a single unfragmented binary message.
func (c *Conn) WriteBinary(payload []byte) error {
	return WriteFrame(c.rw, Frame{Fin: true, Opcode: OpBinary, Payload: payload})
}

// Close performs the close handshake, waiting up to CloseGrace for the
// peer's own close frame if it hasn't already been received.
func (c *Conn) Close(code CloseCode, reason string) error {
	if c.closed {
		return nil
	}
	return InitiateClose(c.rw, func() error {
		_, _, err := c.ReadMessage()
		return err
	}, code, reason)
}
