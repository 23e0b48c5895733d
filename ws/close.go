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
	"encoding/binary"
	"io"
	"time"
)

// CloseGrace is how long a side that initiated the close handshake waits
// for the peer's close frame before dropping the TCP connection outright.
const CloseGrace = 2 * time.Second

// CloseCode is the RFC 6455 §7.4 status code carried in a close frame.
type CloseCode uint16

const (
	CloseNormal         CloseCode = 1000
	CloseGoingAway      CloseCode = 1001
	CloseProtocolError  CloseCode = 1002
	CloseUnsupportedData CloseCode = 1003
	CloseInvalidPayload CloseCode = 1007
	ClosePolicyViolation CloseCode = 1008
	CloseMessageTooBig  CloseCode = 1009
	CloseInternalError  CloseCode = 1011
)

// EncodeClose builds a close frame payload: a 2-byte big-endian code
// optionally followed by a UTF-8 reason.
func EncodeClose(code CloseCode, reason string) []byte {
	buf := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(buf, uint16(code))
	copy(buf[2:], reason)
	return buf
}

// DecodeClose parses a close frame payload; an empty payload yields
// CloseNormal with no reason, per RFC 6455 §7.1.5.
func DecodeClose(payload []byte) (CloseCode, string) {
	if len(payload) < 2 {
		return CloseNormal, ""
	}
	return CloseCode(binary.BigEndian.Uint16(payload)), string(payload[2:])
}

// InitiateClose writes a close frame with code/reason and then waits up to
// CloseGrace for the peer's own close frame to arrive via readClose before
// returning, so the TCP connection closes cleanly rather than abruptly
// whenever the peer cooperates.
func InitiateClose(w io.Writer, readClose func() error, code CloseCode, reason string) error {
	if err := WriteFrame(w, Frame{Fin: true, Opcode: OpClose, Payload: EncodeClose(code, reason)}); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- readClose() }()

	select {
	case err := <-done:
		return err
	case <-time.After(CloseGrace):
		return nil
	}
}
