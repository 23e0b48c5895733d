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

// Package h2 implements the RFC 7540 stream multiplexing state machine and
// flow control on top of golang.org/x/net/http2's wire-level Framer, which
// owns only frame encoding/decoding; everything about what a frame means to
// a given stream is ours.
package h2

import (
	"bytes"
	"fmt"

	"github.com/larrymotalavigne/httpy/message"
)

// State is a stream's position in the RFC 7540 §5.1 state diagram.
type State uint8

const (
	StateIdle State = iota
	StateReservedLocal
	StateReservedRemote
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReservedLocal:
		return "reserved(local)"
	case StateReservedRemote:
		return "reserved(remote)"
	case StateOpen:
		return "open"
	case StateHalfClosedLocal:
		return "half-closed(local)"
	case StateHalfClosedRemote:
		return "half-closed(remote)"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamError maps a stream-scoped protocol violation to the RFC 7540 error
// code carried in the RST_STREAM that closes it.
type StreamError struct {
	StreamID uint32
	Code     ErrorCode
	Reason   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("h2: stream %d: %s (%s)", e.StreamID, e.Reason, e.Code)
}

// ErrorCode is an RFC 7540 §7 error code.
type ErrorCode uint32

const (
	ErrCodeNo                 ErrorCode = 0x0
	ErrCodeProtocol           ErrorCode = 0x1
	ErrCodeInternal           ErrorCode = 0x2
	ErrCodeFlowControl        ErrorCode = 0x3
	ErrCodeSettingsTimeout    ErrorCode = 0x4
	ErrCodeStreamClosed       ErrorCode = 0x5
	ErrCodeFrameSize          ErrorCode = 0x6
	ErrCodeRefusedStream      ErrorCode = 0x7
	ErrCodeCancel             ErrorCode = 0x8
	ErrCodeCompression        ErrorCode = 0x9
	ErrCodeConnect            ErrorCode = 0xa
	ErrCodeEnhanceYourCalm    ErrorCode = 0xb
	ErrCodeInadequateSecurity ErrorCode = 0xc
	ErrCodeHTTP11Required     ErrorCode = 0xd
)

func (c ErrorCode) String() string {
	names := map[ErrorCode]string{
		ErrCodeNo: "NO_ERROR", ErrCodeProtocol: "PROTOCOL_ERROR", ErrCodeInternal: "INTERNAL_ERROR",
		ErrCodeFlowControl: "FLOW_CONTROL_ERROR", ErrCodeSettingsTimeout: "SETTINGS_TIMEOUT",
		ErrCodeStreamClosed: "STREAM_CLOSED", ErrCodeFrameSize: "FRAME_SIZE_ERROR",
		ErrCodeRefusedStream: "REFUSED_STREAM", ErrCodeCancel: "CANCEL", ErrCodeCompression: "COMPRESSION_ERROR",
		ErrCodeConnect: "CONNECT_ERROR", ErrCodeEnhanceYourCalm: "ENHANCE_YOUR_CALM",
		ErrCodeInadequateSecurity: "INADEQUATE_SECURITY", ErrCodeHTTP11Required: "HTTP_1_1_REQUIRED",
	}
	if n, ok := names[c]; ok {
		return n
	}
	return "UNKNOWN_ERROR"
}

// Stream tracks one HTTP/2 stream's state, flow-control windows and
// in-progress header/body accumulation.
type Stream struct {
	ID    uint32
	State State

	// sendWindow/recvWindow are this stream's flow-control credit in each
	// direction, independent of the connection-level window.
	sendWindow int32
	recvWindow int32

	headerBuf    bytes.Buffer
	endHeaders   bool
	pseudo       interface{} // unused; finishHeaders copies the decoded pseudo-headers into req
	req          *message.Request
	bodyBuf      bytes.Buffer
	endStream    bool

	// pendingBody holds response bytes writeResponse couldn't fit under the
	// current send windows; flushPendingLocked drains it as WINDOW_UPDATE
	// frames arrive. pendingEndStream records whether the last byte of
	// pendingBody should carry END_STREAM once it's written.
	pendingBody      []byte
	pendingEndStream bool

	// Parent is set on a push-promised stream reserved by the server.
	Parent uint32
}

func newStream(id uint32, initialWindow int32) *Stream {
	return &Stream{ID: id, State: StateIdle, sendWindow: initialWindow, recvWindow: initialWindow}
}

// canReceiveHeaders reports whether a HEADERS frame is legal on this stream
// in its current state (RFC 7540 §5.1).
func (s *Stream) canReceiveHeaders() bool {
	return s.State == StateIdle || s.State == StateOpen || s.State == StateHalfClosedLocal
}

// canReceiveData reports whether a DATA frame is legal in this state.
func (s *Stream) canReceiveData() bool {
	return s.State == StateOpen || s.State == StateHalfClosedLocal
}

// openOnHeaders transitions the stream after receiving a HEADERS frame,
// honoring END_STREAM.
func (s *Stream) openOnHeaders(endStream bool) {
	switch s.State {
	case StateIdle:
		s.State = StateOpen
	}
	if endStream {
		s.closeRemote()
	}
}

func (s *Stream) closeRemote() {
	switch s.State {
	case StateOpen:
		s.State = StateHalfClosedRemote
	case StateHalfClosedLocal:
		s.State = StateClosed
	}
}

func (s *Stream) closeLocal() {
	switch s.State {
	case StateOpen:
		s.State = StateHalfClosedLocal
	case StateHalfClosedRemote:
		s.State = StateClosed
	}
}

// reset forces the stream to Closed, as happens on RST_STREAM in either
// direction.
func (s *Stream) reset() { s.State = StateClosed }
