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
	"errors"
	"fmt"
	"io"
)

// Opcode identifies a frame's payload interpretation (RFC 6455 §5.2).
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xa
)

func (o Opcode) isControl() bool { return o >= OpClose }

// ErrProtocol marks a frame that violates RFC 6455 framing rules.
var ErrProtocol = errors.New("ws: protocol violation")

// Frame is one decoded WebSocket frame.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Payload []byte
}

// ReadFrame decodes one frame from r, unmasking the payload if the frame
// carries the MASK bit (required for frames received from a client per RFC
// 6455 §5.1).
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	fin := hdr[0]&0x80 != 0
	opcode := Opcode(hdr[0] & 0x0f)
	masked := hdr[1]&0x80 != 0
	length := uint64(hdr[1] & 0x7f)

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if opcode.isControl() && (length > 125 || !fin) {
		return Frame{}, fmt.Errorf("%w: control frame must be unfragmented and <=125 bytes", ErrProtocol)
	}

	var maskKey [4]byte
	if masked {
		if _, err := io.ReadFull(r, maskKey[:]); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}

	return Frame{Fin: fin, Opcode: opcode, Payload: payload}, nil
}

// WriteFrame encodes f onto w unmasked, as a server-to-client frame must be
// per RFC 6455 §5.1.
func WriteFrame(w io.Writer, f Frame) error {
	var first byte
	if f.Fin {
		first = 0x80
	}
	first |= byte(f.Opcode)

	n := len(f.Payload)
	var lenBytes []byte
	switch {
	case n <= 125:
		lenBytes = []byte{first, byte(n)}
	case n <= 0xffff:
		lenBytes = make([]byte, 4)
		lenBytes[0] = first
		lenBytes[1] = 126
		binary.BigEndian.PutUint16(lenBytes[2:], uint16(n))
	default:
		lenBytes = make([]byte, 10)
		lenBytes[0] = first
		lenBytes[1] = 127
		binary.BigEndian.PutUint64(lenBytes[2:], uint64(n))
	}

	if _, err := w.Write(lenBytes); err != nil {
		return err
	}
	if n > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Reassembler accumulates a fragmented data message (OpText/OpBinary
// followed by zero or more OpContinuation frames) into a single payload,
// passing control frames through untouched for interleaved handling.
type Reassembler struct {
	opcode  Opcode
	payload []byte
	active  bool
}

// Feed processes one frame, returning a complete message's opcode and bytes
// once Fin arrives, or ok=false while more continuation frames are needed.
// Control frames (ping/pong/close) are returned immediately regardless of
// any in-progress data message, per RFC 6455 §5.4's interleaving rule.
func (r *Reassembler) Feed(f Frame) (opcode Opcode, payload []byte, ok bool, err error) {
	if f.Opcode.isControl() {
		return f.Opcode, f.Payload, true, nil
	}

	switch f.Opcode {
	case OpText, OpBinary:
		if r.active {
			return 0, nil, false, fmt.Errorf("%w: new data frame while continuation pending", ErrProtocol)
		}
		r.opcode = f.Opcode
		r.payload = append([]byte{}, f.Payload...)
		r.active = true
	case OpContinuation:
		if !r.active {
			return 0, nil, false, fmt.Errorf("%w: continuation with no prior data frame", ErrProtocol)
		}
		r.payload = append(r.payload, f.Payload...)
	default:
		return 0, nil, false, fmt.Errorf("%w: unknown opcode %d", ErrProtocol, f.Opcode)
	}

	if !f.Fin {
		return 0, nil, false, nil
	}
	r.active = false
	out := r.payload
	r.payload = nil
	return r.opcode, out, true, nil
}
