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

// Package hpack assembles message.Header values from HTTP/2 HEADERS frame
// payloads and serializes them back, using golang.org/x/net/http2/hpack for
// the static/dynamic table and Huffman coding while owning pseudo-header
// assembly and header-list-size enforcement (RFC 7541 §4.2, RFC 7540 §6.5.2)
// ourselves.
package hpack

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http2/hpack"

	"github.com/larrymotalavigne/httpy/message"
)

// ErrHeaderListTooLarge is returned when decoding a header block whose
// cumulative size (RFC 7541 §4.1 accounting: name+value+32 per field)
// exceeds the configured limit.
type ErrHeaderListTooLarge struct {
	Limit uint32
	Size  uint32
}

func (e *ErrHeaderListTooLarge) Error() string {
	return fmt.Sprintf("hpack: header list size %d exceeds limit %d", e.Size, e.Limit)
}

// PseudoRequest holds the decoded :method/:scheme/:authority/:path
// pseudo-headers of a request HEADERS block, required by RFC 7540 §8.1.2.3
// to appear before any regular header field.
type PseudoRequest struct {
	Method    string
	Scheme    string
	Authority string
	Path      string
}

// Decoder wraps an hpack.Decoder bound to one connection's dynamic table,
// accumulating the header list size as fields arrive. Once
// maxHeaderListSize is exceeded it stops recording fields; the fragment is
// still decoded to its end, and DecodeFragment then reports the error.
type Decoder struct {
	dec        *hpack.Decoder
	maxSize    uint32
	size       uint32
	tooLarge   bool
	pseudoDone bool

	pseudo PseudoRequest
	header *message.Header
}

// NewDecoder creates a Decoder with the given dynamic table size bound and
// header-list size bound.
func NewDecoder(maxDynamicTableSize, maxHeaderListSize uint32) *Decoder {
	d := &Decoder{maxSize: maxHeaderListSize}
	d.dec = hpack.NewDecoder(maxDynamicTableSize, d.onField)
	return d
}

// SetMaxDynamicTableSize applies a peer SETTINGS_HEADER_TABLE_SIZE update.
func (d *Decoder) SetMaxDynamicTableSize(v uint32) { d.dec.SetMaxDynamicTableSize(v) }

func (d *Decoder) onField(f hpack.HeaderField) {
	d.size += uint32(len(f.Name) + len(f.Value) + 32)
	if d.size > d.maxSize {
		d.tooLarge = true
		return
	}
	if strings.HasPrefix(f.Name, ":") {
		switch f.Name {
		case ":method":
			d.pseudo.Method = f.Value
		case ":scheme":
			d.pseudo.Scheme = f.Value
		case ":authority":
			d.pseudo.Authority = f.Value
		case ":path":
			d.pseudo.Path = f.Value
		}
		return
	}
	d.header.Add(f.Name, f.Value)
}

// DecodeFragment feeds one HEADERS/CONTINUATION frame payload in; call
// Finish once END_HEADERS has been seen.
func (d *Decoder) DecodeFragment(p []byte) error {
	if d.header == nil {
		d.header = message.NewHeader()
	}
	_, err := d.dec.Write(p)
	if err != nil {
		return err
	}
	if d.tooLarge {
		return &ErrHeaderListTooLarge{Limit: d.maxSize, Size: d.size}
	}
	return nil
}

// Finish returns the assembled pseudo-headers and regular headers and
// resets the decoder's per-block accumulation state for the next stream.
func (d *Decoder) Finish() (PseudoRequest, *message.Header, error) {
	if err := d.dec.Close(); err != nil {
		return PseudoRequest{}, nil, err
	}
	pseudo, header := d.pseudo, d.header
	if header == nil {
		header = message.NewHeader()
	}
	d.pseudo = PseudoRequest{}
	d.header = nil
	d.size = 0
	d.tooLarge = false
	return pseudo, header, nil
}

// Encoder wraps an hpack.Encoder bound to one connection's dynamic table.
type Encoder struct {
	buf strings.Builder
	enc *hpack.Encoder
}

func NewEncoder() *Encoder {
	e := &Encoder{}
	e.enc = hpack.NewEncoder(&e.buf)
	return e
}

// EncodeResponse serializes a status pseudo-header followed by header's
// fields in insertion order, returning the raw HEADERS frame payload.
func (e *Encoder) EncodeResponse(status int, header *message.Header) ([]byte, error) {
	e.buf.Reset()
	if err := e.enc.WriteField(hpack.HeaderField{Name: ":status", Value: strconv.Itoa(status)}); err != nil {
		return nil, err
	}
	var writeErr error
	header.Range(func(key, val string) {
		if writeErr != nil {
			return
		}
		writeErr = e.enc.WriteField(hpack.HeaderField{Name: key, Value: val})
	})
	if writeErr != nil {
		return nil, writeErr
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.String())
	return out, nil
}

// EncodeRequest serializes request pseudo-headers followed by header.
func (e *Encoder) EncodeRequest(p PseudoRequest, header *message.Header) ([]byte, error) {
	e.buf.Reset()
	fields := []hpack.HeaderField{
		{Name: ":method", Value: p.Method},
		{Name: ":scheme", Value: p.Scheme},
		{Name: ":authority", Value: p.Authority},
		{Name: ":path", Value: p.Path},
	}
	for _, f := range fields {
		if err := e.enc.WriteField(f); err != nil {
			return nil, err
		}
	}
	var writeErr error
	header.Range(func(key, val string) {
		if writeErr != nil {
			return
		}
		writeErr = e.enc.WriteField(hpack.HeaderField{Name: key, Value: val})
	})
	if writeErr != nil {
		return nil, writeErr
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.String())
	return out, nil
}
