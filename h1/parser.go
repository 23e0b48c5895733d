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

// Package h1 implements an HTTP/1.1 request parser and response serializer.
// Parser.Feed pulls lines and body bytes from a Reader wrapping the
// connection. Reading a line blocks on the underlying io.Reader until the
// line is complete or the read fails (for instance at a deadline), in which
// case Feed reports NeedMore. Body bytes are taken only from what the Reader
// has already buffered, so Feed also reports NeedMore when (part of) the
// body has not arrived yet.
package h1

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/larrymotalavigne/httpy/message"
)

// Status is the outcome of feeding another chunk of bytes to the Parser.
type Status uint8

const (
	NeedMore Status = iota
	Done
	Invalid
)

type parseState uint8

const (
	stateRequestLine parseState = iota
	stateHeaders
	stateBody
	stateComplete
)

type bodyMode uint8

const (
	bodyNone bodyMode = iota
	bodyContentLength
	bodyChunked
)

// Parser incrementally decodes one HTTP/1.1 request. Create one Parser per
// request; a keep-alive connection makes a new Parser once the previous
// request reached Done.
type Parser struct {
	state parseState
	mode  bodyMode

	req *message.Request

	contentLength int64
	bodyRead      int64

	chunkRemaining int64
	sawChunkedTE   bool

	bodyBuf bytes.Buffer

	// InvalidReason carries a human-readable explanation once Feed
	// returns Invalid, useful for logging and for the 400 response body.
	InvalidReason string
}

// NewParser returns a fresh Parser ready to consume a request line.
func NewParser() *Parser {
	return &Parser{state: stateRequestLine, req: message.NewRequest(message.ProtocolHTTP1)}
}

// Request returns the parsed request once Feed has returned Done.
func (p *Parser) Request() *message.Request { return p.req }

func (p *Parser) fail(reason string) Status {
	p.InvalidReason = reason
	p.state = stateComplete
	return Invalid
}

// Feed consumes as much of buf as forms complete lines/frames, advances
// buf's cursor past what it consumed, and reports whether a full request is
// now available, more bytes are needed, or the input is malformed.
func (p *Parser) Feed(buf *Reader) (Status, error) {
	for {
		switch p.state {
		case stateRequestLine:
			line, ok := buf.ReadLine()
			if !ok {
				return NeedMore, nil
			}
			if err := p.parseRequestLine(line); err != nil {
				return p.fail(err.Error()), nil
			}
			p.state = stateHeaders

		case stateHeaders:
			line, ok := buf.ReadLine()
			if !ok {
				return NeedMore, nil
			}
			if len(line) == 0 {
				if err := p.finishHeaders(); err != nil {
					return p.fail(err.Error()), nil
				}
				if p.mode == bodyNone {
					p.state = stateComplete
					p.attachBody()
					return Done, nil
				}
				p.state = stateBody
				continue
			}
			if err := p.parseHeaderLine(line); err != nil {
				return p.fail(err.Error()), nil
			}

		case stateBody:
			switch p.mode {
			case bodyContentLength:
				need := p.contentLength - p.bodyRead
				chunk := buf.ReadUpTo(need)
				if chunk == nil {
					return NeedMore, nil
				}
				p.bodyBuf.Write(chunk)
				p.bodyRead += int64(len(chunk))
				if p.bodyRead >= p.contentLength {
					p.state = stateComplete
					p.attachBody()
					return Done, nil
				}
				return NeedMore, nil

			case bodyChunked:
				status, err := p.feedChunked(buf)
				if err != nil {
					return p.fail(err.Error()), nil
				}
				if status == Done {
					p.state = stateComplete
					p.attachBody()
				}
				return status, nil
			}

		case stateComplete:
			return Done, nil
		}
	}
}

func (p *Parser) attachBody() {
	data := make([]byte, p.bodyBuf.Len())
	copy(data, p.bodyBuf.Bytes())
	p.req.Body = io.NopCloser(bytes.NewReader(data))
}

func (p *Parser) parseRequestLine(line []byte) error {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return fmt.Errorf("h1: malformed request line %q", line)
	}
	method, target, version := parts[0], parts[1], parts[2]
	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return fmt.Errorf("h1: unsupported version %q", version)
	}
	p.req.Method = method
	path, query, _ := strings.Cut(target, "?")
	p.req.Path = path
	p.req.RawQuery = query
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	name, value, ok := bytes.Cut(line, []byte(":"))
	if !ok {
		return fmt.Errorf("h1: malformed header line %q", line)
	}
	p.req.Header.Add(string(bytes.TrimSpace(name)), string(bytes.TrimSpace(value)))
	return nil
}

// finishHeaders validates and resolves body framing per RFC 7230 §3.3.3; a
// request carrying both Content-Length and a chunked Transfer-Encoding is
// rejected outright rather than guessing which one the sender meant.
func (p *Parser) finishHeaders() error {
	hasCL := p.req.Header.Has("Content-Length")
	te := strings.ToLower(p.req.Header.Get("Transfer-Encoding"))
	chunked := te == "chunked" || strings.Contains(te, "chunked")

	if hasCL && chunked {
		return fmt.Errorf("h1: request carries both Content-Length and chunked Transfer-Encoding")
	}

	switch {
	case chunked:
		p.mode = bodyChunked
		p.sawChunkedTE = true
	case hasCL:
		n, err := strconv.ParseInt(p.req.Header.Get("Content-Length"), 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("h1: invalid Content-Length %q", p.req.Header.Get("Content-Length"))
		}
		p.contentLength = n
		if n > 0 {
			p.mode = bodyContentLength
		}
	}
	return nil
}

func (p *Parser) feedChunked(buf *Reader) (Status, error) {
	for {
		if p.chunkRemaining == 0 {
			line, ok := buf.ReadLine()
			if !ok {
				return NeedMore, nil
			}
			sizeStr, _, _ := bytes.Cut(line, []byte(";"))
			size, err := strconv.ParseInt(strings.TrimSpace(string(sizeStr)), 16, 64)
			if err != nil || size < 0 {
				return Invalid, fmt.Errorf("h1: invalid chunk size %q", line)
			}
			if size == 0 {
				for {
					trailer, ok := buf.ReadLine()
					if !ok {
						return NeedMore, nil
					}
					if len(trailer) == 0 {
						return Done, nil
					}
				}
			}
			p.chunkRemaining = size
		}

		chunk := buf.ReadUpTo(p.chunkRemaining)
		if chunk == nil {
			return NeedMore, nil
		}
		p.bodyBuf.Write(chunk)
		p.chunkRemaining -= int64(len(chunk))

		if p.chunkRemaining == 0 {
			crlf, ok := buf.ReadLine()
			if !ok {
				return NeedMore, nil
			}
			if len(crlf) != 0 {
				return Invalid, fmt.Errorf("h1: malformed chunk terminator")
			}
		}
	}
}

// Reader is a line/byte-count oriented cursor over a bufio.Reader wrapping
// the input stream; one Reader is shared by every Parser on a connection.
type Reader struct {
	src *bufio.Reader
}

// NewReader wraps an io.Reader for use with Parser.Feed.
func NewReader(r io.Reader) *Reader { return &Reader{src: bufio.NewReader(r)} }

// ReadLine returns one CRLF- or LF-terminated line without its terminator.
// It blocks until a full line is available; ok=false means the underlying
// read failed first (EOF, deadline, closed connection), and any partial
// line read before the failure is dropped.
func (r *Reader) ReadLine() (line []byte, ok bool) {
	raw, err := r.src.ReadBytes('\n')
	if err != nil {
		return nil, false
	}
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	raw = bytes.TrimSuffix(raw, []byte("\r"))
	return raw, true
}

// ReadUpTo returns up to n bytes currently available, or nil if none are
// buffered yet. It never blocks waiting for more than is already present.
func (r *Reader) ReadUpTo(n int64) []byte {
	avail := r.src.Buffered()
	if avail == 0 {
		return nil
	}
	if int64(avail) > n {
		avail = int(n)
	}
	buf := make([]byte, avail)
	read, _ := io.ReadFull(r.src, buf)
	if read == 0 {
		return nil
	}
	return buf[:read]
}
