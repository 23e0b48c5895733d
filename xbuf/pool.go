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

// Package xbuf provides a bounded pool of reusable, growable byte buffers.
// The pool never grants more than its configured number of buffers at once;
// Acquire blocks beyond that bound until a buffer is released or the
// caller's done channel closes. No other package of this module draws from
// the pool: h1 reads through its own bufio.Reader.
package xbuf

import (
	"sync"
)

// Buffer is a growable byte slice with a consumed cursor, reused across
// requests on a keep-alive connection without reallocating.
type Buffer struct {
	data     []byte
	consumed int
}

// NewBuffer returns a Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Bytes returns the unconsumed tail of the buffer.
func (b *Buffer) Bytes() []byte { return b.data[b.consumed:] }

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int { return len(b.data) - b.consumed }

// Append grows the buffer with p. First it drops the contents if all of them
// were consumed, or else moves the unconsumed tail to the front when more
// than half of the backing array's capacity lies behind the cursor.
func (b *Buffer) Append(p []byte) {
	if b.consumed > 0 && b.consumed == len(b.data) {
		b.data = b.data[:0]
		b.consumed = 0
	} else if b.consumed > cap(b.data)/2 {
		b.data = append(b.data[:0], b.data[b.consumed:]...)
		b.consumed = 0
	}
	b.data = append(b.data, p...)
}

// Consume advances the cursor by n bytes, which must not exceed Len().
func (b *Buffer) Consume(n int) { b.consumed += n }

// Reset empties the buffer for reuse, keeping its backing array.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.consumed = 0
}

// Cap reports the underlying array capacity, used by the pool to decide
// whether a returned buffer is worth keeping.
func (b *Buffer) Cap() int { return cap(b.data) }

// Pool is a bounded, concurrency-safe set of reusable Buffers.
type Pool struct {
	mu       sync.Mutex
	free     []*Buffer
	max      int
	initCap  int
	inUse    int
	notify   chan struct{}
}

// NewPool creates a Pool that grants at most maxOutstanding buffers of
// initCap bytes at a time; Acquire blocks beyond that bound until one is
// released, matching spec.md §5 "exhaustion blocks the allocator".
func NewPool(maxOutstanding, initCap int) *Pool {
	if maxOutstanding <= 0 {
		maxOutstanding = 1
	}
	if initCap <= 0 {
		initCap = 16 * 1024
	}
	return &Pool{max: maxOutstanding, initCap: initCap, notify: make(chan struct{}, 1)}
}

// Acquire returns a Buffer, reusing a freed one when available, blocking
// when the pool is at capacity until Release frees one or ctxDone fires.
func (p *Pool) Acquire(ctxDone <-chan struct{}) (*Buffer, bool) {
	for {
		p.mu.Lock()
		if n := len(p.free); n > 0 {
			b := p.free[n-1]
			p.free = p.free[:n-1]
			p.inUse++
			p.mu.Unlock()
			return b, true
		}
		if p.inUse < p.max {
			p.inUse++
			p.mu.Unlock()
			return NewBuffer(p.initCap), true
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-ctxDone:
			return nil, false
		}
	}
}

// Release returns a Buffer to the pool for reuse, resetting it first.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		return
	}
	b.Reset()

	p.mu.Lock()
	p.inUse--
	p.free = append(p.free, b)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// InUse reports the number of currently outstanding buffers.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
