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

// Package h3 declares the pluggable surface an HTTP/3 (QUIC) transport
// must implement to plug into server.Server, without implementing QUIC
// itself. This module's ambition stops at the byte-stream boundary; a
// real deployment wires in a concrete Transport (e.g. a quic-go-backed
// one) built outside this module.
package h3

import (
	"context"
	"io"

	"github.com/larrymotalavigne/httpy/message"
)

// Transport is the adapter seam server.Server dispatches HTTP/3 traffic
// through. Its sole implementation in this module, NotSupported, always
// refuses, so a server built without a registered Transport behaves
// exactly as if HTTP/3 were never offered.
type Transport interface {
	// Serve accepts and handles connections until ctx is cancelled or
	// listener is closed, invoking handler for every completed request.
	Serve(ctx context.Context, listener io.Closer, handler func(req *message.Request) *message.Response) error

	// Supported reports whether this Transport is actually able to run,
	// letting the acceptor decide whether to advertise "h3" in Alt-Svc.
	Supported() bool
}

// NotSupported is the zero-value Transport: it reports Supported()==false
// and Serve always fails, so a server configured without HTTP/3 support
// simply never offers it rather than silently mishandling it.
type NotSupported struct{}

func (NotSupported) Supported() bool { return false }

func (NotSupported) Serve(ctx context.Context, listener io.Closer, handler func(req *message.Request) *message.Response) error {
	return ErrUnimplemented
}

// ErrUnimplemented is returned by NotSupported.Serve.
var ErrUnimplemented = errUnimplemented{}

type errUnimplemented struct{}

func (errUnimplemented) Error() string { return "h3: no Transport configured" }
