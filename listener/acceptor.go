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

// Package listener owns the plain and TLS listening sockets and the
// admission control that gates how many connections the server carries at
// once. It never parses application bytes; that starts in conn.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"golang.org/x/time/rate"

	"github.com/larrymotalavigne/httpy/tlscfg"
)

// AcceptErrorKind classifies why Accept failed, so callers can distinguish
// a transient resource limit from a fatal listener failure.
type AcceptErrorKind uint8

const (
	// KindTemporary covers errors the caller may retry accepting after
	// (e.g. a momentarily exhausted file descriptor table).
	KindTemporary AcceptErrorKind = iota
	// KindClosed means the listener itself was closed; Accept should stop.
	KindClosed
	// KindFatal covers unexpected listener errors that should bubble up.
	KindFatal
)

// AcceptError wraps a listener-level failure with its classification.
type AcceptError struct {
	Kind AcceptErrorKind
	Err  error
}

func (e *AcceptError) Error() string { return fmt.Sprintf("listener: %v", e.Err) }
func (e *AcceptError) Unwrap() error { return e.Err }

// Options configures Acceptor construction.
type Options struct {
	Address        string
	ReusePort      bool
	MaxConnections int
	// AcceptPerSecond bounds the rate of newly admitted connections,
	// independent of MaxConnections' outstanding-connection cap; zero
	// means unbounded.
	AcceptPerSecond float64
	TLS             *tlscfg.Config
	ServerName      string
}

// Acceptor binds one listening socket and gates accepted connections
// through both an outstanding-connection semaphore (MaxConnections) and a
// rate.Limiter (AcceptPerSecond), so Accept blocks the accept loop itself
// -- never the socket -- under either form of pressure.
type Acceptor struct {
	ln      net.Listener
	sem     chan struct{}
	limiter *rate.Limiter
}

// Listen binds opts.Address, applying SO_REUSEPORT if requested and
// wrapping the socket in TLS if opts.TLS is set.
func Listen(ctx context.Context, opts Options) (*Acceptor, error) {
	lc := net.ListenConfig{}
	if opts.ReusePort {
		lc.Control = reusePortControl
	}

	ln, err := lc.Listen(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, err
	}
	if opts.TLS != nil {
		ln = tls.NewListener(ln, opts.TLS.TLSConfig(opts.ServerName))
	}

	max := opts.MaxConnections
	if max <= 0 {
		max = 1 << 20
	}
	limit := rate.Limit(opts.AcceptPerSecond)
	burst := max
	if opts.AcceptPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Acceptor{
		ln:      ln,
		sem:     make(chan struct{}, max),
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

// Accept blocks until a connection is admitted -- waiting on
// MaxConnections capacity and AcceptPerSecond rate, never on the socket's
// own backlog -- or the listener closes. Release must be called once the
// returned connection closes, to free the admission slot.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, func(), error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, nil, &AcceptError{Kind: KindTemporary, Err: err}
	}

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, &AcceptError{Kind: KindTemporary, Err: ctx.Err()}
	}

	conn, err := a.ln.Accept()
	if err != nil {
		<-a.sem
		if errors.Is(err, net.ErrClosed) {
			return nil, nil, &AcceptError{Kind: KindClosed, Err: err}
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, &AcceptError{Kind: KindTemporary, Err: err}
		}
		return nil, nil, &AcceptError{Kind: KindFatal, Err: err}
	}

	release := func() { <-a.sem }
	return conn, release, nil
}

// Close stops accepting new connections.
func (a *Acceptor) Close() error { return a.ln.Close() }

// Addr returns the bound local address.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// InFlight reports how many admission slots are currently occupied.
func (a *Acceptor) InFlight() int { return len(a.sem) }
