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

// Package tlscfg is the thin seam between listener.Acceptor and a
// certificate source. TLS itself -- the handshake, cipher negotiation,
// certificate validation -- is out of scope for this module (the acceptor
// only needs a *tls.Config to hand to tls.NewListener); this package owns
// just ALPN protocol ordering and certificate reloading.
package tlscfg

import (
	"crypto/tls"
	"fmt"
	"sync"
)

// Provider supplies the current certificate pair, allowing hot reload
// without rebinding the listener.
type Provider interface {
	// Pair returns the current certificate and key PEM bytes.
	Pair() (certPEM, keyPEM []byte, err error)
}

// StaticProvider serves a fixed certificate pair set at construction.
type StaticProvider struct {
	CertPEM, KeyPEM []byte
}

func (s StaticProvider) Pair() ([]byte, []byte, error) { return s.CertPEM, s.KeyPEM, nil }

// Config builds *tls.Config values offering ALPN protocols in the order
// given to New. The certificate is loaded from Provider on the first
// handshake and cached; later handshakes reuse it until Invalidate clears
// the cache, after which the next handshake loads it from Provider again.
type Config struct {
	mu       sync.RWMutex
	provider Provider
	alpn     []string
	cached   *tls.Certificate
}

// New builds a Config. protocols should list ALPN identifiers in
// preference order, e.g. []string{"h2", "http/1.1"}.
func New(provider Provider, protocols []string) *Config {
	return &Config{provider: provider, alpn: protocols}
}

// TLSConfig returns a *tls.Config suitable for tls.NewListener, whose
// GetCertificate callback returns the cached certificate, loading it from
// Provider when the cache is empty.
func (c *Config) TLSConfig(serverName string) *tls.Config {
	return &tls.Config{
		NextProtos:     c.alpn,
		ServerName:     serverName,
		MinVersion:     tls.VersionTLS12,
		GetCertificate: c.getCertificate,
	}
}

func (c *Config) getCertificate(_ *tls.ClientHelloInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	cached := c.cached
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	certPEM, keyPEM, err := c.provider.Pair()
	if err != nil {
		return nil, fmt.Errorf("tlscfg: loading certificate: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlscfg: parsing certificate: %w", err)
	}

	c.mu.Lock()
	c.cached = &cert
	c.mu.Unlock()
	return &cert, nil
}

// Invalidate forces the next handshake to re-resolve the certificate from
// Provider, used after a known rotation.
func (c *Config) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// NegotiatedProtocol inspects a completed *tls.ConnectionState for the
// ALPN protocol the client and server agreed on.
func NegotiatedProtocol(state tls.ConnectionState) string {
	return state.NegotiatedProtocol
}
