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

// Package ws implements the RFC 6455 opening handshake and frame codec
// directly against the standard library. Framing -- masking, fragmentation
// reassembly, control-frame interleaving, the close handshake -- is the
// very logic this module exists to own, so unlike h2's reuse of
// golang.org/x/net/http2, pulling in a third-party websocket library here
// would hand away the one piece the spec asks this package to implement.
package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/larrymotalavigne/httpy/message"
)

// magicGUID is the fixed string RFC 6455 §1.3 appends to the client's
// Sec-WebSocket-Key before hashing to produce Sec-WebSocket-Accept.
const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrNotUpgrade is returned by Accept when the request does not carry a
// valid WebSocket upgrade handshake.
var ErrNotUpgrade = errors.New("ws: request is not a valid WebSocket upgrade")

// AcceptKey computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key, per RFC 6455 §1.3.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(magicGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Handshake holds the negotiated result of a successful upgrade.
type Handshake struct {
	Accept    string
	Protocol  string
	Extension string
}

// Accept validates req as a WebSocket upgrade request and computes the
// response handshake fields, without writing anything to the wire; the
// caller (conn) is responsible for serializing the 101 response.
func Accept(req *message.Request, supportedProtocols []string) (*Handshake, error) {
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return nil, ErrNotUpgrade
	}
	if !containsToken(req.Header.Get("Connection"), "upgrade") {
		return nil, ErrNotUpgrade
	}
	if req.Header.Get("Sec-WebSocket-Version") != "13" {
		return nil, ErrNotUpgrade
	}
	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, ErrNotUpgrade
	}

	h := &Handshake{Accept: AcceptKey(key)}

	if want := req.Header.Get("Sec-WebSocket-Protocol"); want != "" {
		requested := strings.Split(want, ",")
		for _, r := range requested {
			r = strings.TrimSpace(r)
			for _, s := range supportedProtocols {
				if r == s {
					h.Protocol = s
					return h, nil
				}
			}
		}
	}
	return h, nil
}

func containsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// ResponseHeader builds the 101 Switching Protocols header fields for h.
func (h *Handshake) ResponseHeader() *message.Header {
	hdr := message.NewHeader()
	hdr.Set("Upgrade", "websocket")
	hdr.Set("Connection", "Upgrade")
	hdr.Set("Sec-WebSocket-Accept", h.Accept)
	if h.Protocol != "" {
		hdr.Set("Sec-WebSocket-Protocol", h.Protocol)
	}
	return hdr
}
