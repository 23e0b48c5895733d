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

package dispatch

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/larrymotalavigne/httpy/message"
)

// BasicAuth rejects any request not carrying a valid RFC 7617 Basic
// Authorization header for one of the given username/password pairs.
// The password comparison is constant-time via crypto/subtle, the same
// property nabbar-golib's router/auth package tests for; values of
// different lengths are rejected at once, so the length is not hidden.
func BasicAuth(realm string, credentials map[string]string) Middleware {
	return func(next Handler) Handler {
		return func(req *message.Request) *message.Response {
			user, pass, ok := parseBasicAuth(req.Header.Get("Authorization"))
			if ok {
				if want, exists := credentials[user]; exists && constantTimeEq(want, pass) {
					return next(req)
				}
			}
			resp := message.NewResponse(401)
			resp.Header.Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			return resp
		}
	}
}

func parseBasicAuth(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	user, pass, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return user, pass, true
}

func constantTimeEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HeaderAuth rejects any request whose headerName value doesn't constant-
// time-match one of the accepted tokens, the header-based analogue of
// BasicAuth used for service-to-service API keys (mirrors nabbar-golib's
// router/authheader behavior).
func HeaderAuth(headerName string, accepted ...string) Middleware {
	return func(next Handler) Handler {
		return func(req *message.Request) *message.Response {
			got := req.Header.Get(headerName)
			for _, want := range accepted {
				if constantTimeEq(want, got) {
					return next(req)
				}
			}
			return message.NewResponse(403)
		}
	}
}

// StaticHeaders adds a fixed set of headers to every response produced by
// next, for cross-cutting concerns like security headers or a server
// banner (mirrors nabbar-golib's router/header behavior).
func StaticHeaders(headers map[string]string) Middleware {
	return func(next Handler) Handler {
		return func(req *message.Request) *message.Response {
			resp := next(req)
			for k, v := range headers {
				resp.Header.Set(k, v)
			}
			return resp
		}
	}
}
