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

package h1

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/larrymotalavigne/httpy/message"
)

// WriteResponse serializes resp as an HTTP/1.1 status line, headers and
// body onto w. It always buffers the whole body to compute Content-Length
// (except for 1xx and 204) so keep-alive framing stays unambiguous; it never
// uses chunked Transfer-Encoding. Header names are written in canonical
// form (e.g. "Content-Length").
func WriteResponse(w io.Writer, resp *message.Response) error {
	bw := bufio.NewWriter(w)

	var bodyBytes []byte
	if resp.Body != nil {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		bodyBytes = b
	}
	if !noBodyFraming(resp.Status) && !resp.Header.Has("Content-Length") {
		resp.Header.Set("Content-Length", strconv.Itoa(len(bodyBytes)))
	}
	if !resp.Header.Has("Date") {
		resp.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}

	text := http.StatusText(resp.Status)
	if text == "" {
		text = "Status"
	}
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.Status, text); err != nil {
		return err
	}
	var headerErr error
	resp.Header.Range(func(key, val string) {
		if headerErr != nil {
			return
		}
		_, headerErr = fmt.Fprintf(bw, "%s: %s\r\n", http.CanonicalHeaderKey(key), val)
	})
	if headerErr != nil {
		return headerErr
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if len(bodyBytes) > 0 {
		if _, err := bw.Write(bodyBytes); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// noBodyFraming reports status codes that RFC 7230 §3.3.2 forbids a
// Content-Length on: 1xx informational and 204 No Content.
func noBodyFraming(status int) bool {
	return (status >= 100 && status < 200) || status == 204
}
