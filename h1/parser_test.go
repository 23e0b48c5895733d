package h1

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/larrymotalavigne/httpy/message"
)

func feedAll(t *testing.T, raw string) (*Parser, Status) {
	t.Helper()
	p := NewParser()
	r := NewReader(bytes.NewReader([]byte(raw)))
	status, err := p.Feed(r)
	assert.NoError(t, err)
	return p, status
}

func TestParserSimpleGET(t *testing.T) {
	p, status := feedAll(t, "GET /widgets?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	assert.Equal(t, Done, status)
	req := p.Request()
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/widgets", req.Path)
	assert.Equal(t, "x=1", req.RawQuery)
	assert.Equal(t, "example.com", req.Header.Get("Host"))
}

func TestParserContentLengthBody(t *testing.T) {
	raw := "POST /items HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello"
	p, status := feedAll(t, raw)
	assert.Equal(t, Done, status)
	body, _ := io.ReadAll(p.Request().Body)
	assert.Equal(t, "hello", string(body))
}

func TestParserChunkedBody(t *testing.T) {
	raw := "POST /items HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	p, status := feedAll(t, raw)
	assert.Equal(t, Done, status)
	body, _ := io.ReadAll(p.Request().Body)
	assert.Equal(t, "hello world", string(body))
}

func TestParserRejectsContentLengthAndChunkedTogether(t *testing.T) {
	raw := "POST /items HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello"
	_, status := feedAll(t, raw)
	assert.Equal(t, Invalid, status)
}

func TestParserNeedsMoreOnPartialHeaders(t *testing.T) {
	p := NewParser()
	r := NewReader(bytes.NewReader([]byte("GET / HTTP/1.1\r\nHost: h\r\n")))
	status, err := p.Feed(r)
	assert.NoError(t, err)
	assert.Equal(t, NeedMore, status)
}

func TestParserRejectsMalformedRequestLine(t *testing.T) {
	p := NewParser()
	r := NewReader(bytes.NewReader([]byte("NOT A REQUEST\r\n\r\n")))
	status, _ := p.Feed(r)
	assert.Equal(t, Invalid, status)
}

func TestWriteResponseSetsContentLength(t *testing.T) {
	resp := message.NewResponse(200)
	resp.Body = bytes.NewReader([]byte("ok"))

	var buf bytes.Buffer
	assert.NoError(t, WriteResponse(&buf, resp))
	assert.Contains(t, buf.String(), "Content-Length: 2")
	assert.Contains(t, buf.String(), "HTTP/1.1 200 OK")
	assert.Contains(t, buf.String(), "ok")
}

func TestWriteResponseSetsDateWhenAbsent(t *testing.T) {
	resp := message.NewResponse(200)

	var buf bytes.Buffer
	assert.NoError(t, WriteResponse(&buf, resp))
	assert.Contains(t, buf.String(), "Date: ")
}

func TestWriteResponsePreservesUserSetDate(t *testing.T) {
	resp := message.NewResponse(200)
	resp.Header.Set("Date", "Mon, 01 Jan 2001 00:00:00 GMT")

	var buf bytes.Buffer
	assert.NoError(t, WriteResponse(&buf, resp))
	assert.Contains(t, buf.String(), "Date: Mon, 01 Jan 2001 00:00:00 GMT")
}
