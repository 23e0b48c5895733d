package h2

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/http2"

	"github.com/larrymotalavigne/httpy/hpack"
	"github.com/larrymotalavigne/httpy/message"
)

// bufRW lets tests drive Conn's write side through a plain buffer instead of
// a real socket; Read is unused by these tests since they call writeResponse
// and onWindowUpdate directly rather than running Serve.
type bufRW struct {
	bytes.Buffer
}

func (b *bufRW) Read(p []byte) (int, error) { return 0, io.EOF }

func TestConnRoundTripSimpleRequest(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	handlerCalled := make(chan *message.Request, 1)
	conn := NewConn(serverSide, func(req *message.Request) *message.Response {
		handlerCalled <- req
		resp := message.NewResponse(200)
		resp.Header.Set("content-type", "text/plain")
		return resp
	})

	go func() {
		_ = conn.WriteSettings()
		_ = conn.Serve()
	}()

	clientFramer := http2.NewFramer(clientSide, clientSide)
	enc := hpack.NewEncoder()
	payload, err := enc.EncodeRequest(hpack.PseudoRequest{
		Method: "GET", Scheme: "https", Authority: "example.com", Path: "/widgets",
	}, message.NewHeader())
	assert.NoError(t, err)

	go func() {
		_ = clientFramer.WriteHeaders(http2.HeadersFrameParam{
			StreamID:      1,
			BlockFragment: payload,
			EndHeaders:    true,
			EndStream:     true,
		})
	}()

	// net.Pipe is unbuffered: the server's initial SETTINGS write completes
	// only once this side reads it, so frames are read before the handler
	// check instead of after it.
	_ = clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
readLoop:
	for {
		f, err := clientFramer.ReadFrame()
		if err != nil {
			if err == io.EOF {
				t.Fatal("connection closed before HEADERS response arrived")
			}
			assert.NoError(t, err)
			return
		}
		if hf, ok := f.(*http2.HeadersFrame); ok {
			assert.Equal(t, uint32(1), hf.StreamID)
			break readLoop
		}
	}

	select {
	case req := <-handlerCalled:
		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, "/widgets", req.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestStreamStateTransitionsOnHeadersAndEndStream(t *testing.T) {
	s := newStream(1, defaultInitialWindow)
	assert.Equal(t, StateIdle, s.State)

	s.openOnHeaders(false)
	assert.Equal(t, StateOpen, s.State)

	s.closeRemote()
	assert.Equal(t, StateHalfClosedRemote, s.State)

	s.closeLocal()
	assert.Equal(t, StateClosed, s.State)
}

func TestStreamResetForcesClosed(t *testing.T) {
	s := newStream(3, defaultInitialWindow)
	s.openOnHeaders(false)
	s.reset()
	assert.Equal(t, StateClosed, s.State)
}

func TestWriteResponseDefersBodyBeyondStreamSendWindow(t *testing.T) {
	rw := &bufRW{}
	c := NewConn(rw, func(req *message.Request) *message.Response { return nil })

	s := newStream(1, defaultInitialWindow)
	s.openOnHeaders(false)
	s.sendWindow = 10
	c.streams[1] = s

	resp := message.NewResponse(200)
	resp.Body = bytes.NewReader(bytes.Repeat([]byte("x"), 25))

	assert.NoError(t, c.writeResponse(s, resp))
	assert.Equal(t, 15, len(s.pendingBody))
	assert.Equal(t, int32(0), s.sendWindow)
	assert.True(t, s.pendingEndStream)
	assert.NotEqual(t, StateClosed, s.State)

	assert.NoError(t, c.onWindowUpdate(&http2.WindowUpdateFrame{
		FrameHeader: http2.FrameHeader{StreamID: 1},
		Increment:   15,
	}))
	assert.Empty(t, s.pendingBody)
	assert.Equal(t, StateHalfClosedLocal, s.State)
}

func TestWriteResponseDefersBodyBeyondConnSendWindow(t *testing.T) {
	rw := &bufRW{}
	c := NewConn(rw, func(req *message.Request) *message.Response { return nil })
	c.connSendWindow = 10

	s := newStream(1, defaultInitialWindow)
	s.openOnHeaders(false)
	c.streams[1] = s

	resp := message.NewResponse(200)
	resp.Body = bytes.NewReader(bytes.Repeat([]byte("y"), 20))

	assert.NoError(t, c.writeResponse(s, resp))
	assert.Equal(t, 10, len(s.pendingBody))
	assert.Equal(t, int32(0), c.connSendWindow)

	assert.NoError(t, c.onWindowUpdate(&http2.WindowUpdateFrame{Increment: 10}))
	assert.Empty(t, s.pendingBody)
	assert.Equal(t, StateHalfClosedLocal, s.State)
}

func TestServeClosesConnectionAfterIdleTimeout(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	c := NewConn(serverSide, func(req *message.Request) *message.Response {
		return message.NewResponse(200)
	})
	c.IdleTimeout = 30 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- c.Serve() }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the idle timeout elapsed")
	}
}

func TestRSTStreamDiscardsPendingBody(t *testing.T) {
	rw := &bufRW{}
	c := NewConn(rw, func(req *message.Request) *message.Response { return nil })

	s := newStream(1, defaultInitialWindow)
	s.openOnHeaders(false)
	s.sendWindow = 5
	c.streams[1] = s

	resp := message.NewResponse(200)
	resp.Body = bytes.NewReader(bytes.Repeat([]byte("z"), 20))
	assert.NoError(t, c.writeResponse(s, resp))
	assert.NotEmpty(t, s.pendingBody)

	assert.NoError(t, c.onRSTStream(&http2.RSTStreamFrame{FrameHeader: http2.FrameHeader{StreamID: 1}}))
	assert.Empty(t, s.pendingBody)
	assert.Equal(t, StateClosed, s.State)
}
