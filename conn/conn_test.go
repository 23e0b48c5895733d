package conn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/larrymotalavigne/httpy/message"
)

func TestDriverServesSimpleRequestThenClosesOnConnectionClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	d := &Driver{
		Handler: func(req *message.Request) *message.Response {
			resp := message.NewResponse(200)
			return resp
		},
	}

	done := make(chan struct{})
	go func() {
		d.Serve(serverConn)
		close(done)
	}()

	_, err := clientConn.Write([]byte("GET / HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n"))
	assert.NoError(t, err)

	buf := make([]byte, 4096)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	assert.NoError(t, err)
	resp := string(buf[:n])
	assert.Contains(t, resp, "HTTP/1.1 200")
	assert.Contains(t, resp, "Connection: close")
	assert.Contains(t, resp, "Date: ")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not close connection after Connection: close")
	}
	clientConn.Close()
}

func TestDriverSendsRequestTimeoutForStalledPartialRequest(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	d := &Driver{
		Handler: func(req *message.Request) *message.Response {
			return message.NewResponse(200)
		},
		Timeouts: Timeouts{
			Idle:    2 * time.Second,
			Request: 50 * time.Millisecond,
		},
	}

	done := make(chan struct{})
	go func() {
		d.Serve(serverConn)
		close(done)
	}()

	// first byte arrives, switching the deadline to Timeouts.Request, but
	// the request never completes.
	_, err := clientConn.Write([]byte("GET / HTTP/1.1\r\n"))
	assert.NoError(t, err)

	buf := make([]byte, 4096)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	assert.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "HTTP/1.1 408")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not close connection after request timeout")
	}
	clientConn.Close()
}

func TestDriverClosesSilentlyWhenTrulyIdle(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	d := &Driver{
		Handler: func(req *message.Request) *message.Response {
			return message.NewResponse(200)
		},
		Timeouts: Timeouts{Idle: 50 * time.Millisecond},
	}

	done := make(chan struct{})
	go func() {
		d.Serve(serverConn)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not close an idle connection")
	}
	clientConn.Close()
}

func TestKeepAliveDefaultsToTrue(t *testing.T) {
	req := message.NewRequest(message.ProtocolHTTP1)
	assert.True(t, keepAlive(req))
}

func TestKeepAliveFalseOnConnectionClose(t *testing.T) {
	req := message.NewRequest(message.ProtocolHTTP1)
	req.Header.Set("Connection", "close")
	assert.False(t, keepAlive(req))
}

func TestIsWebSocketUpgradeDetection(t *testing.T) {
	d := &Driver{}
	req := message.NewRequest(message.ProtocolHTTP1)
	req.Header.Set("Upgrade", "websocket")
	assert.True(t, d.isWebSocketUpgrade(req))
}

func TestIsH2CUpgradeRequiresSettingsHeader(t *testing.T) {
	d := &Driver{}
	req := message.NewRequest(message.ProtocolHTTP1)
	req.Header.Set("Upgrade", "h2c")
	assert.False(t, d.isH2CUpgrade(req))

	req.Header.Set("HTTP2-Settings", "AAMAAABkAAQAAP__")
	assert.True(t, d.isH2CUpgrade(req))
}
