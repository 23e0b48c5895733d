package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larrymotalavigne/httpy/internal/xdur"
	"github.com/larrymotalavigne/httpy/message"
	"github.com/larrymotalavigne/httpy/router"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	r := router.New()
	err := r.Register("GET", "/hello", func(req *message.Request) *message.Response {
		resp := message.NewResponse(200)
		resp.Header.Set("Content-Type", "text/plain")
		return resp
	})
	require.NoError(t, err)

	return &Server{
		Config: &Config{
			Name:             "test",
			Host:             "127.0.0.1",
			Port:             freePort(t),
			KeepAliveTimeout: xdur.Seconds(5),
			RequestTimeout:   xdur.Seconds(5),
			ShutdownGrace:    xdur.Seconds(2),
			MaxConnections:   16,
		},
		Router: r,
	}
}

func TestServerStartStopLifecycle(t *testing.T) {
	s := newTestServer(t)
	assert.False(t, s.IsRunning())

	err := s.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsRunning())
	assert.Greater(t, s.Uptime(), time.Duration(0))

	err = s.Stop()
	require.NoError(t, err)
	assert.False(t, s.IsRunning())
}

func TestServerServesRegisteredRoute(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	addr := "http://" + net.JoinHostPort(s.Config.Host, strconv.Itoa(s.Config.Port)) + "/hello"
	client := &http.Client{Timeout: 2 * time.Second}

	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		resp, err = client.Get(addr)
		if err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	_ = body
}

func TestServerStopIsIdempotentWhenNeverStarted(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.Stop())
}
