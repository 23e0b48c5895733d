package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListenAndAcceptRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, err := Listen(ctx, Options{Address: "127.0.0.1:0", MaxConnections: 4})
	assert.NoError(t, err)
	defer a.Close()

	go func() {
		conn, dialErr := net.Dial("tcp", a.Addr().String())
		assert.NoError(t, dialErr)
		defer conn.Close()
		time.Sleep(50 * time.Millisecond)
	}()

	acceptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, release, err := a.Accept(acceptCtx)
	assert.NoError(t, err)
	assert.NotNil(t, conn)
	defer release()
	defer conn.Close()
}

func TestAcceptReturnsClosedErrorAfterClose(t *testing.T) {
	ctx := context.Background()
	a, err := Listen(ctx, Options{Address: "127.0.0.1:0", MaxConnections: 4})
	assert.NoError(t, err)
	assert.NoError(t, a.Close())

	_, _, err = a.Accept(ctx)
	assert.Error(t, err)
	var acceptErr *AcceptError
	assert.ErrorAs(t, err, &acceptErr)
	assert.Equal(t, KindClosed, acceptErr.Kind)
}

func TestAcceptRespectsContextCancellation(t *testing.T) {
	ctx := context.Background()
	a, err := Listen(ctx, Options{Address: "127.0.0.1:0", MaxConnections: 1, AcceptPerSecond: 0.001})
	assert.NoError(t, err)
	defer a.Close()

	// the limiter starts with a full burst; spend its one token so Accept
	// has to wait on the 0.001/s rate, which the context deadline cuts short.
	a.limiter.Allow()

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, _, err = a.Accept(cancelCtx)
	assert.Error(t, err)
}
