package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larrymotalavigne/httpy/internal/xdur"
	"github.com/larrymotalavigne/httpy/router"
)

func newPoolMember(t *testing.T) *Server {
	t.Helper()
	return &Server{
		Config: &Config{
			Name:             "member",
			Host:             "127.0.0.1",
			Port:             freePort(t),
			KeepAliveTimeout: xdur.Seconds(5),
			RequestTimeout:   xdur.Seconds(5),
			ShutdownGrace:    xdur.Seconds(2),
			MaxConnections:   16,
		},
		Router: router.New(),
	}
}

func TestPoolAddPanicsOnDuplicateName(t *testing.T) {
	p := NewPool()
	p.Add("a", newPoolMember(t))
	assert.Panics(t, func() { p.Add("a", newPoolMember(t)) })
}

func TestPoolStartAllThenStopAll(t *testing.T) {
	p := NewPool()
	p.Add("a", newPoolMember(t))
	p.Add("b", newPoolMember(t))

	require.NoError(t, p.StartAll(context.Background()))

	healthy := p.Healthy()
	assert.True(t, healthy["a"])
	assert.True(t, healthy["b"])

	require.NoError(t, p.StopAll())

	healthy = p.Healthy()
	assert.False(t, healthy["a"])
	assert.False(t, healthy["b"])
}

func TestPoolNamesListsMembers(t *testing.T) {
	p := NewPool()
	p.Add("a", newPoolMember(t))
	assert.ElementsMatch(t, []string{"a"}, p.Names())
}

func TestPoolGetReturnsNilForUnknownMember(t *testing.T) {
	p := NewPool()
	assert.Nil(t, p.Get("missing"))
}
