package xbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferAppendConsume(t *testing.T) {
	b := NewBuffer(8)
	b.Append([]byte("hello"))
	assert.Equal(t, "hello", string(b.Bytes()))
	assert.Equal(t, 5, b.Len())

	b.Consume(5)
	assert.Equal(t, 0, b.Len())

	b.Append([]byte("world"))
	assert.Equal(t, "world", string(b.Bytes()))
}

func TestBufferAppendAfterPartialConsume(t *testing.T) {
	b := NewBuffer(4)
	b.Append([]byte("abcdefgh"))
	b.Consume(3)
	assert.Equal(t, "defgh", string(b.Bytes()))

	b.Append([]byte("ij"))
	assert.Equal(t, "defghij", string(b.Bytes()))
}

func TestPoolReusesReleasedBuffers(t *testing.T) {
	p := NewPool(1, 16)

	b1, ok := p.Acquire(nil)
	assert.True(t, ok)
	assert.Equal(t, 1, p.InUse())

	b1.Append([]byte("stale"))
	p.Release(b1)
	assert.Equal(t, 0, p.InUse())

	b2, ok := p.Acquire(nil)
	assert.True(t, ok)
	assert.Same(t, b1, b2)
	assert.Equal(t, 0, b2.Len(), "released buffer must be reset before reuse")
}

func TestPoolBlocksAtCapacityUntilDone(t *testing.T) {
	p := NewPool(1, 16)
	b1, _ := p.Acquire(nil)

	done := make(chan struct{})
	close(done)

	b2, ok := p.Acquire(done)
	assert.False(t, ok)
	assert.Nil(t, b2)

	p.Release(b1)
}
