package ws

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/larrymotalavigne/httpy/message"
)

func TestAcceptKeyKnownVector(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestAcceptRejectsMissingUpgrade(t *testing.T) {
	req := message.NewRequest(message.ProtocolHTTP1)
	_, err := Accept(req, nil)
	assert.ErrorIs(t, err, ErrNotUpgrade)
}

func TestAcceptValidHandshake(t *testing.T) {
	req := message.NewRequest(message.ProtocolHTTP1)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	h, err := Accept(req, nil)
	assert.NoError(t, err)
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", h.Accept)
}

func TestFrameRoundTripUnmasked(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteFrame(&buf, Frame{Fin: true, Opcode: OpText, Payload: []byte("hello")}))

	f, err := ReadFrame(&buf)
	assert.NoError(t, err)
	assert.Equal(t, OpText, f.Opcode)
	assert.Equal(t, "hello", string(f.Payload))
}

func TestFrameMaskedRoundTrip(t *testing.T) {
	payload := []byte("masked payload")
	maskKey := [4]byte{1, 2, 3, 4}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ maskKey[i%4]
	}

	var buf bytes.Buffer
	buf.WriteByte(0x80 | byte(OpBinary))
	buf.WriteByte(0x80 | byte(len(payload)))
	buf.Write(maskKey[:])
	buf.Write(masked)

	f, err := ReadFrame(&buf)
	assert.NoError(t, err)
	assert.Equal(t, payload, f.Payload)
}

func TestControlFrameMustBeUnfragmentedAndSmall(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpClose)) // FIN not set
	buf.WriteByte(0)
	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestReassemblerJoinsContinuations(t *testing.T) {
	var r Reassembler

	_, _, ok, err := r.Feed(Frame{Fin: false, Opcode: OpText, Payload: []byte("hel")})
	assert.NoError(t, err)
	assert.False(t, ok)

	op, payload, ok, err := r.Feed(Frame{Fin: true, Opcode: OpContinuation, Payload: []byte("lo")})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, OpText, op)
	assert.Equal(t, "hello", string(payload))
}

func TestReassemblerPassesControlFramesThroughImmediately(t *testing.T) {
	var r Reassembler
	_, _, _, _ = r.Feed(Frame{Fin: false, Opcode: OpText, Payload: []byte("partial")})

	op, payload, ok, err := r.Feed(Frame{Fin: true, Opcode: OpPing, Payload: []byte("ping")})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, OpPing, op)
	assert.Equal(t, "ping", string(payload))
}

func TestCloseEncodeDecodeRoundTrip(t *testing.T) {
	payload := EncodeClose(CloseNormal, "bye")
	code, reason := DecodeClose(payload)
	assert.Equal(t, CloseNormal, code)
	assert.Equal(t, "bye", reason)
}

func TestDecodeCloseEmptyPayload(t *testing.T) {
	code, reason := DecodeClose(nil)
	assert.Equal(t, CloseNormal, code)
	assert.Equal(t, "", reason)
}
