package hpack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/larrymotalavigne/httpy/message"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	enc := NewEncoder()
	h := message.NewHeader()
	h.Add("user-agent", "test-client")

	payload, err := enc.EncodeRequest(PseudoRequest{
		Method:    "GET",
		Scheme:    "https",
		Authority: "example.com",
		Path:      "/widgets",
	}, h)
	assert.NoError(t, err)

	dec := NewDecoder(4096, 8192)
	assert.NoError(t, dec.DecodeFragment(payload))
	pseudo, header, err := dec.Finish()
	assert.NoError(t, err)
	assert.Equal(t, "GET", pseudo.Method)
	assert.Equal(t, "/widgets", pseudo.Path)
	assert.Equal(t, "test-client", header.Get("user-agent"))
}

func TestEncodeDecodeResponseRoundTrip(t *testing.T) {
	enc := NewEncoder()
	h := message.NewHeader()
	h.Add("content-type", "application/json")

	payload, err := enc.EncodeResponse(200, h)
	assert.NoError(t, err)

	dec := NewDecoder(4096, 8192)
	assert.NoError(t, dec.DecodeFragment(payload))
	_, header, err := dec.Finish()
	assert.NoError(t, err)
	assert.Equal(t, "application/json", header.Get("content-type"))
}

func TestDecoderRejectsOversizedHeaderList(t *testing.T) {
	enc := NewEncoder()
	h := message.NewHeader()
	h.Add("x-big", string(make([]byte, 200)))

	payload, err := enc.EncodeRequest(PseudoRequest{Method: "GET", Scheme: "http", Authority: "a", Path: "/"}, h)
	assert.NoError(t, err)

	dec := NewDecoder(4096, 64)
	err = dec.DecodeFragment(payload)
	assert.Error(t, err)
	var tooLarge *ErrHeaderListTooLarge
	assert.ErrorAs(t, err, &tooLarge)
}

func TestDecoderReusableAcrossBlocks(t *testing.T) {
	enc := NewEncoder()
	h1 := message.NewHeader()
	h1.Add("x-one", "1")
	p1, err := enc.EncodeRequest(PseudoRequest{Method: "GET", Scheme: "http", Authority: "a", Path: "/one"}, h1)
	assert.NoError(t, err)

	h2 := message.NewHeader()
	h2.Add("x-two", "2")
	p2, err := enc.EncodeRequest(PseudoRequest{Method: "GET", Scheme: "http", Authority: "a", Path: "/two"}, h2)
	assert.NoError(t, err)

	dec := NewDecoder(4096, 8192)
	assert.NoError(t, dec.DecodeFragment(p1))
	pseudo1, header1, err := dec.Finish()
	assert.NoError(t, err)
	assert.Equal(t, "/one", pseudo1.Path)
	assert.Equal(t, "1", header1.Get("x-one"))

	assert.NoError(t, dec.DecodeFragment(p2))
	pseudo2, header2, err := dec.Finish()
	assert.NoError(t, err)
	assert.Equal(t, "/two", pseudo2.Path)
	assert.Equal(t, "2", header2.Get("x-two"))
}
