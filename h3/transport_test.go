package h3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotSupportedReportsUnsupported(t *testing.T) {
	var tr Transport = NotSupported{}
	assert.False(t, tr.Supported())
}

func TestNotSupportedServeFails(t *testing.T) {
	var tr Transport = NotSupported{}
	err := tr.Serve(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrUnimplemented)
}
