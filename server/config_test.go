package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/larrymotalavigne/httpy/internal/xdur"
)

func TestLoadConfigYAMLAppliesDefaults(t *testing.T) {
	c, err := LoadConfigYAML([]byte(`
name: edge
host: 0.0.0.0
port: 8443
`))
	assert.NoError(t, err)
	assert.Equal(t, xdur.Seconds(75), c.KeepAliveTimeout)
	assert.Equal(t, xdur.Seconds(30), c.RequestTimeout)
	assert.Equal(t, xdur.Seconds(15), c.ShutdownGrace)
	assert.Equal(t, 16<<10, c.ReadBufferSize)
	assert.Equal(t, 10000, c.MaxConnections)
}

func TestLoadConfigYAMLPreservesExplicitValues(t *testing.T) {
	c, err := LoadConfigYAML([]byte(`
name: edge
host: 0.0.0.0
port: 8443
max_connections: 42
`))
	assert.NoError(t, err)
	assert.Equal(t, 42, c.MaxConnections)
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	c := &Config{}
	err := c.Validate()
	assert.Error(t, err)
}

func TestValidateRequiresCertWhenTLSEnabled(t *testing.T) {
	c := &Config{Name: "edge", Host: "0.0.0.0", Port: 8443, TLSEnabled: true}
	err := c.Validate()
	assert.Error(t, err)

	c.CertFile = "cert.pem"
	c.KeyFile = "key.pem"
	assert.NoError(t, c.Validate())
}

func TestAddressFormatsHostPort(t *testing.T) {
	c := &Config{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", c.Address())
}
