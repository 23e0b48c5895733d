/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package server assembles an Acceptor, a router and a dispatch chain into
// a runnable unit with a validated declarative Config, mirroring the
// teacher's httpserver package shape generalized to this module's own
// connection driver instead of net/http.Server.
package server

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/larrymotalavigne/httpy/internal/xdur"
)

// Config declares everything one Server instance needs, validated via
// struct tags the way the teacher's ServerConfig is.
type Config struct {
	Name  string `yaml:"name" validate:"required"`
	Host  string `yaml:"host" validate:"required"`
	Port  int    `yaml:"port" validate:"required,min=1,max=65535"`

	TLSEnabled bool   `yaml:"tls_enabled"`
	CertFile   string `yaml:"cert_file" validate:"required_if=TLSEnabled true"`
	KeyFile    string `yaml:"key_file" validate:"required_if=TLSEnabled true"`

	HTTP3Port int `yaml:"http3_port" validate:"omitempty,min=1,max=65535"`

	KeepAliveTimeout xdur.Duration `yaml:"keep_alive_timeout"`
	RequestTimeout   xdur.Duration `yaml:"request_timeout"`
	ShutdownGrace    xdur.Duration `yaml:"shutdown_grace"`

	ReadBufferSize  int `yaml:"read_buffer_size" validate:"omitempty,min=512"`
	WriteBufferSize int `yaml:"write_buffer_size" validate:"omitempty,min=512"`
	MaxConnections  int `yaml:"max_connections" validate:"omitempty,min=1"`

	ReusePort bool `yaml:"reuse_port"`
}

var validate = validator.New()

// Validate rejects a Config missing any required field or failing its
// cross-field rules (e.g. TLS enabled without cert/key paths).
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	return nil
}

// Address returns the host:port this Config binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// applyDefaults fills in zero-valued optional fields with the values the
// teacher's ServerConfig defaults to.
func (c *Config) applyDefaults() {
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = xdur.Seconds(75)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = xdur.Seconds(30)
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = xdur.Seconds(15)
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 16 << 10
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = 16 << 10
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 10000
	}
}

// LoadConfigYAML parses a Config from YAML bytes and applies defaults,
// but does not Validate it -- callers decide when to enforce that.
func LoadConfigYAML(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("server: parsing config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}
